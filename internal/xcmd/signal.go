// Package xcmd provides process-lifecycle helpers shared by cmd/simulator
// and cmd/monitor, adapted from the teacher's common/go/xcmd helper.
package xcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Interrupted wraps the os.Signal that ended a WaitInterrupted call so
// callers can distinguish a clean shutdown request from a real failure.
type Interrupted struct {
	os.Signal
}

func (m Interrupted) Error() string {
	return m.String()
}

// WaitInterrupted blocks until either SIGINT or SIGTERM is received, or ctx
// is canceled, whichever happens first.
func WaitInterrupted(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case v := <-ch:
		return Interrupted{Signal: v}
	case <-ctx.Done():
		return ctx.Err()
	}
}
