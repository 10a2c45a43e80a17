package wire

import "errors"

// Setup errors (spec §7) — fatal to the affected endpoint only.
var (
	ErrHeaderInvalid      = errors.New("wire: header invalid")
	ErrRegionSizeMismatch = errors.New("wire: region size mismatch")
)

// Programmer errors (spec §7) — fail fast, never absorbed.
var (
	ErrPayloadTooLarge = errors.New("wire: payload too large for frame")
)
