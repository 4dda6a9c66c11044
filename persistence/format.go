package persistence

import "errors"

const (
	// EnvelopeMagic identifies snapshot envelope files (ASCII: "VSE1").
	EnvelopeMagic = 0x56534531

	// EnvelopeVersion is the current envelope format version.
	EnvelopeVersion = uint16(1)
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported format version")
	ErrChecksum       = errors.New("checksum mismatch")
	ErrTruncated      = errors.New("truncated snapshot")
)
