package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Envelope is the self-describing container for a snapshot payload.
//
// Layout:
//
//	[0:4]   magic (EnvelopeMagic)
//	[4:6]   version
//	[6]     compression type
//	[7]     codec name length
//	[8:..]  codec name
//	[..:..] payload block (see CompressBlock)
//	[-4:]   CRC32 of everything before it
//
// Persisted files record the codec name so the reader can select the
// matching codec; changing codecs is a breaking-change boundary.
type Envelope struct {
	CodecName   string
	Compression CompressionType
	Payload     []byte
}

// WriteEnvelope writes an envelope to w.
func WriteEnvelope(w io.Writer, env Envelope) error {
	if len(env.CodecName) > 0xFF {
		return fmt.Errorf("persistence: codec name too long: %d", len(env.CodecName))
	}

	block, err := CompressBlock(env.Payload, env.Compression)
	if err != nil {
		return err
	}

	cw := NewChecksumWriter(w)

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], EnvelopeMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], EnvelopeVersion)
	hdr[6] = byte(env.Compression)
	hdr[7] = byte(len(env.CodecName))
	if _, err := cw.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := cw.Write([]byte(env.CodecName)); err != nil {
		return err
	}
	if _, err := cw.Write(block); err != nil {
		return err
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], cw.Sum())
	_, err = w.Write(footer[:])
	return err
}

// ReadEnvelope reads and verifies an envelope from r.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Envelope{}, err
	}
	if len(data) < 12 { // header + footer
		return Envelope{}, ErrTruncated
	}

	body, footer := data[:len(data)-4], data[len(data)-4:]
	if Checksum(body) != binary.LittleEndian.Uint32(footer) {
		return Envelope{}, ErrChecksum
	}

	buf := bytes.NewReader(body)
	var hdr [8]byte
	if _, err := io.ReadFull(buf, hdr[:]); err != nil {
		return Envelope{}, ErrTruncated
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != EnvelopeMagic {
		return Envelope{}, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint16(hdr[4:6]) != EnvelopeVersion {
		return Envelope{}, ErrInvalidVersion
	}
	compression := CompressionType(hdr[6])
	nameLen := int(hdr[7])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(buf, name); err != nil {
		return Envelope{}, ErrTruncated
	}

	block := body[8+nameLen:]
	payload, err := DecompressBlock(block, compression)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		CodecName:   string(name),
		Compression: compression,
		Payload:     payload,
	}, nil
}
