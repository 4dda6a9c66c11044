package persistence

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressBlock(t *testing.T) {
	compressible := []byte(strings.Repeat("catalog vectors ", 512))
	incompressible := []byte{0x1f, 0x8b, 0x4c, 0xe7, 0x99, 0x02, 0xd4, 0x5a}

	for _, ct := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(ct.String(), func(t *testing.T) {
			block, err := CompressBlock(compressible, ct)
			require.NoError(t, err)

			out, err := DecompressBlock(block, ct)
			require.NoError(t, err)
			assert.Equal(t, compressible, out)

			if ct != CompressionNone {
				assert.Less(t, len(block), len(compressible))
			}
		})
	}

	t.Run("IncompressibleStoredRaw", func(t *testing.T) {
		block, err := CompressBlock(incompressible, CompressionZSTD)
		require.NoError(t, err)

		out, err := DecompressBlock(block, CompressionZSTD)
		require.NoError(t, err)
		assert.Equal(t, incompressible, out)
	})

	t.Run("Empty", func(t *testing.T) {
		block, err := CompressBlock(nil, CompressionLZ4)
		require.NoError(t, err)

		out, err := DecompressBlock(block, CompressionLZ4)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := CompressBlock([]byte("x"), CompressionType(42))
		assert.Error(t, err)
	})

	t.Run("TruncatedBlock", func(t *testing.T) {
		_, err := DecompressBlock([]byte{1, 2}, CompressionNone)
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestEnvelope(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		payload := []byte(strings.Repeat(`{"products":[]}`, 64))
		var buf bytes.Buffer
		require.NoError(t, WriteEnvelope(&buf, Envelope{
			CodecName:   "json",
			Compression: CompressionZSTD,
			Payload:     payload,
		}))

		env, err := ReadEnvelope(&buf)
		require.NoError(t, err)
		assert.Equal(t, "json", env.CodecName)
		assert.Equal(t, CompressionZSTD, env.Compression)
		assert.Equal(t, payload, env.Payload)
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteEnvelope(&buf, Envelope{
			CodecName:   "json",
			Compression: CompressionNone,
			Payload:     []byte("payload"),
		}))

		data := buf.Bytes()
		data[9] ^= 0xFF

		_, err := ReadEnvelope(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("BadMagic", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteEnvelope(&buf, Envelope{
			CodecName:   "json",
			Compression: CompressionNone,
			Payload:     []byte("payload"),
		}))

		// Rewrite the magic and fix up the checksum so only the magic check fires.
		data := buf.Bytes()
		body := data[:len(data)-4]
		body[0] = 0x00
		sum := Checksum(body)
		data[len(data)-4] = byte(sum)
		data[len(data)-3] = byte(sum >> 8)
		data[len(data)-2] = byte(sum >> 16)
		data[len(data)-1] = byte(sum >> 24)

		_, err := ReadEnvelope(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := ReadEnvelope(bytes.NewReader([]byte{1, 2, 3}))
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestChecksumWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)

	_, err := cw.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = cw.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, Checksum([]byte("hello world")), cw.Sum())
	assert.Equal(t, "hello world", buf.String())
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("WritesContent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "artifact.bin")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

		err := WriteFileAtomic(path, func(w io.Writer) error {
			_, err := w.Write([]byte("content"))
			return err
		})
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "content", string(data))
	})

	t.Run("FailedWriteLeavesNoFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "artifact.bin")

		err := WriteFileAtomic(path, func(io.Writer) error {
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("ReplacesExisting", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "artifact.bin")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

		err := WriteFileAtomic(path, func(w io.Writer) error {
			_, err := w.Write([]byte("new"))
			return err
		})
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})
}
