package flat

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/visearch/index"
	"github.com/hupe1980/visearch/persistence"
)

const (
	// binaryMagic identifies flat index files (ASCII: "VSF1").
	binaryMagic   = 0x56534631
	binaryVersion = uint16(1)
)

// Save writes the index to w.
//
// Format (little endian, CRC32 footer over everything before it):
//
//	[magic uint32][version uint16][dim uint32][count uint32]
//	count * ([id uint32][dim * float32])
//	[crc32 uint32]
func (f *Flat) Save(w io.Writer) error {
	st := f.getState()

	cw := persistence.NewChecksumWriter(w)
	bw := bufio.NewWriter(cw)

	var hdr [14]byte
	binary.LittleEndian.PutUint32(hdr[0:4], binaryMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], binaryVersion)
	binary.LittleEndian.PutUint32(hdr[6:10], uint32(f.opts.Dimension))
	binary.LittleEndian.PutUint32(hdr[10:14], uint32(st.live.GetCardinality()))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	var scratch [4]byte
	it := st.live.Iterator()
	for it.HasNext() {
		id := it.Next()
		vec := st.vectors[id]

		binary.LittleEndian.PutUint32(scratch[:], id)
		if _, err := bw.Write(scratch[:]); err != nil {
			return err
		}
		for _, x := range vec {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(x))
			if _, err := bw.Write(scratch[:]); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], cw.Sum())
	_, err := w.Write(footer[:])
	return err
}

// Load replaces the index state from r. The stream must carry the
// configured dimension; anything else is rejected with ErrDimensionMismatch.
// The checksum is verified before the new state becomes visible, so a
// corrupt stream never leaves the index half loaded.
func (f *Flat) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(data) < 18 { // header + footer
		return persistence.ErrTruncated
	}

	body, footer := data[:len(data)-4], data[len(data)-4:]
	if persistence.Checksum(body) != binary.LittleEndian.Uint32(footer) {
		return persistence.ErrChecksum
	}

	if binary.LittleEndian.Uint32(body[0:4]) != binaryMagic {
		return persistence.ErrInvalidMagic
	}
	if binary.LittleEndian.Uint16(body[4:6]) != binaryVersion {
		return persistence.ErrInvalidVersion
	}
	dim := int(binary.LittleEndian.Uint32(body[6:10]))
	if dim != f.opts.Dimension {
		return &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: dim}
	}
	count := int(binary.LittleEndian.Uint32(body[10:14]))

	entrySize := 4 + dim*4
	if len(body) != 14+count*entrySize {
		return persistence.ErrTruncated
	}

	newState := &indexState{
		vectors: make(map[uint32][]float32, count),
		live:    roaring.New(),
	}

	off := 14
	for i := 0; i < count; i++ {
		id := binary.LittleEndian.Uint32(body[off:])
		off += 4
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(body[off:]))
			off += 4
		}
		newState.vectors[id] = vec
		newState.live.Add(id)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.state.Store(newState)
	return nil
}
