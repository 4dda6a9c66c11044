package visearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/visearch/codec"
	"github.com/hupe1980/visearch/model"
	"github.com/hupe1980/visearch/persistence"
	"github.com/hupe1980/visearch/pk"
)

// Artifact suffixes of the snapshot pair. Both are written on Save and
// both are required for Load; one without the other is treated as corrupt.
const (
	IndexArtifactSuffix = ".index"
	MetaArtifactSuffix  = ".meta"
)

func defaultCodec() codec.Codec { return codec.Default }

// snapshotBlob is the metadata snapshot payload. The index-id inverse map
// and the product lookup map are derived on load, never persisted.
type snapshotBlob struct {
	Products         []model.Product       `json:"products"`
	Vectors          map[string][]float32  `json:"vectors"`
	ProductToIndexID map[string]pk.IndexID `json:"product_to_index_id"`
	NextID           pk.IndexID            `json:"next_id"`
	FeatureDim       int                   `json:"feature_dim"`
}

// Save writes the snapshot pair under pathPrefix: the native index
// artifact and the metadata envelope. Both writes are atomic.
func (c *Catalog) Save(ctx context.Context, pathPrefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Both artifacts must describe the same instant. The index is
	// serialized to memory while the read lock is held so a mutation
	// committing during the file writes cannot tear the pair.
	c.mu.RLock()
	blob := snapshotBlob{
		Products:   make([]model.Product, len(c.ordered)),
		Vectors:    make(map[string][]float32, len(c.vectors)),
		FeatureDim: c.dim,
	}
	copy(blob.Products, c.ordered)
	for id, vec := range c.vectors {
		blob.Vectors[id] = vec
	}
	blob.ProductToIndexID, blob.NextID = c.ids.Snapshot()

	var indexBuf bytes.Buffer
	err := c.idx.Save(&indexBuf)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}

	err = persistence.WriteFileAtomic(pathPrefix+IndexArtifactSuffix, func(w io.Writer) error {
		_, err := w.Write(indexBuf.Bytes())
		return err
	})
	if err != nil {
		return fmt.Errorf("write index artifact: %w", err)
	}

	payload, err := c.opts.Codec.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encode metadata snapshot: %w", err)
	}
	err = persistence.WriteFileAtomic(pathPrefix+MetaArtifactSuffix, func(w io.Writer) error {
		return persistence.WriteEnvelope(w, persistence.Envelope{
			CodecName:   c.opts.Codec.Name(),
			Compression: c.opts.Compression,
			Payload:     payload,
		})
	})
	if err != nil {
		return fmt.Errorf("write metadata artifact: %w", err)
	}

	c.opts.Logger.LogSnapshot(pathPrefix, len(blob.Products), nil)
	return nil
}

// Load replaces the catalog state from the snapshot pair under pathPrefix.
//
// Load never trusts a single artifact: both must be present and decode
// cleanly, and the persisted feature dimension must match the catalog's.
// On any failure the in-memory state is left untouched so the caller can
// fall back to a rebuild.
func (c *Catalog) Load(ctx context.Context, pathPrefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	indexPath := pathPrefix + IndexArtifactSuffix
	metaPath := pathPrefix + MetaArtifactSuffix
	for _, p := range []string{indexPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: missing artifact %s", ErrCorruptSnapshot, p)
		}
	}

	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	env, err := persistence.ReadEnvelope(bytes.NewReader(metaBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	dec, ok := codec.ByName(env.CodecName)
	if !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrCorruptSnapshot, env.CodecName)
	}

	var blob snapshotBlob
	if err := dec.Unmarshal(env.Payload, &blob); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if blob.FeatureDim != c.dim {
		return &ErrDimensionMismatch{Expected: c.dim, Actual: blob.FeatureDim}
	}

	idx, err := c.newIndex(c.dim)
	if err != nil {
		return err
	}
	f, err := os.Open(indexPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	defer f.Close()
	if err := idx.Load(f); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if idx.Dimension() != c.dim {
		return &ErrDimensionMismatch{Expected: c.dim, Actual: idx.Dimension()}
	}

	// Cross-check the two artifacts before anything becomes visible.
	if idx.Count() != len(blob.Products) ||
		len(blob.ProductToIndexID) != len(blob.Products) ||
		len(blob.Vectors) != len(blob.Products) {
		return fmt.Errorf("%w: artifact pair disagrees on catalog size", ErrCorruptSnapshot)
	}
	for _, p := range blob.Products {
		if _, ok := blob.ProductToIndexID[p.ID]; !ok {
			return fmt.Errorf("%w: product %s has no index id", ErrCorruptSnapshot, p.ID)
		}
		if _, ok := blob.Vectors[p.ID]; !ok {
			return fmt.Errorf("%w: product %s has no vector", ErrCorruptSnapshot, p.ID)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.idx = idx
	c.ordered = blob.Products
	c.byID = make(map[string]model.Product, len(blob.Products))
	for _, p := range blob.Products {
		c.byID[p.ID] = p
	}
	c.vectors = blob.Vectors
	c.ids = pk.Restore(blob.ProductToIndexID, blob.NextID)
	c.matrix = nil
	c.matrixIDs = nil
	c.matrixValid = false

	return nil
}
