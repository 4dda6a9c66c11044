package visearch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/visearch/ingest"
	"github.com/hupe1980/visearch/model"
)

// ErrStaleCache indicates that a cached index no longer matches the image
// files physically present in the catalog directory. Like every cache
// failure it triggers a rebuild, never a crash.
var ErrStaleCache = errors.New("cached index does not match catalog directory")

// Reconciler decides whether a persisted catalog can be trusted at
// startup. A cache is valid only when the feature dimension matches the
// live embedding model, every cached image path still exists, and the set
// of image files on disk equals the set referenced by cached products.
type Reconciler struct {
	// CatalogDir is the authoritative directory of catalog imagery.
	CatalogDir string

	// FeatureDim is the output dimensionality of the live embedding model.
	FeatureDim int
}

// Validate returns nil when the cached catalog is trustworthy.
// indexDim is the dimensionality of the loaded index.
func (r Reconciler) Validate(products []model.Product, indexDim int) error {
	if indexDim != r.FeatureDim {
		return &ErrDimensionMismatch{Expected: r.FeatureDim, Actual: indexDim}
	}

	cached := make(map[string]struct{}, len(products))
	missing := 0
	for _, p := range products {
		path, err := resolveImagePath(p.ImagePath)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			missing++
			continue
		}
		cached[path] = struct{}{}
	}
	if missing > 0 {
		return fmt.Errorf("%w: %d cached image files missing on disk", ErrStaleCache, missing)
	}

	disk, err := r.diskSnapshot()
	if err != nil {
		return err
	}

	// Any discrepancy in either direction invalidates the cache: files
	// removed since the snapshot, or untracked files added.
	if len(disk) != len(cached) {
		return fmt.Errorf("%w: %d files on disk vs %d cached entries", ErrStaleCache, len(disk), len(cached))
	}
	for path := range disk {
		if _, ok := cached[path]; !ok {
			return fmt.Errorf("%w: untracked file %s", ErrStaleCache, path)
		}
	}
	return nil
}

// diskSnapshot returns the set of supported image files currently present
// in the catalog directory, as resolved absolute paths.
func (r Reconciler) diskSnapshot() (map[string]struct{}, error) {
	files, err := ingest.ListImages(r.CatalogDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}

	out := make(map[string]struct{}, len(files))
	for _, f := range files {
		path, err := resolveImagePath(f)
		if err != nil {
			return nil, err
		}
		out[path] = struct{}{}
	}
	return out, nil
}

func resolveImagePath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.FromSlash(path))
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
