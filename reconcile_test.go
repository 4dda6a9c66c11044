package visearch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/visearch/model"
)

func writeCatalogImages(t *testing.T, dir string, names ...string) []model.Product {
	t.Helper()

	products := make([]model.Product, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))

		stem := name[:len(name)-len(filepath.Ext(name))]
		products = append(products, model.Product{
			ID:        stem,
			Name:      stem,
			ImagePath: filepath.ToSlash(path),
		})
	}
	return products
}

func TestReconcilerValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		dir := t.TempDir()
		products := writeCatalogImages(t, dir, "a.jpg", "b.jpg")

		r := Reconciler{CatalogDir: dir, FeatureDim: 512}
		assert.NoError(t, r.Validate(products, 512))
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		dir := t.TempDir()
		products := writeCatalogImages(t, dir, "a.jpg")

		r := Reconciler{CatalogDir: dir, FeatureDim: 512}
		err := r.Validate(products, 768)

		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 512, dimErr.Expected)
		assert.Equal(t, 768, dimErr.Actual)
	})

	t.Run("CachedImageMissing", func(t *testing.T) {
		dir := t.TempDir()
		products := writeCatalogImages(t, dir, "a.jpg", "b.jpg")
		require.NoError(t, os.Remove(filepath.Join(dir, "b.jpg")))

		r := Reconciler{CatalogDir: dir, FeatureDim: 512}
		assert.ErrorIs(t, r.Validate(products, 512), ErrStaleCache)
	})

	t.Run("UntrackedImageOnDisk", func(t *testing.T) {
		dir := t.TempDir()
		products := writeCatalogImages(t, dir, "a.jpg")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "new.jpg"), []byte("img"), 0o644))

		r := Reconciler{CatalogDir: dir, FeatureDim: 512}
		assert.ErrorIs(t, r.Validate(products, 512), ErrStaleCache)
	})

	t.Run("NonImageFilesIgnored", func(t *testing.T) {
		dir := t.TempDir()
		products := writeCatalogImages(t, dir, "a.jpg")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

		r := Reconciler{CatalogDir: dir, FeatureDim: 512}
		assert.NoError(t, r.Validate(products, 512))
	})

	t.Run("EmptyCacheEmptyDir", func(t *testing.T) {
		r := Reconciler{CatalogDir: t.TempDir(), FeatureDim: 512}
		assert.NoError(t, r.Validate(nil, 512))
	})

	t.Run("MissingCatalogDir", func(t *testing.T) {
		// A vanished directory equals an empty one: a non-empty cache is
		// stale, an empty cache is fine.
		r := Reconciler{CatalogDir: filepath.Join(t.TempDir(), "gone"), FeatureDim: 512}
		assert.NoError(t, r.Validate(nil, 512))
	})
}
