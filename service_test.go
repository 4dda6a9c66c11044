package visearch

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/visearch/blobstore"
	"github.com/hupe1980/visearch/ingest"
	"github.com/hupe1980/visearch/model"
)

// stubExtractor hands out distinct unit basis vectors in call order.
type stubExtractor struct {
	mu   sync.Mutex
	dim  int
	next int
}

func (e *stubExtractor) ExtractBatch(_ context.Context, images []image.Image) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]float32, len(images))
	for i := range out {
		vec := make([]float32, e.dim)
		vec[e.next%e.dim] = 1
		e.next++
		out[i] = vec
	}
	return out, nil
}

func (e *stubExtractor) Dimension() int    { return e.dim }
func (e *stubExtractor) ModelName() string { return "stub-embedder" }

// anyDecoder decodes every file into a 1x1 image, contents ignored.
type anyDecoder struct{}

func (anyDecoder) Decode(string) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte) error   { return errors.New("unreachable") }
func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("unreachable") }
func (failingStore) Delete(context.Context, string) error        { return errors.New("unreachable") }
func (failingStore) List(context.Context, string) ([]string, error) {
	return nil, errors.New("unreachable")
}

func newTestService(t *testing.T, catalogDir, indexPrefix string, mirror blobstore.Store) *Service {
	t.Helper()

	svc, err := NewService(&stubExtractor{dim: 8}, func(o *ServiceOptions) {
		o.CatalogDir = catalogDir
		o.IndexBasePath = indexPrefix
		o.Workers = 1
		o.Mirror = mirror
		o.Logger = NoopLogger()
		o.Decoder = anyDecoder{}
	})
	require.NoError(t, err)
	return svc
}

func seedImageFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644))
	}
}

func TestServiceStartup(t *testing.T) {
	ctx := context.Background()

	t.Run("RebuildFromImages", func(t *testing.T) {
		root := t.TempDir()
		catalogDir := filepath.Join(root, "catalog")
		prefix := filepath.Join(root, "catalog_index")
		seedImageFiles(t, catalogDir, "red_sneaker.jpg", "blue_jacket.jpg")

		svc := newTestService(t, catalogDir, prefix, nil)
		report, err := svc.Startup(ctx)
		require.NoError(t, err)

		assert.False(t, report.UsedCache)
		assert.Equal(t, 2, report.CatalogSize)
		assert.Equal(t, 2, svc.Size())

		// The snapshot pair was cached for the next start.
		assert.FileExists(t, prefix+IndexArtifactSuffix)
		assert.FileExists(t, prefix+MetaArtifactSuffix)

		products := svc.Products()
		require.Len(t, products, 2)
		assert.Equal(t, "blue_jacket", products[0].ID)
		assert.Equal(t, "Blue Jacket", products[0].Name)
	})

	t.Run("SecondStartUsesCache", func(t *testing.T) {
		root := t.TempDir()
		catalogDir := filepath.Join(root, "catalog")
		prefix := filepath.Join(root, "catalog_index")
		seedImageFiles(t, catalogDir, "a.jpg", "b.jpg")

		first := newTestService(t, catalogDir, prefix, nil)
		_, err := first.Startup(ctx)
		require.NoError(t, err)

		second := newTestService(t, catalogDir, prefix, nil)
		report, err := second.Startup(ctx)
		require.NoError(t, err)

		assert.True(t, report.UsedCache)
		assert.Equal(t, 2, report.CatalogSize)
	})

	t.Run("StaleCacheTriggersRebuild", func(t *testing.T) {
		root := t.TempDir()
		catalogDir := filepath.Join(root, "catalog")
		prefix := filepath.Join(root, "catalog_index")
		seedImageFiles(t, catalogDir, "a.jpg", "b.jpg")

		first := newTestService(t, catalogDir, prefix, nil)
		_, err := first.Startup(ctx)
		require.NoError(t, err)

		// A new image appears behind the cache's back.
		seedImageFiles(t, catalogDir, "c.jpg")

		second := newTestService(t, catalogDir, prefix, nil)
		report, err := second.Startup(ctx)
		require.NoError(t, err)

		assert.False(t, report.UsedCache)
		assert.Equal(t, 3, report.CatalogSize)
	})

	t.Run("EmptyCatalogDir", func(t *testing.T) {
		root := t.TempDir()
		svc := newTestService(t, filepath.Join(root, "catalog"), filepath.Join(root, "catalog_index"), nil)

		report, err := svc.Startup(ctx)
		require.NoError(t, err)

		assert.False(t, report.UsedCache)
		assert.Equal(t, 0, report.CatalogSize)

		// Empty catalogs are not persisted.
		_, statErr := os.Stat(filepath.Join(root, "catalog_index") + IndexArtifactSuffix)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("ColdStartFetchesFromMirror", func(t *testing.T) {
		root := t.TempDir()
		catalogDir := filepath.Join(root, "catalog")
		seedImageFiles(t, catalogDir, "a.jpg", "b.jpg")
		mirror := blobstore.NewLocalStore(filepath.Join(root, "remote"))

		first := newTestService(t, catalogDir, filepath.Join(root, "node1", "catalog_index"), mirror)
		_, err := first.Startup(ctx)
		require.NoError(t, err)

		// A second node with no local snapshot pulls the pair from the
		// mirror and trusts it.
		second := newTestService(t, catalogDir, filepath.Join(root, "node2", "catalog_index"), mirror)
		report, err := second.Startup(ctx)
		require.NoError(t, err)
		assert.True(t, report.UsedCache)
	})

	t.Run("UnreachableMirrorFallsBackToRebuild", func(t *testing.T) {
		root := t.TempDir()
		catalogDir := filepath.Join(root, "catalog")
		seedImageFiles(t, catalogDir, "a.jpg")

		svc := newTestService(t, catalogDir, filepath.Join(root, "catalog_index"), failingStore{})
		report, err := svc.Startup(ctx)
		require.NoError(t, err)

		assert.False(t, report.UsedCache)
		assert.Equal(t, 1, report.CatalogSize)
	})
}

func TestServiceSearch(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	svc := newTestService(t, filepath.Join(root, "catalog"), filepath.Join(root, "catalog_index"), nil)

	c := svc.Catalog()
	require.NoError(t, c.AddProduct(ctx, model.Product{ID: "p0"}, []float32{1, 0, 0, 0, 0, 0, 0, 0}, model.PositionBack))
	require.NoError(t, c.AddProduct(ctx, model.Product{ID: "p1"}, []float32{0.9, 0.1, 0, 0, 0, 0, 0, 0}, model.PositionBack))
	require.NoError(t, c.AddProduct(ctx, model.Product{ID: "p2"}, []float32{0, 1, 0, 0, 0, 0, 0, 0}, model.PositionBack))

	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}

	t.Run("ThresholdFilters", func(t *testing.T) {
		results, total, err := svc.Search(ctx, query, 0.9, 10)
		require.NoError(t, err)

		assert.Equal(t, 2, total)
		require.Len(t, results, 2)
		assert.Equal(t, "p0", results[0].Product.ID)
		assert.Equal(t, "p1", results[1].Product.ID)
	})

	t.Run("TotalExceedsPage", func(t *testing.T) {
		results, total, err := svc.Search(ctx, query, 0, 1)
		require.NoError(t, err)

		assert.Equal(t, 3, total)
		assert.Len(t, results, 1)
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		_, _, err := svc.Search(ctx, query, 1.5, 10)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})
}

func TestServiceImageManagement(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	catalogDir := filepath.Join(root, "catalog")
	svc := newTestService(t, catalogDir, filepath.Join(root, "catalog_index"), nil)

	_, err := svc.Startup(ctx)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))

	t.Run("AddProductImage", func(t *testing.T) {
		category := "shoes"
		product, err := svc.AddProductImage(ctx, img, AddProductParams{
			Name:     "Red Sneaker",
			Category: &category,
		})
		require.NoError(t, err)

		assert.Equal(t, "prod_0", product.ID)
		assert.Equal(t, "Red Sneaker", product.Name)
		assert.FileExists(t, filepath.Join(catalogDir, "prod_0.jpg"))
		assert.Equal(t, 1, svc.Size())

		// New products land at the front of the catalog listing.
		second, err := svc.AddProductImage(ctx, img, AddProductParams{Name: "Blue Jacket"})
		require.NoError(t, err)

		products := svc.Products()
		require.Len(t, products, 2)
		assert.Equal(t, second.ID, products[0].ID)
	})

	t.Run("DeleteProduct", func(t *testing.T) {
		removed, err := svc.DeleteProduct(ctx, "prod_0")
		require.NoError(t, err)
		assert.Equal(t, "prod_0", removed.ID)
		assert.Equal(t, 1, svc.Size())

		_, statErr := os.Stat(filepath.Join(catalogDir, "prod_0.jpg"))
		assert.True(t, os.IsNotExist(statErr))

		_, err = svc.DeleteProduct(ctx, "prod_0")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceCatalogPage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	svc := newTestService(t, filepath.Join(root, "catalog"), filepath.Join(root, "catalog_index"), nil)

	c := svc.Catalog()
	for i := range 95 {
		vec := make([]float32, 8)
		vec[i%8] = 1
		p := model.Product{ID: testProductID(i)}
		require.NoError(t, c.AddProduct(ctx, p, vec, model.PositionBack))
	}

	t.Run("DefaultSize", func(t *testing.T) {
		page := svc.CatalogPage(1, 0)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 40, page.PageSize)
		assert.Equal(t, 95, page.TotalItems)
		assert.Equal(t, 3, page.TotalPages)
		assert.Len(t, page.Items, 40)
	})

	t.Run("LastPagePartial", func(t *testing.T) {
		page := svc.CatalogPage(3, 40)
		assert.Len(t, page.Items, 15)
	})

	t.Run("PageClampedIntoRange", func(t *testing.T) {
		page := svc.CatalogPage(99, 40)
		assert.Equal(t, 3, page.Page)

		page = svc.CatalogPage(-1, 40)
		assert.Equal(t, 1, page.Page)
	})

	t.Run("SizeClampedToMax", func(t *testing.T) {
		page := svc.CatalogPage(1, 5000)
		assert.Equal(t, 200, page.PageSize)
		assert.Len(t, page.Items, 95)
	})

	t.Run("EmptyCatalog", func(t *testing.T) {
		empty := newTestService(t, filepath.Join(root, "c2"), filepath.Join(root, "i2"), nil)
		page := empty.CatalogPage(1, 40)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 0, page.TotalItems)
		assert.Empty(t, page.Items)
	})
}

func testProductID(i int) string {
	return "prod_" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestServiceStats(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, filepath.Join(root, "catalog"), filepath.Join(root, "catalog_index"), nil)

	stats := svc.Stats()
	assert.Equal(t, 0, stats.TotalProducts)
	assert.Equal(t, "stub-embedder", stats.Model)
	assert.Equal(t, 8, stats.FeatureDim)
	assert.Equal(t, float32(0.8), stats.SearchMinSimilarity)
	assert.Equal(t, 10, stats.ResultsPageSize)
	assert.Equal(t, 40, stats.CatalogPageSize)
	assert.Equal(t, 200, stats.CatalogMaxPageSize)
	assert.Equal(t, ingest.SupportedExtensions(), stats.SupportedFormats)
}
