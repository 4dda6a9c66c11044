package visearch

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hupe1980/visearch/blobstore"
	"github.com/hupe1980/visearch/ingest"
	"github.com/hupe1980/visearch/model"
	"github.com/hupe1980/visearch/persistence"
	"github.com/hupe1980/visearch/resource"
)

// ServiceOptions contains configuration options for the Service.
type ServiceOptions struct {
	// CatalogDir is the directory holding catalog imagery.
	CatalogDir string

	// IndexBasePath is the path prefix for the snapshot artifact pair.
	IndexBasePath string

	// CacheIndex persists the catalog after builds and mutations.
	CacheIndex bool

	// BatchSize is the number of images per embedding-model call during
	// directory ingestion.
	BatchSize int

	// Workers bounds the concurrent decode stage during ingestion.
	Workers int

	// SearchMinSimilarity is the advertised minimum similarity for a match.
	SearchMinSimilarity float32

	// ResultsPageSize is the advertised page size of the results grid.
	ResultsPageSize int

	// CatalogPageSize is the default catalog listing page size.
	CatalogPageSize int

	// CatalogMaxPageSize bounds the catalog listing page size.
	CatalogMaxPageSize int

	// Mirror, when set, receives a copy of every snapshot pair and serves
	// as a fallback source on cold start.
	Mirror blobstore.Store

	// Controller guards access to the embedding model.
	Controller *resource.Controller

	// Decoder decodes image files during ingestion.
	Decoder ingest.Decoder

	// Logger receives structured diagnostics.
	Logger *Logger

	// CatalogOptions are passed through to the owned Catalog instances.
	CatalogOptions []func(o *Options)
}

// DefaultServiceOptions contains the default configuration options for the Service.
var DefaultServiceOptions = ServiceOptions{
	CatalogDir:          "data/catalog",
	IndexBasePath:       "data/catalog_index",
	CacheIndex:          true,
	BatchSize:           32,
	Workers:             4,
	SearchMinSimilarity: 0.8,
	ResultsPageSize:     10,
	CatalogPageSize:     40,
	CatalogMaxPageSize:  200,
}

// Service owns the active catalog and coordinates startup reconciliation,
// rebuilds and steady-state catalog operations.
//
// The active catalog is an explicit owned field: a rebuilt or reloaded
// catalog replaces it only after it is fully built and validated, so no
// query is ever served against a half-built index.
type Service struct {
	opts       ServiceOptions
	extractor  ingest.Extractor
	controller *resource.Controller
	log        *Logger

	catalog *swappable
}

// NewService creates a Service around the given embedding extractor.
func NewService(extractor ingest.Extractor, optFns ...func(o *ServiceOptions)) (*Service, error) {
	opts := DefaultServiceOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NewLogger(nil)
	}
	if opts.Controller == nil {
		opts.Controller = resource.NewController(resource.Config{})
	}

	initial, err := New(extractor.Dimension(), opts.CatalogOptions...)
	if err != nil {
		return nil, err
	}

	return &Service{
		opts:       opts,
		extractor:  extractor,
		controller: opts.Controller,
		log:        opts.Logger,
		catalog:    newSwappable(initial),
	}, nil
}

// Catalog returns the active catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog.get()
}

// Startup ensures the catalog directory exists and brings the catalog
// online, from cache when the reconciler trusts it, otherwise by a full
// rebuild from the imagery on disk.
func (s *Service) Startup(ctx context.Context) (model.StartupReport, error) {
	if err := os.MkdirAll(s.opts.CatalogDir, 0o755); err != nil {
		return model.StartupReport{}, err
	}

	start := time.Now()
	usedCache := s.loadCachedIfValid(ctx)
	if !usedCache {
		if err := s.rebuild(ctx); err != nil {
			return model.StartupReport{}, err
		}
	}

	return model.StartupReport{
		UsedCache:   usedCache,
		Duration:    time.Since(start).Seconds(),
		CatalogSize: s.Catalog().Size(),
	}, nil
}

// loadCachedIfValid loads the persisted snapshot pair into a candidate
// catalog and swaps it in only when the reconciler accepts it.
func (s *Service) loadCachedIfValid(ctx context.Context) bool {
	s.fetchFromMirror(ctx)

	candidate, err := New(s.extractor.Dimension(), s.opts.CatalogOptions...)
	if err != nil {
		s.log.Warn("failed to create catalog", "error", err)
		return false
	}

	s.log.Info("loading precomputed catalog index", "path_prefix", s.opts.IndexBasePath)
	if err := candidate.Load(ctx, s.opts.IndexBasePath); err != nil {
		s.log.Warn("failed to load cached index", "error", err)
		return false
	}

	reconciler := Reconciler{
		CatalogDir: s.opts.CatalogDir,
		FeatureDim: s.extractor.Dimension(),
	}
	if err := reconciler.Validate(candidate.Products(), candidate.Dimension()); err != nil {
		s.log.Warn("cached index invalid", "error", err)
		return false
	}

	s.catalog.swap(candidate)
	s.log.Info("loaded products from cache", "catalog_size", candidate.Size())
	return true
}

// fetchFromMirror pulls the snapshot pair from the remote mirror when the
// local artifacts are absent. Best effort: a mirror failure just means a
// rebuild.
func (s *Service) fetchFromMirror(ctx context.Context) {
	if s.opts.Mirror == nil {
		return
	}
	if _, err := os.Stat(s.opts.IndexBasePath + IndexArtifactSuffix); err == nil {
		return
	}
	if err := FetchSnapshot(ctx, s.opts.Mirror, s.opts.IndexBasePath); err != nil {
		s.log.Warn("failed to fetch snapshot from mirror", "error", err)
	}
}

// rebuild runs the full ingestion pipeline into a fresh catalog and swaps
// it in once complete.
func (s *Service) rebuild(ctx context.Context) error {
	s.log.Info("building catalog index from images", "dir", s.opts.CatalogDir)

	fresh, err := New(s.extractor.Dimension(), s.opts.CatalogOptions...)
	if err != nil {
		return err
	}

	pipeline := ingest.New(fresh, s.extractor, func(o *ingest.Options) {
		o.BatchSize = s.opts.BatchSize
		o.Workers = s.opts.Workers
		o.Controller = s.controller
		o.Logger = s.log.Logger
		if s.opts.Decoder != nil {
			o.Decoder = s.opts.Decoder
		}
	})
	if err := pipeline.Run(ctx, s.opts.CatalogDir); err != nil {
		return err
	}

	s.catalog.swap(fresh)
	s.log.LogRebuild(s.opts.CatalogDir, fresh.Size())
	s.persist(ctx)
	return nil
}

// persist saves the snapshot pair when caching is enabled and the catalog
// is non-empty, and mirrors it when a remote store is configured.
func (s *Service) persist(ctx context.Context) {
	c := s.Catalog()
	if !s.opts.CacheIndex || c.Size() == 0 {
		return
	}
	if err := c.Save(ctx, s.opts.IndexBasePath); err != nil {
		s.log.Warn("failed to cache catalog index", "error", err)
		return
	}
	if s.opts.Mirror != nil {
		if err := MirrorSnapshot(ctx, s.opts.Mirror, s.opts.IndexBasePath); err != nil {
			s.log.Warn("failed to mirror snapshot", "error", err)
		}
	}
}

// Search returns the thresholded top results and the total number of
// catalog entries meeting the threshold.
func (s *Service) Search(ctx context.Context, query []float32, threshold float32, topK int) ([]model.SearchResult, int, error) {
	if topK < 1 {
		topK = 1
	}
	c := s.Catalog()

	results, err := c.Search(ctx, query, topK)
	if err != nil {
		return nil, 0, err
	}
	if threshold > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Similarity >= threshold {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	total, err := c.CountMatches(ctx, query, threshold)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// AddProductParams are the caller-supplied fields for a new product.
type AddProductParams struct {
	ID       string
	Name     string
	Category *string
	Price    *float64
}

// AddProductImage stores the image in the catalog directory, extracts its
// embedding and indexes the product at the front of the catalog.
func (s *Service) AddProductImage(ctx context.Context, img image.Image, params AddProductParams) (model.Product, error) {
	c := s.Catalog()

	productID := params.ID
	if productID == "" {
		productID = fmt.Sprintf("prod_%d", c.Size())
	}

	imagePath, err := s.saveCatalogImage(img, productID)
	if err != nil {
		return model.Product{}, err
	}

	vector, err := s.extractOne(ctx, img)
	if err != nil {
		return model.Product{}, err
	}

	name := params.Name
	if name == "" {
		name = productID
	}
	product := model.Product{
		ID:        productID,
		Name:      name,
		ImagePath: filepath.ToSlash(imagePath),
		Category:  params.Category,
		Price:     params.Price,
	}

	if err := c.AddProduct(ctx, product, vector, model.PositionFront); err != nil {
		return model.Product{}, err
	}

	s.persist(ctx)
	return product, nil
}

// DeleteProduct removes the product and its image file from the catalog.
func (s *Service) DeleteProduct(ctx context.Context, productID string) (model.Product, error) {
	c := s.Catalog()

	product, ok := c.GetProduct(productID)
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}

	imagePath, err := resolveImagePath(product.ImagePath)
	if err == nil {
		if _, statErr := os.Stat(imagePath); statErr == nil {
			_ = os.Remove(imagePath)
		}
	}

	removed, err := c.RemoveProduct(ctx, productID)
	if err != nil {
		return model.Product{}, err
	}

	s.persist(ctx)
	return removed, nil
}

// GetProduct returns the product with the given id.
func (s *Service) GetProduct(productID string) (model.Product, bool) {
	return s.Catalog().GetProduct(productID)
}

// Products returns an ordered snapshot of all products.
func (s *Service) Products() []model.Product {
	return s.Catalog().Products()
}

// Size returns the number of products in the catalog.
func (s *Service) Size() int {
	return s.Catalog().Size()
}

// CatalogPage returns one page of the ordered catalog listing.
// The requested size is bounded by CatalogMaxPageSize and the page number
// is clamped into range.
func (s *Service) CatalogPage(page, requestedSize int) model.CatalogPage {
	size := requestedSize
	if size < 1 {
		size = s.opts.CatalogPageSize
	}
	if size > s.opts.CatalogMaxPageSize {
		size = s.opts.CatalogMaxPageSize
	}

	products := s.Products()
	total := len(products)
	if total == 0 {
		return model.CatalogPage{Page: 1, PageSize: size, Items: []model.Product{}}
	}

	totalPages := int(math.Ceil(float64(total) / float64(size)))
	if totalPages < 1 {
		totalPages = 1
	}
	current := page
	if current < 1 {
		current = 1
	}
	if current > totalPages {
		current = totalPages
	}

	start := (current - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	return model.CatalogPage{
		Page:       current,
		PageSize:   size,
		TotalItems: total,
		TotalPages: totalPages,
		Items:      products[start:end],
	}
}

// Stats summarizes the live catalog and its configuration.
func (s *Service) Stats() model.CatalogStats {
	return model.CatalogStats{
		TotalProducts:       s.Size(),
		Model:               s.extractor.ModelName(),
		FeatureDim:          s.extractor.Dimension(),
		SearchMinSimilarity: s.opts.SearchMinSimilarity,
		ResultsPageSize:     s.opts.ResultsPageSize,
		SupportedFormats:    ingest.SupportedExtensions(),
		CatalogPageSize:     s.opts.CatalogPageSize,
		CatalogMaxPageSize:  s.opts.CatalogMaxPageSize,
	}
}

func (s *Service) extractOne(ctx context.Context, img image.Image) ([]float32, error) {
	if err := s.controller.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.controller.Release()

	vectors, err := s.extractor.ExtractBatch(ctx, []image.Image{img})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("extractor returned %d vectors for one image", len(vectors))
	}
	return vectors[0], nil
}

// swappable holds the active catalog behind an atomic pointer so a fully
// built replacement can be published without blocking readers.
type swappable struct {
	ptr atomic.Pointer[Catalog]
}

func newSwappable(c *Catalog) *swappable {
	s := &swappable{}
	s.ptr.Store(c)
	return s
}

func (s *swappable) get() *Catalog {
	return s.ptr.Load()
}

func (s *swappable) swap(c *Catalog) {
	s.ptr.Store(c)
}

func (s *Service) saveCatalogImage(img image.Image, productID string) (string, error) {
	path := filepath.Join(s.opts.CatalogDir, productID+".jpg")
	err := persistence.WriteFileAtomic(path, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	})
	if err != nil {
		return "", err
	}
	return path, nil
}
