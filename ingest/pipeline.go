// Package ingest builds a catalog from a directory of images.
//
// The pipeline has two stages: a concurrent decode stage feeding a bounded
// queue, consumed by a single sequential stage that batches images, calls
// the embedding model once per batch and inserts the results. The model is
// a single-instance resource, so batch submissions never happen from the
// decode workers.
package ingest

import (
	"context"
	"image"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/hupe1980/visearch/model"
	"github.com/hupe1980/visearch/resource"
)

// Sink is where ingested products land. *visearch.Catalog satisfies it.
type Sink interface {
	AddProduct(ctx context.Context, p model.Product, rawVector []float32, pos model.Position) error
	Reset() error
	Size() int
}

// Options contains configuration options for the ingestion pipeline.
type Options struct {
	// BatchSize is the number of images per embedding-model call.
	BatchSize int

	// Workers bounds the concurrent decode stage.
	Workers int

	// Decoder decodes image files. Defaults to StdDecoder.
	Decoder Decoder

	// Controller guards access to the embedding model.
	Controller *resource.Controller

	// Logger receives skip-and-continue diagnostics.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the pipeline.
var DefaultOptions = Options{
	BatchSize: 32,
	Workers:   4,
}

// Pipeline populates a Sink from a directory of images.
type Pipeline struct {
	sink      Sink
	extractor Extractor
	opts      Options
}

// New creates a new ingestion pipeline.
func New(sink Sink, extractor Extractor, optFns ...func(o *Options)) *Pipeline {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions.BatchSize
	}
	if opts.Decoder == nil {
		opts.Decoder = StdDecoder{}
	}
	if opts.Controller == nil {
		opts.Controller = resource.NewController(resource.Config{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pipeline{
		sink:      sink,
		extractor: extractor,
		opts:      opts,
	}
}

type decoded struct {
	product model.Product
	img     image.Image
}

// Run ingests every supported image under dir into the sink.
//
// Per-file decode failures and per-batch extraction failures are logged
// and skipped; Run only fails on directory enumeration errors or context
// cancellation. A directory with no qualifying files resets the sink to
// empty rather than leaving it stale.
func (p *Pipeline) Run(ctx context.Context, dir string) error {
	files, err := ListImages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		p.opts.Logger.Info("no images found, resetting catalog", "dir", dir)
		return p.sink.Reset()
	}

	results := make(chan decoded, p.opts.BatchSize)
	pool := NewWorkerPool(p.opts.Workers)
	defer pool.Close()

	var wg sync.WaitGroup
	go func() {
		for _, path := range files {
			path := path
			wg.Add(1)
			err := pool.Submit(ctx, func() {
				defer wg.Done()
				img, err := p.opts.Decoder.Decode(path)
				if err != nil {
					p.opts.Logger.Warn("failed to decode image, skipping",
						"path", path,
						"error", err,
					)
					return
				}
				select {
				case results <- decoded{product: productForFile(path), img: img}:
				case <-ctx.Done():
				}
			})
			if err != nil {
				wg.Done()
				break
			}
		}
		wg.Wait()
		close(results)
	}()

	batchProducts := make([]model.Product, 0, p.opts.BatchSize)
	batchImages := make([]image.Image, 0, p.opts.BatchSize)

	for d := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		batchProducts = append(batchProducts, d.product)
		batchImages = append(batchImages, d.img)

		if len(batchImages) >= p.opts.BatchSize {
			p.flushBatch(ctx, batchProducts, batchImages)
			batchProducts = batchProducts[:0]
			batchImages = batchImages[:0]
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.flushBatch(ctx, batchProducts, batchImages)
	return nil
}

// flushBatch runs one embedding-model call for the batch and inserts the
// results. An extraction failure drops the whole batch.
func (p *Pipeline) flushBatch(ctx context.Context, products []model.Product, images []image.Image) {
	if len(products) == 0 {
		return
	}

	vectors, err := p.extract(ctx, images)
	if err != nil {
		p.opts.Logger.Warn("batch feature extraction failed, dropping batch",
			"batch_size", len(images),
			"error", err,
		)
		return
	}
	if len(vectors) != len(products) {
		p.opts.Logger.Warn("extractor returned wrong vector count, dropping batch",
			"expected", len(products),
			"actual", len(vectors),
		)
		return
	}

	for i, product := range products {
		if err := p.sink.AddProduct(ctx, product, vectors[i], model.PositionBack); err != nil {
			p.opts.Logger.Warn("failed to index product",
				"product_id", product.ID,
				"error", err,
			)
		}
	}
}

func (p *Pipeline) extract(ctx context.Context, images []image.Image) ([][]float32, error) {
	if err := p.opts.Controller.Acquire(ctx); err != nil {
		return nil, err
	}
	defer p.opts.Controller.Release()
	return p.extractor.ExtractBatch(ctx, images)
}

func productForFile(path string) model.Product {
	stem := Stem(path)
	return model.Product{
		ID:        stem,
		Name:      HumanizeStem(stem),
		ImagePath: filepath.ToSlash(path),
	}
}
