package ingest

import (
	"context"
	"image"
)

// Extractor is the external embedding model: given a batch of images it
// returns one fixed-length vector per image, order-preserving. The model
// is a black box to this package; batching is its throughput lever, so
// the pipeline never calls it one image at a time.
type Extractor interface {
	// ExtractBatch returns one raw (not necessarily normalized) embedding
	// per input image, in input order.
	ExtractBatch(ctx context.Context, images []image.Image) ([][]float32, error)

	// Dimension returns the model's native output dimensionality.
	Dimension() int

	// ModelName identifies the model for stats and logging.
	ModelName() string
}
