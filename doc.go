// Package visearch provides an in-process vector index for visual product
// search.
//
// A Catalog holds product records together with their L2-normalized image
// embeddings and answers cosine-similarity queries over them. A Service
// wraps a Catalog with the surrounding lifecycle: building the index from a
// directory of imagery, persisting it as a two-artifact snapshot, and
// validating a cached snapshot against the imagery on startup.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	svc, _ := visearch.NewService(extractor, func(o *visearch.ServiceOptions) {
//		o.CatalogDir = "./data/catalog"
//		o.IndexBasePath = "./data/catalog_index"
//	})
//
//	report, _ := svc.Startup(ctx) // load cache or rebuild from images
//
//	results, total, _ := svc.Search(ctx, queryVector, 0.8, 10)
//
// The Catalog can also be used directly when the caller manages embeddings
// itself:
//
//	c, _ := visearch.New(512)
//	_ = c.AddProduct(ctx, product, vector, model.PositionBack)
//	results, _ := c.Search(ctx, query, 5)
//
// # Similarity
//
// Embeddings are normalized on insert and on query, so the inner product of
// two vectors is their cosine similarity. Scores are reported on a [0, 1]
// scale: (cosine + 1) / 2.
//
// # Persistence
//
// Save writes a pair of artifacts under a path prefix: the raw vector index
// and a self-describing metadata envelope. Both carry CRC32 checksums and
// are written atomically. Load refuses a pair whose halves disagree.
package visearch
