package visearch

import (
	"github.com/hupe1980/visearch/codec"
	"github.com/hupe1980/visearch/index"
	"github.com/hupe1980/visearch/index/flat"
	"github.com/hupe1980/visearch/persistence"
)

// Options contains configuration options for a Catalog.
type Options struct {
	// IndexFactory builds the nearest-neighbor index. The default is the
	// exact flat index; any implementation of index.Index works.
	IndexFactory index.Factory

	// Codec serializes the metadata snapshot artifact.
	Codec codec.Codec

	// Compression is applied to the metadata snapshot payload.
	Compression persistence.CompressionType

	// Logger receives structured diagnostics.
	Logger *Logger
}

// DefaultOptions contains the default configuration options for a Catalog.
var DefaultOptions = Options{
	Compression: persistence.CompressionZSTD,
}

// WithIndexFactory overrides the nearest-neighbor index implementation.
func WithIndexFactory(f index.Factory) func(o *Options) {
	return func(o *Options) { o.IndexFactory = f }
}

// WithCodec overrides the metadata snapshot codec.
func WithCodec(c codec.Codec) func(o *Options) {
	return func(o *Options) { o.Codec = c }
}

// WithCompression selects the snapshot payload compression.
func WithCompression(t persistence.CompressionType) func(o *Options) {
	return func(o *Options) { o.Compression = t }
}

// WithLogger sets the logger.
func WithLogger(l *Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

func defaultIndexFactory(dimension int) (index.Index, error) {
	return flat.New(flat.WithDimension(dimension))
}
