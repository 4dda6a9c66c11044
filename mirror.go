package visearch

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/visearch/blobstore"
	"github.com/hupe1980/visearch/persistence"
)

// MirrorSnapshot uploads the local snapshot pair under pathPrefix to the
// remote store. The two artifacts are uploaded concurrently; the call
// fails if either upload fails.
func MirrorSnapshot(ctx context.Context, store blobstore.Store, pathPrefix string) error {
	base := filepath.Base(pathPrefix)

	g, ctx := errgroup.WithContext(ctx)
	for _, suffix := range []string{IndexArtifactSuffix, MetaArtifactSuffix} {
		suffix := suffix
		g.Go(func() error {
			data, err := os.ReadFile(pathPrefix + suffix)
			if err != nil {
				return err
			}
			return store.Put(ctx, base+suffix, data)
		})
	}
	return g.Wait()
}

// FetchSnapshot downloads the snapshot pair from the remote store into the
// local paths under pathPrefix. Both artifacts must exist remotely; a
// partial pair is useless to Load and is not written.
func FetchSnapshot(ctx context.Context, store blobstore.Store, pathPrefix string) error {
	base := filepath.Base(pathPrefix)

	blobs := make(map[string][]byte, 2)
	for _, suffix := range []string{IndexArtifactSuffix, MetaArtifactSuffix} {
		data, err := store.Get(ctx, base+suffix)
		if err != nil {
			return err
		}
		blobs[suffix] = data
	}

	for suffix, data := range blobs {
		err := persistence.WriteFileAtomic(pathPrefix+suffix, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
