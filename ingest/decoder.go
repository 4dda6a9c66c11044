package ingest

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Register decoders for the supported image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// supportedExtensions is the set of file extensions the pipeline ingests.
var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".jfif": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".tiff": {},
	".tif":  {},
	".webp": {},
}

// SupportedExtensions returns the supported image file extensions, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// IsSupportedImage reports whether path has a supported image extension.
func IsSupportedImage(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ListImages enumerates the supported image files directly inside dir.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsSupportedImage(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Decoder turns an image file into an in-memory image.
type Decoder interface {
	Decode(path string) (image.Image, error)
}

// StdDecoder decodes with the registered standard and x/image codecs.
type StdDecoder struct{}

// Decode opens and decodes the image at path.
func (StdDecoder) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// Stem returns the filename without directory or extension, the default
// product id for an ingested file.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HumanizeStem turns a filename stem into a display name:
// underscores become spaces and each word is title-cased.
func HumanizeStem(stem string) string {
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
