package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/arbor/internal/logger"
)

var ErrUnsupported = errors.New("texture: unsupported format")

// Loader reads textures relative to a root directory and caches both the
// raw bytes and the decoded images by path.
type Loader struct {
	root string

	mu     sync.RWMutex
	raw    map[string][]byte
	images map[string]image.Image

	hits   int
	misses int
}

// NewLoader creates a loader. Relative paths resolve against root.
func NewLoader(root string) *Loader {
	return &Loader{
		root:   root,
		raw:    make(map[string][]byte),
		images: make(map[string]image.Image),
	}
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) || l.root == "" {
		return path
	}
	return filepath.Join(l.root, path)
}

// Read returns the file contents of path.
func (l *Loader) Read(path string) ([]byte, error) {
	l.mu.RLock()
	data, ok := l.raw[path]
	l.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("reading texture %s: %w", path, err)
	}

	l.mu.Lock()
	l.raw[path] = data
	l.mu.Unlock()
	return data, nil
}

// Load decodes path. The format is detected from the file contents; TGA,
// which has no signature, is recognized by extension.
func (l *Loader) Load(path string) (image.Image, error) {
	l.mu.Lock()
	img, ok := l.images[path]
	if ok {
		l.hits++
	} else {
		l.misses++
	}
	l.mu.Unlock()
	if ok {
		return img, nil
	}

	data, err := l.Read(path)
	if err != nil {
		return nil, err
	}
	img, err = Decode(data, path)
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", path, err)
	}
	logger.Debug("texture loaded",
		zap.String("path", path),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	l.mu.Lock()
	l.images[path] = img
	l.mu.Unlock()
	return img, nil
}

// Invalidate drops path from the cache so the next Load reads it again.
func (l *Loader) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.raw, path)
	delete(l.images, path)
}

// Clear empties the cache.
func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raw = make(map[string][]byte)
	l.images = make(map[string]image.Image)
	l.hits = 0
	l.misses = 0
}

// Stats returns decoded image cache statistics.
func (l *Loader) Stats() (hits, misses int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hits, l.misses
}

// Decode decodes texture data. name is only used to recognize TGA files.
func Decode(data []byte, name string) (image.Image, error) {
	if filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind.Extension, err)
		}
		return img, nil
	}
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		return DecodeTGA(data)
	}
	return nil, ErrUnsupported
}
