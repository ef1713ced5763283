package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/webp"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// FileDevice serves frames from an image file, or cycles through the images
// of a directory one frame read at a time. Useful without camera hardware.
type FileDevice struct {
	path string
}

func NewFileDevice(path string) *FileDevice {
	return &FileDevice{path: path}
}

func (d *FileDevice) Name() string {
	return "file:" + d.path
}

func (d *FileDevice) Open(ctx context.Context, c Constraints) (Feed, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return nil, classifyFSError(err)
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(d.path)
		if err != nil {
			return nil, classifyFSError(err)
		}
		for _, e := range entries {
			if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			paths = append(paths, filepath.Join(d.path, e.Name()))
		}
		sort.Strings(paths)
		if len(paths) == 0 {
			return nil, fmt.Errorf("%w: no images in %s", ErrDeviceUnavailable, d.path)
		}
	} else {
		paths = []string{d.path}
	}

	// Surface permission problems at acquisition time, not at capture time.
	f, err := os.Open(paths[0])
	if err != nil {
		return nil, classifyFSError(err)
	}
	f.Close()

	return &fileFeed{paths: paths}, nil
}

func classifyFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
}

type fileFeed struct {
	mu     sync.Mutex
	paths  []string
	next   int
	closed bool
}

// Dimensions reports the size of the frame the next Frame call returns.
func (f *fileFeed) Dimensions() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, 0
	}
	file, err := os.Open(f.paths[f.next])
	if err != nil {
		return 0, 0
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func (f *fileFeed) Frame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := f.paths[f.next]
	f.next = (f.next + 1) % len(f.paths)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

func (f *fileFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
