// Package camera provides frame sources for face enrollment.
package camera

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/example/edu-admin/internal/enrollment"
)

var imageExts = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}}

// Directory replays the images of a directory in name order, wrapping around.
type Directory struct {
	mu     sync.Mutex
	paths  []string
	next   int
	closed bool
}

// OpenDirectory lists the JPEG and PNG files in dir.
func OpenDirectory(dir string) (*Directory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	sort.Strings(paths)
	return &Directory{paths: paths}, nil
}

// Frame returns the next image. It fails with enrollment.ErrNoStream once closed.
func (d *Directory) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, enrollment.ErrNoStream
	}
	path := d.paths[d.next]
	d.next = (d.next + 1) % len(d.paths)
	d.mu.Unlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (d *Directory) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Snapshot grabs a still image from an HTTP camera endpoint (for example an
// IP webcam's /shot.jpg) on every call.
type Snapshot struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	closed bool
}

func NewSnapshot(url string, timeout time.Duration) *Snapshot {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Snapshot{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *Snapshot) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, enrollment.ErrNoStream
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", enrollment.ErrNoStream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: camera answered %d", enrollment.ErrNoStream, resp.StatusCode)
	}
	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}

func (s *Snapshot) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
