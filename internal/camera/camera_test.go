package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/example/edu-admin/internal/enrollment"
)

func writeImage(t *testing.T, path string, w int) {
	t.Helper()
	img := imaging.New(w, 4, color.NRGBA{G: 255, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

func TestDirectoryCyclesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "b.png"), 2)
	writeImage(t, filepath.Join(dir, "a.jpg"), 1)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	cam, err := OpenDirectory(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	widths := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		img, err := cam.Frame(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		widths = append(widths, img.Bounds().Dx())
	}
	if widths[0] != 1 || widths[1] != 2 || widths[2] != 1 {
		t.Fatalf("unexpected frame order %v", widths)
	}

	_ = cam.Close()
	if _, err := cam.Frame(context.Background()); !errors.Is(err, enrollment.ErrNoStream) {
		t.Fatalf("expected ErrNoStream after close, got %v", err)
	}
}

func TestOpenDirectoryWithoutImages(t *testing.T) {
	if _, err := OpenDirectory(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_ = imaging.Encode(w, image.NewGray(image.Rect(0, 0, 6, 3)), imaging.JPEG)
	}))
	defer srv.Close()

	cam := NewSnapshot(srv.URL, time.Second)
	img, err := cam.Frame(context.Background())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if img.Bounds().Dx() != 6 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}

	_ = cam.Close()
	if _, err := cam.Frame(context.Background()); !errors.Is(err, enrollment.ErrNoStream) {
		t.Fatalf("expected ErrNoStream, got %v", err)
	}
}

func TestSnapshotUnavailableIsNoStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewSnapshot(srv.URL, time.Second).Frame(context.Background()); !errors.Is(err, enrollment.ErrNoStream) {
		t.Fatalf("expected ErrNoStream, got %v", err)
	}
}
