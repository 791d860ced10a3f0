package thumbnail

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"photovault/internal/walker"

	"github.com/disintegration/imaging"
)

func TestName(t *testing.T) {
	tests := []struct {
		name   string
		device string
		rel    string
		want   string
	}{
		{
			name:   "flat jpg keeps its extension",
			device: "phone",
			rel:    "IMG_0001.jpg",
			want:   "phone__IMG_0001.jpg",
		},
		{
			name:   "separators flattened",
			device: "phone",
			rel:    filepath.Join("camera", "2023", "IMG_0001.jpg"),
			want:   "phone__camera_2023_IMG_0001.jpg",
		},
		{
			name:   "png gets jpg suffix appended",
			device: "laptop",
			rel:    "shot.png",
			want:   "laptop__shot.png.jpg",
		},
		{
			name:   "video gets jpg suffix appended",
			device: "phone",
			rel:    "clip.mp4",
			want:   "phone__clip.mp4.jpg",
		},
		{
			name:   "uppercase JPG not doubled",
			device: "phone",
			rel:    "IMG.JPG",
			want:   "phone__IMG.JPG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.device, tt.rel); got != tt.want {
				t.Errorf("Name(%q, %q) = %q, want %q", tt.device, tt.rel, got, tt.want)
			}
		})
	}
}

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.png")
	writeTestImage(t, src, 800, 600)

	gen := New(filepath.Join(dir, "thumbs"), false)
	f := walker.File{Path: src, Device: "phone", Rel: "source.png"}

	thumbPath, err := gen.Generate(context.Background(), f)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if thumbPath != filepath.Join(dir, "thumbs", "phone__source.png.jpg") {
		t.Errorf("unexpected thumbnail path %s", thumbPath)
	}

	thumb, err := imaging.Open(thumbPath)
	if err != nil {
		t.Fatalf("failed to open thumbnail: %v", err)
	}
	b := thumb.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		t.Errorf("thumbnail is %dx%d, want both edges <= %d", b.Dx(), b.Dy(), MaxDimension)
	}
	// 800x600 should bound to exactly 300x225.
	if b.Dx() != 300 || b.Dy() != 225 {
		t.Errorf("thumbnail is %dx%d, want 300x225", b.Dx(), b.Dy())
	}
}

func TestGenerateIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.png")
	writeTestImage(t, src, 400, 400)

	gen := New(filepath.Join(dir, "thumbs"), false)
	f := walker.File{Path: src, Device: "phone", Rel: "source.png"}

	thumbPath, err := gen.Generate(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	first, err := os.Stat(thumbPath)
	if err != nil {
		t.Fatal(err)
	}

	// Second run must leave the existing file alone.
	if _, err := gen.Generate(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	second, err := os.Stat(thumbPath)
	if err != nil {
		t.Fatal(err)
	}
	if !first.ModTime().Equal(second.ModTime()) || first.Size() != second.Size() {
		t.Error("existing thumbnail was regenerated")
	}
}

func TestGenerateSmallImageNotUpscaled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tiny.png")
	writeTestImage(t, src, 100, 80)

	gen := New(filepath.Join(dir, "thumbs"), false)
	thumbPath, err := gen.Generate(context.Background(), walker.File{Path: src, Device: "d", Rel: "tiny.png"})
	if err != nil {
		t.Fatal(err)
	}

	thumb, err := imaging.Open(thumbPath)
	if err != nil {
		t.Fatal(err)
	}
	if b := thumb.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("thumbnail is %dx%d, want original 100x80", b.Dx(), b.Dy())
	}
}

func TestGenerateFlattensAlpha(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "transparent.png")
	img := imaging.New(50, 50, color.NRGBA{})
	if err := imaging.Save(img, src); err != nil {
		t.Fatal(err)
	}

	gen := New(filepath.Join(dir, "thumbs"), false)
	thumbPath, err := gen.Generate(context.Background(), walker.File{Path: src, Device: "d", Rel: "transparent.png"})
	if err != nil {
		t.Fatal(err)
	}

	thumb, err := imaging.Open(thumbPath)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := thumb.At(25, 25).RGBA()
	// Transparent source should come out white, not black.
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("transparent pixel rendered as (%d, %d, %d), want near white", r>>8, g>>8, b>>8)
	}
}

func TestGenerateUndecodable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(src, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	gen := New(filepath.Join(dir, "thumbs"), false)
	if _, err := gen.Generate(context.Background(), walker.File{Path: src, Device: "d", Rel: "broken.jpg"}); err == nil {
		t.Error("Generate() should fail on an undecodable file")
	}
	if _, err := os.Stat(filepath.Join(dir, "thumbs", "d__broken.jpg")); !os.IsNotExist(err) {
		t.Error("no thumbnail file should remain after a failed generation")
	}
}
