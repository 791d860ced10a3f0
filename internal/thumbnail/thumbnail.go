package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photovault/internal/classify"
	"photovault/internal/logging"
	"photovault/internal/metrics"
	"photovault/internal/walker"

	"github.com/disintegration/imaging"

	// webp files are walked like any other image but the standard
	// decoders don't cover them.
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension bounds the longer edge of generated thumbnails.
	MaxDimension = 300
	// JPEGQuality is the encode quality for thumbnails.
	JPEGQuality = 80
)

// Generator produces thumbnails into a flat per-user directory.
type Generator struct {
	thumbDir string
	useVips  bool
	ffmpeg   string
}

// New creates a generator writing into thumbDir. The directory is
// created on first use.
func New(thumbDir string, useVips bool) *Generator {
	return &Generator{
		thumbDir: thumbDir,
		useVips:  useVips,
		ffmpeg:   "ffmpeg",
	}
}

// Name derives the flat thumbnail filename for a media file. Device and
// relative path are joined with a double underscore and path separators
// are flattened, so one directory can hold every device's thumbnails
// without collisions.
func Name(device, rel string) string {
	flat := strings.ReplaceAll(filepath.ToSlash(rel), "/", "_")
	name := device + "__" + flat
	if !strings.HasSuffix(strings.ToLower(name), ".jpg") {
		name += ".jpg"
	}
	return name
}

// PathFor returns where the thumbnail for a media file lives.
func (g *Generator) PathFor(f walker.File) string {
	return filepath.Join(g.thumbDir, Name(f.Device, f.Rel))
}

// Generate creates the thumbnail for a media file and returns its path.
// An existing thumbnail is left untouched. Videos go through a frame
// extraction step first.
func (g *Generator) Generate(ctx context.Context, f walker.File) (string, error) {
	thumbPath := g.PathFor(f)
	if _, err := os.Stat(thumbPath); err == nil {
		logging.Debug("thumbnail already exists for %s", f.Path)
		return thumbPath, nil
	}

	if err := os.MkdirAll(g.thumbDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	kind := "image"
	source := f.Path
	if classify.IsVideo(f.Path) {
		kind = "video"
		frame, cleanup, err := g.extractFrame(ctx, f.Path)
		if err != nil {
			return "", fmt.Errorf("failed to extract video frame: %w", err)
		}
		defer cleanup()
		source = frame
	}

	start := time.Now()
	img, err := g.decode(source)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", source, err)
	}

	thumb := imaging.Fit(flattenAlpha(img), MaxDimension, MaxDimension, imaging.Lanczos)
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(JPEGQuality)); err != nil {
		// Don't leave a truncated file behind to be mistaken for a
		// finished thumbnail on the next pass.
		os.Remove(thumbPath)
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	metrics.ThumbnailsGenerated.WithLabelValues(kind).Inc()
	metrics.ThumbnailDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return thumbPath, nil
}

// decode loads an image with EXIF orientation applied, using the libvips
// fast path when enabled.
func (g *Generator) decode(path string) (image.Image, error) {
	if g.useVips {
		if img, err := vipsDecode(path, MaxDimension); err == nil {
			return img, nil
		} else {
			logging.Debug("vips decode failed for %s, falling back: %v", path, err)
		}
	}
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// flattenAlpha composites transparent images onto a white background so
// the JPEG encode does not render transparency as black.
func flattenAlpha(img image.Image) image.Image {
	if op, ok := img.(interface{ Opaque() bool }); ok && op.Opaque() {
		return img
	}
	bounds := img.Bounds()
	flat := image.NewNRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}
