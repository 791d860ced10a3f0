package faces

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"photovault/internal/logging"
	"photovault/internal/metrics"
	"photovault/internal/store"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	// MinNewIdentityScore is the detector confidence required to mint a
	// new identity from an unmatched face. Higher than the match floor:
	// a marginal face may still link to someone known, but should not
	// seed the gallery.
	MinNewIdentityScore = 0.85

	// DetectBound limits the longer image edge before detection.
	DetectBound = 1920

	// Face crop parameters for identity reference images.
	cropPadding = 0.40
	cropBound   = 500
	cropQuality = 90
)

// ErrPersist wraps write failures (identity rows, links, crop files)
// surfaced by Process. Unlike decode and detector errors these are worth
// retrying on a later pass, so callers should not retire the photo.
var ErrPersist = errors.New("persist failure")

// Engine wires a detector, an embedder and the identity gallery into the
// per-photo face stage.
type Engine struct {
	detector  Detector
	embedder  Embedder
	gallery   *Gallery
	store     *store.Store
	cropDir   string
	threshold float32
	user      string
}

// NewEngine builds an engine for one user. The gallery is loaded from
// the store's identities; call Reload to refresh it later.
func NewEngine(detector Detector, embedder Embedder, st *store.Store, cropDir, user string, threshold float64) (*Engine, error) {
	e := &Engine{
		detector:  detector,
		embedder:  embedder,
		store:     st,
		cropDir:   cropDir,
		threshold: float32(threshold),
		user:      user,
	}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload rebuilds the in-memory gallery from the store.
func (e *Engine) Reload() error {
	people, err := e.store.Identities()
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}
	e.gallery = NewGallery()
	e.gallery.Load(people)
	metrics.IdentityCount.WithLabelValues(e.user).Set(float64(e.gallery.Len()))
	logging.Debug("gallery for %s loaded with %d identities", e.user, e.gallery.Len())
	return nil
}

// Process runs the face stage for one photo: detect, gate, embed and
// match or create identities. It returns how many identities were linked
// to the photo. Identities created here are matchable by later faces in
// the same image.
func (e *Engine) Process(photo *store.Photo) (int, error) {
	img, err := imaging.Open(photo.Path, imaging.AutoOrientation(true))
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", photo.Path, err)
	}
	img = bound(img, DetectBound)

	detections, err := e.detector.Detect(img)
	if err != nil {
		return 0, fmt.Errorf("detection failed for %s: %w", photo.Path, err)
	}

	linked := 0
	for _, det := range detections {
		metrics.FaceDetectionsTotal.Inc()

		ok, reason := CheckQuality(det)
		if !ok {
			metrics.FaceGateRejections.WithLabelValues(reason).Inc()
			logging.Debug("face in %s rejected: %s (score %.2f)", photo.Path, reason, det.Score)
			continue
		}

		crop := cropBox(img, det.Box, 0)
		embedding, err := e.embedder.Embed(crop)
		if err != nil {
			logging.Warn("embedding failed for face in %s: %v", photo.Path, err)
			continue
		}
		if len(embedding) != EmbeddingDim {
			logging.Warn("unexpected embedding dimension %d for %s", len(embedding), photo.Path)
			continue
		}

		personID, result, err := e.assign(photo, det, embedding, img)
		if err != nil {
			return linked, err
		}
		metrics.FaceMatchesTotal.WithLabelValues(result).Inc()
		if personID == 0 {
			continue
		}

		if err := e.store.LinkPhotoIdentity(photo.ID, personID); err != nil {
			return linked, fmt.Errorf("%w: %v", ErrPersist, err)
		}
		linked++
	}
	return linked, nil
}

// assign matches an embedding against the gallery, or creates a new
// identity for a confident unmatched face. A zero id means the face was
// discarded.
func (e *Engine) assign(photo *store.Photo, det Detection, embedding []float32, img image.Image) (int64, string, error) {
	if id, similarity, ok := e.gallery.Best(embedding); ok && similarity >= e.threshold {
		logging.Debug("face in %s matched identity %d (similarity %.3f)", photo.Path, id, similarity)
		return id, "matched", nil
	}

	if det.Score < MinNewIdentityScore {
		return 0, "discarded", nil
	}

	cropPath, err := e.saveCrop(img, det.Box)
	if err != nil {
		return 0, "", fmt.Errorf("%w: failed to save face crop: %v", ErrPersist, err)
	}

	id, err := e.store.InsertIdentity("Unknown", cropPath, embedding)
	if err != nil {
		os.Remove(cropPath)
		return 0, "", fmt.Errorf("%w: %v", ErrPersist, err)
	}
	e.gallery.Add(id, embedding)
	metrics.IdentityCount.WithLabelValues(e.user).Set(float64(e.gallery.Len()))
	logging.Info("new identity %d created from %s (score %.2f)", id, photo.Path, det.Score)
	return id, "created", nil
}

// saveCrop writes the padded face region as the identity's reference
// image.
func (e *Engine) saveCrop(img image.Image, box [4]float32) (string, error) {
	if err := os.MkdirAll(e.cropDir, 0755); err != nil {
		return "", err
	}

	crop := bound(cropBox(img, box, cropPadding), cropBound)
	name := "face_" + uuid.New().String()[:8] + ".jpg"
	path := filepath.Join(e.cropDir, name)
	if err := imaging.Save(crop, path, imaging.JPEGQuality(cropQuality)); err != nil {
		return "", err
	}
	return path, nil
}

// cropBox extracts the box region with optional symmetric padding,
// clamped to the image.
func cropBox(img image.Image, box [4]float32, padding float32) image.Image {
	bounds := img.Bounds()
	w := box[2] - box[0]
	h := box[3] - box[1]
	padX := int(w * padding)
	padY := int(h * padding)

	rect := image.Rect(
		int(box[0])-padX,
		int(box[1])-padY,
		int(box[2])+padX,
		int(box[3])+padY,
	).Intersect(bounds)

	return imaging.Crop(img, rect)
}

// bound shrinks an image so its longer edge is at most maxDim; smaller
// images pass through unchanged.
func bound(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}
