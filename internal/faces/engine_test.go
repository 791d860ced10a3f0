package faces

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photovault/internal/store"

	"github.com/disintegration/imaging"
)

type fakeDetector struct {
	detections []Detection
}

func (f *fakeDetector) Detect(img image.Image) ([]Detection, error) { return f.detections, nil }
func (f *fakeDetector) Close()                                      {}

type fakeEmbedder struct {
	embeddings [][]float32
	calls      int
}

func (f *fakeEmbedder) Embed(face image.Image) ([]float32, error) {
	e := f.embeddings[f.calls%len(f.embeddings)]
	f.calls++
	return e, nil
}
func (f *fakeEmbedder) Close() {}

// faceAt builds a gate-passing detection at the given box origin.
func faceAt(x, y float32, score float32) Detection {
	lm := [5][2]float32{
		{x + 75, y + 90},
		{x + 175, y + 90},
		{x + 125, y + 140},
		{x + 85, y + 190},
		{x + 165, y + 190},
	}
	return Detection{
		Score:     score,
		Box:       [4]float32{x, y, x + 250, y + 250},
		Landmarks: &lm,
	}
}

func testPhoto(t *testing.T, st *store.Store, dir, name string) *store.Photo {
	t.Helper()
	path := filepath.Join(dir, name)
	img := imaging.New(1000, 1000, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
	id, _, err := st.InsertPhotoIfAbsent(path)
	if err != nil {
		t.Fatal(err)
	}
	photo, err := st.PhotoByID(id)
	if err != nil {
		t.Fatal(err)
	}
	return photo
}

func testEngine(t *testing.T, st *store.Store, dir string, det Detector, emb Embedder) *Engine {
	t.Helper()
	engine, err := NewEngine(det, emb, st, filepath.Join(dir, "thumbs"), "alice", 0.40)
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func openTestStore(t *testing.T, dir string) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestEngineCreatesIdentity(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	photo := testPhoto(t, st, dir, "one.jpg")

	det := &fakeDetector{detections: []Detection{faceAt(100, 100, 0.92)}}
	emb := &fakeEmbedder{embeddings: [][]float32{unit(EmbeddingDim, 0)}}
	engine := testEngine(t, st, dir, det, emb)

	linked, err := engine.Process(photo)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if linked != 1 {
		t.Errorf("Process() linked = %d, want 1", linked)
	}

	people, err := st.Identities()
	if err != nil {
		t.Fatal(err)
	}
	if len(people) != 1 {
		t.Fatalf("got %d identities, want 1", len(people))
	}
	p := people[0]
	if p.Name != "Unknown" {
		t.Errorf("name = %q, want Unknown", p.Name)
	}
	if !strings.HasPrefix(filepath.Base(p.ThumbnailPath), "face_") {
		t.Errorf("crop name %q should start with face_", filepath.Base(p.ThumbnailPath))
	}
	if _, err := os.Stat(p.ThumbnailPath); err != nil {
		t.Errorf("crop file missing: %v", err)
	}

	ids, err := st.PhotoIdentities(photo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != p.ID {
		t.Errorf("PhotoIdentities() = %v, want [%d]", ids, p.ID)
	}
}

func TestEngineMatchesExistingIdentity(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)

	existing, err := st.InsertIdentity("Unknown", "", unit(EmbeddingDim, 3))
	if err != nil {
		t.Fatal(err)
	}

	photo := testPhoto(t, st, dir, "two.jpg")
	det := &fakeDetector{detections: []Detection{faceAt(100, 100, 0.78)}}
	emb := &fakeEmbedder{embeddings: [][]float32{unit(EmbeddingDim, 3)}}
	engine := testEngine(t, st, dir, det, emb)

	linked, err := engine.Process(photo)
	if err != nil {
		t.Fatal(err)
	}
	if linked != 1 {
		t.Errorf("linked = %d, want 1", linked)
	}

	people, _ := st.Identities()
	if len(people) != 1 {
		t.Errorf("matching must not create identities, got %d", len(people))
	}
	ids, _ := st.PhotoIdentities(photo.ID)
	if len(ids) != 1 || ids[0] != existing {
		t.Errorf("PhotoIdentities() = %v, want [%d]", ids, existing)
	}
}

func TestEngineSecondFaceMatchesFreshIdentity(t *testing.T) {
	// Two faces of the same person in one image: the first creates the
	// identity, the second must match it rather than create another.
	dir := t.TempDir()
	st := openTestStore(t, dir)
	photo := testPhoto(t, st, dir, "twins.jpg")

	det := &fakeDetector{detections: []Detection{
		faceAt(50, 50, 0.95),
		faceAt(500, 500, 0.95),
	}}
	emb := &fakeEmbedder{embeddings: [][]float32{unit(EmbeddingDim, 7)}}
	engine := testEngine(t, st, dir, det, emb)

	if _, err := engine.Process(photo); err != nil {
		t.Fatal(err)
	}

	people, _ := st.Identities()
	if len(people) != 1 {
		t.Errorf("got %d identities, want 1", len(people))
	}
	ids, _ := st.PhotoIdentities(photo.ID)
	if len(ids) != 1 {
		t.Errorf("photo linked to %d identities, want 1", len(ids))
	}
}

func TestEngineDiscardsMarginalUnmatchedFace(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	photo := testPhoto(t, st, dir, "marginal.jpg")

	// Passes the gate (>= 0.75) but is too weak to seed an identity.
	det := &fakeDetector{detections: []Detection{faceAt(100, 100, 0.80)}}
	emb := &fakeEmbedder{embeddings: [][]float32{unit(EmbeddingDim, 1)}}
	engine := testEngine(t, st, dir, det, emb)

	linked, err := engine.Process(photo)
	if err != nil {
		t.Fatal(err)
	}
	if linked != 0 {
		t.Errorf("linked = %d, want 0", linked)
	}
	people, _ := st.Identities()
	if len(people) != 0 {
		t.Errorf("got %d identities, want 0", len(people))
	}
}

func TestEngineWrapsPersistFailures(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	photo := testPhoto(t, st, dir, "busy.jpg")

	det := &fakeDetector{detections: []Detection{faceAt(100, 100, 0.95)}}
	emb := &fakeEmbedder{embeddings: [][]float32{unit(EmbeddingDim, 2)}}
	engine := testEngine(t, st, dir, det, emb)

	// Identity creation against a closed store must surface as a
	// retryable persistence error, not a generic processing failure.
	st.Close()
	_, err := engine.Process(photo)
	if err == nil {
		t.Fatal("Process() succeeded against a closed store")
	}
	if !errors.Is(err, ErrPersist) {
		t.Errorf("Process() error = %v, want ErrPersist", err)
	}
}

func TestEngineRejectsGatedFaces(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	photo := testPhoto(t, st, dir, "blurry.jpg")

	det := &fakeDetector{detections: []Detection{faceAt(100, 100, 0.5)}}
	emb := &fakeEmbedder{embeddings: [][]float32{unit(EmbeddingDim, 0)}}
	engine := testEngine(t, st, dir, det, emb)

	linked, err := engine.Process(photo)
	if err != nil {
		t.Fatal(err)
	}
	if linked != 0 {
		t.Errorf("linked = %d, want 0", linked)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for a rejected face", emb.calls)
	}
}
