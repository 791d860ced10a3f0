package faces

import (
	"math"
	"testing"

	"photovault/internal/store"
)

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestGalleryBest(t *testing.T) {
	g := NewGallery()

	if _, _, ok := g.Best(unit(4, 0)); ok {
		t.Error("empty gallery should report no match")
	}

	g.Add(1, unit(4, 0))
	g.Add(2, unit(4, 1))

	id, similarity, ok := g.Best(unit(4, 0))
	if !ok {
		t.Fatal("expected a result")
	}
	if id != 1 {
		t.Errorf("Best() id = %d, want 1", id)
	}
	if math.Abs(float64(similarity)-1) > 0.001 {
		t.Errorf("Best() similarity = %v, want 1", similarity)
	}

	// A vector between the two but closer to identity 2.
	query := []float32{0.3, 0.9, 0, 0}
	id, similarity, ok = g.Best(query)
	if !ok || id != 2 {
		t.Errorf("Best() = %d, want 2", id)
	}
	if similarity <= 0.8 {
		t.Errorf("similarity = %v, want > 0.8", similarity)
	}
}

func TestGalleryLoadFiltersDimensions(t *testing.T) {
	people := []*store.Person{
		{ID: 1, Embedding: unit(EmbeddingDim, 0)},
		{ID: 2, Embedding: unit(128, 0)}, // wrong model version
		{ID: 3},                          // never embedded
		{ID: 4, Embedding: unit(EmbeddingDim, 5)},
	}

	g := NewGallery()
	g.Load(people)
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}

	id, _, ok := g.Best(unit(EmbeddingDim, 5))
	if !ok || id != 4 {
		t.Errorf("Best() = %d, want 4", id)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", unit(4, 0), unit(4, 0), 1},
		{"orthogonal", unit(4, 0), unit(4, 1), 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", unit(4, 0), unit(3, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 0.0001 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
