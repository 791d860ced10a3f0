package faces

import (
	"github.com/coder/hnsw"

	"photovault/internal/logging"
	"photovault/internal/store"
)

// EmbeddingDim is the vector size the gallery accepts. Rows recorded by
// older model versions with other dimensions are ignored.
const EmbeddingDim = 512

// Gallery is an in-memory similarity index over identity embeddings,
// rebuilt from the store at the start of each pass.
type Gallery struct {
	graph *hnsw.Graph[int64]
	size  int
}

// NewGallery creates an empty gallery.
func NewGallery() *Gallery {
	g := hnsw.NewGraph[int64]()
	g.M = 16
	g.Ml = 1.0 / 16
	g.Distance = hnsw.CosineDistance
	return &Gallery{graph: g}
}

// Load indexes the given identities. Entries with a missing or
// wrong-dimension embedding are skipped.
func (g *Gallery) Load(people []*store.Person) {
	for _, p := range people {
		if len(p.Embedding) != EmbeddingDim {
			if len(p.Embedding) > 0 {
				logging.Warn("identity %d has %d-dim embedding, expected %d, skipping",
					p.ID, len(p.Embedding), EmbeddingDim)
			}
			continue
		}
		g.Add(p.ID, p.Embedding)
	}
}

// Add indexes one identity embedding.
func (g *Gallery) Add(id int64, embedding []float32) {
	g.graph.Add(hnsw.MakeNode(id, embedding))
	g.size++
}

// Len returns the number of indexed identities.
func (g *Gallery) Len() int {
	return g.size
}

// Best returns the closest identity to the query and its cosine
// similarity. ok is false when the gallery is empty.
func (g *Gallery) Best(embedding []float32) (id int64, similarity float32, ok bool) {
	if g.size == 0 {
		return 0, 0, false
	}
	neighbors := g.graph.Search(embedding, 1)
	if len(neighbors) == 0 {
		return 0, 0, false
	}
	best := neighbors[0]
	return best.Key, CosineSimilarity(embedding, best.Value), true
}

// CosineSimilarity computes the dot product of two vectors. Both are
// expected to be L2-normalized, so the dot product is the cosine.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
