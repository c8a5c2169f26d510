// Package embedding loads and serves dense word-embedding vectors, one
// row per vocabulary entry.
package embedding

import (
	"fmt"
	"math"
	"os"
	"sort"

	wego "github.com/e-gun/wego/pkg/embedding"
	"gonum.org/v1/gonum/mat"

	"github.com/etopic/etm/corpus"
)

// Table is a (V x Dim) embedding matrix aligned with a vocabulary.
type Table struct {
	Vocab corpus.Vocabulary
	Dim   int
	Data  *mat.Dense
}

// FromMatrix wraps an existing (len(vocab) x dim) matrix, e.g. a trained
// rho, for neighbor inspection.
func FromMatrix(vocab corpus.Vocabulary, m *mat.Dense) (*Table, error) {
	r, c := m.Dims()
	if r != len(vocab) {
		return nil, fmt.Errorf("embedding matrix has %d rows for a vocabulary of %d words", r, len(vocab))
	}
	return &Table{Vocab: vocab, Dim: c, Data: m}, nil
}

// LoadPretrained reads a word2vec-text embedding file and aligns it with
// the vocabulary. Vocabulary words absent from the file keep the zero
// vector; the number of such words is returned so the caller can log it.
func LoadPretrained(path string, vocab corpus.Vocabulary, dim int) (*Table, int, error) {
	if dim <= 0 {
		return nil, 0, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening embedding file: %w", err)
	}
	defer file.Close()

	embs, err := wego.Load(file)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing embedding file %s: %w", path, err)
	}

	byWord := make(map[string][]float64, len(embs))
	for _, e := range embs {
		byWord[e.Word] = e.Vector
	}

	data := mat.NewDense(len(vocab), dim, nil)
	missing := 0
	for i, w := range vocab {
		vec, ok := byWord[w]
		if !ok {
			missing++
			continue
		}
		if len(vec) != dim {
			return nil, 0, fmt.Errorf("embedding for %q has dimension %d, want %d", w, len(vec), dim)
		}
		data.SetRow(i, vec)
	}
	return &Table{Vocab: vocab, Dim: dim, Data: data}, missing, nil
}

// Neighbor is one nearest-neighbor hit.
type Neighbor struct {
	Word       string
	Similarity float64
}

// NearestNeighbors ranks the k most cosine-similar vocabulary words to
// the query word, excluding the word itself.
func (t *Table) NearestNeighbors(word string, k int) ([]Neighbor, error) {
	qi := -1
	for i, w := range t.Vocab {
		if w == word {
			qi = i
			break
		}
	}
	if qi < 0 {
		return nil, fmt.Errorf("word %q is not in the vocabulary", word)
	}
	q := t.Data.RawRowView(qi)

	neighbors := make([]Neighbor, 0, len(t.Vocab)-1)
	for i, w := range t.Vocab {
		if i == qi {
			continue
		}
		neighbors = append(neighbors, Neighbor{Word: w, Similarity: cosine(q, t.Data.RawRowView(i))})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Similarity > neighbors[j].Similarity })
	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
