package embedding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/etopic/etm/corpus"
)

func TestFromMatrix(t *testing.T) {
	vocab := corpus.Vocabulary{"a", "b"}
	_, err := FromMatrix(vocab, mat.NewDense(3, 2, nil))
	assert.ErrorContains(t, err, "3 rows for a vocabulary of 2")

	table, err := FromMatrix(vocab, mat.NewDense(2, 4, nil))
	require.NoError(t, err)
	assert.Equal(t, 4, table.Dim)
}

func TestLoadPretrained(t *testing.T) {
	body := "apple 1.0 0.0\nbanana 0.9 0.1\nunrelated -1.0 0.5\n"
	path := filepath.Join(t.TempDir(), "emb.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	vocab := corpus.Vocabulary{"apple", "banana", "cherry"}
	table, missing, err := LoadPretrained(path, vocab, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, missing)
	assert.Equal(t, []float64{1.0, 0.0}, table.Data.RawRowView(0))
	assert.Equal(t, []float64{0.9, 0.1}, table.Data.RawRowView(1))
	// absent words keep the zero vector
	assert.Equal(t, []float64{0, 0}, table.Data.RawRowView(2))
}

func TestLoadPretrainedDimensionMismatch(t *testing.T) {
	body := "apple 1.0 0.0 0.5\n"
	path := filepath.Join(t.TempDir(), "emb.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, _, err := LoadPretrained(path, corpus.Vocabulary{"apple"}, 2)
	assert.ErrorContains(t, err, "dimension 3, want 2")
}

func TestLoadPretrainedMissingFile(t *testing.T) {
	_, _, err := LoadPretrained(filepath.Join(t.TempDir(), "none.txt"), corpus.Vocabulary{"a"}, 2)
	assert.ErrorContains(t, err, "opening embedding file")
}

func TestNearestNeighbors(t *testing.T) {
	vocab := corpus.Vocabulary{"north", "south", "up"}
	data := mat.NewDense(3, 2, []float64{
		0, 1,
		0, -1,
		1, 0,
	})
	table, err := FromMatrix(vocab, data)
	require.NoError(t, err)

	ns, err := table.NearestNeighbors("north", 2)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	// orthogonal beats opposite
	assert.Equal(t, "up", ns[0].Word)
	assert.InDelta(t, 0.0, ns[0].Similarity, 1e-12)
	assert.Equal(t, "south", ns[1].Word)
	assert.InDelta(t, -1.0, ns[1].Similarity, 1e-12)

	_, err = table.NearestNeighbors("east", 2)
	assert.ErrorContains(t, err, "not in the vocabulary")
}
