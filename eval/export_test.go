package eval

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/etopic/etm/corpus"
)

func TestExportParametersRoundTrip(t *testing.T) {
	m := newTestModel(t, 5)
	vocab := corpus.Vocabulary{"a", "b", "c", "d", "e"}
	theta := mat.NewDense(2, 3, []float64{
		0.2, 0.3, 0.5,
		0.6, 0.1, 0.3,
	})
	tc := 0.12
	td := 0.84

	path := filepath.Join(t.TempDir(), "params.gob")
	require.NoError(t, ExportParameters(path, m, vocab, theta, &tc, &td))

	loaded, err := LoadParameters(path)
	require.NoError(t, err)

	assert.Equal(t, vocab, loaded.Vocab)
	require.NotNil(t, loaded.Coherence)
	require.NotNil(t, loaded.Diversity)
	assert.Equal(t, tc, *loaded.Coherence)
	assert.Equal(t, td, *loaded.Diversity)

	assert.True(t, mat.Equal(theta, loaded.Theta.Dense()))
	assert.True(t, mat.Equal(m.Beta(), loaded.Beta.Dense()))
	assert.True(t, mat.Equal(m.Rho.Matrix(), loaded.Rho.Dense()))
	assert.True(t, mat.Equal(m.Alphas.Matrix(), loaded.Alphas.Dense()))
}

func TestExportParametersOmitsOptionalScores(t *testing.T) {
	m := newTestModel(t, 5)
	vocab := corpus.Vocabulary{"a", "b", "c", "d", "e"}
	theta := mat.NewDense(1, 3, []float64{0.2, 0.3, 0.5})

	path := filepath.Join(t.TempDir(), "params.gob")
	require.NoError(t, ExportParameters(path, m, vocab, theta, nil, nil))

	loaded, err := LoadParameters(path)
	require.NoError(t, err)
	assert.Nil(t, loaded.Coherence)
	assert.Nil(t, loaded.Diversity)
}

func TestLoadParametersMissingFile(t *testing.T) {
	_, err := LoadParameters(filepath.Join(t.TempDir(), "missing.gob"))
	assert.ErrorContains(t, err, "opening parameters export")
}
