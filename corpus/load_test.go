package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const artifact = `{
	"vocab": ["apple", "banana", "cherry"],
	"train": {
		"tokens": [[0, 1], [2]],
		"counts": [[2, 1], [4]]
	},
	"valid": {
		"tokens": [[1]],
		"counts": [[3]]
	},
	"test": {
		"tokens": [[0, 2]],
		"counts": [[1, 1]],
		"tokens_1": [[0]],
		"counts_1": [[1]],
		"tokens_2": [[2]],
		"counts_2": [[1]]
	}
}`

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeArtifact(t, artifact))
	require.NoError(t, err)

	assert.Equal(t, Vocabulary{"apple", "banana", "cherry"}, c.Vocab)
	assert.Equal(t, 2, c.Train.Len())
	assert.Equal(t, 1, c.Valid.Len())
	assert.Equal(t, 1, c.Test.Len())
	assert.Equal(t, 1, c.TestCompletion.First.Len())
	assert.Equal(t, 3, c.Train.VocabSize)
	assert.InDelta(t, 7.0, c.Train.TotalWords(), 1e-12)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "reading corpus artifact")

	_, err = Load(writeArtifact(t, "{not json"))
	assert.ErrorContains(t, err, "parsing corpus artifact")

	_, err = Load(writeArtifact(t, `{"vocab": []}`))
	assert.ErrorContains(t, err, "empty vocabulary")
}

func TestLoadRejectsOutOfVocabToken(t *testing.T) {
	body := `{
		"vocab": ["a", "b"],
		"train": {"tokens": [[5]], "counts": [[1]]},
		"valid": {"tokens": [[0]], "counts": [[1]]},
		"test": {
			"tokens": [[0]], "counts": [[1]],
			"tokens_1": [[0]], "counts_1": [[1]],
			"tokens_2": [[1]], "counts_2": [[1]]
		}
	}`
	_, err := Load(writeArtifact(t, body))
	assert.ErrorContains(t, err, "train split")
	assert.ErrorContains(t, err, "out of vocabulary range")
}

func TestLoadRejectsMismatchedHalves(t *testing.T) {
	body := `{
		"vocab": ["a", "b"],
		"train": {"tokens": [[0]], "counts": [[1]]},
		"valid": {"tokens": [[0]], "counts": [[1]]},
		"test": {
			"tokens": [[0], [1]], "counts": [[1], [1]],
			"tokens_1": [[0]], "counts_1": [[1]],
			"tokens_2": [[1]], "counts_2": [[1]]
		}
	}`
	_, err := Load(writeArtifact(t, body))
	assert.ErrorContains(t, err, "halves must cover every test document")
}
