package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/etopic/etm/corpus"
	"github.com/etopic/etm/model"
)

func newTestModel(t *testing.T, vocabSize int) *model.ETM {
	t.Helper()
	m, err := model.New(model.Options{
		NumTopics:       3,
		VocabSize:       vocabSize,
		HiddenSize:      4,
		RhoSize:         2,
		EmbSize:         2,
		Act:             model.ActTanh,
		TrainEmbeddings: true,
	}, nil, rand.New(rand.NewSource(17)))
	require.NoError(t, err)
	return m
}

func newCompletion(t *testing.T, vocabSize int) *corpus.Completion {
	t.Helper()
	first, err := corpus.NewSet([]corpus.Document{
		{Tokens: []int{0, 1}, Counts: []float64{2, 1}},
		{Tokens: []int{2}, Counts: []float64{3}},
		{Tokens: []int{3, 4}, Counts: []float64{1, 1}},
	}, vocabSize)
	require.NoError(t, err)
	second, err := corpus.NewSet([]corpus.Document{
		{Tokens: []int{4}, Counts: []float64{2}},
		{Tokens: []int{0, 3}, Counts: []float64{1, 2}},
		{Tokens: []int{1}, Counts: []float64{4}},
	}, vocabSize)
	require.NoError(t, err)
	c, err := corpus.NewCompletion(first, second)
	require.NoError(t, err)
	return c
}

// with all decoder parameters zeroed beta is uniform, so every held-out
// word has probability 1/V and the perplexity is the vocabulary size
func TestPerplexityUniformModel(t *testing.T) {
	const v = 5
	m := newTestModel(t, v)
	for i := range m.Alphas.Data {
		m.Alphas.Data[i] = 0
	}
	for i := range m.Rho.Data {
		m.Rho.Data[i] = 0
	}

	ev := &Evaluator{Model: m, BatchSize: 2, BowNorm: true}
	ppl, err := ev.Perplexity(newCompletion(t, v))
	require.NoError(t, err)
	assert.InDelta(t, float64(v), ppl, 1e-3)
}

func TestPerplexityIsFiniteAndBatchInvariant(t *testing.T) {
	m := newTestModel(t, 5)
	c := newCompletion(t, 5)

	ev := &Evaluator{Model: m, BatchSize: 1, BowNorm: true}
	p1, err := ev.Perplexity(c)
	require.NoError(t, err)
	assert.Greater(t, p1, 1.0)
	assert.False(t, math.IsInf(p1, 0))

	// batching must not change the score
	ev.BatchSize = 3
	p2, err := ev.Perplexity(c)
	require.NoError(t, err)
	assert.InDelta(t, p1, p2, 1e-9)
}

func TestPerplexityRejectsBadBatchSize(t *testing.T) {
	ev := &Evaluator{Model: newTestModel(t, 5), BatchSize: 0}
	_, err := ev.Perplexity(newCompletion(t, 5))
	assert.ErrorContains(t, err, "batch size")
}

func TestThetaCoversEveryDocument(t *testing.T) {
	m := newTestModel(t, 5)
	s, err := corpus.NewSet([]corpus.Document{
		{Tokens: []int{0}, Counts: []float64{2}},
		{Tokens: []int{1, 2}, Counts: []float64{1, 1}},
		{Tokens: []int{3}, Counts: []float64{5}},
		{Tokens: []int{4, 0}, Counts: []float64{1, 3}},
	}, 5)
	require.NoError(t, err)

	ev := &Evaluator{Model: m, BatchSize: 3, BowNorm: true}
	theta, sums, err := ev.Theta(s)
	require.NoError(t, err)

	d, k := theta.Dims()
	require.Equal(t, 4, d)
	require.Equal(t, 3, k)
	require.Len(t, sums, 4)
	assert.Equal(t, []float64{2, 2, 5, 4}, sums)

	for i := 0; i < d; i++ {
		var sum float64
		for j := 0; j < k; j++ {
			sum += theta.At(i, j)
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}
