// Package eval scores trained models: document-completion perplexity,
// topic quality metrics, and the end-of-run parameters export.
package eval

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/etopic/etm/corpus"
	"github.com/etopic/etm/model"
)

const logFloor = 1e-6

// Evaluator runs the model in deterministic evaluation mode: no dropout,
// posterior-mean theta, no gradient bookkeeping.
type Evaluator struct {
	Model     *model.ETM
	BatchSize int
	BowNorm   bool
}

// Perplexity scores the document-completion protocol: topic proportions
// are inferred from each document's first half and the predictive
// log-likelihood is measured on the second half. The result is
// exp(-total log-likelihood / total target word count); lower is better.
func (e *Evaluator) Perplexity(c *corpus.Completion) (float64, error) {
	if e.BatchSize <= 0 {
		return 0, fmt.Errorf("evaluation batch size must be positive, got %d", e.BatchSize)
	}
	beta := e.Model.Beta()

	var totalLL, totalWords float64
	for _, idx := range corpus.BatchIndices(c.First.Len(), e.BatchSize) {
		bow1, sums1, err := c.First.Batch(idx)
		if err != nil {
			return 0, fmt.Errorf("batching first halves: %w", err)
		}
		xn := bow1
		if e.BowNorm {
			xn = corpus.NormalizeRows(bow1, sums1)
		}
		theta := e.Model.EncodeTheta(xn)

		b := len(idx)
		p := mat.NewDense(b, e.Model.Opts.VocabSize, nil)
		p.Mul(theta, beta)

		bow2, sums2, err := c.Second.Batch(idx)
		if err != nil {
			return 0, fmt.Errorf("batching second halves: %w", err)
		}
		for i := 0; i < b; i++ {
			for j := 0; j < e.Model.Opts.VocabSize; j++ {
				if cnt := bow2.At(i, j); cnt != 0 {
					totalLL += cnt * math.Log(p.At(i, j)+logFloor)
				}
			}
			totalWords += sums2[i]
		}
	}
	if totalWords == 0 {
		return 0, fmt.Errorf("held-out set has zero target words")
	}
	return math.Exp(-totalLL / totalWords), nil
}

// Theta infers evaluation-mode topic proportions for every document in
// the set, batched, along with the per-document total counts.
func (e *Evaluator) Theta(s *corpus.Set) (*mat.Dense, []float64, error) {
	if e.BatchSize <= 0 {
		return nil, nil, fmt.Errorf("evaluation batch size must be positive, got %d", e.BatchSize)
	}
	k := e.Model.Opts.NumTopics
	theta := mat.NewDense(s.Len(), k, nil)
	sums := make([]float64, 0, s.Len())
	for _, idx := range corpus.BatchIndices(s.Len(), e.BatchSize) {
		bow, batchSums, err := s.Batch(idx)
		if err != nil {
			return nil, nil, err
		}
		xn := bow
		if e.BowNorm {
			xn = corpus.NormalizeRows(bow, batchSums)
		}
		bt := e.Model.EncodeTheta(xn)
		for i, di := range idx {
			for j := 0; j < k; j++ {
				theta.Set(di, j, bt.At(i, j))
			}
		}
		sums = append(sums, batchSums...)
	}
	return theta, sums, nil
}
