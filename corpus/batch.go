package corpus

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Batch expands the documents at the given indices into a dense
// (len(indices), VocabSize) count matrix plus the per-row total counts.
// Counts are scatter-accumulated at the listed token ids; everything else
// stays zero. A token id outside the vocabulary is a data-contract error,
// never a silent zero row.
func (s *Set) Batch(indices []int) (*mat.Dense, []float64, error) {
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("empty batch index list")
	}
	bow := mat.NewDense(len(indices), s.VocabSize, nil)
	sums := make([]float64, len(indices))
	for row, di := range indices {
		if di < 0 || di >= len(s.Docs) {
			return nil, nil, fmt.Errorf("document index %d out of range [0,%d)", di, len(s.Docs))
		}
		doc := s.Docs[di]
		if len(doc.Tokens) != len(doc.Counts) {
			return nil, nil, fmt.Errorf("document %d: tokens/counts length mismatch", di)
		}
		for i, tok := range doc.Tokens {
			if tok < 0 || tok >= s.VocabSize {
				return nil, nil, fmt.Errorf("document %d: token id %d out of vocabulary range [0,%d)", di, tok, s.VocabSize)
			}
			bow.Set(row, tok, bow.At(row, tok)+doc.Counts[i])
			sums[row] += doc.Counts[i]
		}
	}
	return bow, sums, nil
}

// NormalizeRows returns a copy of bow with each row divided by its total
// count. Rows are guarded with a small floor so a degenerate zero-count
// row cannot produce a division by zero.
func NormalizeRows(bow *mat.Dense, sums []float64) *mat.Dense {
	const floor = 1e-12
	r, c := bow.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		s := sums[i]
		if s < floor {
			s = floor
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, bow.At(i, j)/s)
		}
	}
	return out
}

// BatchIndices slices [0,n) into consecutive index batches of at most
// batchSize documents; the last batch may be smaller.
func BatchIndices(n, batchSize int) [][]int {
	if n <= 0 || batchSize <= 0 {
		return nil
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	var batches [][]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batches = append(batches, all[start:end])
	}
	return batches
}
