package eval

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/etopic/etm/corpus"
)

// TopWords returns the n highest-probability vocabulary words for every
// topic row of beta.
func TopWords(beta *mat.Dense, vocab corpus.Vocabulary, n int) [][]string {
	k, v := beta.Dims()
	if n > v {
		n = v
	}
	out := make([][]string, k)
	for t := 0; t < k; t++ {
		idx := topIndices(beta.RawRowView(t), n)
		words := make([]string, len(idx))
		for i, wi := range idx {
			words[i] = vocab[wi]
		}
		out[t] = words
	}
	return out
}

// topIndices returns the indices of the n largest values, descending.
func topIndices(row []float64, n int) []int {
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return row[idx[i]] > row[idx[j]] })
	if n < len(idx) {
		idx = idx[:n]
	}
	return idx
}

// RankedTopic is a topic with its count-weighted average proportion.
type RankedTopic struct {
	Topic  int
	Weight float64
}

// MostUsedTopics ranks topics by the count-weighted average of theta over
// all documents: each document's proportions are weighted by its total
// word count.
func MostUsedTopics(theta *mat.Dense, sums []float64) ([]RankedTopic, error) {
	d, k := theta.Dims()
	if len(sums) != d {
		return nil, fmt.Errorf("theta has %d rows but %d document sums were given", d, len(sums))
	}
	weights := make([]float64, k)
	var total float64
	for i := 0; i < d; i++ {
		for j := 0; j < k; j++ {
			weights[j] += sums[i] * theta.At(i, j)
		}
		total += sums[i]
	}
	if total == 0 {
		return nil, fmt.Errorf("documents carry zero total count")
	}
	ranked := make([]RankedTopic, k)
	for j := 0; j < k; j++ {
		ranked[j] = RankedTopic{Topic: j, Weight: weights[j] / total}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Weight > ranked[j].Weight })
	return ranked, nil
}

// TopicDiversity is the fraction of unique words among the top-n words of
// every topic; 1 means no topic shares a top word with another.
func TopicDiversity(beta *mat.Dense, n int) float64 {
	k, _ := beta.Dims()
	seen := make(map[int]struct{})
	for t := 0; t < k; t++ {
		for _, wi := range topIndices(beta.RawRowView(t), n) {
			seen[wi] = struct{}{}
		}
	}
	return float64(len(seen)) / float64(k*n)
}

// TopicCoherence computes the normalized pointwise mutual information of
// each topic's top-10 word pairs over the training documents and averages
// across topics.
func TopicCoherence(beta *mat.Dense, train *corpus.Set) float64 {
	const topN = 10
	k, _ := beta.Dims()
	d := float64(train.Len())
	logD := math.Log(d)

	// document frequency per word, computed once
	df := make(map[int]float64)
	joint := func(a, b int) float64 {
		var n float64
		for _, doc := range train.Docs {
			hasA, hasB := false, false
			for _, tok := range doc.Tokens {
				if tok == a {
					hasA = true
				}
				if tok == b {
					hasB = true
				}
			}
			if hasA && hasB {
				n++
			}
		}
		return n
	}
	for _, doc := range train.Docs {
		seen := make(map[int]struct{}, len(doc.Tokens))
		for _, tok := range doc.Tokens {
			seen[tok] = struct{}{}
		}
		for tok := range seen {
			df[tok]++
		}
	}

	var tc float64
	var pairs int
	for t := 0; t < k; t++ {
		top := topIndices(beta.RawRowView(t), topN)
		for i := 0; i < len(top); i++ {
			for j := i + 1; j < len(top); j++ {
				dwi, dwj := df[top[i]], df[top[j]]
				dij := joint(top[i], top[j])
				var f float64
				if dij == 0 || dwi == 0 || dwj == 0 {
					f = -1
				} else if dij == d {
					// the pair co-occurs in every document
					f = 1
				} else {
					f = -1 + (math.Log(dwi)+math.Log(dwj)-2*logD)/(math.Log(dij)-logD)
				}
				tc += f
				pairs++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return tc / float64(pairs)
}
