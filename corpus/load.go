package corpus

import (
	"encoding/json"
	"fmt"
	"os"
)

// Corpus is the fully loaded and validated corpus artifact.
type Corpus struct {
	Vocab Vocabulary
	Train *Set
	Valid *Set
	Test  *Set
	// TestCompletion holds the positional halves of every test document,
	// used by the document-completion evaluation protocol.
	TestCompletion *Completion
}

type splitJSON struct {
	Tokens [][]int     `json:"tokens"`
	Counts [][]float64 `json:"counts"`
}

type testJSON struct {
	splitJSON
	Tokens1 [][]int     `json:"tokens_1"`
	Counts1 [][]float64 `json:"counts_1"`
	Tokens2 [][]int     `json:"tokens_2"`
	Counts2 [][]float64 `json:"counts_2"`
}

type artifactJSON struct {
	Vocab []string  `json:"vocab"`
	Train splitJSON `json:"train"`
	Valid splitJSON `json:"valid"`
	Test  testJSON  `json:"test"`
}

func setFromLists(tokens [][]int, counts [][]float64, vocabSize int) (*Set, error) {
	if len(tokens) != len(counts) {
		return nil, fmt.Errorf("tokens/counts document counts differ: %d vs %d", len(tokens), len(counts))
	}
	docs := make([]Document, len(tokens))
	for i := range tokens {
		docs[i] = Document{Tokens: tokens[i], Counts: counts[i]}
	}
	return NewSet(docs, vocabSize)
}

// Load reads the JSON corpus artifact produced by the preprocessing
// pipeline: the vocabulary plus per-split parallel token/count lists, with
// the test split additionally carrying its first/second positional halves.
func Load(path string) (*Corpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus artifact: %w", err)
	}
	var art artifactJSON
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("parsing corpus artifact %s: %w", path, err)
	}
	if len(art.Vocab) == 0 {
		return nil, fmt.Errorf("corpus artifact %s has an empty vocabulary", path)
	}
	v := len(art.Vocab)

	train, err := setFromLists(art.Train.Tokens, art.Train.Counts, v)
	if err != nil {
		return nil, fmt.Errorf("train split: %w", err)
	}
	valid, err := setFromLists(art.Valid.Tokens, art.Valid.Counts, v)
	if err != nil {
		return nil, fmt.Errorf("valid split: %w", err)
	}
	test, err := setFromLists(art.Test.Tokens, art.Test.Counts, v)
	if err != nil {
		return nil, fmt.Errorf("test split: %w", err)
	}
	first, err := setFromLists(art.Test.Tokens1, art.Test.Counts1, v)
	if err != nil {
		return nil, fmt.Errorf("test first half: %w", err)
	}
	second, err := setFromLists(art.Test.Tokens2, art.Test.Counts2, v)
	if err != nil {
		return nil, fmt.Errorf("test second half: %w", err)
	}
	if first.Len() != test.Len() || second.Len() != test.Len() {
		return nil, fmt.Errorf("test halves must cover every test document: %d/%d vs %d",
			first.Len(), second.Len(), test.Len())
	}
	completion, err := NewCompletion(first, second)
	if err != nil {
		return nil, fmt.Errorf("test completion split: %w", err)
	}

	return &Corpus{
		Vocab:          Vocabulary(art.Vocab),
		Train:          train,
		Valid:          valid,
		Test:           test,
		TestCompletion: completion,
	}, nil
}
