// Package corpus holds the bag-of-words data model: a fixed vocabulary,
// sparse documents, and the train/valid/test document sets handed to the
// model by the preprocessing pipeline.
package corpus

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Vocabulary is the ordered list of unique words; a word's id is its index.
type Vocabulary []string

// Document is a sparse bag of words: token ids and their parallel counts.
type Document struct {
	Tokens []int
	Counts []float64
}

// Total returns the total word count of the document.
func (d Document) Total() float64 {
	return floats.Sum(d.Counts)
}

// Validate checks the document against the data contract for a vocabulary
// of size vocabSize.
func (d Document) Validate(vocabSize int) error {
	if len(d.Tokens) != len(d.Counts) {
		return fmt.Errorf("tokens/counts length mismatch: %d vs %d", len(d.Tokens), len(d.Counts))
	}
	for i, tok := range d.Tokens {
		if tok < 0 || tok >= vocabSize {
			return fmt.Errorf("token id %d out of vocabulary range [0,%d)", tok, vocabSize)
		}
		if d.Counts[i] <= 0 {
			return fmt.Errorf("non-positive count %v for token id %d", d.Counts[i], tok)
		}
	}
	if len(d.Tokens) == 0 {
		return fmt.Errorf("empty document")
	}
	return nil
}

// Set is an ordered collection of documents over one vocabulary.
type Set struct {
	Docs      []Document
	VocabSize int
}

// NewSet builds a Set, validating every document against the contract.
func NewSet(docs []Document, vocabSize int) (*Set, error) {
	if vocabSize <= 0 {
		return nil, fmt.Errorf("vocabulary size must be positive, got %d", vocabSize)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document set is empty")
	}
	for i, d := range docs {
		if err := d.Validate(vocabSize); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return &Set{Docs: docs, VocabSize: vocabSize}, nil
}

// Len returns the number of documents in the set.
func (s *Set) Len() int {
	return len(s.Docs)
}

// TotalWords returns the summed word count over all documents.
func (s *Set) TotalWords() float64 {
	var t float64
	for _, d := range s.Docs {
		t += d.Total()
	}
	return t
}

// Completion pairs the two halves of a held-out split for the
// document-completion protocol: topics are inferred from First and the
// predictive likelihood is scored on Second.
type Completion struct {
	First  *Set
	Second *Set
}

// NewCompletion validates that the halves describe the same documents.
func NewCompletion(first, second *Set) (*Completion, error) {
	if first == nil || second == nil {
		return nil, fmt.Errorf("completion halves must both be present")
	}
	if first.Len() != second.Len() {
		return nil, fmt.Errorf("completion halves differ in size: %d vs %d", first.Len(), second.Len())
	}
	if first.VocabSize != second.VocabSize {
		return nil, fmt.Errorf("completion halves differ in vocabulary size: %d vs %d", first.VocabSize, second.VocabSize)
	}
	return &Completion{First: first, Second: second}, nil
}
