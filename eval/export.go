package eval

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/etopic/etm/corpus"
	"github.com/etopic/etm/model"
)

// Parameters is the end-of-run export consumed by downstream analysis
// tools: the vocabulary, optional topic quality scores, the embedding
// matrices, beta, and the inferred theta for every training document.
type Parameters struct {
	Vocab     corpus.Vocabulary
	Coherence *float64
	Diversity *float64
	Rho       Matrix
	Alphas    Matrix
	Beta      Matrix
	Theta     Matrix
}

// Matrix is a self-describing dense matrix for serialization.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

func toMatrix(m *mat.Dense) Matrix {
	r, c := m.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		copy(data[i*c:(i+1)*c], m.RawRowView(i))
	}
	return Matrix{Rows: r, Cols: c, Data: data}
}

// Dense rebuilds the gonum view of the matrix.
func (m Matrix) Dense() *mat.Dense {
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// ExportParameters gathers the export artifact from a trained model and
// writes it to path in one shot.
func ExportParameters(path string, m *model.ETM, vocab corpus.Vocabulary, theta *mat.Dense, tc, td *float64) error {
	params := Parameters{
		Vocab:     vocab,
		Coherence: tc,
		Diversity: td,
		Rho:       toMatrix(m.Rho.Matrix()),
		Alphas:    toMatrix(m.Alphas.Matrix()),
		Beta:      toMatrix(m.Beta()),
		Theta:     toMatrix(theta),
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating parameters export %s: %w", path, err)
	}
	if err := gob.NewEncoder(file).Encode(params); err != nil {
		file.Close()
		return fmt.Errorf("encoding parameters export %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing parameters export %s: %w", path, err)
	}
	return nil
}

// LoadParameters reads a parameters export back.
func LoadParameters(path string) (*Parameters, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening parameters export %s: %w", path, err)
	}
	defer file.Close()
	var params Parameters
	if err := gob.NewDecoder(file).Decode(&params); err != nil {
		return nil, fmt.Errorf("decoding parameters export %s: %w", path, err)
	}
	return &params, nil
}
