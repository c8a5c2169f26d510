package model

import (
	"gonum.org/v1/gonum/mat"
)

// Param is one trainable matrix with its accumulated gradient. Data and
// Grad are row-major and shared with the mat.Dense views, so optimizers
// can update the raw slices and the model sees the new values.
type Param struct {
	Name string
	Rows int
	Cols int
	Data []float64
	Grad []float64
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name: name,
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
		Grad: make([]float64, rows*cols),
	}
}

// Matrix returns a dense view over the parameter values.
func (p *Param) Matrix() *mat.Dense {
	return mat.NewDense(p.Rows, p.Cols, p.Data)
}

// GradMatrix returns a dense view over the accumulated gradient.
func (p *Param) GradMatrix() *mat.Dense {
	return mat.NewDense(p.Rows, p.Cols, p.Grad)
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// addMM accumulates a*b into the parameter gradient.
func (p *Param) addMM(a, b mat.Matrix) {
	var prod mat.Dense
	prod.Mul(a, b)
	g := p.GradMatrix()
	g.Add(g, &prod)
}

// addColSums accumulates the column sums of m into a bias gradient.
func (p *Param) addColSums(m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		var s float64
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		p.Grad[j] += s
	}
}
