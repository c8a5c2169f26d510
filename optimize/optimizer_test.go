package optimize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etopic/etm/model"
)

func TestParseMethod(t *testing.T) {
	for name := range methodNames {
		m, err := ParseMethod(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}

	_, err := ParseMethod("lbfgs")
	assert.ErrorContains(t, err, `unknown optimizer "lbfgs"`)
}

func TestNewRejectsBadLearningRate(t *testing.T) {
	p := &model.Param{Name: "w", Rows: 1, Cols: 1, Data: []float64{0}, Grad: []float64{0}}
	_, err := New(Adam, []*model.Param{p}, 0, 0)
	assert.ErrorContains(t, err, "learning rate")
}

func TestSetLR(t *testing.T) {
	p := &model.Param{Name: "w", Rows: 1, Cols: 1, Data: []float64{0}, Grad: []float64{0}}
	opt, err := New(Adam, []*model.Param{p}, 0.01, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.01, opt.LR())
	opt.SetLR(0.0025)
	assert.Equal(t, 0.0025, opt.LR())
}

// every method must make progress on the quadratic 0.5*(x-3)^2
func TestMethodsMinimizeQuadratic(t *testing.T) {
	for name, method := range methodNames {
		t.Run(name, func(t *testing.T) {
			p := &model.Param{Name: "x", Rows: 1, Cols: 1, Data: []float64{10}, Grad: []float64{0}}
			lr := 0.1
			if method == Adadelta {
				lr = 1.0 // adadelta scales its own steps
			}
			opt, err := New(method, []*model.Param{p}, lr, 0)
			require.NoError(t, err)

			start := math.Abs(p.Data[0] - 3)
			for i := 0; i < 2000; i++ {
				opt.ZeroGrad()
				p.Grad[0] = p.Data[0] - 3
				opt.Step()
			}
			assert.Less(t, math.Abs(p.Data[0]-3), start/2,
				"%s failed to approach the minimum, ended at %v", name, p.Data[0])
		})
	}
}

func TestWeightDecayPullsTowardZero(t *testing.T) {
	p := &model.Param{Name: "x", Rows: 1, Cols: 1, Data: []float64{5}, Grad: []float64{0}}
	opt, err := New(SGD, []*model.Param{p}, 0.01, 0.1)
	require.NoError(t, err)

	// zero loss gradient, only the decay term acts
	for i := 0; i < 100; i++ {
		opt.ZeroGrad()
		opt.Step()
	}
	assert.Less(t, math.Abs(p.Data[0]), 5.0)
}

func TestClipGradNorm(t *testing.T) {
	p1 := &model.Param{Name: "a", Rows: 1, Cols: 2, Data: []float64{0, 0}, Grad: []float64{3, 0}}
	p2 := &model.Param{Name: "b", Rows: 1, Cols: 1, Data: []float64{0}, Grad: []float64{4}}
	params := []*model.Param{p1, p2}

	// global norm is 5, clipped to 1
	ClipGradNorm(params, 1)
	var sq float64
	for _, p := range params {
		for _, g := range p.Grad {
			sq += g * g
		}
	}
	assert.InDelta(t, 1.0, math.Sqrt(sq), 1e-12)
	assert.InDelta(t, 0.6, p1.Grad[0], 1e-12)
	assert.InDelta(t, 0.8, p2.Grad[0], 1e-12)
}

func TestClipGradNormNoOps(t *testing.T) {
	p := &model.Param{Name: "a", Rows: 1, Cols: 1, Data: []float64{0}, Grad: []float64{3}}

	// below the threshold
	ClipGradNorm([]*model.Param{p}, 10)
	assert.Equal(t, 3.0, p.Grad[0])

	// disabled
	ClipGradNorm([]*model.Param{p}, 0)
	assert.Equal(t, 3.0, p.Grad[0])
}
