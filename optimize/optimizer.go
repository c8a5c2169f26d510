// Package optimize provides the gradient-descent methods used to fit the
// model. The method is picked by name once at construction; every
// optimizer works on the model's parameter list in place.
package optimize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/etopic/etm/model"
)

// Method identifies one of the supported optimizers.
type Method int

const (
	Adam Method = iota
	Adagrad
	Adadelta
	RMSProp
	ASGD
	SGD
)

var methodNames = map[string]Method{
	"adam":     Adam,
	"adagrad":  Adagrad,
	"adadelta": Adadelta,
	"rmsprop":  RMSProp,
	"asgd":     ASGD,
	"sgd":      SGD,
}

// ParseMethod maps a configuration name to a Method. An unrecognized
// name is a configuration error.
func ParseMethod(name string) (Method, error) {
	m, ok := methodNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown optimizer %q (want one of adam, adagrad, adadelta, rmsprop, asgd, sgd)", name)
	}
	return m, nil
}

func (m Method) String() string {
	for name, method := range methodNames {
		if method == m {
			return name
		}
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Optimizer updates parameters from their accumulated gradients. The
// learning rate is mutable so the annealer can decay it between epochs.
type Optimizer interface {
	Step()
	ZeroGrad()
	LR() float64
	SetLR(lr float64)
}

// New builds the optimizer for the given method. weightDecay is applied
// uniformly as L2 regularization folded into the gradient.
func New(method Method, params []*model.Param, lr, weightDecay float64) (Optimizer, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", lr)
	}
	base := base{params: params, lr: lr, wd: weightDecay}
	switch method {
	case Adam:
		return &adam{base: base, beta1: 0.9, beta2: 0.999, eps: 1e-8, m: stateFor(params), v: stateFor(params)}, nil
	case Adagrad:
		return &adagrad{base: base, eps: 1e-10, accum: stateFor(params)}, nil
	case Adadelta:
		return &adadelta{base: base, rho: 0.9, eps: 1e-6, acc: stateFor(params), accDelta: stateFor(params)}, nil
	case RMSProp:
		return &rmsprop{base: base, alpha: 0.99, eps: 1e-8, sq: stateFor(params)}, nil
	case ASGD:
		return &asgd{base: base, avg: stateFor(params)}, nil
	case SGD:
		return &sgd{base: base, momentum: 0.9, buf: stateFor(params)}, nil
	}
	return nil, fmt.Errorf("unknown optimizer method %d", int(method))
}

// ClipGradNorm rescales all gradients so their global L2 norm is at most
// max. A non-positive max disables clipping.
func ClipGradNorm(params []*model.Param, max float64) {
	if max <= 0 {
		return
	}
	var sq float64
	for _, p := range params {
		sq += floats.Dot(p.Grad, p.Grad)
	}
	norm := math.Sqrt(sq)
	if norm <= max {
		return
	}
	scale := max / norm
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] *= scale
		}
	}
}

type base struct {
	params []*model.Param
	lr     float64
	wd     float64
}

func (b *base) ZeroGrad() {
	for _, p := range b.params {
		p.ZeroGrad()
	}
}

func (b *base) LR() float64      { return b.lr }
func (b *base) SetLR(lr float64) { b.lr = lr }

// grad returns the regularized gradient entry.
func (b *base) grad(p *model.Param, i int) float64 {
	return p.Grad[i] + b.wd*p.Data[i]
}

func stateFor(params []*model.Param) [][]float64 {
	state := make([][]float64, len(params))
	for i, p := range params {
		state[i] = make([]float64, len(p.Data))
	}
	return state
}

type adam struct {
	base
	beta1, beta2, eps float64
	t                 int
	m, v              [][]float64
}

func (o *adam) Step() {
	o.t++
	bc1 := 1 - math.Pow(o.beta1, float64(o.t))
	bc2 := 1 - math.Pow(o.beta2, float64(o.t))
	for pi, p := range o.params {
		for i := range p.Data {
			g := o.grad(p, i)
			o.m[pi][i] = o.beta1*o.m[pi][i] + (1-o.beta1)*g
			o.v[pi][i] = o.beta2*o.v[pi][i] + (1-o.beta2)*g*g
			mHat := o.m[pi][i] / bc1
			vHat := o.v[pi][i] / bc2
			p.Data[i] -= o.lr * mHat / (math.Sqrt(vHat) + o.eps)
		}
	}
}

type adagrad struct {
	base
	eps   float64
	accum [][]float64
}

func (o *adagrad) Step() {
	for pi, p := range o.params {
		for i := range p.Data {
			g := o.grad(p, i)
			o.accum[pi][i] += g * g
			p.Data[i] -= o.lr * g / (math.Sqrt(o.accum[pi][i]) + o.eps)
		}
	}
}

type adadelta struct {
	base
	rho, eps      float64
	acc, accDelta [][]float64
}

func (o *adadelta) Step() {
	for pi, p := range o.params {
		for i := range p.Data {
			g := o.grad(p, i)
			o.acc[pi][i] = o.rho*o.acc[pi][i] + (1-o.rho)*g*g
			delta := math.Sqrt(o.accDelta[pi][i]+o.eps) / math.Sqrt(o.acc[pi][i]+o.eps) * g
			p.Data[i] -= o.lr * delta
			o.accDelta[pi][i] = o.rho*o.accDelta[pi][i] + (1-o.rho)*delta*delta
		}
	}
}

type rmsprop struct {
	base
	alpha, eps float64
	sq         [][]float64
}

func (o *rmsprop) Step() {
	for pi, p := range o.params {
		for i := range p.Data {
			g := o.grad(p, i)
			o.sq[pi][i] = o.alpha*o.sq[pi][i] + (1-o.alpha)*g*g
			p.Data[i] -= o.lr * g / (math.Sqrt(o.sq[pi][i]) + o.eps)
		}
	}
}

// asgd takes plain gradient steps while tracking the running average of
// the iterates; the live parameters are the ones used by the model.
type asgd struct {
	base
	t   int
	avg [][]float64
}

func (o *asgd) Step() {
	o.t++
	tf := float64(o.t)
	for pi, p := range o.params {
		for i := range p.Data {
			p.Data[i] -= o.lr * o.grad(p, i)
			o.avg[pi][i] += (p.Data[i] - o.avg[pi][i]) / tf
		}
	}
}

type sgd struct {
	base
	momentum float64
	buf      [][]float64
}

func (o *sgd) Step() {
	for pi, p := range o.params {
		for i := range p.Data {
			g := o.grad(p, i)
			o.buf[pi][i] = o.momentum*o.buf[pi][i] + g
			p.Data[i] -= o.lr * o.buf[pi][i]
		}
	}
}
