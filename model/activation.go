package model

import (
	"fmt"
	"math"
)

// Activation selects the encoder nonlinearity. The choice is resolved once
// at construction; an unrecognized name is a configuration error.
type Activation int

const (
	ActTanh Activation = iota
	ActSoftplus
	ActReLU
	ActRReLU
	ActLeakyReLU
	ActELU
	ActSELU
	ActGLU
)

const (
	// deterministic rrelu slope: midpoint of the conventional [1/8, 1/3] range
	rreluSlope = (1.0/8.0 + 1.0/3.0) / 2.0
	leakySlope = 0.01
	seluLambda = 1.0507009873554805
	seluAlpha  = 1.6732632423543772
)

var activationNames = map[string]Activation{
	"tanh":      ActTanh,
	"softplus":  ActSoftplus,
	"relu":      ActReLU,
	"rrelu":     ActRReLU,
	"leakyrelu": ActLeakyReLU,
	"elu":       ActELU,
	"selu":      ActSELU,
	"glu":       ActGLU,
}

// ParseActivation maps a configuration name to an Activation.
func ParseActivation(name string) (Activation, error) {
	a, ok := activationNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown activation %q (want one of tanh, softplus, relu, rrelu, leakyrelu, elu, selu, glu)", name)
	}
	return a, nil
}

func (a Activation) String() string {
	for name, act := range activationNames {
		if act == a {
			return name
		}
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// apply evaluates the nonlinearity at pre-activation x.
// glu is the self-gated elementwise form x*sigmoid(x) so the hidden
// width is preserved.
func (a Activation) apply(x float64) float64 {
	switch a {
	case ActTanh:
		return math.Tanh(x)
	case ActSoftplus:
		if x > 30 {
			return x
		}
		return math.Log1p(math.Exp(x))
	case ActReLU:
		if x > 0 {
			return x
		}
		return 0
	case ActRReLU:
		if x > 0 {
			return x
		}
		return rreluSlope * x
	case ActLeakyReLU:
		if x > 0 {
			return x
		}
		return leakySlope * x
	case ActELU:
		if x > 0 {
			return x
		}
		return math.Expm1(x)
	case ActSELU:
		if x > 0 {
			return seluLambda * x
		}
		return seluLambda * seluAlpha * math.Expm1(x)
	case ActGLU:
		return x * sigmoid(x)
	}
	return x
}

// derivative evaluates d apply/dx at pre-activation x.
func (a Activation) derivative(x float64) float64 {
	switch a {
	case ActTanh:
		t := math.Tanh(x)
		return 1 - t*t
	case ActSoftplus:
		return sigmoid(x)
	case ActReLU:
		if x > 0 {
			return 1
		}
		return 0
	case ActRReLU:
		if x > 0 {
			return 1
		}
		return rreluSlope
	case ActLeakyReLU:
		if x > 0 {
			return 1
		}
		return leakySlope
	case ActELU:
		if x > 0 {
			return 1
		}
		return math.Exp(x)
	case ActSELU:
		if x > 0 {
			return seluLambda
		}
		return seluLambda * seluAlpha * math.Exp(x)
	case ActGLU:
		s := sigmoid(x)
		return s + x*s*(1-s)
	}
	return 1
}
