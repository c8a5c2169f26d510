package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Backward accumulates the gradients of Loss() into every trainable
// parameter. Gradients add up across calls; the caller zeroes them
// between steps.
func (m *ETM) Backward(f *Forward) {
	b, v := f.bow.Dims()
	k := m.Opts.NumTopics
	bf := float64(b)

	// d loss / d log p = -counts / B, then through the log floor
	dp := mat.NewDense(b, v, nil)
	for i := 0; i < b; i++ {
		for j := 0; j < v; j++ {
			if c := f.bow.At(i, j); c != 0 {
				dp.Set(i, j, -c/(bf*(f.p.At(i, j)+logFloor)))
			}
		}
	}

	// p = theta * beta
	dtheta := mat.NewDense(b, k, nil)
	dtheta.Mul(dp, f.beta.T())
	dbeta := mat.NewDense(k, v, nil)
	dbeta.Mul(f.theta.T(), dp)

	// theta = softmax(z), rows
	dz := softmaxBackward(f.theta, dtheta)

	// z = mu + eps*exp(0.5*ls); KL adds mu/B and 0.5*(exp(ls)-1)/B
	dmu := mat.NewDense(b, k, nil)
	dls := mat.NewDense(b, k, nil)
	for i := 0; i < b; i++ {
		for j := 0; j < k; j++ {
			g := dz.At(i, j)
			l := f.enc.ls.At(i, j)
			dmu.Set(i, j, g+f.enc.mu.At(i, j)/bf)
			dls.Set(i, j, g*f.eps.At(i, j)*0.5*math.Exp(0.5*l)+0.5*(math.Exp(l)-1)/bf)
		}
	}

	// mu/logsigma heads
	m.Wmu.addMM(f.enc.h2.T(), dmu)
	m.Bmu.addColSums(dmu)
	m.Wls.addMM(f.enc.h2.T(), dls)
	m.Bls.addColSums(dls)

	h := m.Opts.HiddenSize
	dh2 := mat.NewDense(b, h, nil)
	dh2.Mul(dmu, m.Wmu.Matrix().T())
	var tmp mat.Dense
	tmp.Mul(dls, m.Wls.Matrix().T())
	dh2.Add(dh2, &tmp)

	if f.enc.mask != nil {
		dh2.MulElem(dh2, f.enc.mask)
	}

	// second hidden layer
	da2 := activationBackward(m.Opts.Act, f.enc.a2, dh2)
	m.W2.addMM(f.enc.h1.T(), da2)
	m.B2.addColSums(da2)

	dh1 := mat.NewDense(b, h, nil)
	dh1.Mul(da2, m.W2.Matrix().T())

	// first hidden layer
	da1 := activationBackward(m.Opts.Act, f.enc.a1, dh1)
	m.W1.addMM(f.enc.xn.T(), da1)
	m.B1.addColSums(da1)

	// beta = rowsoftmax(alphas * rho^T)
	dlogits := softmaxBackward(f.beta, dbeta)
	m.Alphas.addMM(dlogits, m.Rho.Matrix())
	if m.Opts.TrainEmbeddings {
		m.Rho.addMM(dlogits.T(), m.Alphas.Matrix())
	}
}

// softmaxBackward maps the gradient w.r.t. softmax outputs back to the
// logits, row by row: dz = y .* (dy - sum(dy .* y)).
func softmaxBackward(y, dy *mat.Dense) *mat.Dense {
	r, c := y.Dims()
	dz := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		var dot float64
		for j := 0; j < c; j++ {
			dot += dy.At(i, j) * y.At(i, j)
		}
		for j := 0; j < c; j++ {
			dz.Set(i, j, y.At(i, j)*(dy.At(i, j)-dot))
		}
	}
	return dz
}

// activationBackward multiplies the downstream gradient by the
// nonlinearity derivative at the stored pre-activations.
func activationBackward(act Activation, pre, grad *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, grad.At(i, j)*act.derivative(pre.At(i, j)))
		}
	}
	return out
}
