package model

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// encCache keeps every intermediate the backward pass needs.
type encCache struct {
	xn   *mat.Dense // normalized input, B x V
	a1   *mat.Dense // pre-activation, layer 1
	h1   *mat.Dense // post-activation, layer 1
	a2   *mat.Dense // pre-activation, layer 2
	h2   *mat.Dense // post-activation (and post-dropout), layer 2
	mask *mat.Dense // inverted-dropout mask, nil outside training
	mu   *mat.Dense // posterior mean, B x K
	ls   *mat.Dense // posterior log-variance, B x K
}

// Forward is one training-mode pass over a batch, retained for Backward.
type Forward struct {
	Recon float64 // mean reconstruction negative log-likelihood
	KL    float64 // mean KL divergence to the standard-normal prior

	bow   *mat.Dense
	enc   *encCache
	eps   *mat.Dense
	theta *mat.Dense
	beta  *mat.Dense
	p     *mat.Dense // theta * beta, B x V
}

// Loss is the training objective: reconstruction plus KL.
func (f *Forward) Loss() float64 {
	return f.Recon + f.KL
}

// runEncoder executes the shared hidden layers and the mu/logsigma heads.
func (m *ETM) runEncoder(xn *mat.Dense, train bool, rng *rand.Rand) *encCache {
	b, _ := xn.Dims()
	h := m.Opts.HiddenSize
	c := &encCache{xn: xn}

	c.a1 = mat.NewDense(b, h, nil)
	c.a1.Mul(xn, m.W1.Matrix())
	addRowVector(c.a1, m.B1)
	c.h1 = applyActivation(m.Opts.Act, c.a1)

	c.a2 = mat.NewDense(b, h, nil)
	c.a2.Mul(c.h1, m.W2.Matrix())
	addRowVector(c.a2, m.B2)
	c.h2 = applyActivation(m.Opts.Act, c.a2)

	if train && m.Opts.Dropout > 0 {
		c.mask = dropoutMask(b, h, m.Opts.Dropout, rng)
		c.h2.MulElem(c.h2, c.mask)
	}

	k := m.Opts.NumTopics
	c.mu = mat.NewDense(b, k, nil)
	c.mu.Mul(c.h2, m.Wmu.Matrix())
	addRowVector(c.mu, m.Bmu)

	c.ls = mat.NewDense(b, k, nil)
	c.ls.Mul(c.h2, m.Wls.Matrix())
	addRowVector(c.ls, m.Bls)

	return c
}

// ForwardTrain runs the stochastic training pass: encode, sample theta by
// the reparameterization trick, decode through beta, and compute the two
// loss halves. bow carries the raw counts, xn the (optionally normalized)
// encoder input.
func (m *ETM) ForwardTrain(bow, xn *mat.Dense, rng *rand.Rand) *Forward {
	b, _ := bow.Dims()
	k := m.Opts.NumTopics

	enc := m.runEncoder(xn, true, rng)

	// z = mu + eps .* exp(0.5*logsigma)
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	eps := mat.NewDense(b, k, nil)
	z := mat.NewDense(b, k, nil)
	for i := 0; i < b; i++ {
		for j := 0; j < k; j++ {
			e := norm.Rand()
			eps.Set(i, j, e)
			z.Set(i, j, enc.mu.At(i, j)+e*math.Exp(0.5*enc.ls.At(i, j)))
		}
	}
	theta := mat.NewDense(b, k, nil)
	rowSoftmax(theta, z)

	beta := m.Beta()
	p := mat.NewDense(b, m.Opts.VocabSize, nil)
	p.Mul(theta, beta)

	f := &Forward{bow: bow, enc: enc, eps: eps, theta: theta, beta: beta, p: p}
	f.Recon = reconLoss(bow, p)
	f.KL = klLoss(enc.mu, enc.ls)
	return f
}

// reconLoss is the mean over documents of -sum(counts * log(p + floor)).
func reconLoss(bow, p *mat.Dense) float64 {
	b, v := bow.Dims()
	var total float64
	for i := 0; i < b; i++ {
		for j := 0; j < v; j++ {
			if c := bow.At(i, j); c != 0 {
				total -= c * math.Log(p.At(i, j)+logFloor)
			}
		}
	}
	return total / float64(b)
}

// klLoss is the closed-form diagonal-Gaussian KL to a standard normal,
// 0.5*sum(exp(ls) + mu^2 - 1 - ls), averaged over the batch.
func klLoss(mu, ls *mat.Dense) float64 {
	b, k := mu.Dims()
	var total float64
	for i := 0; i < b; i++ {
		for j := 0; j < k; j++ {
			m := mu.At(i, j)
			l := ls.At(i, j)
			total += 0.5 * (math.Exp(l) + m*m - 1 - l)
		}
	}
	return total / float64(b)
}
