// Package model implements the Embedded Topic Model: a variational
// encoder from normalized bags of words to a Gaussian posterior over
// log topic proportions, and a decoder that reconstructs word
// distributions from topic and word embeddings.
package model

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// logFloor keeps log() away from zero probabilities.
const logFloor = 1e-6

// Options fixes the model architecture.
type Options struct {
	NumTopics       int
	VocabSize       int
	HiddenSize      int
	RhoSize         int
	EmbSize         int
	Act             Activation
	Dropout         float64
	TrainEmbeddings bool
}

// Validate fails fast on a malformed architecture.
func (o Options) Validate() error {
	if o.NumTopics <= 0 {
		return fmt.Errorf("num_topics must be positive, got %d", o.NumTopics)
	}
	if o.VocabSize <= 0 {
		return fmt.Errorf("vocab_size must be positive, got %d", o.VocabSize)
	}
	if o.HiddenSize <= 0 {
		return fmt.Errorf("t_hidden_size must be positive, got %d", o.HiddenSize)
	}
	if o.RhoSize <= 0 {
		return fmt.Errorf("rho_size must be positive, got %d", o.RhoSize)
	}
	if !o.TrainEmbeddings && o.EmbSize != o.RhoSize {
		return fmt.Errorf("pretrained embeddings require emb_size == rho_size, got %d vs %d", o.EmbSize, o.RhoSize)
	}
	if o.Dropout < 0 || o.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0,1), got %v", o.Dropout)
	}
	return nil
}

// ETM holds the full parameter set. Rho is the word-embedding matrix
// (V x L); Alphas the topic embeddings (K x L); beta is derived as the
// row-softmax of Alphas*Rho^T.
type ETM struct {
	Opts Options

	W1, B1   *Param // V -> H
	W2, B2   *Param // H -> H
	Wmu, Bmu *Param // H -> K
	Wls, Bls *Param // H -> K
	Alphas   *Param // K x L
	Rho      *Param // V x L; fixed unless TrainEmbeddings
}

// New constructs an ETM. When opts.TrainEmbeddings is false a pretrained
// (VocabSize x RhoSize) embedding matrix must be supplied; it is copied
// into rho and kept fixed for the life of the model, with only the alphas
// projection training on top of it.
func New(opts Options, pretrained *mat.Dense, rng *rand.Rand) (*ETM, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m := &ETM{
		Opts:   opts,
		W1:     newParam("w1", opts.VocabSize, opts.HiddenSize),
		B1:     newParam("b1", 1, opts.HiddenSize),
		W2:     newParam("w2", opts.HiddenSize, opts.HiddenSize),
		B2:     newParam("b2", 1, opts.HiddenSize),
		Wmu:    newParam("w_mu", opts.HiddenSize, opts.NumTopics),
		Bmu:    newParam("b_mu", 1, opts.NumTopics),
		Wls:    newParam("w_logsigma", opts.HiddenSize, opts.NumTopics),
		Bls:    newParam("b_logsigma", 1, opts.NumTopics),
		Alphas: newParam("alphas", opts.NumTopics, opts.RhoSize),
		Rho:    newParam("rho", opts.VocabSize, opts.RhoSize),
	}

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	heInit(m.W1, norm)
	heInit(m.W2, norm)
	heInit(m.Wmu, norm)
	heInit(m.Wls, norm)
	heInit(m.Alphas, norm)

	if opts.TrainEmbeddings {
		heInit(m.Rho, norm)
	} else {
		if pretrained == nil {
			return nil, fmt.Errorf("train_embeddings is off but no pretrained embeddings were supplied")
		}
		r, c := pretrained.Dims()
		if r != opts.VocabSize || c != opts.RhoSize {
			return nil, fmt.Errorf("pretrained embeddings are %dx%d, want %dx%d", r, c, opts.VocabSize, opts.RhoSize)
		}
		m.Rho.Matrix().Copy(pretrained)
	}
	return m, nil
}

// heInit fills a weight matrix with He-initialized draws.
func heInit(p *Param, norm distuv.Normal) {
	std := math.Sqrt(2.0 / float64(p.Rows))
	for i := range p.Data {
		p.Data[i] = norm.Rand() * std
	}
}

// Params returns the trainable parameters in a stable order. Rho is
// included only when embeddings are trainable.
func (m *ETM) Params() []*Param {
	ps := []*Param{m.W1, m.B1, m.W2, m.B2, m.Wmu, m.Bmu, m.Wls, m.Bls, m.Alphas}
	if m.Opts.TrainEmbeddings {
		ps = append(ps, m.Rho)
	}
	return ps
}

// ZeroGrad clears every trainable gradient.
func (m *ETM) ZeroGrad() {
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}

// Beta computes the (NumTopics x VocabSize) topic-word distribution:
// each row is the softmax over the vocabulary of alphas*rho^T.
func (m *ETM) Beta() *mat.Dense {
	k, v := m.Opts.NumTopics, m.Opts.VocabSize
	logits := mat.NewDense(k, v, nil)
	logits.Mul(m.Alphas.Matrix(), m.Rho.Matrix().T())
	beta := mat.NewDense(k, v, nil)
	rowSoftmax(beta, logits)
	return beta
}

// EncodeTheta runs the encoder in evaluation mode on normalized
// bag-of-words rows: no dropout, z is the posterior mean, theta the
// softmax of z. Calling it twice on the same input yields identical
// output.
func (m *ETM) EncodeTheta(xn *mat.Dense) *mat.Dense {
	enc := m.runEncoder(xn, false, nil)
	b, _ := enc.mu.Dims()
	theta := mat.NewDense(b, m.Opts.NumTopics, nil)
	rowSoftmax(theta, enc.mu)
	return theta
}

// rowSoftmax writes the row-wise stable softmax of src into dst.
func rowSoftmax(dst, src *mat.Dense) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		max := src.At(i, 0)
		for j := 1; j < c; j++ {
			if v := src.At(i, j); v > max {
				max = v
			}
		}
		var sum float64
		for j := 0; j < c; j++ {
			e := math.Exp(src.At(i, j) - max)
			dst.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)/sum)
		}
	}
}

// addRowVector adds a 1 x C bias parameter to every row of m.
func addRowVector(m *mat.Dense, bias *Param) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)+bias.Data[j])
		}
	}
}

// applyActivation returns act(src) elementwise as a fresh matrix.
func applyActivation(act Activation, src *mat.Dense) *mat.Dense {
	r, c := src.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, act.apply(src.At(i, j)))
		}
	}
	return out
}

// dropoutMask builds an inverted-dropout mask: kept entries are scaled by
// 1/(1-rate) so evaluation needs no rescaling.
func dropoutMask(rows, cols int, rate float64, rng *rand.Rand) *mat.Dense {
	mask := mat.NewDense(rows, cols, nil)
	keep := 1.0 - rate
	scale := 1.0 / keep
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() < keep {
				mask.Set(i, j, scale)
			}
		}
	}
	return mask
}
