package model

import (
	"encoding/gob"
	"fmt"
	"os"
)

// checkpoint is the serialized form of a model: the architecture plus
// every parameter matrix, gradients excluded.
type checkpoint struct {
	Opts   Options
	Params map[string]paramBlob
}

type paramBlob struct {
	Rows int
	Cols int
	Data []float64
}

// Save writes the full model state to path. The file is rewritten from
// scratch on every call; a failed write is returned as an error so the
// caller can abort the run.
func (m *ETM) Save(path string) error {
	ck := checkpoint{Opts: m.Opts, Params: make(map[string]paramBlob)}
	for _, p := range m.allParams() {
		data := make([]float64, len(p.Data))
		copy(data, p.Data)
		ck.Params[p.Name] = paramBlob{Rows: p.Rows, Cols: p.Cols, Data: data}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating checkpoint %s: %w", path, err)
	}
	if err := gob.NewEncoder(file).Encode(ck); err != nil {
		file.Close()
		return fmt.Errorf("encoding checkpoint %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads a model back from a checkpoint file. The loaded
// model reproduces the saved one's theta and beta exactly.
func LoadCheckpoint(path string) (*ETM, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint %s: %w", path, err)
	}
	defer file.Close()

	var ck checkpoint
	if err := gob.NewDecoder(file).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}
	if err := ck.Opts.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint %s carries an invalid architecture: %w", path, err)
	}

	o := ck.Opts
	m := &ETM{
		Opts:   o,
		W1:     newParam("w1", o.VocabSize, o.HiddenSize),
		B1:     newParam("b1", 1, o.HiddenSize),
		W2:     newParam("w2", o.HiddenSize, o.HiddenSize),
		B2:     newParam("b2", 1, o.HiddenSize),
		Wmu:    newParam("w_mu", o.HiddenSize, o.NumTopics),
		Bmu:    newParam("b_mu", 1, o.NumTopics),
		Wls:    newParam("w_logsigma", o.HiddenSize, o.NumTopics),
		Bls:    newParam("b_logsigma", 1, o.NumTopics),
		Alphas: newParam("alphas", o.NumTopics, o.RhoSize),
		Rho:    newParam("rho", o.VocabSize, o.RhoSize),
	}
	for _, p := range m.allParams() {
		blob, ok := ck.Params[p.Name]
		if !ok {
			return nil, fmt.Errorf("checkpoint %s is missing parameter %q", path, p.Name)
		}
		if blob.Rows != p.Rows || blob.Cols != p.Cols || len(blob.Data) != len(p.Data) {
			return nil, fmt.Errorf("checkpoint %s parameter %q is %dx%d, want %dx%d",
				path, p.Name, blob.Rows, blob.Cols, p.Rows, p.Cols)
		}
		copy(p.Data, blob.Data)
	}
	return m, nil
}

// allParams lists every parameter including a fixed rho, for
// serialization purposes.
func (m *ETM) allParams() []*Param {
	return []*Param{m.W1, m.B1, m.W2, m.B2, m.Wmu, m.Bmu, m.Wls, m.Bls, m.Alphas, m.Rho}
}
