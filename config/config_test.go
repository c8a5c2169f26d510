package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadLayersOverDefaults(t *testing.T) {
	body := `
dataset: 20ng
data_path: /data/20ng.json
save_path: /tmp/results
num_topics: 25
theta_act: tanh
train_embeddings: true
anneal_lr: true
`
	run, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, "20ng", run.Dataset)
	assert.Equal(t, 25, run.NumTopics)
	assert.Equal(t, "tanh", run.ThetaAct)
	assert.True(t, run.TrainEmbeddings)
	assert.True(t, run.AnnealLR)

	// untouched fields keep their defaults
	assert.Equal(t, 800, run.THiddenSize)
	assert.Equal(t, 0.005, run.LR)
	assert.Equal(t, "adam", run.Optimizer)
	assert.Equal(t, uint64(28), run.Seed)
	assert.Equal(t, 10, run.Nonmono)

	require.NoError(t, run.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "num_topics: [not an int]"))
	assert.ErrorContains(t, err, "parsing config file")

	// unknown keys are configuration mistakes, not silent noise
	_, err = Load(writeConfig(t, "numtopics: 25"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	valid := func() Run {
		r := Defaults()
		r.DataPath = "/data/20ng.json"
		r.SavePath = "/tmp/results"
		r.TrainEmbeddings = true
		return r
	}

	tests := []struct {
		name    string
		mutate  func(*Run)
		wantErr string
	}{
		{"valid", func(r *Run) {}, ""},
		{"missing data path", func(r *Run) { r.DataPath = "" }, "data_path"},
		{"missing save path", func(r *Run) { r.SavePath = "" }, "save_path"},
		{"zero topics", func(r *Run) { r.NumTopics = 0 }, "num_topics"},
		{"bad activation", func(r *Run) { r.ThetaAct = "swish" }, "unknown activation"},
		{"bad optimizer", func(r *Run) { r.Optimizer = "lbfgs" }, "unknown optimizer"},
		{"zero lr", func(r *Run) { r.LR = 0 }, "lr must be positive"},
		{"anneal without factor", func(r *Run) { r.AnnealLR = true; r.LRFactor = 1 }, "lr_factor"},
		{"dropout out of range", func(r *Run) { r.EncDrop = 1 }, "enc_drop"},
		{"pretrained without file", func(r *Run) { r.TrainEmbeddings = false }, "emb_file"},
		{"pretrained size mismatch", func(r *Run) {
			r.TrainEmbeddings = false
			r.EmbFile = "emb.txt"
			r.EmbSize = 100
		}, "emb_size == rho_size"},
		{"negative wdecay", func(r *Run) { r.Wdecay = -1 }, "wdecay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckpointPath(t *testing.T) {
	r := Defaults()
	r.SavePath = "/tmp/results"
	assert.Equal(t, filepath.Join("/tmp/results", "etm.ckpt"), r.CheckpointPath())
}
