// Package config loads the YAML run configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/etopic/etm/model"
	"github.com/etopic/etm/optimize"
)

// Run holds every hyperparameter of a training or evaluation run.
type Run struct {
	// data and file settings
	Dataset   string `yaml:"dataset"`
	DataPath  string `yaml:"data_path"`
	EmbFile   string `yaml:"emb_file"`
	SavePath  string `yaml:"save_path"`
	ModelFile string `yaml:"model_file"`

	// model settings
	NumTopics       int    `yaml:"num_topics"`
	RhoSize         int    `yaml:"rho_size"`
	EmbSize         int    `yaml:"emb_size"`
	THiddenSize     int    `yaml:"t_hidden_size"`
	ThetaAct        string `yaml:"theta_act"`
	TrainEmbeddings bool   `yaml:"train_embeddings"`

	// optimization settings
	BatchSize int     `yaml:"batch_size"`
	LR        float64 `yaml:"lr"`
	LRFactor  float64 `yaml:"lr_factor"`
	Epochs    int     `yaml:"epochs"`
	Optimizer string  `yaml:"optimizer"`
	Seed      uint64  `yaml:"seed"`
	EncDrop   float64 `yaml:"enc_drop"`
	Clip      float64 `yaml:"clip"`
	Nonmono   int     `yaml:"nonmono"`
	Wdecay    float64 `yaml:"wdecay"`
	AnnealLR  bool    `yaml:"anneal_lr"`
	BowNorm   bool    `yaml:"bow_norm"`

	// evaluation and logging settings
	NumWords      int    `yaml:"num_words"`
	LogInterval   int    `yaml:"log_interval"`
	EvalBatchSize int    `yaml:"eval_batch_size"`
	TC            bool   `yaml:"tc"`
	TD            bool   `yaml:"td"`
	LogLevel      string `yaml:"log_level"`
}

// Defaults returns a Run populated with the standard hyperparameters.
func Defaults() Run {
	return Run{
		ModelFile:     "etm.ckpt",
		NumTopics:     50,
		RhoSize:       300,
		EmbSize:       300,
		THiddenSize:   800,
		ThetaAct:      "relu",
		BatchSize:     1000,
		LR:            0.005,
		LRFactor:      4.0,
		Epochs:        20,
		Optimizer:     "adam",
		Seed:          28,
		Nonmono:       10,
		Wdecay:        1.2e-6,
		BowNorm:       true,
		NumWords:      10,
		LogInterval:   2,
		EvalBatchSize: 1000,
		LogLevel:      "info",
	}
}

// Load reads a YAML run configuration, layered over the defaults.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	run := Defaults()
	if err := yaml.UnmarshalStrict(data, &run); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &run, nil
}

// Validate fails fast on settings the run cannot proceed with.
func (r *Run) Validate() error {
	if r.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if r.SavePath == "" {
		return fmt.Errorf("save_path is required")
	}
	if r.NumTopics <= 0 {
		return fmt.Errorf("num_topics must be positive, got %d", r.NumTopics)
	}
	if r.RhoSize <= 0 || r.EmbSize <= 0 || r.THiddenSize <= 0 {
		return fmt.Errorf("rho_size, emb_size and t_hidden_size must all be positive")
	}
	if !r.TrainEmbeddings && r.EmbSize != r.RhoSize {
		return fmt.Errorf("pretrained embeddings require emb_size == rho_size, got %d and %d", r.EmbSize, r.RhoSize)
	}
	if !r.TrainEmbeddings && r.EmbFile == "" {
		return fmt.Errorf("emb_file is required when train_embeddings is off")
	}
	if _, err := model.ParseActivation(r.ThetaAct); err != nil {
		return err
	}
	if _, err := optimize.ParseMethod(r.Optimizer); err != nil {
		return err
	}
	if r.BatchSize <= 0 || r.EvalBatchSize <= 0 {
		return fmt.Errorf("batch_size and eval_batch_size must be positive")
	}
	if r.LR <= 0 {
		return fmt.Errorf("lr must be positive, got %v", r.LR)
	}
	if r.AnnealLR && r.LRFactor <= 1 {
		return fmt.Errorf("lr_factor must exceed 1 when anneal_lr is on, got %v", r.LRFactor)
	}
	if r.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", r.Epochs)
	}
	if r.EncDrop < 0 || r.EncDrop >= 1 {
		return fmt.Errorf("enc_drop must lie in [0,1), got %v", r.EncDrop)
	}
	if r.Nonmono < 0 {
		return fmt.Errorf("nonmono must be non-negative, got %d", r.Nonmono)
	}
	if r.Wdecay < 0 {
		return fmt.Errorf("wdecay must be non-negative, got %v", r.Wdecay)
	}
	if r.NumWords <= 0 {
		return fmt.Errorf("num_words must be positive, got %d", r.NumWords)
	}
	return nil
}

// CheckpointPath joins the save directory and the model file name.
func (r *Run) CheckpointPath() string {
	return r.SavePath + string(os.PathSeparator) + r.ModelFile
}
