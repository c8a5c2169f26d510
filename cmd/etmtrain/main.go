// Command etmtrain fits an Embedded Topic Model on a preprocessed corpus
// artifact and checkpoints the best model by held-out document-completion
// perplexity.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/etopic/etm/config"
	"github.com/etopic/etm/corpus"
	"github.com/etopic/etm/embedding"
	"github.com/etopic/etm/eval"
	"github.com/etopic/etm/logging"
	"github.com/etopic/etm/model"
	"github.com/etopic/etm/monitoring"
	"github.com/etopic/etm/optimize"
	"github.com/etopic/etm/train"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML run configuration")
	dataPath := flag.String("data", "", "override the corpus artifact path")
	savePath := flag.String("save", "", "override the checkpoint directory")
	epochs := flag.Int("epochs", 0, "override the number of epochs")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address (optional)")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: etmtrain -config run.yaml [-data corpus.json] [-save dir] [-epochs n]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *savePath != "" {
		cfg.SavePath = *savePath
	}
	if *epochs > 0 {
		cfg.Epochs = *epochs
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *metricsAddr); err != nil {
		logger.Fatal("training run failed", zap.Error(err))
	}
}

func run(cfg *config.Run, logger *zap.Logger, metricsAddr string) error {
	c, err := corpus.Load(cfg.DataPath)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded",
		zap.String("dataset", cfg.Dataset),
		zap.Int("vocab", len(c.Vocab)),
		zap.Int("train_docs", c.Train.Len()),
		zap.Int("valid_docs", c.Valid.Len()),
		zap.Int("test_docs", c.Test.Len()))

	var pretrained *mat.Dense
	if !cfg.TrainEmbeddings {
		table, missing, err := embedding.LoadPretrained(cfg.EmbFile, c.Vocab, cfg.EmbSize)
		if err != nil {
			return err
		}
		if missing > 0 {
			logger.Warn("vocabulary words missing from the embedding file",
				zap.Int("missing", missing))
		}
		pretrained = table.Data
	}

	if err := os.MkdirAll(cfg.SavePath, 0o755); err != nil {
		return fmt.Errorf("creating save directory %s: %w", cfg.SavePath, err)
	}

	act, err := model.ParseActivation(cfg.ThetaAct)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	m, err := model.New(model.Options{
		NumTopics:       cfg.NumTopics,
		VocabSize:       len(c.Vocab),
		HiddenSize:      cfg.THiddenSize,
		RhoSize:         cfg.RhoSize,
		EmbSize:         cfg.EmbSize,
		Act:             act,
		Dropout:         cfg.EncDrop,
		TrainEmbeddings: cfg.TrainEmbeddings,
	}, pretrained, rng)
	if err != nil {
		return err
	}

	method, err := optimize.ParseMethod(cfg.Optimizer)
	if err != nil {
		return err
	}
	opt, err := optimize.New(method, m.Params(), cfg.LR, cfg.Wdecay)
	if err != nil {
		return err
	}

	var metrics *monitoring.Metrics
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = monitoring.NewMetrics(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	trainer, err := train.New(train.Config{
		Epochs:         cfg.Epochs,
		BatchSize:      cfg.BatchSize,
		EvalBatchSize:  cfg.EvalBatchSize,
		LRFactor:       cfg.LRFactor,
		AnnealLR:       cfg.AnnealLR,
		Nonmono:        cfg.Nonmono,
		Clip:           cfg.Clip,
		BowNorm:        cfg.BowNorm,
		LogInterval:    cfg.LogInterval,
		CheckpointPath: cfg.CheckpointPath(),
	}, m, opt, rng, logger, metrics)
	if err != nil {
		return err
	}

	res, err := trainer.Run(c.Train, c.TestCompletion)
	if err != nil {
		return err
	}
	logger.Info("best model",
		zap.Int("epoch", res.BestEpoch),
		zap.Float64("perplexity", res.Final),
		zap.String("checkpoint", cfg.CheckpointPath()))

	for t, words := range eval.TopWords(trainer.Model().Beta(), c.Vocab, cfg.NumWords) {
		logger.Info("topic", zap.Int("topic", t), zap.Strings("words", words))
	}
	return nil
}
