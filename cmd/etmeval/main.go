// Command etmeval scores a trained checkpoint: document-completion
// perplexity, per-topic top words, most-used topics, optional coherence
// and diversity, and the parameters export artifact.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/etopic/etm/config"
	"github.com/etopic/etm/corpus"
	"github.com/etopic/etm/embedding"
	"github.com/etopic/etm/eval"
	"github.com/etopic/etm/logging"
	"github.com/etopic/etm/model"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML run configuration")
	checkpoint := flag.String("checkpoint", "", "override the checkpoint path")
	exportPath := flag.String("export", "", "write the parameters export artifact to this path")
	neighborWords := flag.String("neighbors", "", "comma-separated words to print embedding neighbors for")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: etmeval -config run.yaml [-checkpoint file] [-export file] [-neighbors w1,w2]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ckpt := cfg.CheckpointPath()
	if *checkpoint != "" {
		ckpt = *checkpoint
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, ckpt, *exportPath, *neighborWords); err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}
}

func run(cfg *config.Run, logger *zap.Logger, ckpt, exportPath, neighborWords string) error {
	c, err := corpus.Load(cfg.DataPath)
	if err != nil {
		return err
	}
	m, err := model.LoadCheckpoint(ckpt)
	if err != nil {
		return err
	}
	if m.Opts.VocabSize != len(c.Vocab) {
		return fmt.Errorf("checkpoint was trained on a %d-word vocabulary, corpus has %d",
			m.Opts.VocabSize, len(c.Vocab))
	}
	logger.Info("checkpoint loaded",
		zap.String("path", ckpt),
		zap.Int("topics", m.Opts.NumTopics),
		zap.Int("vocab", m.Opts.VocabSize))

	ev := &eval.Evaluator{Model: m, BatchSize: cfg.EvalBatchSize, BowNorm: cfg.BowNorm}
	ppl, err := ev.Perplexity(c.TestCompletion)
	if err != nil {
		return err
	}
	logger.Info("document completion", zap.Float64("perplexity", ppl))

	beta := m.Beta()
	for t, words := range eval.TopWords(beta, c.Vocab, cfg.NumWords) {
		logger.Info("topic", zap.Int("topic", t), zap.Strings("words", words))
	}

	theta, sums, err := ev.Theta(c.Train)
	if err != nil {
		return err
	}
	ranked, err := eval.MostUsedTopics(theta, sums)
	if err != nil {
		return err
	}
	top := ranked
	if len(top) > 10 {
		top = top[:10]
	}
	for _, rt := range top {
		logger.Info("most used topic", zap.Int("topic", rt.Topic), zap.Float64("weight", rt.Weight))
	}

	var tcPtr, tdPtr *float64
	if cfg.TC {
		tc := eval.TopicCoherence(beta, c.Train)
		tcPtr = &tc
		logger.Info("topic coherence", zap.Float64("npmi", tc))
	}
	if cfg.TD {
		td := eval.TopicDiversity(beta, 25)
		tdPtr = &td
		logger.Info("topic diversity", zap.Float64("diversity", td))
	}
	if cfg.TC && cfg.TD {
		logger.Info("topic quality", zap.Float64("quality", *tcPtr**tdPtr))
	}

	if neighborWords != "" {
		table, err := embedding.FromMatrix(c.Vocab, m.Rho.Matrix())
		if err != nil {
			return err
		}
		for _, w := range strings.Split(neighborWords, ",") {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			ns, err := table.NearestNeighbors(w, 10)
			if err != nil {
				logger.Warn("neighbor lookup failed", zap.String("word", w), zap.Error(err))
				continue
			}
			words := make([]string, len(ns))
			for i, n := range ns {
				words[i] = n.Word
			}
			logger.Info("nearest neighbors", zap.String("word", w), zap.Strings("neighbors", words))
		}
	}

	if exportPath != "" {
		if err := eval.ExportParameters(exportPath, m, c.Vocab, theta, tcPtr, tdPtr); err != nil {
			return err
		}
		logger.Info("parameters exported", zap.String("path", exportPath))
	}
	return nil
}
