// Package train drives model fitting: the epoch loop, the held-out
// model selector, and the learning-rate annealer.
package train

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/etopic/etm/corpus"
	"github.com/etopic/etm/eval"
	"github.com/etopic/etm/model"
	"github.com/etopic/etm/monitoring"
	"github.com/etopic/etm/optimize"
)

// lrFloor stops annealing once the learning rate reaches this value.
const lrFloor = 1e-5

// Config holds the run-level training knobs.
type Config struct {
	Epochs         int
	BatchSize      int
	EvalBatchSize  int
	LRFactor       float64
	AnnealLR       bool
	Nonmono        int
	Clip           float64
	BowNorm        bool
	LogInterval    int
	CheckpointPath string
}

func (c Config) validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.EvalBatchSize <= 0 {
		return fmt.Errorf("eval batch size must be positive, got %d", c.EvalBatchSize)
	}
	if c.AnnealLR && c.LRFactor <= 1 {
		return fmt.Errorf("lr factor must exceed 1 when annealing, got %v", c.LRFactor)
	}
	if c.Nonmono < 0 {
		return fmt.Errorf("nonmono must be non-negative, got %d", c.Nonmono)
	}
	if c.CheckpointPath == "" {
		return fmt.Errorf("checkpoint path is required")
	}
	return nil
}

// Trainer fits one model. It is the training-mode counterpart of
// eval.Evaluator; the two share the model's forward pass but never a
// mode flag.
type Trainer struct {
	cfg     Config
	model   *model.ETM
	opt     optimize.Optimizer
	rng     *rand.Rand
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// EpochStats summarizes one completed epoch.
type EpochStats struct {
	Epoch      int
	Recon      float64 // mean reconstruction loss over batches
	KL         float64 // mean KL loss over batches
	Docs       int
	Words      float64
	LR         float64
	Perplexity float64
}

// Result is the outcome of a full training run.
type Result struct {
	BestEpoch      int
	BestPerplexity float64
	// History holds every epoch's held-out perplexity in order.
	History []float64
	// Epochs holds the per-epoch training statistics.
	Epochs []EpochStats
	// Final is the best checkpoint's perplexity after the end-of-run
	// reload.
	Final float64
}

// New builds a Trainer.
func New(cfg Config, m *model.ETM, opt optimize.Optimizer, rng *rand.Rand, log *zap.Logger, metrics *monitoring.Metrics) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if m == nil || opt == nil || rng == nil {
		return nil, fmt.Errorf("trainer needs a model, an optimizer and a random source")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Trainer{cfg: cfg, model: m, opt: opt, rng: rng, log: log, metrics: metrics}, nil
}

// Run trains for the configured number of epochs, scoring the held-out
// completion split after each one. The best-scoring model state is
// checkpointed; when the score fails to improve the learning rate may be
// annealed. After the last epoch the best checkpoint is reloaded and
// re-scored.
func (t *Trainer) Run(trainSet *corpus.Set, heldout *corpus.Completion) (*Result, error) {
	res := &Result{BestEpoch: -1, BestPerplexity: 1e9}
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		stats, err := t.trainEpoch(epoch, trainSet)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		ev := &eval.Evaluator{Model: t.model, BatchSize: t.cfg.EvalBatchSize, BowNorm: t.cfg.BowNorm}
		ppl, err := ev.Perplexity(heldout)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}
		stats.Perplexity = ppl
		res.Epochs = append(res.Epochs, stats)

		t.log.Info("validation",
			zap.Int("epoch", epoch),
			zap.Float64("perplexity", ppl),
			zap.Float64("lr", t.opt.LR()))

		if ppl < res.BestPerplexity {
			// checkpoint only after the full evaluation pass; a failed
			// write aborts the run
			if err := t.model.Save(t.cfg.CheckpointPath); err != nil {
				return nil, fmt.Errorf("epoch %d checkpoint: %w", epoch, err)
			}
			res.BestEpoch = epoch
			res.BestPerplexity = ppl
			if t.metrics != nil {
				t.metrics.CheckpointWrites.Inc()
				t.metrics.BestPerplexity.Set(ppl)
			}
		} else {
			t.maybeAnneal(ppl, res.History)
		}
		res.History = append(res.History, ppl)

		if t.metrics != nil {
			t.metrics.EpochsCompleted.Inc()
			t.metrics.LearningRate.Set(t.opt.LR())
			t.metrics.TrainingLoss.Set(stats.Recon + stats.KL)
		}
	}

	if res.BestEpoch < 0 {
		return nil, fmt.Errorf("no epoch produced a finite perplexity")
	}

	// reload the best checkpoint and score it once more
	best, err := model.LoadCheckpoint(t.cfg.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("reloading best checkpoint: %w", err)
	}
	t.model = best
	ev := &eval.Evaluator{Model: best, BatchSize: t.cfg.EvalBatchSize, BowNorm: t.cfg.BowNorm}
	res.Final, err = ev.Perplexity(heldout)
	if err != nil {
		return nil, fmt.Errorf("scoring best checkpoint: %w", err)
	}
	t.log.Info("training finished",
		zap.Int("best_epoch", res.BestEpoch),
		zap.Float64("best_perplexity", res.BestPerplexity),
		zap.Float64("final_perplexity", res.Final))
	return res, nil
}

// Model returns the model currently held by the trainer; after Run it is
// the reloaded best checkpoint.
func (t *Trainer) Model() *model.ETM {
	return t.model
}

// maybeAnneal divides the learning rate by the configured factor when
// annealing is on, enough history exists, and the current perplexity is
// worse than the best seen before the patience window.
func (t *Trainer) maybeAnneal(ppl float64, history []float64) {
	if !t.cfg.AnnealLR || len(history) <= t.cfg.Nonmono {
		return
	}
	window := history[:len(history)-t.cfg.Nonmono]
	min := window[0]
	for _, v := range window[1:] {
		if v < min {
			min = v
		}
	}
	if ppl > min && t.opt.LR() > lrFloor {
		lr := t.opt.LR() / t.cfg.LRFactor
		t.opt.SetLR(lr)
		t.log.Info("annealing learning rate", zap.Float64("lr", lr))
	}
}

// trainEpoch shuffles the documents and runs one optimizer step per
// batch.
func (t *Trainer) trainEpoch(epoch int, trainSet *corpus.Set) (EpochStats, error) {
	stats := EpochStats{Epoch: epoch}
	if trainSet.Len() == 0 {
		return stats, fmt.Errorf("training set is empty")
	}
	perm := t.rng.Perm(trainSet.Len())

	var accRecon, accKL float64
	var batches int
	for start := 0; start < len(perm); start += t.cfg.BatchSize {
		end := start + t.cfg.BatchSize
		if end > len(perm) {
			end = len(perm)
		}
		idx := perm[start:end]

		bow, sums, err := trainSet.Batch(idx)
		if err != nil {
			return stats, err
		}
		xn := bow
		if t.cfg.BowNorm {
			xn = corpus.NormalizeRows(bow, sums)
		}

		t.model.ZeroGrad()
		f := t.model.ForwardTrain(bow, xn, t.rng)
		t.model.Backward(f)
		optimize.ClipGradNorm(t.model.Params(), t.cfg.Clip)
		t.opt.Step()

		accRecon += f.Recon
		accKL += f.KL
		batches++
		stats.Docs += len(idx)
		for _, s := range sums {
			stats.Words += s
		}
		if t.metrics != nil {
			t.metrics.BatchesProcessed.Inc()
		}

		if t.cfg.LogInterval > 0 && batches%t.cfg.LogInterval == 0 {
			t.log.Info("training",
				zap.Int("epoch", epoch),
				zap.Int("batch", batches),
				zap.Float64("lr", t.opt.LR()),
				zap.Float64("recon", accRecon/float64(batches)),
				zap.Float64("kl", accKL/float64(batches)))
		}
	}

	stats.Recon = accRecon / float64(batches)
	stats.KL = accKL / float64(batches)
	stats.LR = t.opt.LR()
	t.log.Info("epoch complete",
		zap.Int("epoch", epoch),
		zap.Float64("recon", stats.Recon),
		zap.Float64("kl", stats.KL),
		zap.Int("docs", stats.Docs),
		zap.Float64("words", stats.Words),
		zap.Float64("lr", stats.LR))
	return stats, nil
}
