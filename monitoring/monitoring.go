// Package monitoring exposes training-run metrics through prometheus.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the counters and gauges the trainer updates as it runs.
type Metrics struct {
	EpochsCompleted  prometheus.Counter
	BatchesProcessed prometheus.Counter
	CheckpointWrites prometheus.Counter
	LearningRate     prometheus.Gauge
	TrainingLoss     prometheus.Gauge
	BestPerplexity   prometheus.Gauge
}

// NewMetrics registers the metric set with the given registerer; tests
// pass a fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EpochsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "etm_epochs_completed_total",
			Help: "Total number of completed training epochs",
		}),
		BatchesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "etm_batches_processed_total",
			Help: "Total number of processed training batches",
		}),
		CheckpointWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "etm_checkpoint_writes_total",
			Help: "Total number of best-model checkpoint writes",
		}),
		LearningRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "etm_learning_rate",
			Help: "Current optimizer learning rate",
		}),
		TrainingLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "etm_training_loss",
			Help: "Mean total loss of the last completed epoch",
		}),
		BestPerplexity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "etm_best_validation_perplexity",
			Help: "Best held-out perplexity seen so far",
		}),
	}
}
