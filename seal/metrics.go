package seal

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blockseal"

type metrics struct {
	SealedImages   prometheus.Counter
	StoredBlocks   prometheus.Counter
	Verifications  prometheus.Counter
	TamperedBlocks prometheus.Counter
	RestoredBlocks prometheus.Counter
	VerifyTime     prometheus.Histogram
}

func newMetrics() metrics {
	subsystem := "seal"

	return metrics{
		SealedImages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sealed_images_total",
			Help:      "Total images sealed into the ledger.",
		}),
		StoredBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stored_blocks_total",
			Help:      "Total encrypted blocks put into the blob store.",
		}),
		Verifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "verifications_total",
			Help:      "Total images verified against a sealed block.",
		}),
		TamperedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tampered_blocks_total",
			Help:      "Total blocks flagged as tampered by verifications.",
		}),
		RestoredBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "restored_blocks_total",
			Help:      "Total blocks restored from the blob store.",
		}),
		VerifyTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "verify_time_seconds",
			Help:      "Histogram of time spent verifying an image.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// Metrics returns the collectors of the service for registration
func (s *Service) Metrics() []prometheus.Collector {
	return []prometheus.Collector{
		s.metrics.SealedImages,
		s.metrics.StoredBlocks,
		s.metrics.Verifications,
		s.metrics.TamperedBlocks,
		s.metrics.RestoredBlocks,
		s.metrics.VerifyTime,
	}
}
