package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for live transcription.
type Metrics struct {
	ActiveSessions      prometheus.Gauge
	Subscribers         prometheus.Gauge
	AudioBytesTotal     prometheus.Counter
	TranscriptionPasses *prometheus.CounterVec
	ChunksPersisted     prometheus.Counter
	SessionsFailed      prometheus.Counter
	SessionsAutoStopped prometheus.Counter
	SummariesTotal      *prometheus.CounterVec
	CompletionSeconds   prometheus.Histogram
}

// Default registers on the process-wide registry served at /metrics.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New registers a fresh set of collectors on reg. Tests pass
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_active_sessions",
			Help: "Transcription sessions currently registered",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_subscribers",
			Help: "Realtime connections subscribed to a session",
		}),
		AudioBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_audio_bytes_total",
			Help: "Raw audio bytes received from clients",
		}),
		TranscriptionPasses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_transcription_passes_total",
				Help: "Transcription passes by result",
			},
			[]string{"result"},
		),
		ChunksPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_chunks_persisted_total",
			Help: "Transcript chunks written",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_sessions_failed_total",
			Help: "Sessions terminated after repeated transcription failures",
		}),
		SessionsAutoStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_sessions_auto_stopped_total",
			Help: "Sessions finalized by the inactivity monitor",
		}),
		SummariesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_summaries_total",
				Help: "Summary generations by result",
			},
			[]string{"result"},
		),
		CompletionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_completion_seconds",
			Help:    "Latency of language completion calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
}
