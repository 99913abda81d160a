package orchestration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ema_assistant_state_transitions_total",
		Help: "Transitions between assistant states.",
	}, []string{"from", "to"})

	utteranceDispositions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ema_utterances_total",
		Help: "Handled utterances by disposition.",
	}, []string{"disposition"})

	safetyBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ema_safety_blocked_total",
		Help: "Utterances refused by the safety gate.",
	}, []string{"category"})

	generationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ema_generation_failures_total",
		Help: "Failed reply generations.",
	})

	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ema_generation_latency_seconds",
		Help:    "Latency of successful reply generations.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
	})

	speechTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ema_speech_tasks_total",
		Help: "Finished speech tasks by outcome.",
	}, []string{"outcome"})

	recognitionCancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ema_recognition_canceled_total",
		Help: "Recognition sessions that ended with a cancellation.",
	}, []string{"reason"})

	recognitionRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ema_recognition_restarts_total",
		Help: "Recognition sessions restarted after a cancellation.",
	})
)
