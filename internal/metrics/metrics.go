// Package metrics exposes Prometheus instrumentation for playback.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tribunal"

// Controller counters.
var (
	TranscriptsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcripts_submitted_total",
		Help:      "Transcripts submitted for playback.",
	})

	UtterancesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "utterances_queued_total",
		Help:      "Utterances handed to the synthesizer.",
	})

	SegmentsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_skipped_total",
		Help:      "Segments skipped because nothing speakable was left after stripping.",
	})

	StaleCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_completions_total",
		Help:      "Completion events ignored because playback had moved on.",
	})

	StateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Playback state transitions by target state.",
	}, []string{"state"})
)

// Synthesis metrics.
var (
	SynthesisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "synthesis_duration_seconds",
		Help:      "Time spent rendering an utterance to PCM.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms → ~25s
	}, []string{"engine"})

	SynthesisErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "synthesis_errors_total",
		Help:      "Failed synthesis or playback attempts.",
	}, []string{"engine"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Audio cache lookups by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		TranscriptsSubmitted,
		UtterancesQueued,
		SegmentsSkipped,
		StaleCompletions,
		StateTransitions,
		SynthesisDuration,
		SynthesisErrors,
		CacheLookups,
	)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
