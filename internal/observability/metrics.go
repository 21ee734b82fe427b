package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Live session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_tutor_active_sessions",
		Help: "Number of open live sessions",
	})

	totalSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_sessions_total",
		Help: "Total number of live sessions by outcome",
	}, []string{"outcome"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_tutor_session_duration_seconds",
		Help:    "Duration of live sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_capture_frames_total",
		Help: "Captured microphone frames by disposition",
	}, []string{"disposition"}) // sent, dropped

	interruptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_interruptions_total",
		Help: "Playback interruptions by source",
	}, []string{"source"}) // remote, local

	// Playback metrics
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_playback_chunks_total",
		Help: "Playback chunks by status",
	}, []string{"status"}) // scheduled, dropped

	playbackItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_tts_playback_total",
		Help: "Turn-based playback items by status",
	}, []string{"status"})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_tts_requests_total",
		Help: "Total number of speech synthesis requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_tutor_tts_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Completion metrics
	completionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_completion_requests_total",
		Help: "Total number of text completion streams",
	}, []string{"status"})

	completionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_tutor_completion_first_delta_seconds",
		Help:    "Time to first text delta in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// STT metrics
	sttTranscripts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_stt_transcripts_total",
		Help: "Transcripts received from speech recognition",
	}, []string{"kind"}) // interim, final

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "live_tutor_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_tutor_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // in, out
)

// SessionMetrics tracks metrics for a single live session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
	mu        sync.Mutex
	open      bool
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordOpen records that the session reached the open state
func (m *SessionMetrics) RecordOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return
	}
	m.open = true
	m.startTime = time.Now()
	activeSessions.Inc()
}

// RecordEnd records the end of the session with its outcome
// (closed, errored, disconnected).
func (m *SessionMetrics) RecordEnd(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		activeSessions.Dec()
		sessionDuration.Observe(time.Since(m.startTime).Seconds())
		m.open = false
	}
	totalSessions.WithLabelValues(outcome).Inc()
}

// RecordFrame records one captured frame and its size in bytes
func (m *SessionMetrics) RecordFrame(sent bool, bytes int) {
	if sent {
		framesTotal.WithLabelValues("sent").Inc()
		audioBytesProcessed.WithLabelValues("out").Add(float64(bytes))
		return
	}
	framesTotal.WithLabelValues("dropped").Inc()
}

// RecordInbound records inbound audio bytes
func (m *SessionMetrics) RecordInbound(bytes int) {
	audioBytesProcessed.WithLabelValues("in").Add(float64(bytes))
}

// RecordInterruption records a playback interruption
func (m *SessionMetrics) RecordInterruption(source string) {
	interruptionsTotal.WithLabelValues(source).Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error outside a session
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordChunk records a playback chunk as scheduled or dropped
func RecordChunk(scheduled bool) {
	if scheduled {
		chunksTotal.WithLabelValues("scheduled").Inc()
		return
	}
	chunksTotal.WithLabelValues("dropped").Inc()
}

// RecordPlayback records the outcome of a turn-based playback item
func RecordPlayback(status string) {
	playbackItems.WithLabelValues(status).Inc()
}

// RecordTTS records a synthesis call and its latency
func RecordTTS(started time.Time, success bool) {
	ttsLatency.Observe(time.Since(started).Seconds())
	ttsRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordCompletion records the outcome of a completion stream
func RecordCompletion(success bool) {
	completionRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordFirstDelta records the time to the first completion delta
func RecordFirstDelta(started time.Time) {
	completionLatency.Observe(time.Since(started).Seconds())
}

// RecordTranscript records a speech recognition result
func RecordTranscript(final bool) {
	if final {
		sttTranscripts.WithLabelValues("final").Inc()
		return
	}
	sttTranscripts.WithLabelValues("interim").Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
