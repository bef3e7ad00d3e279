package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gorag"

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Requests labelled by path and status",
	}, []string{"path", "status"})

	jobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_queue",
		Help:      "Jobs accepted but not yet picked up by a worker",
	})
	dispatcherSignals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatcher_signals_total",
		Help:      "Times the dispatcher was asked for another worker",
	})
	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Workers currently alive",
	})

	jobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Finished jobs labelled by type, status and signal",
	}, []string{"job_type", "status", "signal"})
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time of a job from pickup to final state",
		Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"job_type"})

	ingestionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestion_runs_total",
		Help:      "Ingestion runs labelled by the state they ended in",
	}, []string{"final_state"})
	chunksPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_persisted_total",
		Help:      "Chunks written to the chunk store",
	})
	vectorsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vectors_upserted_total",
		Help:      "Vectors written to the vector store",
	})

	stepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_latency_seconds",
		Help:      "Latency of pipeline steps and backend calls",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
	}, []string{"step"})
)

// HttpStatusRecorder remembers the status code written through it.
type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *HttpStatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func IncrementJobsInQueue() { jobsInQueue.Inc() }
func DecrementJobsInQueue() { jobsInQueue.Dec() }

func StartDispatcherSignalCount() { dispatcherSignals.Inc() }

func IncrementActiveWorkerCount() { activeWorkers.Inc() }
func DecrementActiveWorkerCount() { activeWorkers.Dec() }

func RecordIngestion(finalState string, chunks, vectors int) {
	ingestionOutcomes.WithLabelValues(finalState).Inc()
	chunksPersisted.Add(float64(chunks))
	vectorsUpserted.Add(float64(vectors))
}

// CaptureExecutionMetrics observes one pipeline step, e.g. "embedding" or "vector_search".
func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	stepLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

// CaptureJobMetrics records a finished job.
func CaptureJobMetrics(jobType, status, signal string, timeElapsed time.Duration) {
	jobOutcomes.WithLabelValues(jobType, status, signal).Inc()
	jobDuration.WithLabelValues(jobType).Observe(timeElapsed.Seconds())
}
