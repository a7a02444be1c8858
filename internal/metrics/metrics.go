package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Predictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_predictions_total",
		Help: "Total predictions by task and label",
	}, []string{"task", "label"})
	PredictionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_prediction_errors_total",
		Help: "Total error-tagged or fallback predictions by task",
	}, []string{"task"})
	PredictionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inspiro_prediction_duration_seconds",
		Help:    "Prediction duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	PostOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_post_outcomes_total",
		Help: "Scheduled and direct post outcomes by status",
	}, []string{"status"})
	SchedulerRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspiro_scheduler_runs_total",
		Help: "Total scheduler check passes",
	})
	SchedulerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspiro_scheduler_errors_total",
		Help: "Total scheduler check passes that failed",
	})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inspiro_http_request_duration_seconds",
		Help:    "API request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_command_runs_total",
		Help: "Total CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_command_errors_total",
		Help: "Total CLI command errors",
	}, []string{"command"})
	EmbedCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_embed_cache_total",
		Help: "Embedding cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(Predictions, PredictionErrors, PredictionDuration, PostOutcomes,
		SchedulerRuns, SchedulerErrors, HTTPDuration, CommandRuns, CommandErrors, EmbedCache)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObservePrediction records the duration of one prediction for task.
func ObservePrediction(task string, start time.Time) {
	PredictionDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}

func IncPrediction(task, label string) { Predictions.WithLabelValues(task, label).Inc() }
func IncPredictionError(task string)   { PredictionErrors.WithLabelValues(task).Inc() }
func IncPostOutcome(status string)     { PostOutcomes.WithLabelValues(status).Inc() }
func IncCommandRun(cmd string)         { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string)       { CommandErrors.WithLabelValues(cmd).Inc() }

// ObserveHTTP records one API request.
func ObserveHTTP(route, code string, d time.Duration) {
	HTTPDuration.WithLabelValues(route, code).Observe(d.Seconds())
}
