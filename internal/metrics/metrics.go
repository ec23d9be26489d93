package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bacopilot_ai_calls_total",
		Help: "AI service calls by outcome (ok, rejected, unavailable, invalid_response, canceled).",
	}, []string{"outcome"})

	AIRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bacopilot_ai_retries_total",
		Help: "Retried AI service attempts.",
	})

	DocumentsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bacopilot_documents_generated_total",
		Help: "Generated documents by type and outcome.",
	}, []string{"doc_type", "outcome"})

	StepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bacopilot_pipeline_steps_total",
		Help: "Pipeline step runs by step and final status.",
	}, []string{"step", "status"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bacopilot_pipeline_active_jobs",
		Help: "Pipeline jobs currently registered.",
	})

	MetadataJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bacopilot_metadata_jobs_total",
		Help: "Metadata extraction jobs by outcome.",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bacopilot_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
)
