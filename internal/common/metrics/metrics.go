// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_queries_processed_total",
			Help: "Total number of queries processed by the pipeline",
		},
		[]string{"intent", "degraded"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total analyzer provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_executions_total",
			Help: "Total tool executions by outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tool_execution_duration_seconds",
			Help: "Duration of tool execution in seconds",
		},
		[]string{"tool"},
	)

	ActiveQueries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queries_active",
			Help: "Number of queries currently in flight",
		},
	)
)
