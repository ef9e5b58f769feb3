package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsIngested conta le letture accettate e persistite, per trasporto.
	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readings_ingested_total",
			Help: "Total number of readings accepted and persisted",
		},
		[]string{"transport", "manual"},
	)

	// ReadingsRejected conta i payload respinti, per motivo.
	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readings_rejected_total",
			Help: "Total number of payloads rejected by the ingestion pipeline",
		},
		[]string{"transport", "reason"},
	)

	// AnomaliesDetected conta le anomalie rilevate dal valutatore, per metrica.
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of threshold anomalies detected",
		},
		[]string{"metric", "zone"},
	)

	// PlannerRuns conta le esecuzioni del pianificatore.
	PlannerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_runs_total",
			Help: "Total number of activity planner runs",
		},
	)

	// ActivitiesCreated conta le attività create, per tipo.
	ActivitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_created_total",
			Help: "Total number of activities created by the planner",
		},
		[]string{"kind"},
	)

	// ActivitiesSuppressed conta i duplicati soppressi dalla chiave di dedup.
	ActivitiesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activities_suppressed_total",
			Help: "Total number of duplicate activities suppressed at creation",
		},
	)

	// RequestDuration misura la durata delle richieste HTTP.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// CacheOperations conta le operazioni verso la cache Redis, per esito.
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "status"},
	)
)
