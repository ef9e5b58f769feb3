package backend

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitimonitor/vitimonitor/internal/metrics"
)

// Router costruisce la superficie HTTP del backend.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(measureDuration)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/data", s.handlePostData)
	r.Post("/add_manual_measure", s.handleAddManualMeasure)
	r.Get("/data", s.handleGetData)
	r.Get("/status", s.handleStatus)

	r.Get("/anomalies", s.handleAnomalies)
	r.Get("/anomalies/recent", s.handleRecentAnomalies)
	r.Get("/quality", s.handleQuality)
	r.Get("/water_stress", s.handleWaterStress)

	r.Get("/zones/targets", s.handleListZoneTargets)
	r.Put("/zones/{zone}/target", s.handlePutZoneTarget)

	r.Get("/activities", s.handleListActivities)
	r.Post("/activities/plan", s.handlePlanNow)
	r.Post("/activities/{id}/complete", s.handleCompleteActivity)

	return r
}

// measureDuration osserva la durata per route pattern chi.
func measureDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}
