package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitimonitor/vitimonitor/internal/evaluate"
	"github.com/vitimonitor/vitimonitor/internal/ingest"
	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/storage"
)

const maxBodySize = 1 << 20 // 1 MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeIngestError traduce la tassonomia della pipeline in risposte HTTP:
// gli errori imputabili al client hanno una causa distinguibile, solo i
// guasti d'infrastruttura diventano un errore server.
func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid signature"})
	case errors.Is(err, ingest.ErrMalformedPayload):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	case errors.Is(err, storage.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "store unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
	}
}

func (s *Service) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Backend attivo"})
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.mirror != nil && s.mirror.LastErrorAge() < time.Minute {
		writeJSON(w, http.StatusOK, map[string]string{"status": "degraded", "mirror": "recent write errors"})
		return
	}
	_, _ = w.Write([]byte("ok"))
}

// POST /data — lettura firmata da un sensore.
func (s *Service) handlePostData(w http.ResponseWriter, r *http.Request) {
	s.ingestHTTP(w, r, false)
}

// POST /add_manual_measure — misura inserita dall'operatore, firma non
// richiesta.
func (s *Service) handleAddManualMeasure(w http.ResponseWriter, r *http.Request) {
	s.ingestHTTP(w, r, true)
}

func (s *Service) ingestHTTP(w http.ResponseWriter, r *http.Request, allowUnsigned bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "unreadable body"})
		return
	}

	ctx := ingest.WithTransport(r.Context(), "http")
	if _, err := s.pipeline.Ingest(ctx, body, allowUnsigned); err != nil {
		writeIngestError(w, err)
		return
	}

	if allowUnsigned {
		writeJSON(w, http.StatusOK, map[string]string{"status": "manual data saved"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GET /data?start_date&end_date&start_time&end_time&sensor_id&zone
func (s *Service) handleGetData(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	readings, err := s.store.ListReadings(r.Context(), f)
	if err != nil {
		writeIngestError(w, err)
		return
	}
	if readings == nil {
		readings = []model.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": readings})
}

// GET /status — conteggio righe, con riparo in cache a TTL breve.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if n, ok := s.cache.RecordCount(r.Context()); ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": n})
		return
	}

	n, err := s.store.CountReadings(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	s.cache.SetRecordCount(r.Context(), n)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": n})
}

// GET /anomalies?metric= — anomalie derivate, ricalcolate on demand.
func (s *Service) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	readings, err := s.store.ListReadings(r.Context(), f)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	var anomalies []evaluate.Anomaly
	if m := r.URL.Query().Get("metric"); m != "" {
		anomalies = s.evaluator.Evaluate(readings, model.Metric(m))
	} else {
		anomalies = s.evaluator.EvaluateAll(readings)
	}
	if anomalies == nil {
		anomalies = []evaluate.Anomaly{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": anomalies, "count": len(anomalies)})
}

// GET /anomalies/recent?zone=&limit= — riassunti dalla cache Redis.
func (s *Service) handleRecentAnomalies(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "cache not configured"})
		return
	}
	zone := r.URL.Query().Get("zone")
	if zone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "zone parameter is required"})
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	summaries, err := s.cache.RecentAnomalies(r.Context(), zone, limit)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "cache unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zone": zone, "count": len(summaries), "anomalies": summaries})
}

// GET /quality — indice di qualità per lettura, target di zona applicati.
func (s *Service) handleQuality(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	readings, err := s.store.ListReadings(r.Context(), f)
	if err != nil {
		writeIngestError(w, err)
		return
	}
	targets, err := s.store.ListZoneTargets(r.Context())
	if err != nil {
		writeIngestError(w, err)
		return
	}

	rows := evaluate.Quality(readings, targets)
	if rows == nil {
		rows = []evaluate.QualityRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// GET /water_stress — regola composta suolo secco + luce alta.
func (s *Service) handleWaterStress(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	readings, err := s.store.ListReadings(r.Context(), f)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	stressed := evaluate.WaterStress(readings, s.stress)
	if stressed == nil {
		stressed = []model.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thresholds": s.stress,
		"count":      len(stressed),
		"data":       stressed,
	})
}

func (s *Service) handleListZoneTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.store.ListZoneTargets(r.Context())
	if err != nil {
		writeIngestError(w, err)
		return
	}
	if targets == nil {
		targets = []model.ZoneTarget{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

func (s *Service) handlePutZoneTarget(w http.ResponseWriter, r *http.Request) {
	zone := chi.URLParam(r, "zone")

	var body struct {
		TemperatureOpt  *float64 `json:"temperature_opt"`
		HumidityAirOpt  *float64 `json:"humidity_air_opt"`
		HumiditySoilOpt *float64 `json:"humidity_soil_opt"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid JSON"})
		return
	}
	if body.TemperatureOpt == nil || body.HumidityAirOpt == nil || body.HumiditySoilOpt == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "all three optimum values are required"})
		return
	}

	t := model.ZoneTarget{
		Zone:            zone,
		TemperatureOpt:  *body.TemperatureOpt,
		HumidityAirOpt:  *body.HumidityAirOpt,
		HumiditySoilOpt: *body.HumiditySoilOpt,
	}
	if err := s.store.UpsertZoneTarget(r.Context(), t); err != nil {
		writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GET /activities?status= — attività ordinate per data pianificata.
func (s *Service) handleListActivities(w http.ResponseWriter, r *http.Request) {
	var status *model.ActivityStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := model.ActivityStatus(v)
		if st != model.StatusPending && st != model.StatusCompleted {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "unknown status"})
			return
		}
		status = &st
	}

	activities, err := s.store.ListActivities(r.Context(), status)
	if err != nil {
		writeIngestError(w, err)
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

// POST /activities/plan — esegue subito un ciclo valuta-e-pianifica.
func (s *Service) handlePlanNow(w http.ResponseWriter, r *http.Request) {
	created, err := s.runner.Run(r.Context())
	if err != nil {
		log.Printf("backend: plan run error: %v", err)
		writeIngestError(w, err)
		return
	}
	if created == nil {
		created = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": len(created), "activities": created})
}

// POST /activities/{id}/complete — conferma dell'operatore, idempotente.
func (s *Service) handleCompleteActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.planner.Complete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "activity not found"})
			return
		}
		writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// filterFromQuery costruisce il range temporale dai parametri del prototipo:
// start_date/end_date (YYYY-MM-DD) più start_time/end_time (HH:MM[:SS]).
// Range omesso = dall'epoca ad adesso.
func filterFromQuery(r *http.Request) (storage.ReadingFilter, error) {
	q := r.URL.Query()
	f := storage.ReadingFilter{
		SensorID: q.Get("sensor_id"),
		Zone:     q.Get("zone"),
	}

	from, err := combineDateTime(q.Get("start_date"), q.Get("start_time"), false)
	if err != nil {
		return f, err
	}
	to, err := combineDateTime(q.Get("end_date"), q.Get("end_time"), true)
	if err != nil {
		return f, err
	}
	f.From, f.To = from, to
	return f, nil
}

func combineDateTime(date, clock string, endOfDay bool) (time.Time, error) {
	if date == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	if clock == "" {
		if endOfDay {
			return d.Add(24*time.Hour - time.Nanosecond), nil
		}
		return d, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", clock)
}
