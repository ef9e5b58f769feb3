package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitimonitor/vitimonitor/internal/evaluate"
	"github.com/vitimonitor/vitimonitor/internal/ingest"
	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/planner"
	"github.com/vitimonitor/vitimonitor/internal/signature"
	"github.com/vitimonitor/vitimonitor/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	p := planner.NewPlanner(store, planner.DefaultTriggerRules(), planner.DefaultLag)
	svc := NewService(Options{
		Store:     store,
		Pipeline:  ingest.NewPipeline(store, signature.Prefix{}, nil),
		Evaluator: evaluate.NewEvaluator(evaluate.DefaultRanges()),
		Stress:    evaluate.DefaultStressThresholds(),
		Planner:   p,
		Runner:    planner.NewRunner(store, evaluate.NewEvaluator(evaluate.DefaultRanges()), p, nil, 0),
	})
	return svc, store
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func signedPayload(sensorID, zone string, temp, humAir, humSoil, lux float64, ts string) string {
	m := map[string]any{
		"sensor_id":     sensorID,
		"zone":          zone,
		"temperature":   temp,
		"humidity_air":  humAir,
		"humidity_soil": humSoil,
		"luminosity":    lux,
		"signature":     signature.PrefixTag + sensorID,
	}
	if ts != "" {
		m["timestamp"] = ts
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func TestPostDataSigned(t *testing.T) {
	svc, store := newTestService(t)
	h := svc.Router()

	rec, out := do(t, h, http.MethodPost, "/data",
		signedPayload("sensor-01", "A", 22, 50, 30, 300, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", out["status"])

	n, err := store.CountReadings(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPostDataInvalidSignature(t *testing.T) {
	svc, store := newTestService(t)
	h := svc.Router()

	body := `{"sensor_id":"sensor-01","zone":"A","temperature":22,"humidity_air":50,"humidity_soil":30,"luminosity":300,"signature":"sig_forged"}`
	rec, out := do(t, h, http.MethodPost, "/data", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", out["detail"])

	// Lo store resta intatto: nessun commit sui percorsi di rifiuto.
	n, err := store.CountReadings(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostDataMissingField(t *testing.T) {
	svc, store := newTestService(t)
	h := svc.Router()

	body := `{"sensor_id":"sensor-01","zone":"A","temperature":22,"humidity_air":50,"luminosity":300,"signature":"signature_sensor-01"}`
	rec, _ := do(t, h, http.MethodPost, "/data", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	n, _ := store.CountReadings(context.Background())
	assert.Zero(t, n)
}

func TestAddManualMeasure(t *testing.T) {
	svc, store := newTestService(t)
	h := svc.Router()

	// Nessuna firma: il percorso manuale la salta e marca la riga.
	body := `{"temperature":25,"humidity_air":55,"humidity_soil":28,"luminosity":400}`
	rec, out := do(t, h, http.MethodPost, "/add_manual_measure", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "manual data saved", out["status"])

	readings, err := store.ListReadings(context.Background(), storage.ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.True(t, readings[0].Manual)
}

func TestGetDataRangeAndOrder(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	for i, day := range []string{"2026-08-10", "2026-08-12", "2026-08-14"} {
		rec, _ := do(t, h, http.MethodPost, "/data",
			signedPayload(fmt.Sprintf("sensor-%02d", i), "A", 20, 50, 30, 300, day+"T12:00:00Z"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, out := do(t, h, http.MethodGet, "/data?start_date=2026-08-11&end_date=2026-08-13", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "sensor-01", data[0].(map[string]any)["sensor_id"])

	// Senza range: tutte, più recenti prima.
	rec, out = do(t, h, http.MethodGet, "/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = out["data"].([]any)
	require.Len(t, data, 3)
	assert.Equal(t, "sensor-02", data[0].(map[string]any)["sensor_id"])
	assert.Equal(t, "sensor-00", data[2].(map[string]any)["sensor_id"])
}

func TestStatusRecordCount(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	rec, out := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.EqualValues(t, 0, out["records"])

	do(t, h, http.MethodPost, "/data", signedPayload("sensor-01", "A", 22, 50, 30, 300, ""))

	_, out = do(t, h, http.MethodGet, "/status", "")
	assert.EqualValues(t, 1, out["records"])
}

// Scenario completo: lettura fuori soglia -> anomalia -> attività pianificata
// a +48h, e un secondo run non ne crea un duplicato.
func TestHotReadingPlansTemperatureCheck(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	rec, _ := do(t, h, http.MethodPost, "/data",
		signedPayload("sensor-07", "B", 45, 50, 30, 300, "2026-08-20T10:00:00Z"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := do(t, h, http.MethodGet, "/anomalies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["count"])

	rec, out = do(t, h, http.MethodPost, "/activities/plan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, out["created"])

	acts := out["activities"].([]any)
	act := acts[0].(map[string]any)
	assert.Equal(t, string(model.KindTemperatureCheck), act["kind"])
	assert.Equal(t, "2026-08-22T10:00:00Z", act["scheduled_at"])
	assert.Equal(t, string(model.StatusPending), act["status"])

	// Secondo ciclo identico: la lettura viene ripersistita (nessuna dedup
	// sulle letture) ma la chiave di deduplica sopprime la seconda attività.
	rec, _ = do(t, h, http.MethodPost, "/data",
		signedPayload("sensor-07", "B", 45, 50, 30, 300, "2026-08-20T10:00:00Z"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = do(t, h, http.MethodPost, "/activities/plan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, out["created"])
}

func TestCompleteActivity(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	do(t, h, http.MethodPost, "/data",
		signedPayload("sensor-07", "B", 45, 50, 30, 300, "2026-08-20T10:00:00Z"))
	_, out := do(t, h, http.MethodPost, "/activities/plan", "")
	id := out["activities"].([]any)[0].(map[string]any)["id"].(string)

	rec, out := do(t, h, http.MethodPost, "/activities/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", out["status"])

	// Idempotente: completare due volte non è un errore.
	rec, _ = do(t, h, http.MethodPost, "/activities/"+id+"/complete", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// La vista pending si svuota, la storia resta.
	rec, out = do(t, h, http.MethodGet, "/activities?status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["activities"])

	_, out = do(t, h, http.MethodGet, "/activities", "")
	assert.Len(t, out["activities"], 1)
}

func TestCompleteUnknownActivity(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	rec, _ := do(t, h, http.MethodPost, "/activities/no-such-id/complete", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestZoneTargetUpsertAndQuality(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	rec, _ := do(t, h, http.MethodPut, "/zones/B/target",
		`{"temperature_opt":24,"humidity_air_opt":60,"humidity_soil_opt":25}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := do(t, h, http.MethodGet, "/zones/targets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	targets := out["targets"].([]any)
	require.Len(t, targets, 1)
	assert.Equal(t, "B", targets[0].(map[string]any)["zone"])

	// Lettura esattamente sui target: qualità 1.0.
	do(t, h, http.MethodPost, "/data", signedPayload("sensor-01", "B", 24, 60, 25, 300, ""))
	rec, out = do(t, h, http.MethodGet, "/quality", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := out["data"].([]any)
	require.Len(t, rows, 1)
	assert.InDelta(t, 1.0, rows[0].(map[string]any)["quality_index"].(float64), 1e-9)
}

func TestZoneTargetMissingField(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	rec, _ := do(t, h, http.MethodPut, "/zones/B/target", `{"temperature_opt":24}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecentAnomaliesWithoutCache(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	rec, _ := do(t, h, http.MethodGet, "/anomalies/recent?zone=A", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWaterStress(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Router()

	// Suolo secco + luce alta: stress. Il secondo viola solo una condizione.
	do(t, h, http.MethodPost, "/data", signedPayload("sensor-01", "A", 22, 50, 18, 120000, ""))
	do(t, h, http.MethodPost, "/data", signedPayload("sensor-02", "A", 22, 50, 18, 500, ""))

	rec, out := do(t, h, http.MethodGet, "/water_stress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["count"])
}
