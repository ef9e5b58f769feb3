// Package ingest implementa la pipeline di ingestione: parse del payload,
// validazione strutturale, verifica di autenticità e un singolo insert
// atomico. Entrambi i trasporti (HTTP e MQTT) convergono su Pipeline.Ingest.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vitimonitor/vitimonitor/internal/metrics"
	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/signature"
	"github.com/vitimonitor/vitimonitor/internal/storage"
)

// ErrMalformedPayload: campo obbligatorio assente o mal tipato. Errore del
// client, terminale per il singolo payload, mai persistito né ritentato.
var ErrMalformedPayload = errors.New("malformed payload")

// ErrInvalidSignature: controllo di autenticità fallito. Errore del client,
// mai persistito.
var ErrInvalidSignature = errors.New("invalid signature")

// Mirror riceve una copia di ogni lettura accettata (best-effort, usato per
// il mirror time-series su Influx).
type Mirror interface {
	MirrorReading(ctx context.Context, id int64, r model.Reading)
}

type Pipeline struct {
	store    storage.ReadingStore
	verifier signature.Verifier
	validate *validator.Validate
	mirror   Mirror // opzionale
	now      func() time.Time
}

func NewPipeline(store storage.ReadingStore, verifier signature.Verifier, mirror Mirror) *Pipeline {
	return &Pipeline{
		store:    store,
		verifier: verifier,
		validate: validator.New(),
		mirror:   mirror,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// payload è lo schema dichiarato del body: i numerici sono puntatori per
// distinguere "assente" da zero, come faceva il models layer del prototipo.
type payload struct {
	SensorID     string     `json:"sensor_id"`
	Zone         string     `json:"zone"`
	Temperature  *float64   `json:"temperature" validate:"required"`
	HumidityAir  *float64   `json:"humidity_air" validate:"required"`
	HumiditySoil *float64   `json:"humidity_soil" validate:"required"`
	Luminosity   *float64   `json:"luminosity" validate:"required"`
	GPS          *model.GPS `json:"gps"`
	Signature    string     `json:"signature"`
	Timestamp    string     `json:"timestamp"`
}

// Ingest valida e persiste un payload grezzo. allowUnsigned marca la lettura
// come manuale e salta la verifica di firma (percorso operatore). Esattamente
// un commit per payload accettato, nessun commit su qualunque percorso di
// fallimento.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, allowUnsigned bool) (int64, error) {
	transport := transportFrom(ctx)

	var body payload
	if err := json.Unmarshal(raw, &body); err != nil {
		metrics.ReadingsRejected.WithLabelValues(transport, "malformed").Inc()
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := p.validate.Struct(body); err != nil {
		metrics.ReadingsRejected.WithLabelValues(transport, "malformed").Inc()
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	// sensor_id e zone sono obbligatori per le letture dei sensori; le misure
	// manuali possono ometterli (campi compilati dall'operatore).
	if !allowUnsigned && (body.SensorID == "" || body.Zone == "") {
		metrics.ReadingsRejected.WithLabelValues(transport, "malformed").Inc()
		return 0, fmt.Errorf("%w: sensor_id and zone are required", ErrMalformedPayload)
	}

	ts, err := parseTimestamp(body.Timestamp)
	if err != nil {
		metrics.ReadingsRejected.WithLabelValues(transport, "malformed").Inc()
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if ts.IsZero() {
		ts = p.now()
	}

	r := model.Reading{
		SensorID:     body.SensorID,
		Zone:         body.Zone,
		Temperature:  *body.Temperature,
		HumidityAir:  *body.HumidityAir,
		HumiditySoil: *body.HumiditySoil,
		Luminosity:   *body.Luminosity,
		GPS:          body.GPS,
		Signature:    body.Signature,
		Manual:       allowUnsigned,
		Timestamp:    ts,
	}

	if !allowUnsigned && !p.verifier.Verify(r) {
		metrics.ReadingsRejected.WithLabelValues(transport, "invalid_signature").Inc()
		return 0, ErrInvalidSignature
	}

	id, err := p.store.InsertReading(ctx, r)
	if err != nil {
		metrics.ReadingsRejected.WithLabelValues(transport, "store").Inc()
		return 0, err
	}

	if p.mirror != nil {
		p.mirror.MirrorReading(ctx, id, r)
	}
	metrics.ReadingsIngested.WithLabelValues(transport, fmt.Sprint(allowUnsigned)).Inc()
	return id, nil
}

// parseTimestamp accetta RFC3339 (con o senza frazioni) e i formati data del
// form manuale; stringa vuota vale "assegna il timestamp del server".
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

type transportKey struct{}

// WithTransport annota il contesto con il trasporto d'origine ("http",
// "mqtt"), usato solo per le label delle metriche.
func WithTransport(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, transportKey{}, name)
}

func transportFrom(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey{}).(string); ok {
		return v
	}
	return "unknown"
}
