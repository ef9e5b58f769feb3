package planner

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vitimonitor/vitimonitor/internal/evaluate"
	"github.com/vitimonitor/vitimonitor/internal/metrics"
	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/storage"
)

// Recorder riceve le anomalie rilevate durante un run (usato per la cache
// Redis delle anomalie recenti). Best-effort.
type Recorder interface {
	RecordAnomaly(ctx context.Context, a evaluate.Anomaly)
}

// Runner esegue il ciclo leggi -> valuta -> pianifica su una finestra di
// letture. Sicuro da rilanciare anche in concorrenza: la creazione attività
// è già dedup-gated nello store.
type Runner struct {
	readings  storage.ReadingStore
	evaluator *evaluate.Evaluator
	planner   *Planner
	recorder  Recorder      // opzionale
	window    time.Duration // 0 = dall'epoca

	// seenUpTo è il timestamp più recente già contato: i run successivi
	// rivedono le stesse letture ma ogni anomalia incrementa il contatore
	// una volta sola.
	mu       sync.Mutex
	seenUpTo time.Time
}

func NewRunner(readings storage.ReadingStore, evaluator *evaluate.Evaluator, p *Planner, recorder Recorder, window time.Duration) *Runner {
	return &Runner{
		readings:  readings,
		evaluator: evaluator,
		planner:   p,
		recorder:  recorder,
		window:    window,
	}
}

// Run valuta la finestra corrente e pianifica le attività mancanti.
func (r *Runner) Run(ctx context.Context) ([]model.Activity, error) {
	var f storage.ReadingFilter
	if r.window > 0 {
		f.From = time.Now().UTC().Add(-r.window)
	}
	readings, err := r.readings.ListReadings(ctx, f)
	if err != nil {
		return nil, err
	}

	anomalies := r.evaluator.EvaluateAll(readings)
	r.mu.Lock()
	highWater := r.seenUpTo
	for _, a := range anomalies {
		ts := a.Reading.Timestamp
		if ts.After(r.seenUpTo) {
			metrics.AnomaliesDetected.WithLabelValues(string(a.Metric), a.Reading.Zone).Inc()
		}
		if ts.After(highWater) {
			highWater = ts
		}
	}
	r.seenUpTo = highWater
	r.mu.Unlock()

	if r.recorder != nil {
		for _, a := range anomalies {
			r.recorder.RecordAnomaly(ctx, a)
		}
	}
	return r.planner.Plan(ctx, anomalies)
}

// Loop rilancia Run a intervalli fissi finché il contesto non chiude.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			created, err := r.Run(ctx)
			if err != nil {
				log.Printf("planner: run error: %v", err)
			}
			if len(created) > 0 {
				log.Printf("planner: created %d activities", len(created))
			}
		}
	}
}
