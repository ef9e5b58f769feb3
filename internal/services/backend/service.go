// Package backend è il servizio centrale: espone la superficie HTTP, consuma
// il feed MQTT e fa girare il ciclo periodico valuta-e-pianifica. Entrambi i
// trasporti convergono sulla stessa pipeline di ingestione e sullo stesso
// store.
package backend

import (
	"context"
	"time"

	"github.com/vitimonitor/vitimonitor/internal/cache"
	"github.com/vitimonitor/vitimonitor/internal/evaluate"
	"github.com/vitimonitor/vitimonitor/internal/ingest"
	"github.com/vitimonitor/vitimonitor/internal/planner"
	"github.com/vitimonitor/vitimonitor/internal/storage"
	"github.com/vitimonitor/vitimonitor/pkg/dedup"
)

// HealthReporter espone l'età dell'ultimo errore del mirror time-series.
type HealthReporter interface {
	LastErrorAge() time.Duration
}

type Service struct {
	store    storage.Store
	pipeline *ingest.Pipeline

	evaluator *evaluate.Evaluator
	stress    evaluate.StressThresholds
	planner   *planner.Planner
	runner    *planner.Runner

	cache   *cache.Cache // opzionale, nil-safe
	mirror  HealthReporter
	deduper *dedup.Deduper

	requestTimeout time.Duration
}

type Options struct {
	Store          storage.Store
	Pipeline       *ingest.Pipeline
	Evaluator      *evaluate.Evaluator
	Stress         evaluate.StressThresholds
	Planner        *planner.Planner
	Runner         *planner.Runner
	Cache          *cache.Cache
	Mirror         HealthReporter
	RequestTimeout time.Duration
}

func NewService(opts Options) *Service {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		store:          opts.Store,
		pipeline:       opts.Pipeline,
		evaluator:      opts.Evaluator,
		stress:         opts.Stress,
		planner:        opts.Planner,
		runner:         opts.Runner,
		cache:          opts.Cache,
		mirror:         opts.Mirror,
		deduper:        dedup.New(10*time.Minute, 20000),
		requestTimeout: timeout,
	}
}

// StartPlannerLoop avvia in background il ciclo periodico di pianificazione.
func (s *Service) StartPlannerLoop(ctx context.Context, interval time.Duration) {
	if s.runner == nil || interval <= 0 {
		return
	}
	go s.runner.Loop(ctx, interval)
}
