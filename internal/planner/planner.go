// Package planner converte le anomalie in attività pianificate per
// l'operatore, con soppressione dei duplicati e stato pending/completed.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vitimonitor/vitimonitor/internal/evaluate"
	"github.com/vitimonitor/vitimonitor/internal/metrics"
	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/storage"
)

// TriggerRules sono le soglie di generazione attività. Sottoinsieme
// intenzionalmente più stretto dei range statici del valutatore: i due set
// restano distinti, non vanno fusi.
type TriggerRules struct {
	TempAbove    float64
	HumAirBelow  float64
	HumSoilBelow float64
	LuxAbove     float64
}

func DefaultTriggerRules() TriggerRules {
	return TriggerRules{TempAbove: 30, HumAirBelow: 30, HumSoilBelow: 20, LuxAbove: 100000}
}

// kinds deriva i tipi di attività dalla lettura anomala.
func (t TriggerRules) kinds(r model.Reading) []model.ActivityKind {
	var out []model.ActivityKind
	if r.Temperature > t.TempAbove {
		out = append(out, model.KindTemperatureCheck)
	}
	if r.HumidityAir < t.HumAirBelow {
		out = append(out, model.KindIrrigation)
	}
	if r.HumiditySoil < t.HumSoilBelow {
		out = append(out, model.KindSoilMoistureCheck)
	}
	if r.Luminosity > t.LuxAbove {
		out = append(out, model.KindLuminosityCheck)
	}
	return out
}

type Planner struct {
	store storage.ActivityStore
	rules TriggerRules
	lag   time.Duration // scheduled_at = timestamp anomalia + lag
}

// DefaultLag è il "+2 giorni" del prototipo. Valore di policy, configurabile.
const DefaultLag = 48 * time.Hour

func NewPlanner(store storage.ActivityStore, rules TriggerRules, lag time.Duration) *Planner {
	if lag <= 0 {
		lag = DefaultLag
	}
	return &Planner{store: store, rules: rules, lag: lag}
}

// Plan deriva le attività dall'insieme di anomalie e le crea nello store.
// La chiave di deduplica (sensor_id, scheduled_at, kind) rende l'operazione
// idempotente: rilanciare Plan sulle stesse anomalie non crea duplicati.
// Un errore su una singola anomalia non blocca le altre.
// Ritorna le attività effettivamente create, ordinate per scheduled_at.
func (p *Planner) Plan(ctx context.Context, anomalies []evaluate.Anomaly) ([]model.Activity, error) {
	metrics.PlannerRuns.Inc()

	var (
		created []model.Activity
		errs    []error
	)
	for _, an := range anomalies {
		r := an.Reading
		scheduledAt := r.Timestamp.Add(p.lag).UTC()

		for _, kind := range p.rules.kinds(r) {
			a := model.Activity{
				ID:              uuid.NewString(),
				SourceReadingID: r.ID,
				Kind:            kind,
				Description:     kind.Description(r.Zone),
				Zone:            r.Zone,
				SensorID:        r.SensorID,
				Priority:        "high",
				AnomalyAt:       r.Timestamp.UTC(),
				ScheduledAt:     scheduledAt,
				Status:          model.StatusPending,
				CreatedAt:       time.Now().UTC(),
			}
			ok, err := p.store.CreateActivity(ctx, a)
			if err != nil {
				errs = append(errs, fmt.Errorf("plan %s for %s: %w", kind, r.SensorID, err))
				continue
			}
			if !ok {
				// duplicato soppresso: evento informativo, non un errore
				metrics.ActivitiesSuppressed.Inc()
				log.Printf("planner: duplicate suppressed sensor=%s kind=%s scheduled=%s",
					r.SensorID, kind, scheduledAt.Format(time.RFC3339))
				continue
			}
			metrics.ActivitiesCreated.WithLabelValues(string(kind)).Inc()
			created = append(created, a)
		}
	}

	sort.Slice(created, func(i, j int) bool { return created[i].ScheduledAt.Before(created[j].ScheduledAt) })
	return created, errors.Join(errs...)
}

// Complete conferma il completamento di un'attività da parte dell'operatore.
// Idempotente: la seconda conferma è un no-op, non un errore.
func (p *Planner) Complete(ctx context.Context, id string) error {
	changed, err := p.store.CompleteActivity(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		log.Printf("planner: activity %s already completed", id)
	}
	return nil
}
