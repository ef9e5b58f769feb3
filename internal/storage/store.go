// Package storage definisce il confine di portabilità verso la persistenza:
// le stesse interfacce sono servite dallo store Postgres e da quello in
// memoria, così pipeline, valutatore e pianificatore non dipendono dal motore.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vitimonitor/vitimonitor/internal/model"
)

// ErrUnavailable segnala che lo store non è raggiungibile o la transazione è
// fallita: niente è stato committato, il chiamante può ritentare.
var ErrUnavailable = errors.New("store unavailable")

// ErrNotFound segnala che l'entità richiesta non esiste.
var ErrNotFound = errors.New("not found")

// ReadingFilter delimita una scansione di letture. Bound a zero valgono
// "dall'epoca" e "fino ad adesso".
type ReadingFilter struct {
	From     time.Time
	To       time.Time
	SensorID string
	Zone     string
}

// ReadingStore persiste le letture in append-only: un insert atomico per
// lettura accettata, mai update né delete.
type ReadingStore interface {
	// InsertReading inserisce una nuova riga e ritorna l'id assegnato.
	InsertReading(ctx context.Context, r model.Reading) (int64, error)
	// ListReadings ritorna le letture nel range, ordinate per timestamp
	// decrescente.
	ListReadings(ctx context.Context, f ReadingFilter) ([]model.Reading, error)
	// CountReadings ritorna il numero totale di righe persistite.
	CountReadings(ctx context.Context) (int64, error)
}

// ZoneTargetStore gestisce i valori ottimali per zona (una riga per zona).
type ZoneTargetStore interface {
	UpsertZoneTarget(ctx context.Context, t model.ZoneTarget) error
	ListZoneTargets(ctx context.Context) ([]model.ZoneTarget, error)
}

// ActivityStore persiste le attività pianificate. La chiave di deduplica
// (sensor_id, scheduled_at, kind) è un vero vincolo di unicità: CreateActivity
// è idempotente anche sotto concorrenza.
type ActivityStore interface {
	// CreateActivity inserisce l'attività; ritorna false (senza errore)
	// quando un'attività con la stessa chiave esiste già.
	CreateActivity(ctx context.Context, a model.Activity) (bool, error)
	// ListActivities ritorna le attività ordinate per scheduled_at
	// crescente, opzionalmente filtrate per status.
	ListActivities(ctx context.Context, status *model.ActivityStatus) ([]model.Activity, error)
	// CompleteActivity marca pending -> completed. Ritorna false se era già
	// completata (no-op idempotente) e ErrNotFound se l'id non esiste.
	CompleteActivity(ctx context.Context, id string) (bool, error)
}

// Store raggruppa le tre interfacce: sia Postgres che Memory la soddisfano.
type Store interface {
	ReadingStore
	ZoneTargetStore
	ActivityStore
}
