package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitimonitor/vitimonitor/internal/model"
)

// DBTX è l'interfaccia minima condivisa da *pgxpool.Pool e pgx.Tx, così le
// stesse query funzionano dentro e fuori una transazione.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implementa Store su un database relazionale via pgx.
type Postgres struct {
	db DBTX
}

func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Connect apre il pool e verifica la connessione.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// schema replica lo schema append-only del prototipo: sensor_data con id
// autoincrementale e timestamp di inserzione di default, più zone_targets e
// activities con il vincolo di unicità della chiave di deduplica.
const schema = `
CREATE TABLE IF NOT EXISTS sensor_data (
	id            BIGSERIAL PRIMARY KEY,
	sensor_id     TEXT NOT NULL DEFAULT '',
	zone          TEXT NOT NULL DEFAULT '',
	temperature   DOUBLE PRECISION NOT NULL,
	humidity_air  DOUBLE PRECISION NOT NULL,
	humidity_soil DOUBLE PRECISION NOT NULL,
	luminosity    DOUBLE PRECISION NOT NULL,
	lat           DOUBLE PRECISION,
	lon           DOUBLE PRECISION,
	signature     TEXT NOT NULL DEFAULT '',
	manual        BOOLEAN NOT NULL DEFAULT FALSE,
	ts            TIMESTAMPTZ NOT NULL DEFAULT now(),
	inserted_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sensor_data_ts_idx ON sensor_data (ts DESC);

CREATE TABLE IF NOT EXISTS zone_targets (
	zone              TEXT PRIMARY KEY,
	temperature_opt   DOUBLE PRECISION NOT NULL,
	humidity_air_opt  DOUBLE PRECISION NOT NULL,
	humidity_soil_opt DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id           TEXT PRIMARY KEY,
	reading_id   BIGINT NOT NULL,
	kind         TEXT NOT NULL,
	description  TEXT NOT NULL,
	zone         TEXT NOT NULL,
	sensor_id    TEXT NOT NULL,
	priority     TEXT NOT NULL,
	anomaly_at   TIMESTAMPTZ NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS activities_dedup_idx
	ON activities (sensor_id, scheduled_at, kind);
`

// EnsureSchema crea le tabelle se mancanti. Idempotente, eseguita all'avvio.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (p *Postgres) InsertReading(ctx context.Context, r model.Reading) (int64, error) {
	var lat, lon *float64
	if r.GPS != nil {
		lat, lon = &r.GPS.Lat, &r.GPS.Lon
	}
	var id int64
	err := p.db.QueryRow(ctx, `
		INSERT INTO sensor_data
			(sensor_id, zone, temperature, humidity_air, humidity_soil,
			 luminosity, lat, lon, signature, manual, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id`,
		r.SensorID, r.Zone, r.Temperature, r.HumidityAir, r.HumiditySoil,
		r.Luminosity, lat, lon, r.Signature, r.Manual, r.Timestamp.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return id, nil
}

func (p *Postgres) ListReadings(ctx context.Context, f ReadingFilter) ([]model.Reading, error) {
	to := f.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	rows, err := p.db.Query(ctx, `
		SELECT id, sensor_id, zone, temperature, humidity_air, humidity_soil,
		       luminosity, lat, lon, signature, manual, ts
		FROM sensor_data
		WHERE ts >= $1 AND ts <= $2
		  AND ($3 = '' OR sensor_id = $3)
		  AND ($4 = '' OR zone = $4)
		ORDER BY ts DESC`,
		f.From.UTC(), to, f.SensorID, f.Zone)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		var (
			r        model.Reading
			lat, lon *float64
		)
		if err := rows.Scan(&r.ID, &r.SensorID, &r.Zone, &r.Temperature,
			&r.HumidityAir, &r.HumiditySoil, &r.Luminosity,
			&lat, &lon, &r.Signature, &r.Manual, &r.Timestamp); err != nil {
			return nil, wrapUnavailable(err)
		}
		if lat != nil && lon != nil {
			r.GPS = &model.GPS{Lat: *lat, Lon: *lon}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}
	return out, nil
}

func (p *Postgres) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM sensor_data`).Scan(&n); err != nil {
		return 0, wrapUnavailable(err)
	}
	return n, nil
}

func (p *Postgres) UpsertZoneTarget(ctx context.Context, t model.ZoneTarget) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO zone_targets (zone, temperature_opt, humidity_air_opt, humidity_soil_opt)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (zone) DO UPDATE SET
			temperature_opt = EXCLUDED.temperature_opt,
			humidity_air_opt = EXCLUDED.humidity_air_opt,
			humidity_soil_opt = EXCLUDED.humidity_soil_opt`,
		t.Zone, t.TemperatureOpt, t.HumidityAirOpt, t.HumiditySoilOpt)
	if err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (p *Postgres) ListZoneTargets(ctx context.Context) ([]model.ZoneTarget, error) {
	rows, err := p.db.Query(ctx, `
		SELECT zone, temperature_opt, humidity_air_opt, humidity_soil_opt
		FROM zone_targets ORDER BY zone`)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	var out []model.ZoneTarget
	for rows.Next() {
		var t model.ZoneTarget
		if err := rows.Scan(&t.Zone, &t.TemperatureOpt, &t.HumidityAirOpt, &t.HumiditySoilOpt); err != nil {
			return nil, wrapUnavailable(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}
	return out, nil
}

// CreateActivity si appoggia all'indice unico sulla chiave di deduplica:
// ON CONFLICT DO NOTHING rende l'inserimento idempotente anche con più
// pianificatori concorrenti.
func (p *Postgres) CreateActivity(ctx context.Context, a model.Activity) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO activities
			(id, reading_id, kind, description, zone, sensor_id, priority,
			 anomaly_at, scheduled_at, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (sensor_id, scheduled_at, kind) DO NOTHING`,
		a.ID, a.SourceReadingID, a.Kind, a.Description, a.Zone, a.SensorID,
		a.Priority, a.AnomalyAt.UTC(), a.ScheduledAt.UTC(), a.Status, a.CreatedAt.UTC())
	if err != nil {
		return false, wrapUnavailable(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) ListActivities(ctx context.Context, status *model.ActivityStatus) ([]model.Activity, error) {
	st := ""
	if status != nil {
		st = string(*status)
	}
	rows, err := p.db.Query(ctx, `
		SELECT id, reading_id, kind, description, zone, sensor_id, priority,
		       anomaly_at, scheduled_at, status, created_at, completed_at
		FROM activities
		WHERE ($1 = '' OR status = $1)
		ORDER BY scheduled_at ASC`, st)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.SourceReadingID, &a.Kind, &a.Description,
			&a.Zone, &a.SensorID, &a.Priority, &a.AnomalyAt, &a.ScheduledAt,
			&a.Status, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, wrapUnavailable(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}
	return out, nil
}

// CompleteActivity aggiorna solo se ancora pending: la seconda conferma di
// due operatori concorrenti non tocca righe ed è un no-op.
func (p *Postgres) CompleteActivity(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE activities SET status = $2, completed_at = now()
		WHERE id = $1 AND status = $3`,
		id, model.StatusCompleted, model.StatusPending)
	if err != nil {
		return false, wrapUnavailable(err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Nessuna riga toccata: distinguiamo "già completata" da "inesistente".
	var exists bool
	if err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM activities WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, wrapUnavailable(err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func wrapUnavailable(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
