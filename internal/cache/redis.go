// Package cache è una cache Redis opzionale davanti allo store: riassunti
// delle anomalie recenti per zona e conteggio righe per /status. Tutte le
// operazioni degradano in silenzio quando Redis non è configurato o non
// risponde: la fonte di verità resta sempre lo store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vitimonitor/vitimonitor/internal/evaluate"
	"github.com/vitimonitor/vitimonitor/internal/metrics"
	"github.com/vitimonitor/vitimonitor/internal/model"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		Password:   password,
		DB:         db,
		MaxRetries: 3,
	})
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

// AnomalySummary è la voce compatta salvata nella cache.
type AnomalySummary struct {
	SensorID  string       `json:"sensor_id"`
	Zone      string       `json:"zone"`
	Metric    model.Metric `json:"metric"`
	Value     float64      `json:"value"`
	Timestamp time.Time    `json:"timestamp"`
}

// RecordAnomaly aggiunge l'anomalia al sorted set della zona, ordinato per
// timestamp della lettura.
func (c *Cache) RecordAnomaly(ctx context.Context, a evaluate.Anomaly) {
	if c == nil {
		return
	}
	summary := AnomalySummary{
		SensorID:  a.Reading.SensorID,
		Zone:      a.Reading.Zone,
		Metric:    a.Metric,
		Value:     a.Value,
		Timestamp: a.Reading.Timestamp,
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}

	key := fmt.Sprintf("anomalies:%s", a.Reading.Zone)
	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(a.Reading.Timestamp.Unix()), Member: string(data)})
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.CacheOperations.WithLabelValues("record_anomaly", "error").Inc()
		return
	}
	metrics.CacheOperations.WithLabelValues("record_anomaly", "success").Inc()
}

// RecentAnomalies ritorna le ultime anomalie registrate per la zona, dalla
// più recente.
func (c *Cache) RecentAnomalies(ctx context.Context, zone string, limit int) ([]AnomalySummary, error) {
	if c == nil {
		return nil, nil
	}
	key := fmt.Sprintf("anomalies:%s", zone)
	members, err := c.client.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		metrics.CacheOperations.WithLabelValues("recent_anomalies", "error").Inc()
		return nil, fmt.Errorf("get recent anomalies: %w", err)
	}
	metrics.CacheOperations.WithLabelValues("recent_anomalies", "success").Inc()

	out := make([]AnomalySummary, 0, len(members))
	for _, m := range members {
		var s AnomalySummary
		if err := json.Unmarshal([]byte(m), &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

const recordCountKey = "status:records"

// RecordCount ritorna il conteggio cachato; ok=false su miss o errore.
func (c *Cache) RecordCount(ctx context.Context) (int64, bool) {
	if c == nil {
		return 0, false
	}
	n, err := c.client.Get(ctx, recordCountKey).Int64()
	if err != nil {
		if err != redis.Nil {
			metrics.CacheOperations.WithLabelValues("record_count", "error").Inc()
		}
		return 0, false
	}
	metrics.CacheOperations.WithLabelValues("record_count", "success").Inc()
	return n, true
}

// SetRecordCount aggiorna il conteggio con un TTL breve: è solo un riparo
// per lo store, la scadenza garantisce freschezza.
func (c *Cache) SetRecordCount(ctx context.Context, n int64) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, recordCountKey, n, 10*time.Second).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
