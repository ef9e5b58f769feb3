package storage

import (
	"context"
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sony/gobreaker"

	"github.com/vitimonitor/vitimonitor/internal/model"
)

// InfluxMirror replica ogni lettura accettata come punto time-series per le
// dashboard. È best-effort: un mirror giù non deve mai far fallire
// l'ingestione, quindi le scritture passano da un circuit breaker e l'errore
// viene solo loggato e tracciato per /healthz.
type InfluxMirror struct {
	client  influxdb2.Client
	write   api.WriteAPIBlocking
	breaker *gobreaker.CircuitBreaker
	measure string

	mu      sync.RWMutex
	lastErr time.Time
}

func NewInfluxMirror(url, token, org, bucket, measurement string) *InfluxMirror {
	client := influxdb2.NewClient(url, token)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influx-mirror",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	return &InfluxMirror{
		client:  client,
		write:   client.WriteAPIBlocking(org, bucket),
		breaker: cb,
		measure: measurement,
		// di default "lontano nel tempo"
		lastErr: time.Now().Add(-24 * time.Hour),
	}
}

// MirrorReading scrive il punto; gli errori non risalgono al chiamante.
func (m *InfluxMirror) MirrorReading(ctx context.Context, id int64, r model.Reading) {
	if m == nil {
		return
	}
	tags := map[string]string{
		"sensor_id": r.SensorID,
		"zone":      r.Zone,
	}
	fields := map[string]interface{}{
		"reading_id":    id,
		"temperature":   r.Temperature,
		"humidity_air":  r.HumidityAir,
		"humidity_soil": r.HumiditySoil,
		"luminosity":    r.Luminosity,
		"manual":        r.Manual,
	}
	point := influxdb2.NewPoint(m.measure, tags, fields, r.Timestamp)

	_, err := m.breaker.Execute(func() (any, error) {
		return nil, m.write.WritePoint(ctx, point)
	})
	if err != nil {
		m.mu.Lock()
		m.lastErr = time.Now()
		m.mu.Unlock()
		log.Printf("influx mirror: write error: %v", err)
	}
}

// LastErrorAge ritorna da quanto tempo non si verificano errori di scrittura.
func (m *InfluxMirror) LastErrorAge() time.Duration {
	if m == nil {
		return 99999 * time.Hour
	}
	m.mu.RLock()
	t := m.lastErr
	m.mu.RUnlock()
	return time.Since(t)
}

func (m *InfluxMirror) Close() {
	if m != nil {
		m.client.Close()
	}
}
