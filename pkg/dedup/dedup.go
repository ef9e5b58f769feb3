// Package dedup fornisce un filtro TTL per scartare le redelivery QoS1
// identiche sul percorso MQTT. Non è la deduplica delle letture (che per
// contratto non esiste): filtra solo le riconsegne del medesimo messaggio.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// Seen ritorna true se l'id è stato marcato di recente. Non marca: così un
// payload il cui insert è fallito resta ritentabile alla redelivery
// successiva (Mark va chiamata solo a ingest riuscito).
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[id]
	return ok && time.Now().Before(exp)
}

// Mark registra l'id come processato per la durata del TTL.
func (d *Deduper) Mark(id string) {
	if id == "" {
		return
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		for k, v := range d.seen {
			if now.After(v) {
				delete(d.seen, k)
			}
			if len(d.seen) <= d.max {
				break
			}
		}
	}
}
