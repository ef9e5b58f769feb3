package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitimonitor/vitimonitor/internal/model"
)

// Memory è uno store in memoria con le stesse garanzie d'interfaccia di
// Postgres. Serve i test e l'avvio senza infrastruttura.
type Memory struct {
	mu         sync.RWMutex
	nextID     int64
	readings   []model.Reading
	targets    map[string]model.ZoneTarget
	activities map[string]*model.Activity
	dedup      map[activityKey]string // chiave di unicità -> activity id
}

type activityKey struct {
	sensorID    string
	scheduledAt int64 // unix nanos, per confronto esatto
	kind        model.ActivityKind
}

func NewMemory() *Memory {
	return &Memory{
		targets:    make(map[string]model.ZoneTarget),
		activities: make(map[string]*model.Activity),
		dedup:      make(map[activityKey]string),
	}
}

func (m *Memory) InsertReading(_ context.Context, r model.Reading) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.readings = append(m.readings, r)
	return r.ID, nil
}

func (m *Memory) ListReadings(_ context.Context, f ReadingFilter) ([]model.Reading, error) {
	to := f.To
	if to.IsZero() {
		to = time.Now().UTC()
	}

	m.mu.RLock()
	out := make([]model.Reading, 0, len(m.readings))
	for _, r := range m.readings {
		if r.Timestamp.Before(f.From) || r.Timestamp.After(to) {
			continue
		}
		if f.SensorID != "" && r.SensorID != f.SensorID {
			continue
		}
		if f.Zone != "" && r.Zone != f.Zone {
			continue
		}
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) CountReadings(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.readings)), nil
}

func (m *Memory) UpsertZoneTarget(_ context.Context, t model.ZoneTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.Zone] = t
	return nil
}

func (m *Memory) ListZoneTargets(_ context.Context) ([]model.ZoneTarget, error) {
	m.mu.RLock()
	out := make([]model.ZoneTarget, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, t)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out, nil
}

func (m *Memory) CreateActivity(_ context.Context, a model.Activity) (bool, error) {
	key := activityKey{a.SensorID, a.ScheduledAt.UnixNano(), a.Kind}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.dedup[key]; exists {
		return false, nil
	}
	cp := a
	m.activities[a.ID] = &cp
	m.dedup[key] = a.ID
	return true, nil
}

func (m *Memory) ListActivities(_ context.Context, status *model.ActivityStatus) ([]model.Activity, error) {
	m.mu.RLock()
	out := make([]model.Activity, 0, len(m.activities))
	for _, a := range m.activities {
		if status != nil && a.Status != *status {
			continue
		}
		out = append(out, *a)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *Memory) CompleteActivity(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.activities[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status == model.StatusCompleted {
		return false, nil
	}
	now := time.Now().UTC()
	a.Status = model.StatusCompleted
	a.CompletedAt = &now
	return true, nil
}
