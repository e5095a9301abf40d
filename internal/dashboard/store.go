package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"salesflow/internal/metrics"
)

// ring is a bounded, concurrency-safe history keeping the newest items.
type ring[T any] struct {
	mu    sync.RWMutex
	items []T
	limit int
}

func newRing[T any](limit int) *ring[T] {
	if limit <= 0 {
		limit = 200
	}
	return &ring[T]{limit: limit}
}

func (r *ring[T]) add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	if len(r.items) > r.limit {
		r.items = append([]T(nil), r.items[len(r.items)-r.limit:]...)
	}
}

func (r *ring[T]) filter(keep func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.items))
	for _, item := range r.items {
		if keep == nil || keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// metricStore keeps recent metric events for /api/metrics.
type metricStore struct {
	*ring[metrics.Metric]
}

func newMetricStore(limit int) *metricStore {
	return &metricStore{ring: newRing[metrics.Metric](limit)}
}

func (s *metricStore) handle(metric metrics.Metric) {
	s.add(metric)
}

// snapshot returns stored metrics, optionally only one component's.
func (s *metricStore) snapshot(component string) []metrics.Metric {
	if component == "" {
		return s.filter(nil)
	}
	return s.filter(func(m metrics.Metric) bool { return m.Component == component })
}

type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	severity  logrus.Level
}

// logStore is a logrus hook keeping the latest log lines for /api/logs.
type logStore struct {
	*ring[logRecord]
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	ls := &logStore{ring: newRing[logRecord](limit)}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		severity:  entry.Level,
	}
	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}

	if len(entry.Data) > 0 {
		record.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}
			switch val := v.(type) {
			case error:
				record.Fields[k] = val.Error()
			case fmt.Stringer:
				record.Fields[k] = val.String()
			default:
				record.Fields[k] = val
			}
		}
	}

	s.add(record)
	return nil
}

// snapshot returns stored records at or above minLevel ("" keeps all).
func (s *logStore) snapshot(minLevel string) []logRecord {
	if minLevel == "" {
		return s.filter(nil)
	}
	threshold, err := logrus.ParseLevel(minLevel)
	if err != nil {
		return s.filter(nil)
	}
	return s.filter(func(r logRecord) bool { return r.severity <= threshold })
}

func (s *logStore) close() {
	s.enabled.Store(false)
}
