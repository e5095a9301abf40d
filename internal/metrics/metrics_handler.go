package metrics

import (
	"sync"
	"time"

	"salesflow/logger"
)

// Metric is a structured metric event emitted within the service.
type Metric struct {
	Timestamp time.Time     `json:"timestamp"`
	Component string        `json:"component"`
	Name      string        `json:"name"`
	Value     interface{}   `json:"value"`
	Type      string        `json:"type"`
	Fields    logger.Fields `json:"fields,omitempty"`
}

// MetricHandler consumes metric events, e.g. the dashboard feed.
type MetricHandler func(Metric)

// MetricHandlerID identifies a registered handler.
type MetricHandlerID uint64

var (
	metricHandlersMu    sync.RWMutex
	metricHandlers      = make(map[MetricHandlerID]MetricHandler)
	nextMetricHandlerID MetricHandlerID
)

// RegisterMetricHandler registers a handler that receives every emitted
// metric. A nil handler yields the zero id.
func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}

	metricHandlersMu.Lock()
	defer metricHandlersMu.Unlock()

	nextMetricHandlerID++
	id := nextMetricHandlerID
	metricHandlers[id] = handler
	return id
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id == 0 {
		return
	}

	metricHandlersMu.Lock()
	delete(metricHandlers, id)
	metricHandlersMu.Unlock()
}

// EmitMetric logs the metric, publishes numeric values to CloudWatch through
// the logger and hands the event to registered handlers.
func EmitMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) {
	recordMetric(log, component, name, value, metricType, fields)
}

func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	userFields := cloneFields(fields)
	log.LogMetric(component, name, value, metricType, cloneFields(fields))

	metric := Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    userFields,
	}

	dispatchMetric(metric)
	return metric, true
}

func dispatchMetric(metric Metric) {
	metricHandlersMu.RLock()
	if len(metricHandlers) == 0 {
		metricHandlersMu.RUnlock()
		return
	}

	handlers := make([]MetricHandler, 0, len(metricHandlers))
	for _, handler := range metricHandlers {
		handlers = append(handlers, handler)
	}
	metricHandlersMu.RUnlock()

	for _, handler := range handlers {
		handler(metric)
	}
}

func cloneFields(fields logger.Fields) logger.Fields {
	copied := make(logger.Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}
