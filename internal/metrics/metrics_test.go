package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"salesflow/logger"
)

func resetMetricHandlers() {
	metricHandlersMu.Lock()
	metricHandlers = make(map[MetricHandlerID]MetricHandler)
	nextMetricHandlerID = 0
	metricHandlersMu.Unlock()
}

func quietLogger() *logger.Log {
	log := logger.Logger()
	log.SetOutput(&bytes.Buffer{})
	return log
}

func TestRegisterMetricHandlerReturnsUniqueIDs(t *testing.T) {
	resetMetricHandlers()

	id := RegisterMetricHandler(func(Metric) {})
	if id == 0 {
		t.Fatalf("expected non-zero handler id")
	}
	second := RegisterMetricHandler(func(Metric) {})
	if second == 0 || second == id {
		t.Fatalf("expected unique handler id")
	}
	if RegisterMetricHandler(nil) != 0 {
		t.Fatalf("expected zero id for nil handler")
	}
}

func TestEmitMetricDispatchesToHandlers(t *testing.T) {
	resetMetricHandlers()

	events := make(chan Metric, 1)
	id := RegisterMetricHandler(func(m Metric) { events <- m })
	t.Cleanup(func() { UnregisterMetricHandler(id) })

	fields := logger.Fields{"endpoint": "stats"}
	EmitMetric(quietLogger(), "marketplace", "request_count", 3, "gauge", fields)

	select {
	case event := <-events:
		if event.Component != "marketplace" || event.Name != "request_count" || event.Type != "gauge" {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.Fields["endpoint"] != "stats" {
			t.Fatalf("fields not propagated: %v", event.Fields)
		}
		if _, ok := event.Fields["metric"]; ok {
			t.Fatalf("logger bookkeeping leaked into event fields: %v", event.Fields)
		}
	case <-time.After(time.Second):
		t.Fatal("metric handler not invoked")
	}
}

func TestUnregisterMetricHandler(t *testing.T) {
	resetMetricHandlers()

	called := false
	id := RegisterMetricHandler(func(Metric) { called = true })
	UnregisterMetricHandler(id)

	EmitMetric(quietLogger(), "poller", "cycle", 1, "", nil)
	if called {
		t.Fatal("unregistered handler was invoked")
	}
}

func TestReportLimitFromStatus(t *testing.T) {
	resetMetricHandlers()

	var names []string
	RegisterMetricHandler(func(m Metric) { names = append(names, m.Name) })

	log := quietLogger()
	if !ReportLimitFromStatus(log, "stats", http.StatusTooManyRequests) {
		t.Fatal("429 should be reported")
	}
	if !ReportLimitFromStatus(log, "events", http.StatusForbidden) {
		t.Fatal("403 should be reported")
	}
	if ReportLimitFromStatus(log, "events", http.StatusInternalServerError) {
		t.Fatal("500 is not a limit signal")
	}
	if len(names) != 2 || names[0] != "rate_limit_exceeded" || names[1] != "access_blocked" {
		t.Fatalf("unexpected metrics: %v", names)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveCycle("success", 150*time.Millisecond, 4)
	ObserveRequest("stats", 200, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"salesflow_cycles_total", "salesflow_sales_fetched 4", "salesflow_marketplace_requests_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}
