package metric

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestObserveCommand(t *testing.T) {
	m := New(prometheus.NewRegistry(), quiet)

	m.ObserveCommand("create event", nil, time.Millisecond)
	m.ObserveCommand("create event", nil, time.Millisecond)
	m.ObserveCommand("create event", errors.New("conflict"), time.Millisecond)

	if got := testutil.ToFloat64(m.commands.WithLabelValues("create event", ResultOK)); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues("create event", ResultError)); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestNewTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, quiet)
	b := New(reg, quiet)

	a.SetEvents("work", 3)
	if got := testutil.ToFloat64(b.events.WithLabelValues("work")); got != 3 {
		t.Errorf("events = %v, want 3", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("exit", nil, 0)
	m.SetEvents("x", 1)
	m.ForgetCalendar("x")
	m.ObserveRequest("GET", 200)
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry(), quiet)
	m.ObserveRequest("GET", 200)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `almanac_http_requests_total{method="GET",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}
