// Package metric holds the prometheus collectors for commands and the web
// surface.
package metric

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command results used as the result label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	events          *prometheus.GaugeVec
	requests        *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// New registers the collectors with reg. A collector that is already
// registered is reused, so New may be called more than once per registry.
// A nil reg means the default registry.
func New(reg *prometheus.Registry, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		r prometheus.Registerer = prometheus.DefaultRegisterer
		g prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		r, g = reg, reg
	}

	m := &Metrics{gatherer: g}
	m.commands = register(r, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "almanac_commands_total",
		Help: "Commands executed, by command and result",
	}, []string{"command", "result"}))
	m.commandDuration = register(r, logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "almanac_command_duration_seconds",
		Help:    "Command execution latency",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"command"}))
	m.events = register(r, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "almanac_calendar_events",
		Help: "Number of events per calendar, occurrences expanded",
	}, []string{"calendar"}))
	m.requests = register(r, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "almanac_http_requests_total",
		Help: "HTTP requests, by method and status",
	}, []string{"method", "status"}))
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, logger *slog.Logger, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		logger.Error("can't register metric", "error", err)
	}
	return c
}

// ObserveCommand counts one executed command.
func (m *Metrics) ObserveCommand(command string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.commands.WithLabelValues(command, result).Inc()
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// SetEvents records the event count of a calendar.
func (m *Metrics) SetEvents(calendar string, n int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(calendar).Set(float64(n))
}

// ForgetCalendar drops the gauge of a renamed calendar.
func (m *Metrics) ForgetCalendar(calendar string) {
	if m == nil {
		return
	}
	m.events.DeleteLabelValues(calendar)
}

// ObserveRequest counts one HTTP request.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
