// Package metrics contains support for reporting metrics to an external server,
// currently a Prometheus pushgateway. The binaries in this repo are transient
// processes, so we can't wait around for Prometheus to scrape us; we push a final
// set of metrics on the way out instead.
package metrics

import (
	"errors"
	"fmt"
	"os/user"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"gopkg.in/op/go-logging.v1"

	"github.com/please-build/runfiles/src/core"
)

var log = logging.MustGetLogger("metrics")

type metrics struct {
	url              string
	newMetrics       bool
	errors           int
	pushes           int
	timeout          time.Duration
	mappingCounter   *prometheus.CounterVec
	mappingHistogram prometheus.Histogram
	entriesHistogram prometheus.Histogram
}

// m is the singleton metrics instance.
var m *metrics

// InitFromConfig sets up the initial metrics from the configuration.
func InitFromConfig(config *core.Configuration) {
	if config.Metrics.PushGatewayURL != "" {
		m = initMetrics(config.Metrics.PushGatewayURL, time.Duration(config.Metrics.PushTimeout)*time.Second)
		prometheus.MustRegister(m.mappingCounter)
		prometheus.MustRegister(m.mappingHistogram)
		prometheus.MustRegister(m.entriesHistogram)
	}
}

// initMetrics initialises a new metrics instance.
// This is deliberately not exposed but is useful for testing.
func initMetrics(url string, timeout time.Duration) *metrics {
	u, err := user.Current()
	if err != nil {
		log.Warning("Can't determine current user name for metrics")
		u = &user.User{Username: "unknown"}
	}
	constLabels := prometheus.Labels{
		"user": u.Username,
		"arch": runtime.GOOS + "_" + runtime.GOARCH,
	}

	m = &metrics{
		url:     url,
		timeout: timeout,
	}

	// Count of mapping computations by outcome.
	m.mappingCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "runfiles_mappings_built",
		Help:        "Count of runfiles mapping computations by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	// Durations of individual mapping computations.
	m.mappingHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "runfiles_mapping_durations_histogram",
		Help:        "Durations of individual runfiles mapping computations",
		Buckets:     prometheus.LinearBuckets(0, 0.01, 100),
		ConstLabels: constLabels,
	})

	// Sizes of computed mappings.
	m.entriesHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "runfiles_mapping_entries_histogram",
		Help:        "Number of entries in computed runfiles mappings",
		Buckets:     prometheus.ExponentialBuckets(1, 4, 10),
		ConstLabels: constLabels,
	})

	return m
}

// Record records metrics for one mapping computation.
func Record(mapping *core.Mapping, duration time.Duration, err error) {
	if m != nil {
		m.record(mapping, duration, err)
	}
}

func (m *metrics) record(mapping *core.Mapping, duration time.Duration, err error) {
	m.mappingCounter.WithLabelValues(outcome(err)).Inc()
	if err == nil && mapping != nil {
		m.mappingHistogram.Observe(duration.Seconds())
		m.entriesHistogram.Observe(float64(mapping.Len()))
	}
	m.newMetrics = true
}

// outcome buckets a mapping computation result for the counter label.
func outcome(err error) string {
	var conflictErr *core.PathConflictError
	var reservedErr *core.ReservedPathError
	switch {
	case err == nil:
		return "built"
	case errors.As(err, &conflictErr):
		return "conflict"
	case errors.As(err, &reservedErr):
		return "reserved_path"
	}
	return "error"
}

// Stop pushes any final metrics to the gateway before returning.
func Stop() {
	if m != nil {
		m.stop()
	}
}

func (m *metrics) stop() {
	if m.newMetrics {
		m.errors = m.pushMetrics()
	}
}

// deadline applies a deadline to an arbitrary function and returns when either the
// function completes or the deadline expires.
func deadline(f func() error, timeout time.Duration) error {
	c := make(chan error)
	go func() {
		c <- f()
	}()
	select {
	case err := <-c:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("Metrics push timed out")
	}
}

// pushMetrics attempts to send the new metrics to the server. It returns the new
// number of errors.
func (m *metrics) pushMetrics() int {
	start := time.Now()
	m.newMetrics = false
	if err := deadline(func() error {
		return push.New(m.url, "runfiles").Gatherer(prometheus.DefaultGatherer).Push()
	}, m.timeout); err != nil {
		log.Warning("Could not push metrics to the gateway: %s", err)
		m.newMetrics = true
		return m.errors + 1
	}
	m.pushes++
	log.Debug("Push #%d of metrics in %0.3fs", m.pushes, time.Since(start).Seconds())
	return 0
}
