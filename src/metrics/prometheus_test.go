package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/please-build/runfiles/src/core"
)

const url = "http://localhost:9999"
const verySlow = 10 * time.Second // Long enough that the push deadline never fires in tests.

func TestNoMetrics(t *testing.T) {
	m := initMetrics(url, verySlow)
	assert.Equal(t, 0, m.errors)
	assert.Equal(t, 0, m.pushes)
	m.stop()
	assert.Equal(t, 0, m.errors, "Stop should not push when there aren't metrics")
}

func TestSomeMetrics(t *testing.T) {
	m := initMetrics(url, verySlow)
	assert.Equal(t, 0, m.errors)
	assert.Equal(t, 0, m.pushes)
	m.record(testMapping(t), time.Millisecond, nil)
	m.stop()
	assert.Equal(t, 1, m.errors, "Stop should push once more when there are metrics")
}

func TestRecordFailedMapping(t *testing.T) {
	m := initMetrics(url, verySlow)
	m.record(nil, time.Millisecond, fmt.Errorf("computer says no"))
	m.stop()
	assert.Equal(t, 1, m.errors)
}

func TestOutcomes(t *testing.T) {
	assert.Equal(t, "built", outcome(nil))
	assert.Equal(t, "conflict", outcome(&core.PathConflictError{}))
	assert.Equal(t, "reserved_path", outcome(&core.ReservedPathError{}))
	assert.Equal(t, "error", outcome(fmt.Errorf("computer says no")))
}

func TestDeadline(t *testing.T) {
	err := deadline(func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}, time.Millisecond)
	assert.Error(t, err)
	assert.NoError(t, deadline(func() error { return nil }, verySlow))
}

func TestExportedFunctions(t *testing.T) {
	// For various reasons it's important that this is the only test that uses the global singleton.
	config := core.DefaultConfiguration()
	config.Metrics.PushGatewayURL = url
	InitFromConfig(config)
	Record(testMapping(t), time.Millisecond, nil)
	Stop()
	assert.Equal(t, 1, m.errors)
}

// testMapping resolves a small runfiles set into a mapping for the tests to record.
func testMapping(t *testing.T) *core.Mapping {
	runfiles := core.NewRunfilesBuilder("test_workspace", false).
		AddArtifact(core.NewArtifact(core.SourceRoot, "src/metrics/prometheus.go")).
		MustBuild()
	mapping, err := runfiles.BuildMapping(nil)
	assert.NoError(t, err)
	return mapping
}
