package gatekit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAccessMonitorCounters tests per-outcome accounting
func TestAccessMonitorCounters(t *testing.T) {
	monitor := newAccessMonitor()

	monitor.recordGrant(2 * time.Millisecond)
	monitor.recordGrant(4 * time.Millisecond)
	monitor.recordDenial(DenyNoToken, time.Millisecond)
	monitor.recordDenial(DenyInvalidToken, 9*time.Millisecond)
	monitor.recordStoreFailure(time.Millisecond)

	metrics := monitor.getMetrics()
	assert.Equal(t, int64(5), metrics.TotalDecisions)
	assert.Equal(t, int64(2), metrics.Granted)
	assert.Equal(t, int64(2), metrics.Denied)
	assert.Equal(t, int64(1), metrics.DeniedNoToken)
	assert.Equal(t, int64(1), metrics.DeniedInvalid)
	assert.Equal(t, int64(1), metrics.StoreFailures)
	assert.Equal(t, 9*time.Millisecond, metrics.MaxDuration)

	// 17ms over 5 decisions.
	assert.Equal(t, 17*time.Millisecond/5, metrics.AverageDuration)
}

// TestAccessMonitorEmpty tests the zero state has no division surprises
func TestAccessMonitorEmpty(t *testing.T) {
	monitor := newAccessMonitor()

	metrics := monitor.getMetrics()
	assert.Zero(t, metrics.TotalDecisions)
	assert.Zero(t, metrics.AverageDuration)
	assert.Zero(t, metrics.MaxDuration)
	assert.False(t, metrics.LastReset.IsZero())
}

// TestAccessMonitorReset tests that reset clears counters and stamps the
// reset time
func TestAccessMonitorReset(t *testing.T) {
	monitor := newAccessMonitor()
	monitor.recordGrant(time.Millisecond)
	before := monitor.getMetrics().LastReset

	time.Sleep(time.Millisecond)
	monitor.reset()

	metrics := monitor.getMetrics()
	assert.Zero(t, metrics.TotalDecisions)
	assert.Zero(t, metrics.Granted)
	assert.Zero(t, metrics.MaxDuration)
	assert.True(t, metrics.LastReset.After(before))
}

// TestAccessMonitorConcurrent tests recording from many goroutines
func TestAccessMonitorConcurrent(t *testing.T) {
	monitor := newAccessMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.recordGrant(time.Millisecond)
			monitor.recordDenial(DenyInvalidToken, time.Millisecond)
		}()
	}
	wg.Wait()

	metrics := monitor.getMetrics()
	assert.Equal(t, int64(100), metrics.TotalDecisions)
	assert.Equal(t, int64(50), metrics.Granted)
	assert.Equal(t, int64(50), metrics.DeniedInvalid)
}
