package gatekit

import (
	"sync"
	"time"
)

// AccessMetrics provides authorization decision statistics for a Middleware.
type AccessMetrics struct {
	TotalDecisions  int64         `json:"total_decisions"`
	Granted         int64         `json:"granted"`
	Denied          int64         `json:"denied"`
	DeniedNoToken   int64         `json:"denied_no_token"`
	DeniedInvalid   int64         `json:"denied_invalid_token"`
	StoreFailures   int64         `json:"store_failures"`
	AverageDuration time.Duration `json:"average_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	LastReset       time.Time     `json:"last_reset"`
}

// accessMonitor holds the internal decision monitoring state. Pass-through
// requests for unprotected paths are not decisions and are not recorded.
type accessMonitor struct {
	mu            sync.Mutex
	granted       int64
	deniedNoToken int64
	deniedInvalid int64
	storeFailures int64
	totalDuration time.Duration
	maxDuration   time.Duration
	lastReset     time.Time
}

func newAccessMonitor() *accessMonitor {
	return &accessMonitor{lastReset: time.Now()}
}

func (am *accessMonitor) recordGrant(duration time.Duration) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.granted++
	am.observe(duration)
}

func (am *accessMonitor) recordDenial(reason DenyReason, duration time.Duration) {
	am.mu.Lock()
	defer am.mu.Unlock()
	if reason == DenyNoToken {
		am.deniedNoToken++
	} else {
		am.deniedInvalid++
	}
	am.observe(duration)
}

func (am *accessMonitor) recordStoreFailure(duration time.Duration) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.storeFailures++
	am.observe(duration)
}

// observe must be called with am.mu held.
func (am *accessMonitor) observe(duration time.Duration) {
	am.totalDuration += duration
	if duration > am.maxDuration {
		am.maxDuration = duration
	}
}

func (am *accessMonitor) getMetrics() AccessMetrics {
	am.mu.Lock()
	defer am.mu.Unlock()

	denied := am.deniedNoToken + am.deniedInvalid
	total := am.granted + denied + am.storeFailures

	var avg time.Duration
	if total > 0 {
		avg = am.totalDuration / time.Duration(total)
	}

	return AccessMetrics{
		TotalDecisions:  total,
		Granted:         am.granted,
		Denied:          denied,
		DeniedNoToken:   am.deniedNoToken,
		DeniedInvalid:   am.deniedInvalid,
		StoreFailures:   am.storeFailures,
		AverageDuration: avg,
		MaxDuration:     am.maxDuration,
		LastReset:       am.lastReset,
	}
}

func (am *accessMonitor) reset() {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.granted = 0
	am.deniedNoToken = 0
	am.deniedInvalid = 0
	am.storeFailures = 0
	am.totalDuration = 0
	am.maxDuration = 0
	am.lastReset = time.Now()
}
