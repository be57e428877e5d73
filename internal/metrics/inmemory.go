package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
// Labelled counters are keyed by their labels joined with "/".
type Snapshot struct {
	Redirects               map[string]uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64
	DirectoryLoads          map[string]uint64
	ClickSteps              map[string]uint64
	DocumentWrites          map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	redirectDurationCount   uint64
	redirectDurationTotalNs int64

	mu             sync.Mutex
	redirects      map[string]uint64
	directoryLoads map[string]uint64
	clickSteps     map[string]uint64
	documentWrites map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		redirects:      make(map[string]uint64),
		directoryLoads: make(map[string]uint64),
		clickSteps:     make(map[string]uint64),
		documentWrites: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Redirects:               copyCounts(m.redirects),
		RedirectDurationCount:   atomic.LoadUint64(&m.redirectDurationCount),
		RedirectDurationTotalNs: atomic.LoadInt64(&m.redirectDurationTotalNs),
		DirectoryLoads:          copyCounts(m.directoryLoads),
		ClickSteps:              copyCounts(m.clickSteps),
		DocumentWrites:          copyCounts(m.documentWrites),
	}
}

// IncRedirect increments the redirect counter for result.
func (m *InMemoryRecorder) IncRedirect(result string) {
	m.inc(m.redirects, result)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
	atomic.AddInt64(&m.redirectDurationTotalNs, duration.Nanoseconds())
}

// IncDirectoryLoad increments the directory load counter for source.
func (m *InMemoryRecorder) IncDirectoryLoad(source string) {
	m.inc(m.directoryLoads, source)
}

// IncClickStep increments the click step counter.
func (m *InMemoryRecorder) IncClickStep(step, status string) {
	m.inc(m.clickSteps, step+"/"+status)
}

// IncDocumentWrite increments the document write counter.
func (m *InMemoryRecorder) IncDocumentWrite(kind, status string) {
	m.inc(m.documentWrites, kind+"/"+status)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
