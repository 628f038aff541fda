// Package metrics records per-operation latency histograms around every
// Store call, in the same shape the teacher's own in-memory stats manager
// uses, generalized from one named operation to a small registry of them.
package metrics

import (
	"sync"
	"time"

	hist "github.com/VividCortex/gohistogram"
	"github.com/pivotal-golang/bytefmt"
)

// OpStats tracks latency samples for one named operation (Put, Get,
// AppendVersion, and so on).
type OpStats struct {
	name  string
	mutex sync.RWMutex
	hist  hist.Histogram

	totalOps      int64
	firstStatTime time.Time
	lastStatTime  time.Time
}

func newOpStats(name string) *OpStats {
	return &OpStats{name: name, hist: hist.NewHistogram(100)}
}

// Record adds one latency sample.
func (s *OpStats) Record(latency time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.hist.Add(float64(latency.Nanoseconds()))
	s.totalOps++
	if s.firstStatTime.IsZero() {
		s.firstStatTime = time.Now()
	}
	s.lastStatTime = time.Now()
}

// Snapshot is a point-in-time read of one OpStats's percentiles and rate,
// suitable for the launcher's status subcommand to print.
type Snapshot struct {
	Name       string
	TotalOps   int64
	P50, P99   time.Duration
	P999       time.Duration
	OpsPerSec  float64
}

// Snapshot returns the current state of s.
func (s *OpStats) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap := Snapshot{
		Name:     s.name,
		TotalOps: s.totalOps,
		P50:      time.Duration(s.hist.Quantile(0.50)),
		P99:      time.Duration(s.hist.Quantile(0.99)),
		P999:     time.Duration(s.hist.Quantile(0.999)),
	}
	if dur := s.lastStatTime.Sub(s.firstStatTime); dur > 0 {
		snap.OpsPerSec = float64(s.totalOps) / dur.Seconds()
	}
	return snap
}

// Registry is the set of OpStats a Store wrapper records into, one per
// method on the drive.Store interface.
type Registry struct {
	mutex sync.Mutex
	ops   map[string]*OpStats
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*OpStats)}
}

// For returns the OpStats for name, creating it on first use.
func (r *Registry) For(name string) *OpStats {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, ok := r.ops[name]
	if !ok {
		s = newOpStats(name)
		r.ops[name] = s
	}
	return s
}

// Snapshots returns a Snapshot for every operation recorded so far.
func (r *Registry) Snapshots() []Snapshot {
	r.mutex.Lock()
	names := make([]*OpStats, 0, len(r.ops))
	for _, s := range r.ops {
		names = append(names, s)
	}
	r.mutex.Unlock()

	out := make([]Snapshot, len(names))
	for i, s := range names {
		out[i] = s.Snapshot()
	}
	return out
}

// FormatBytes renders a byte count in human-readable form, e.g. "4.0K". The
// status subcommand does not report sizes, so nothing in drived calls it.
func FormatBytes(n uint64) string {
	return bytefmt.ByteSize(n)
}
