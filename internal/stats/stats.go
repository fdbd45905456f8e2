// Package stats carries the atomic observability counters every
// processor exposes. No floating point is used except at the final
// human-readable report boundary.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ProcessorStats is a per-processor counter bundle. All fields are safe
// for concurrent use.
type ProcessorStats struct {
	Name string

	samplesIn     atomic.Uint64
	samplesOut    atomic.Uint64
	trimmedInput  atomic.Uint64
	silenceFilled atomic.Uint64
	pendingTicks  atomic.Uint64
	processedNs   atomic.Uint64
}

// New creates a named ProcessorStats bundle.
func New(name string) *ProcessorStats {
	return &ProcessorStats{Name: name}
}

func (s *ProcessorStats) AddSamplesIn(n uint64)     { s.samplesIn.Add(n) }
func (s *ProcessorStats) AddSamplesOut(n uint64)    { s.samplesOut.Add(n) }
func (s *ProcessorStats) AddTrimmedInput(n uint64)  { s.trimmedInput.Add(n) }
func (s *ProcessorStats) AddSilenceFilled(n uint64) { s.silenceFilled.Add(n) }
func (s *ProcessorStats) IncPendingTicks()          { s.pendingTicks.Add(1) }
func (s *ProcessorStats) AddProcessed(d time.Duration) {
	s.processedNs.Add(uint64(d.Nanoseconds()))
}

// Snapshot is an immutable point-in-time copy of a ProcessorStats.
type Snapshot struct {
	Name          string
	SamplesIn     uint64
	SamplesOut    uint64
	TrimmedInput  uint64
	SilenceFilled uint64
	PendingTicks  uint64
	Processed     time.Duration
}

// Snapshot takes an atomic point-in-time copy of the counters.
func (s *ProcessorStats) Snapshot() Snapshot {
	return Snapshot{
		Name:          s.Name,
		SamplesIn:     s.samplesIn.Load(),
		SamplesOut:    s.samplesOut.Load(),
		TrimmedInput:  s.trimmedInput.Load(),
		SilenceFilled: s.silenceFilled.Load(),
		PendingTicks:  s.pendingTicks.Load(),
		Processed:     time.Duration(s.processedNs.Load()),
	}
}

// Report renders a human-readable summary; this is the one place
// floating point (for the "%age silence" figure) is allowed.
func (sn Snapshot) Report() string {
	var silencePct float64
	if sn.SamplesOut > 0 {
		silencePct = float64(sn.SilenceFilled) / float64(sn.SamplesOut) * 100
	}
	return fmt.Sprintf(
		"%s: in=%d out=%d trimmed=%d silence=%d (%.1f%%) pending=%d busy=%s",
		sn.Name, sn.SamplesIn, sn.SamplesOut, sn.TrimmedInput, sn.SilenceFilled, silencePct, sn.PendingTicks, sn.Processed,
	)
}
