// Package trim implements the sorted, non-overlapping, half-open
// intervals used to skip portions of an archive (e.g. a participant
// muted/paused segment) while still advancing the logical input clock.
package trim

import (
	"sort"
	"time"
)

// Span is a half-open interval [Start, End) of session time to skip.
type Span struct {
	Start time.Duration
	End   time.Duration
}

// Spans is a sorted, non-overlapping set of Span values.
type Spans struct {
	spans []Span
}

// New builds a Spans from an arbitrary slice of Span, sorted by Start.
// It neither rejects nor merges overlapping or inverted spans; Validate
// reports whether the result is well-formed.
func New(spans []Span) Spans {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return Spans{spans: sorted}
}

// Validate reports whether the spans are well-formed: each has
// Start < End, and no two spans overlap.
func (s Spans) Validate() bool {
	for i, sp := range s.spans {
		if sp.Start >= sp.End {
			return false
		}
		if i > 0 && s.spans[i-1].End > sp.Start {
			return false
		}
	}
	return true
}

// Contains reports whether t falls within any span, via binary search
// over the sorted span starts.
func (s Spans) Contains(t time.Duration) bool {
	// Find the last span whose Start <= t.
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].Start > t })
	if i == 0 {
		return false
	}
	sp := s.spans[i-1]
	return t >= sp.Start && t < sp.End
}

// Len returns the number of spans.
func (s Spans) Len() int { return len(s.spans) }

// At returns the i-th span in sorted order.
func (s Spans) At(i int) Span { return s.spans[i] }
