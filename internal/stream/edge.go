// Package stream implements the bounded, single-producer/single-consumer
// graph edge with non-destructive peek, and the worker-park helper the
// scheduler uses while a processor is waiting on one. It is the Go
// counterpart of the original implementation's channel.rs: a
// fixed-capacity channel plus a one-element lookahead buffer so a
// consumer can inspect the next item without removing it.
package stream

import (
	"sync"

	"github.com/sorapipe/compositor/internal/media"
)

// EdgeCapacity is the fixed bound on every graph edge.
const EdgeCapacity = 5

// Edge is a bounded SPSC queue of media.MediaSample plus an end-of-stream
// marker, supporting blocking Send (back-pressure), destructive Recv, and
// non-destructive Peek.
type Edge struct {
	ch        chan media.MediaSample
	closeOnce sync.Once

	mu   sync.Mutex
	next *media.MediaSample
	eof  bool
}

// NewEdge allocates an Edge with the standard graph capacity.
func NewEdge() *Edge {
	return &Edge{ch: make(chan media.MediaSample, EdgeCapacity)}
}

// Send offers a sample to the edge, blocking the caller if the edge is at
// capacity. This is the graph's back-pressure mechanism: a producer
// racing ahead of its consumer stalls here instead of growing memory
// without bound.
func (e *Edge) Send(s media.MediaSample) {
	e.ch <- s
}

// Close marks the edge as having no more samples. It is idempotent and
// safe to call exactly once per producer lifetime.
func (e *Edge) Close() {
	e.closeOnce.Do(func() { close(e.ch) })
}

// fill lazily pulls the next item (or notices closure) into the one-slot
// lookahead buffer if it is currently empty. Caller must hold e.mu.
func (e *Edge) fill() {
	if e.next != nil || e.eof {
		return
	}
	select {
	case s, ok := <-e.ch:
		if ok {
			e.next = &s
		} else {
			e.eof = true
		}
	default:
	}
}

// Peek returns the next sample without removing it.
func (e *Edge) Peek() (media.MediaSample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fill()
	if e.next == nil {
		return media.MediaSample{}, false
	}
	return *e.next, true
}

// Recv removes and returns the next sample, if any is currently
// available without blocking.
func (e *Edge) Recv() (media.MediaSample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fill()
	if e.next == nil {
		return media.MediaSample{}, false
	}
	s := *e.next
	e.next = nil
	return s, true
}

// Empty reports whether the edge currently has nothing queued and is not
// at end-of-stream.
func (e *Edge) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fill()
	return e.next == nil && !e.eof
}

// EOS reports whether the producer has closed the edge and every queued
// sample has been drained.
func (e *Edge) EOS() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fill()
	return e.next == nil && e.eof
}

// BlockUntilReady parks the calling goroutine until the edge stops being
// Empty (a sample arrives, or the producer closes it), or stop fires
// first. It returns false only when stop fired first.
func (e *Edge) BlockUntilReady(stop <-chan struct{}) bool {
	e.mu.Lock()
	e.fill()
	ready := e.next != nil || e.eof
	e.mu.Unlock()
	if ready {
		return true
	}

	select {
	case s, ok := <-e.ch:
		e.mu.Lock()
		if ok {
			e.next = &s
		} else {
			e.eof = true
		}
		e.mu.Unlock()
		return true
	case <-stop:
		return false
	}
}
