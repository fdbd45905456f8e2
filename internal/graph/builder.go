// Package graph builds and runs the compositing graph: a fixed pool of
// worker goroutines driving a set of registered media.Processor
// instances to completion over their shared stream.Edge connections.
package graph

import (
	"fmt"

	"github.com/vishalkuo/bimap"

	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
)

// Builder accumulates edges and processors before producing a Scheduler.
// It mirrors the original implementation's SchedulerBuilder/Task
// registration pattern, generalized so the scheduler itself (unlike the
// stub it is grounded on) is a full implementation.
type Builder struct {
	alloc   media.StreamIdAllocator
	edges   map[media.StreamId]*stream.Edge
	tasks   []*task
	edgeErr error

	// producers maps each output StreamId to the name of the processor
	// that produces it, and back, so scheduler diagnostics and build
	// errors can name a stream by its producing processor instead of a
	// bare numeric id.
	producers *bimap.BiMap[media.StreamId, string]
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		edges:     make(map[media.StreamId]*stream.Edge),
		producers: bimap.NewBiMap[media.StreamId, string](),
	}
}

// ProducerOf returns the name of the processor that produces id, if any
// registered processor declared it as an output stream.
func (b *Builder) ProducerOf(id media.StreamId) (string, bool) {
	return b.producers.Get(id)
}

// StreamProducedBy returns the StreamId a named processor produces, if any.
func (b *Builder) StreamProducedBy(name string) (media.StreamId, bool) {
	return b.producers.GetInverse(name)
}

// NewEdge allocates a new StreamId and its backing bounded Edge.
func (b *Builder) NewEdge() media.StreamId {
	id := b.alloc.Next()
	b.edges[id] = stream.NewEdge()
	return id
}

// Edge returns the backing Edge for a previously allocated StreamId, for
// processor constructors that need direct read/write access to it.
func (b *Builder) Edge(id media.StreamId) *stream.Edge {
	return b.edges[id]
}

// Register adds a processor to the graph. Every StreamId in its Spec
// must already have been allocated via NewEdge.
func (b *Builder) Register(p stream.Processor) {
	spec := p.Spec()
	t := &task{processor: p, inputEdges: make(map[media.StreamId]*stream.Edge)}
	for _, id := range spec.InputStreamIDs {
		e, ok := b.edges[id]
		if !ok {
			b.edgeErr = fmt.Errorf("graph: processor %q references undeclared input stream %d", spec.Name, id)
			continue
		}
		t.inputEdges[id] = e
	}
	for _, id := range spec.OutputStreamIDs {
		if _, ok := b.edges[id]; !ok {
			b.edgeErr = fmt.Errorf("graph: processor %q references undeclared output stream %d", spec.Name, id)
			continue
		}
		b.producers.Insert(id, spec.Name)
	}
	b.tasks = append(b.tasks, t)
}

// Build finalizes the graph into a runnable Scheduler.
func (b *Builder) Build() (*Scheduler, error) {
	if b.edgeErr != nil {
		return nil, b.edgeErr
	}
	if len(b.tasks) == 0 {
		return nil, fmt.Errorf("graph: no processors registered")
	}
	for _, t := range b.tasks {
		for id := range t.inputEdges {
			if _, ok := b.producers.Get(id); !ok {
				return nil, fmt.Errorf("graph: processor %q reads stream %d, which no registered processor produces", t.processor.Spec().Name, id)
			}
		}
	}
	return newScheduler(b.tasks), nil
}

type task struct {
	processor  stream.Processor
	inputEdges map[media.StreamId]*stream.Edge
	finished   bool
}
