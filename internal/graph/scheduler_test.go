package graph

import (
	"testing"
	"time"

	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
)

// passthrough copies every sample from one input edge to one output edge,
// finishing once the input reaches end-of-stream.
type passthrough struct {
	spec media.ProcessorSpec
	in   *stream.Edge
	out  *stream.Edge
}

func (p *passthrough) Spec() media.ProcessorSpec { return p.spec }

func (p *passthrough) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (p *passthrough) ProcessOutput() stream.Outcome {
	if p.in.EOS() {
		p.out.Close()
		return stream.OutcomeFinished()
	}
	s, ok := p.in.Recv()
	if !ok {
		return stream.OutcomePendingOn(p.spec.InputStreamIDs[0])
	}
	p.out.Send(s)
	return stream.OutcomeProcessed()
}

// producer emits a fixed number of samples then closes its output.
type producer struct {
	spec      media.ProcessorSpec
	out       *stream.Edge
	remaining int
}

func (p *producer) Spec() media.ProcessorSpec { return p.spec }

func (p *producer) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (p *producer) ProcessOutput() stream.Outcome {
	if p.remaining == 0 {
		p.out.Close()
		return stream.OutcomeFinished()
	}
	p.remaining--
	p.out.Send(media.NewAudioSample(&media.AudioData{Timestamp: time.Duration(p.remaining)}))
	return stream.OutcomeProcessed()
}

func TestSchedulerRunsProducerThroughPassthrough(t *testing.T) {
	b := NewBuilder()
	srcID := b.NewEdge()
	dstID := b.NewEdge()

	p := &producer{
		spec:      media.ProcessorSpec{Name: "producer", OutputStreamIDs: []media.StreamId{srcID}},
		out:       b.Edge(srcID),
		remaining: 10,
	}
	pt := &passthrough{
		spec: media.ProcessorSpec{Name: "passthrough", InputStreamIDs: []media.StreamId{srcID}, OutputStreamIDs: []media.StreamId{dstID}},
		in:   b.Edge(srcID),
		out:  b.Edge(dstID),
	}

	b.Register(p)
	b.Register(pt)

	sched, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sched.Run() }()

	// Drain the final edge concurrently so the bounded channel doesn't
	// deadlock the passthrough against back-pressure.
	dst := b.Edge(dstID)
	count := 0
	drained := make(chan struct{})
	go func() {
		for {
			if dst.EOS() {
				close(drained)
				return
			}
			if _, ok := dst.Recv(); ok {
				count++
			}
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not finish in time")
	}

	<-drained
	if count != 10 {
		t.Fatalf("got %d samples, want 10", count)
	}
}

func TestSchedulerPropagatesFatal(t *testing.T) {
	b := NewBuilder()
	id := b.NewEdge()

	failing := &failingProcessor{spec: media.ProcessorSpec{Name: "bad", OutputStreamIDs: []media.StreamId{id}}}
	b.Register(failing)

	sched, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sched.Run(); err == nil {
		t.Fatalf("expected Run to propagate the fatal error")
	}
}

type failingProcessor struct {
	spec media.ProcessorSpec
}

func (f *failingProcessor) Spec() media.ProcessorSpec                                 { return f.spec }
func (f *failingProcessor) ProcessInput(media.StreamId, media.MediaSample, bool) {}
func (f *failingProcessor) ProcessOutput() stream.Outcome {
	return stream.OutcomeFatal(errBoom)
}

var errBoom = fatalErr("boom")

type fatalErr string

func (e fatalErr) Error() string { return string(e) }
