package stream

import (
	"testing"
	"time"

	"github.com/sorapipe/compositor/internal/media"
)

func sample(ts time.Duration) media.MediaSample {
	return media.NewAudioSample(&media.AudioData{Timestamp: ts})
}

func TestEdgePeekIsNonDestructive(t *testing.T) {
	e := NewEdge()
	e.Send(sample(10))

	got, ok := e.Peek()
	if !ok || got.Timestamp() != 10 {
		t.Fatalf("Peek = %v, %v", got, ok)
	}

	// Peek again: still there.
	got, ok = e.Peek()
	if !ok || got.Timestamp() != 10 {
		t.Fatalf("second Peek = %v, %v", got, ok)
	}

	got, ok = e.Recv()
	if !ok || got.Timestamp() != 10 {
		t.Fatalf("Recv = %v, %v", got, ok)
	}

	if !e.Empty() {
		t.Fatalf("expected edge to be empty after Recv")
	}
}

func TestEdgeEOSAfterClose(t *testing.T) {
	e := NewEdge()
	e.Send(sample(1))
	e.Close()

	if e.EOS() {
		t.Fatalf("expected not-EOS while a sample is still queued")
	}
	if _, ok := e.Recv(); !ok {
		t.Fatalf("expected one buffered sample")
	}
	if !e.EOS() {
		t.Fatalf("expected EOS once drained and closed")
	}
}

func TestEdgeBlockUntilReadyUnblocksOnSend(t *testing.T) {
	e := NewEdge()
	stop := make(chan struct{})
	done := make(chan bool, 1)

	go func() {
		done <- e.BlockUntilReady(stop)
	}()

	time.Sleep(10 * time.Millisecond)
	e.Send(sample(5))

	select {
	case ready := <-done:
		if !ready {
			t.Fatalf("expected BlockUntilReady to report ready")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for BlockUntilReady")
	}
}

func TestEdgeSendBlocksAtCapacity(t *testing.T) {
	e := NewEdge()
	for i := 0; i < EdgeCapacity; i++ {
		e.Send(sample(time.Duration(i)))
	}

	blocked := make(chan struct{})
	go func() {
		e.Send(sample(99))
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatalf("expected Send to block when the edge is full")
	case <-time.After(50 * time.Millisecond):
	}

	e.Recv()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatalf("expected blocked Send to unblock after a Recv freed capacity")
	}
}
