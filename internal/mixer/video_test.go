package mixer

import (
	"testing"
	"time"

	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
)

func solidI420(w, h media.EvenUsize, y byte) []byte {
	buf := make([]byte, w.Get()*h.Get()+2*((w.Get()/2)*(h.Get()/2)))
	for i := range buf {
		buf[i] = y
	}
	return buf
}

func sendVideoFrame(edge *stream.Edge, w, h media.EvenUsize, ts time.Duration, y byte) {
	edge.Send(media.NewVideoSample(&media.VideoFrame{
		Format:    media.VideoFormatI420,
		Width:     w,
		Height:    h,
		Timestamp: ts,
		Duration:  33 * time.Millisecond,
		Data:      solidI420(w, h, y),
	}))
}

func TestVideoMixerFixedCadenceOutput(t *testing.T) {
	w, _ := media.NewEvenUsize(64)
	h, _ := media.NewEvenUsize(64)
	outW, _ := media.NewEvenUsize(128)
	outH, _ := media.NewEvenUsize(64)

	inA := stream.NewEdge()
	inB := stream.NewEdge()
	out := stream.NewEdge()

	const frameNs = 33333333 // ~30fps in ns, good enough for a test cadence
	go func() {
		for i := 0; i < 10; i++ {
			sendVideoFrame(inA, w, h, time.Duration(i)*time.Duration(frameNs), 41)
			sendVideoFrame(inB, w, h, time.Duration(i)*time.Duration(frameNs), 81)
		}
		inA.Close()
		inB.Close()
	}()

	sourceOf := map[media.StreamId]media.SourceId{1: "a", 2: "b"}
	inputs := map[media.StreamId]*stream.Edge{1: inA, 2: inB}
	layout := &GridLayout{Sources: []media.SourceId{"a", "b"}, Cols: 2}
	m := NewVideoMixer(30, 1, inputs, sourceOf, outW, outH, layout, 3, out)

	var produced int
	for i := 0; i < 10000; i++ {
		outcome := m.ProcessOutput()
		switch outcome.Kind {
		case stream.Processed:
			// The output edge is bounded; take each frame off it so the
			// mixer's next Send does not block.
			if _, ok := out.Recv(); ok {
				produced++
			}
		case stream.Finished:
			goto done
		case stream.Pending:
			continue
		case stream.Fatal:
			t.Fatalf("fatal: %v", outcome.Err)
		}
	}
done:
	if produced == 0 {
		t.Fatalf("expected at least one composited frame, got 0")
	}
	if !out.EOS() {
		// drain remaining and confirm eventual EOS
		drained := 0
		for !out.EOS() {
			if _, ok := out.Recv(); ok {
				drained++
			}
			if drained > 10000 {
				t.Fatalf("output edge never reached EOS")
			}
		}
	}
}

func TestGridLayoutFillsMissingSourceWithGray(t *testing.T) {
	outW, _ := media.NewEvenUsize(32)
	outH, _ := media.NewEvenUsize(32)
	layout := &GridLayout{Sources: []media.SourceId{"a"}, Cols: 1}
	out := layout.Render(map[media.SourceId]*media.VideoFrame{"a": nil}, outW, outH, 0)
	if len(out) != outW.Get()*outH.Get()+2*((outW.Get()/2)*(outH.Get()/2)) {
		t.Fatalf("unexpected canvas size: %d", len(out))
	}
	if out[0] != 16 {
		t.Fatalf("expected gray fill luma 16, got %d", out[0])
	}
}
