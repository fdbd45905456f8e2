package mixer

import (
	"testing"
	"time"

	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
	"github.com/sorapipe/compositor/internal/trim"
)

func pcmFrame(ts time.Duration, left, right int16) *media.AudioData {
	data := make([]byte, 0, mixedAudioDataSamples*4)
	for i := 0; i < mixedAudioDataSamples; i++ {
		data = append(data, byte(uint16(left)>>8), byte(uint16(left)))
		data = append(data, byte(uint16(right)>>8), byte(uint16(right)))
	}
	return &media.AudioData{
		Format:     media.AudioFormatI16BE,
		Stereo:     true,
		SampleRate: media.AudioSampleRate48k,
		Duration:   MixedAudioDataDuration,
		Data:       data,
		Timestamp:  ts,
	}
}

// drainAll runs ProcessOutput until Finished, collecting every emitted
// mixed AudioData and asserting no Pending/Fatal is ever returned (the
// caller is expected to have already queued and closed every input).
func drainAll(t *testing.T, m *AudioMixer, out *stream.Edge) []*media.AudioData {
	t.Helper()
	var results []*media.AudioData
	for {
		outcome := m.ProcessOutput()
		switch outcome.Kind {
		case stream.Processed:
			s, ok := out.Recv()
			if !ok {
				t.Fatalf("Processed outcome but nothing on the output edge")
			}
			a, err := s.ExpectAudio()
			if err != nil {
				t.Fatalf("ExpectAudio: %v", err)
			}
			results = append(results, a)
		case stream.Finished:
			return results
		case stream.Fatal:
			t.Fatalf("unexpected fatal: %v", outcome.Err)
		case stream.Pending:
			t.Fatalf("unexpected pending on stream %v (inputs not fully queued before drainAll)", outcome.Awaiting)
		}
	}
}

func TestAudioMixerSumsTwoStreams(t *testing.T) {
	edgeA := stream.NewEdge()
	edgeB := stream.NewEdge()
	out := stream.NewEdge()

	edgeA.Send(media.NewAudioSample(pcmFrame(0, 1000, -1000)))
	edgeA.Close()
	edgeB.Send(media.NewAudioSample(pcmFrame(0, 2000, 500)))
	edgeB.Close()

	m := NewAudioMixer(trim.New(nil), map[media.StreamId]*stream.Edge{1: edgeA, 2: edgeB}, 99, out)
	results := drainAll(t, m, out)

	if len(results) != 1 {
		t.Fatalf("got %d mixed frames, want 1", len(results))
	}
	samples, err := results[0].StereoSamples()
	if err != nil {
		t.Fatalf("StereoSamples: %v", err)
	}
	if samples[0] != 3000 || samples[1] != -500 {
		t.Fatalf("got (%d,%d), want (3000,-500)", samples[0], samples[1])
	}
}

func TestAudioMixerClampsOverflow(t *testing.T) {
	edgeA := stream.NewEdge()
	edgeB := stream.NewEdge()
	out := stream.NewEdge()

	edgeA.Send(media.NewAudioSample(pcmFrame(0, 30000, 0)))
	edgeA.Close()
	edgeB.Send(media.NewAudioSample(pcmFrame(0, 30000, 0)))
	edgeB.Close()

	m := NewAudioMixer(trim.New(nil), map[media.StreamId]*stream.Edge{1: edgeA, 2: edgeB}, 99, out)
	results := drainAll(t, m, out)

	samples, _ := results[0].StereoSamples()
	if samples[0] != 32767 {
		t.Fatalf("got %d, want clamped 32767", samples[0])
	}
}

func TestAudioMixerGatesOnStartTimestamp(t *testing.T) {
	edgeA := stream.NewEdge()
	edgeB := stream.NewEdge()
	out := stream.NewEdge()

	// A starts at t=0, contributes one frame.
	edgeA.Send(media.NewAudioSample(pcmFrame(0, 1000, 1000)))
	edgeA.Close()
	// B's first frame arrives with a timestamp in the future: B should
	// be gated out of the first output tick.
	edgeB.Send(media.NewAudioSample(pcmFrame(MixedAudioDataDuration, 1000, 1000)))
	edgeB.Close()

	m := NewAudioMixer(trim.New(nil), map[media.StreamId]*stream.Edge{1: edgeA, 2: edgeB}, 99, out)
	results := drainAll(t, m, out)

	// B's frame stays queued and is mixed on the second tick, once the
	// input clock reaches its start timestamp.
	if len(results) != 2 {
		t.Fatalf("got %d frames, want 2", len(results))
	}
	samples, _ := results[0].StereoSamples()
	if samples[0] != 1000 {
		t.Fatalf("expected only stream A to contribute to the first tick, got %d", samples[0])
	}
}

func TestAudioMixerSkipsTrimmedSpan(t *testing.T) {
	edgeA := stream.NewEdge()
	out := stream.NewEdge()

	// A Sora-style trimmed span means the archive itself has no samples
	// for that interval, not that untrimmed samples arrive and get
	// discarded. Model that directly: the first second (50 frames of
	// 20ms each) simply isn't sent, leaving 100 frames covering the
	// remaining two seconds.
	const gapFrames = 50
	const totalFrames = 100
	doneSending := make(chan struct{})
	go func() {
		for i := 0; i < totalFrames; i++ {
			ts := time.Duration(gapFrames+i) * MixedAudioDataDuration
			edgeA.Send(media.NewAudioSample(pcmFrame(ts, 100, 100)))
		}
		edgeA.Close()
		close(doneSending)
	}()

	// Trim out the first second (48000 samples / 50 frames) of session
	// time.
	trimmed := trim.New([]trim.Span{{Start: 0, End: time.Second}})
	m := NewAudioMixer(trimmed, map[media.StreamId]*stream.Edge{1: edgeA}, 99, out)

	var outputCount int
	for {
		outcome := m.ProcessOutput()
		switch outcome.Kind {
		case stream.Processed:
			if _, ok := out.Recv(); ok {
				outputCount++
			}
		case stream.Finished:
			<-doneSending
			goto done
		case stream.Pending:
			continue
		case stream.Fatal:
			t.Fatalf("unexpected fatal: %v", outcome.Err)
		}
	}
done:
	if m.Stats().TotalTrimmedSampleCount.Load() != 48000 {
		t.Fatalf("trimmed sample count = %d, want 48000", m.Stats().TotalTrimmedSampleCount.Load())
	}
	if outputCount != totalFrames {
		t.Fatalf("output frame count = %d, want %d", outputCount, totalFrames)
	}
}
