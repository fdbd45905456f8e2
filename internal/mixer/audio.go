// Package mixer implements the audio and video mixing processors: the
// only two graph nodes that combine multiple input edges into one output
// edge.
package mixer

import (
	"time"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stats"
	"github.com/sorapipe/compositor/internal/stream"
	"github.com/sorapipe/compositor/internal/trim"
)

// MixedAudioDataDuration is the fixed cadence at which the audio mixer
// emits output: one mixed AudioData sample every 20ms.
const MixedAudioDataDuration = 20 * time.Millisecond

// mixedAudioDataSamples is MixedAudioDataDuration worth of samples at
// media.AudioSampleRate48k (48000 * 0.02s).
const mixedAudioDataSamples = 960

type stereoSample struct {
	left, right int16
}

type audioInputStream struct {
	eos            bool
	queue          []stereoSample
	startTimestamp *time.Duration
}

// AudioMixer sums PCM audio from every input stream on a fixed 20ms
// cadence, gating each source on its own start timestamp and skipping
// trimmed spans of session time. Grounded on the original project's
// mixer_audio.rs, which this is a near line-for-line port of.
type AudioMixer struct {
	trimSpans      trim.Spans
	inputEdges     map[media.StreamId]*stream.Edge
	inputStreams   map[media.StreamId]*audioInputStream
	outputStreamID media.StreamId
	outEdge        *stream.Edge
	stats          *stats.AudioMixerStats
}

// NewAudioMixer builds an AudioMixer wired to the given input edges (one
// per participant audio stream) and a single output edge.
func NewAudioMixer(trimSpans trim.Spans, inputEdges map[media.StreamId]*stream.Edge, outputStreamID media.StreamId, outEdge *stream.Edge) *AudioMixer {
	streams := make(map[media.StreamId]*audioInputStream, len(inputEdges))
	for id := range inputEdges {
		streams[id] = &audioInputStream{}
	}
	return &AudioMixer{
		trimSpans:      trimSpans,
		inputEdges:     inputEdges,
		inputStreams:   streams,
		outputStreamID: outputStreamID,
		outEdge:        outEdge,
		stats:          &stats.AudioMixerStats{},
	}
}

// Stats exposes the mixer's observability counters.
func (m *AudioMixer) Stats() *stats.AudioMixerStats { return m.stats }

// Spec implements stream.Processor.
func (m *AudioMixer) Spec() media.ProcessorSpec {
	ids := make([]media.StreamId, 0, len(m.inputEdges))
	for id := range m.inputEdges {
		ids = append(ids, id)
	}
	return media.ProcessorSpec{
		Name:            "audio_mixer",
		InputStreamIDs:  ids,
		OutputStreamIDs: []media.StreamId{m.outputStreamID},
	}
}

// ProcessInput implements stream.Processor; the mixer instead pulls
// directly from its input edges inside ProcessOutput, so this is a no-op.
func (m *AudioMixer) ProcessInput(media.StreamId, media.MediaSample, bool) {}

// nextInputTimestamp is the logical position of the next sample to be
// consumed from the input streams, derived from running counters rather
// than tracked separately.
func (m *AudioMixer) nextInputTimestamp() time.Duration {
	total := m.stats.TotalOutputSampleCount.Load() + m.stats.TotalTrimmedSampleCount.Load()
	return sampleCountToDuration(total)
}

// nextOutputTimestamp is the presentation timestamp of the next mixed
// sample to be emitted.
func (m *AudioMixer) nextOutputTimestamp() time.Duration {
	return sampleCountToDuration(m.stats.TotalOutputSampleCount.Load())
}

func sampleCountToDuration(samples uint64) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(media.AudioSampleRate48k)
}

// ProcessOutput implements stream.Processor.
func (m *AudioMixer) ProcessOutput() stream.Outcome {
	now := m.nextInputTimestamp()
	for m.trimSpans.Contains(now) {
		m.stats.TotalTrimmedSampleCount.Add(mixedAudioDataSamples)
		now = m.nextInputTimestamp()
	}

	for id, edge := range m.inputEdges {
		is := m.inputStreams[id]
		if is.eos {
			continue
		}
		if err := m.drain(id, edge, is); err != nil {
			return stream.OutcomeFatal(err)
		}
		if len(is.queue) < mixedAudioDataSamples && !is.eos {
			return stream.OutcomePendingOn(id)
		}
	}

	eos := true
	for _, is := range m.inputStreams {
		if !(is.eos && len(is.queue) == 0) {
			eos = false
			break
		}
	}
	if eos {
		m.outEdge.Close()
		return stream.OutcomeFinished()
	}

	mixed := m.mixNextAudioData(now)
	m.outEdge.Send(media.NewAudioSample(mixed))
	return stream.OutcomeProcessed()
}

// drain pulls every currently-available sample off edge into is's queue,
// without blocking. It stops once the edge is empty-and-open or reaches
// end-of-stream.
func (m *AudioMixer) drain(id media.StreamId, edge *stream.Edge, is *audioInputStream) error {
	for {
		sample, ok := edge.Recv()
		if !ok {
			if edge.EOS() {
				is.eos = true
			}
			return nil
		}

		data, err := sample.ExpectAudio()
		if err != nil {
			return compositorerr.Wrap(compositorerr.ContractViolation, "audio_mixer", err)
		}

		if is.startTimestamp == nil {
			// Remember the first timestamp seen to decide when this
			// source starts contributing to the mix. Once mixing has
			// started for a source, any later gap in its timestamps is
			// treated as contiguous — upstream recording gaps are the
			// upstream producer's responsibility, not ours to fill.
			ts := data.Timestamp
			is.startTimestamp = &ts
		}

		if data.SampleRate != media.AudioSampleRate48k {
			return compositorerr.Newf(compositorerr.InputFormat, "audio_mixer",
				"stream %d: expected sample rate %d, got %d", id, media.AudioSampleRate48k, data.SampleRate)
		}

		samples, err := data.StereoSamples()
		if err != nil {
			return compositorerr.Wrap(compositorerr.InputFormat, "audio_mixer", err)
		}
		for i := 0; i+1 < len(samples); i += 2 {
			is.queue = append(is.queue, stereoSample{left: samples[i], right: samples[i+1]})
		}

		m.stats.TotalInputAudioDataCount.Add(1)
	}
}

// mixNextAudioData sums one 20ms/960-sample tick across every gated,
// non-empty input stream, clamping on overflow and popping consumed
// samples off each stream's queue.
func (m *AudioMixer) mixNextAudioData(now time.Duration) *media.AudioData {
	timestamp := m.nextOutputTimestamp()

	const bytesPerSample = 2 * 2 // stereo, 16-bit
	mixed := make([]byte, 0, mixedAudioDataSamples*bytesPerSample)

	filled := true // whether this tick was entirely silence-filled
	for i := 0; i < mixedAudioDataSamples; i++ {
		var accLeft, accRight int32
		for _, is := range m.inputStreams {
			if is.startTimestamp == nil || now < *is.startTimestamp {
				continue
			}
			if len(is.queue) == 0 {
				continue
			}
			s := is.queue[0]
			is.queue = is.queue[1:]
			accLeft += int32(s.left)
			accRight += int32(s.right)
			filled = false
		}

		left := clampInt16(accLeft)
		right := clampInt16(accRight)
		mixed = append(mixed, byte(uint16(left)>>8), byte(uint16(left)))
		mixed = append(mixed, byte(uint16(right)>>8), byte(uint16(right)))
	}

	m.stats.TotalOutputAudioDataCount.Add(1)
	m.stats.AddOutputDuration(MixedAudioDataDuration)
	m.stats.TotalOutputSampleCount.Add(mixedAudioDataSamples)
	if filled {
		m.stats.TotalOutputFilledSampleCount.Add(mixedAudioDataSamples)
	}

	return &media.AudioData{
		Format:      media.AudioFormatI16BE,
		Stereo:      true,
		SampleRate:  media.AudioSampleRate48k,
		Duration:    MixedAudioDataDuration,
		SampleEntry: nil,
		Data:        mixed,
		Timestamp:   timestamp,
	}
}

func clampInt16(v int32) int16 {
	const maxI16 = int32(1<<15 - 1)
	const minI16 = -int32(1 << 15)
	if v > maxI16 {
		return int16(maxI16)
	}
	if v < minI16 {
		return int16(minI16)
	}
	return int16(v)
}
