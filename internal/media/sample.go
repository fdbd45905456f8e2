package media

import (
	"fmt"
	"time"
)

// AudioData is one PCM or compressed audio sample on a graph edge.
type AudioData struct {
	SourceID    SourceId
	Format      AudioFormat
	Stereo      bool
	SampleRate  uint16
	Timestamp   time.Duration
	Duration    time.Duration
	Data        []byte
	SampleEntry *SampleEntry
}

// StereoSamples returns the data reinterpreted as interleaved 16-bit
// big-endian stereo samples. It fails if the format isn't raw PCM stereo.
func (a *AudioData) StereoSamples() ([]int16, error) {
	if a.Format != AudioFormatI16BE || !a.Stereo {
		return nil, fmt.Errorf("media: StereoSamples requires I16BE stereo, got format=%s stereo=%v", a.Format, a.Stereo)
	}
	if len(a.Data)%2 != 0 {
		return nil, fmt.Errorf("media: odd-length PCM buffer (%d bytes)", len(a.Data))
	}
	out := make([]int16, len(a.Data)/2)
	for i := range out {
		out[i] = int16(uint16(a.Data[2*i])<<8 | uint16(a.Data[2*i+1]))
	}
	return out, nil
}

// VideoFrame is one raw or compressed video frame on a graph edge.
type VideoFrame struct {
	SourceID    SourceId
	Format      VideoFormat
	Width       EvenUsize
	Height      EvenUsize
	Timestamp   time.Duration
	Duration    time.Duration
	KeyFrame    bool
	Data        []byte
	SampleEntry *SampleEntry
}

// Kind distinguishes the two variants a MediaSample can hold.
type Kind int

const (
	KindAudio Kind = iota
	KindVideo
)

// MediaSample is the tagged union that actually travels across a graph
// edge: exactly one of Audio/Video is populated, matching Kind.
type MediaSample struct {
	kind  Kind
	audio *AudioData
	video *VideoFrame
}

// NewAudioSample wraps an AudioData as a MediaSample.
func NewAudioSample(a *AudioData) MediaSample {
	return MediaSample{kind: KindAudio, audio: a}
}

// NewVideoSample wraps a VideoFrame as a MediaSample.
func NewVideoSample(v *VideoFrame) MediaSample {
	return MediaSample{kind: KindVideo, video: v}
}

// Kind reports which variant this sample holds.
func (m MediaSample) Kind() Kind { return m.kind }

// Timestamp returns the sample's presentation timestamp regardless of
// kind.
func (m MediaSample) Timestamp() time.Duration {
	if m.kind == KindAudio {
		return m.audio.Timestamp
	}
	return m.video.Timestamp
}

// ExpectAudio returns the audio sample, failing loudly if m holds video.
func (m MediaSample) ExpectAudio() (*AudioData, error) {
	if m.kind != KindAudio {
		return nil, fmt.Errorf("media: expected an audio sample, got a video sample")
	}
	return m.audio, nil
}

// ExpectVideo returns the video sample, failing loudly if m holds audio.
func (m MediaSample) ExpectVideo() (*VideoFrame, error) {
	if m.kind != KindVideo {
		return nil, fmt.Errorf("media: expected a video sample, got an audio sample")
	}
	return m.video, nil
}
