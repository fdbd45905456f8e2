package media

import "fmt"

// CodecName enumerates the audio/video codecs this compositor understands.
type CodecName string

const (
	CodecOpus CodecName = "opus"
	CodecAAC  CodecName = "aac"
	CodecH264 CodecName = "h264"
	CodecH265 CodecName = "h265"
	CodecVP8  CodecName = "vp8"
	CodecVP9  CodecName = "vp9"
	CodecAV1  CodecName = "av1"
)

// ParseAudioCodec parses a codec name restricted to the audio set.
func ParseAudioCodec(s string) (CodecName, error) {
	switch CodecName(s) {
	case CodecOpus, CodecAAC:
		return CodecName(s), nil
	default:
		return "", fmt.Errorf("not an audio codec: %q", s)
	}
}

// ParseVideoCodec parses a codec name restricted to the video set.
func ParseVideoCodec(s string) (CodecName, error) {
	switch CodecName(s) {
	case CodecH264, CodecH265, CodecVP8, CodecVP9, CodecAV1:
		return CodecName(s), nil
	default:
		return "", fmt.Errorf("not a video codec: %q", s)
	}
}

// AudioFormat describes the on-the-wire representation of an AudioData
// sample: raw interleaved PCM or one of the compressed codecs.
type AudioFormat string

const (
	AudioFormatI16BE AudioFormat = "i16be"
	AudioFormatOpus  AudioFormat = "opus"
	AudioFormatAAC   AudioFormat = "aac"
)

// CodecName returns the compressed codec backing this format, or "" for
// raw PCM.
func (f AudioFormat) CodecName() CodecName {
	switch f {
	case AudioFormatOpus:
		return CodecOpus
	case AudioFormatAAC:
		return CodecAAC
	default:
		return ""
	}
}

func (f AudioFormat) String() string {
	if c := f.CodecName(); c != "" {
		return string(c)
	}
	return "pcm"
}

// VideoFormat describes the on-the-wire representation of a VideoFrame:
// a raw planar pixel format or one of the compressed codecs.
type VideoFormat string

const (
	VideoFormatI420 VideoFormat = "i420"
	VideoFormatNV12 VideoFormat = "nv12"
)

// IsRaw reports whether f names a raw pixel format rather than a codec.
func (f VideoFormat) IsRaw() bool {
	return f == VideoFormatI420 || f == VideoFormatNV12
}

// SampleEntry is an opaque, codec-specific container description record
// (e.g. an avcC/hvcC/vpcC/av1C/esds/dOps box payload). The encoders
// attach the stream's current record to every sample they emit; for
// H.264/H.265 it is re-synthesized on each keyframe carrying parameter
// sets.
type SampleEntry struct {
	Codec   CodecName
	Payload []byte
}
