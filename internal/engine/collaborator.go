package engine

import "github.com/sorapipe/compositor/internal/media"

// Decoder is the external collaborator a video/audio decoder processor
// drives: something that turns encoded access units into raw samples.
// Concrete engines (openh264, libvpx, dav1d, opus, fdk_aac, ...) live
// outside this module's scope; this interface is the seam the codec
// adapter processors are built against. For video, the boundary format
// is fixed at NV12 — the native output of the hardware decoder seams
// (nvcodec, VideoToolbox) this interface stands in for; the codec
// adapter converts to I420 for the rest of the graph.
type Decoder interface {
	// Decode consumes one encoded access unit and returns zero or more
	// raw samples it produced (a decoder may buffer internally and emit
	// samples a call later).
	Decode(encoded []byte, timestamp int64) ([]byte, error)
	Close() error
}

// Encoder is the external collaborator a video/audio encoder processor
// drives: something that turns raw samples into encoded access units.
// For video, raw input is fixed at NV12 — the native input format of
// the hardware encoder seams (NVENC, VideoToolbox) this interface stands
// in for; the codec adapter converts from I420 before calling Encode.
type Encoder interface {
	Encode(raw []byte, timestamp int64, keyFrameRequested bool) (encoded []byte, keyFrame bool, err error)
	Close() error
}

// NullDecoder/NullEncoder are identity collaborators that return their
// input unchanged; cmd/compose wires them in as the engines this binary
// ships with.
type NullDecoder struct{}

func (NullDecoder) Decode(encoded []byte, _ int64) ([]byte, error) { return encoded, nil }
func (NullDecoder) Close() error                                  { return nil }

type NullEncoder struct{}

func (NullEncoder) Encode(raw []byte, _ int64, _ bool) ([]byte, bool, error) {
	return raw, false, nil
}
func (NullEncoder) Close() error { return nil }

var (
	_ Decoder = NullDecoder{}
	_ Encoder = NullEncoder{}
)

// CodecName is re-exported for callers that only import engine.
type CodecName = media.CodecName
