package codec

import (
	"github.com/sorapipe/compositor/internal/codec/h264"
	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/engine"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
)

// isAVCFamily reports whether codecName uses Annex-B/AVCC NAL framing
// (the length-prefix rewriting and inline parameter sets this adapter
// layer handles); VP8/VP9/AV1 carry their own self-contained framing and
// skip that path entirely.
func isAVCFamily(codecName media.CodecName) bool {
	return codecName == media.CodecH264 || codecName == media.CodecH265
}

// VideoDecoder is the processor wrapping an engine.Decoder collaborator:
// it pulls encoded VideoFrame samples off one input edge and pushes raw
// I420 VideoFrame samples onto one output edge. For H.264/H.265 it
// rewrites the container's length-prefixed NAL units to Annex-B (the
// form software decoders expect), backfilling cached SPS/PPS/VPS ahead
// of keyframes whose own access unit didn't carry them inline; every
// codec's decoded output is converted from the engine's NV12 boundary
// format to I420 for the rest of the graph.
type VideoDecoder struct {
	name    string
	codec   media.CodecName
	engine  engine.Decoder
	params  *ParameterSetCache
	inEdge  *stream.Edge
	outEdge *stream.Edge
	inID    media.StreamId
	outID   media.StreamId
}

// NewVideoDecoder wires a decoder engine between two graph edges.
func NewVideoDecoder(name string, codecName media.CodecName, eng engine.Decoder, inID, outID media.StreamId, in, out *stream.Edge) *VideoDecoder {
	return &VideoDecoder{
		name: name, codec: codecName, engine: eng, params: NewParameterSetCache(codecName),
		inEdge: in, outEdge: out, inID: inID, outID: outID,
	}
}

func (d *VideoDecoder) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{Name: d.name, InputStreamIDs: []media.StreamId{d.inID}, OutputStreamIDs: []media.StreamId{d.outID}}
}

func (d *VideoDecoder) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (d *VideoDecoder) ProcessOutput() stream.Outcome {
	if d.inEdge.EOS() {
		d.outEdge.Close()
		return stream.OutcomeFinished()
	}
	sample, ok := d.inEdge.Recv()
	if !ok {
		return stream.OutcomePendingOn(d.inID)
	}
	frame, err := sample.ExpectVideo()
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.ContractViolation, d.name, err))
	}

	payload := frame.Data
	if isAVCFamily(d.codec) {
		if !h264.ValidateAVCData(payload) {
			return stream.OutcomeFatal(compositorerr.Newf(compositorerr.ContractViolation, d.name, "expected length-prefixed %s data", d.codec))
		}
		annexb, err := h264.ConvertAVCToAnnexB(payload)
		if err != nil {
			return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.ContractViolation, d.name, err))
		}
		if frame.KeyFrame {
			hadParams := d.params.Ready()
			d.params.Observe(annexb)
			if !d.params.ConsumeDirty() && hadParams {
				// This keyframe's own access unit didn't carry fresh
				// parameter sets; backfill the most recently cached
				// ones so the decoder sees them inline.
				annexb = h264.PrependSpsPps(annexb, d.params.AnnexBUnits())
			}
		}
		payload = annexb
	}

	raw, err := d.engine.Decode(payload, frame.Timestamp.Nanoseconds())
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.EngineFailure, d.name, err))
	}
	// The engine seam is fixed at NV12 (see internal/engine); the rest
	// of the graph works in I420.
	raw = NV12ToI420(raw, frame.Width, frame.Height)

	out := &media.VideoFrame{
		SourceID:  frame.SourceID,
		Format:    media.VideoFormatI420,
		Width:     frame.Width,
		Height:    frame.Height,
		Timestamp: frame.Timestamp,
		KeyFrame:  frame.KeyFrame,
		Data:      raw,
	}
	d.outEdge.Send(media.NewVideoSample(out))
	return stream.OutcomeProcessed()
}

// AudioDecoder mirrors VideoDecoder for the audio path.
type AudioDecoder struct {
	name    string
	engine  engine.Decoder
	inEdge  *stream.Edge
	outEdge *stream.Edge
	inID    media.StreamId
	outID   media.StreamId
}

func NewAudioDecoder(name string, eng engine.Decoder, inID, outID media.StreamId, in, out *stream.Edge) *AudioDecoder {
	return &AudioDecoder{name: name, engine: eng, inEdge: in, outEdge: out, inID: inID, outID: outID}
}

func (d *AudioDecoder) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{Name: d.name, InputStreamIDs: []media.StreamId{d.inID}, OutputStreamIDs: []media.StreamId{d.outID}}
}

func (d *AudioDecoder) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (d *AudioDecoder) ProcessOutput() stream.Outcome {
	if d.inEdge.EOS() {
		d.outEdge.Close()
		return stream.OutcomeFinished()
	}
	sample, ok := d.inEdge.Recv()
	if !ok {
		return stream.OutcomePendingOn(d.inID)
	}
	audio, err := sample.ExpectAudio()
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.ContractViolation, d.name, err))
	}

	pcm, err := d.engine.Decode(audio.Data, audio.Timestamp.Nanoseconds())
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.EngineFailure, d.name, err))
	}

	out := &media.AudioData{
		SourceID:   audio.SourceID,
		Format:     media.AudioFormatI16BE,
		Stereo:     true,
		SampleRate: media.AudioSampleRate48k,
		Timestamp:  audio.Timestamp,
		Duration:   audio.Duration,
		Data:       pcm,
	}
	d.outEdge.Send(media.NewAudioSample(out))
	return stream.OutcomeProcessed()
}
