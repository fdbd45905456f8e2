package codec

import (
	"github.com/sorapipe/compositor/internal/codec/h264"
	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/engine"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/sampleentry"
	"github.com/sorapipe/compositor/internal/stream"
)

// VideoEncoder drives an engine.Encoder collaborator over one input edge
// of raw I420 frames, emitting encoded VideoFrame samples (with the
// sample entry attached once parameter sets stabilize) onto its output
// edge. It owns the ParameterSetCache and re-synthesizes the sample
// entry on every keyframe that carries parameter sets, once the cache
// is Ready. For H.264/H.265 it rewrites the engine's Annex-B output to
// the length-prefixed form the MP4 writer expects; every codec's I420
// input is converted to NV12 before reaching the engine.
type VideoEncoder struct {
	name    string
	codec   media.CodecName
	engine  engine.Encoder
	params  *ParameterSetCache
	inEdge  *stream.Edge
	outEdge *stream.Edge
	inID    media.StreamId
	outID   media.StreamId

	width, height              media.EvenUsize
	frameRateNum, frameRateDen uint32
	entry                      *media.SampleEntry
}

// NewVideoEncoder wires an encoder engine between two graph edges.
// frameRateNum/frameRateDen are the mixer's output cadence, threaded
// through to the avgFrameRate field of an H.265 sample entry.
func NewVideoEncoder(name string, codecName media.CodecName, eng engine.Encoder, width, height media.EvenUsize, frameRateNum, frameRateDen uint32, inID, outID media.StreamId, in, out *stream.Edge) (*VideoEncoder, error) {
	enc := &VideoEncoder{
		name: name, codec: codecName, engine: eng, params: NewParameterSetCache(codecName),
		inEdge: in, outEdge: out, inID: inID, outID: outID, width: width, height: height,
		frameRateNum: frameRateNum, frameRateDen: frameRateDen,
	}
	// VP8/VP9 sample entries don't depend on inline parameter sets (no
	// vpcC field needs anything beyond the stream's fixed dimensions),
	// so synthesize them once, up front, mirroring AudioEncoder below.
	switch codecName {
	case media.CodecVP8:
		entry, err := sampleentry.VP8(width, height)
		if err != nil {
			return nil, err
		}
		enc.entry = entry
	case media.CodecVP9:
		entry, err := sampleentry.VP9(width, height)
		if err != nil {
			return nil, err
		}
		enc.entry = entry
	}
	return enc, nil
}

func (e *VideoEncoder) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{Name: e.name, InputStreamIDs: []media.StreamId{e.inID}, OutputStreamIDs: []media.StreamId{e.outID}}
}

// Params exposes the encoder's parameter-set cache, used by container
// writers that need SPS/PPS/VPS to build their init segment.
func (e *VideoEncoder) Params() *ParameterSetCache { return e.params }

func (e *VideoEncoder) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (e *VideoEncoder) ProcessOutput() stream.Outcome {
	if e.inEdge.EOS() {
		e.outEdge.Close()
		return stream.OutcomeFinished()
	}
	sample, ok := e.inEdge.Recv()
	if !ok {
		return stream.OutcomePendingOn(e.inID)
	}
	frame, err := sample.ExpectVideo()
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.ContractViolation, e.name, err))
	}

	// The engine seam is fixed at NV12 (see internal/engine); the mixer
	// hands this encoder I420 canvases.
	nv12 := I420ToNV12(frame.Data, e.width, e.height)
	encoded, keyFrame, err := e.engine.Encode(nv12, frame.Timestamp.Nanoseconds(), false)
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.EngineFailure, e.name, err))
	}

	switch {
	case isAVCFamily(e.codec):
		if !h264.ValidateAnnexBData(encoded) {
			return stream.OutcomeFatal(compositorerr.Newf(compositorerr.EngineFailure, e.name, "engine %q returned malformed Annex-B data", e.codec))
		}
		if !keyFrame && h264.IsKeyFrame(encoded) {
			// Some encoders don't reliably flag their own keyframes;
			// original_source's decoder resets its parameter-set state
			// on every true IDR, so a misreported one here would desync
			// the cache downstream.
			keyFrame = true
		}
		if keyFrame {
			e.params.Observe(encoded)
			if e.params.ConsumeDirty() && e.params.Ready() {
				entry, err := e.synthesizeEntry()
				if err != nil {
					return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.EngineFailure, e.name, err))
				}
				e.entry = entry
			}
		}
		avcc, err := h264.ConvertAnnexBToAVC(encoded)
		if err != nil {
			return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.EngineFailure, e.name, err))
		}
		encoded = avcc

	case e.codec == media.CodecAV1 && keyFrame && e.entry == nil:
		// A stricter implementation would pick the OBU_SEQUENCE_HEADER
		// out of the access unit's OBU stream; every shipped engine is
		// a pass-through placeholder (internal/engine) with no real OBU
		// framing to parse yet, so the whole first keyframe access unit
		// is used directly.
		entry, err := sampleentry.AV1(e.width, e.height, encoded)
		if err != nil {
			return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.EngineFailure, e.name, err))
		}
		e.entry = entry
	}

	out := &media.VideoFrame{
		SourceID:    frame.SourceID,
		Format:      media.VideoFormat(e.codec),
		Width:       e.width,
		Height:      e.height,
		Timestamp:   frame.Timestamp,
		KeyFrame:    keyFrame,
		Data:        encoded,
		SampleEntry: e.entry,
	}
	e.outEdge.Send(media.NewVideoSample(out))
	return stream.OutcomeProcessed()
}

func (e *VideoEncoder) synthesizeEntry() (*media.SampleEntry, error) {
	switch e.codec {
	case media.CodecH264:
		return sampleentry.H264(e.width, e.height, e.params.SPS(), e.params.PPS())
	case media.CodecH265:
		return sampleentry.H265(e.width, e.height, e.params.VPS(), e.params.SPS(), e.params.PPS(), e.frameRateNum, e.frameRateDen)
	default:
		return nil, compositorerr.Newf(compositorerr.EngineFailure, e.name, "no sample-entry synthesis for codec %q", e.codec)
	}
}

// AudioEncoder mirrors VideoEncoder for the audio path; Opus/AAC sample
// entries don't depend on inline parameter sets, so it synthesizes the
// entry once, up front.
type AudioEncoder struct {
	name    string
	codec   media.CodecName
	engine  engine.Encoder
	inEdge  *stream.Edge
	outEdge *stream.Edge
	inID    media.StreamId
	outID   media.StreamId
	entry   *media.SampleEntry
}

func NewAudioEncoder(name string, codecName media.CodecName, eng engine.Encoder, inID, outID media.StreamId, in, out *stream.Edge) (*AudioEncoder, error) {
	var entry *media.SampleEntry
	var err error
	switch codecName {
	case media.CodecOpus:
		entry, err = sampleentry.Opus()
	case media.CodecAAC:
		entry, err = sampleentry.AAC()
	default:
		err = compositorerr.Newf(compositorerr.EngineFailure, name, "no sample-entry synthesis for codec %q", codecName)
	}
	if err != nil {
		return nil, err
	}
	return &AudioEncoder{name: name, codec: codecName, engine: eng, inEdge: in, outEdge: out, inID: inID, outID: outID, entry: entry}, nil
}

func (e *AudioEncoder) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{Name: e.name, InputStreamIDs: []media.StreamId{e.inID}, OutputStreamIDs: []media.StreamId{e.outID}}
}

func (e *AudioEncoder) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (e *AudioEncoder) ProcessOutput() stream.Outcome {
	if e.inEdge.EOS() {
		e.outEdge.Close()
		return stream.OutcomeFinished()
	}
	sample, ok := e.inEdge.Recv()
	if !ok {
		return stream.OutcomePendingOn(e.inID)
	}
	audio, err := sample.ExpectAudio()
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.ContractViolation, e.name, err))
	}

	encoded, _, err := e.engine.Encode(audio.Data, audio.Timestamp.Nanoseconds(), false)
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.EngineFailure, e.name, err))
	}

	out := &media.AudioData{
		SourceID:    audio.SourceID,
		Format:      media.AudioFormat(e.codec),
		Stereo:      true,
		SampleRate:  media.AudioSampleRate48k,
		Timestamp:   audio.Timestamp,
		Duration:    audio.Duration,
		Data:        encoded,
		SampleEntry: e.entry,
	}
	e.outEdge.Send(media.NewAudioSample(out))
	return stream.OutcomeProcessed()
}
