// Package sink implements the terminal graph node of a compose run: the
// processor that drains the final encoded video/audio edges and writes
// them to a container file. There is no teacher or example file for this
// exact seam either (the corpus's own output side is a live HTTP/WebRTC
// sink, not a finite two-edge file writer), so both sinks are built
// directly against the container writers' own Init/WriteVideo/WriteAudio
// contracts in internal/container/mp4 and internal/container/webm.
package sink

import (
	"github.com/sorapipe/compositor/internal/codec"
	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/container/mp4"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
)

const (
	mp4VideoTrackID  = 1
	mp4AudioTrackID  = 2
	mp4VideoTimeScale = 90000
	mp4AudioTimeScale = 48000
)

// MP4Sink drains the composited video and mixed audio edges into a
// fragmented MP4 writer. H.264/H.265 need their SPS/PPS/VPS parameter
// sets before the init segment can be written, so this sink defers
// Init until the video encoder's ParameterSetCache reports Ready,
// dropping any frame that arrives before then (it has no sample entry
// to seed the init segment and can't be decoded without one anyway).
type MP4Sink struct {
	name       string
	w          *mp4.Writer
	videoCodec media.CodecName
	params     *codec.ParameterSetCache
	outW, outH media.EvenUsize

	videoID, audioID   media.StreamId
	videoEdge, audioEdge *stream.Edge

	initialized          bool
	videoDone, audioDone bool
}

// NewMP4Sink builds a sink over the given output edges. params is the
// VideoEncoder's parameter-set cache (VideoEncoder.Params()); it is
// read-only from the sink's perspective.
func NewMP4Sink(name string, w *mp4.Writer, videoCodec media.CodecName, params *codec.ParameterSetCache, outW, outH media.EvenUsize, videoID, audioID media.StreamId, videoEdge, audioEdge *stream.Edge) *MP4Sink {
	return &MP4Sink{
		name: name, w: w, videoCodec: videoCodec, params: params, outW: outW, outH: outH,
		videoID: videoID, audioID: audioID, videoEdge: videoEdge, audioEdge: audioEdge,
	}
}

func (s *MP4Sink) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{Name: s.name, InputStreamIDs: []media.StreamId{s.videoID, s.audioID}}
}

func (s *MP4Sink) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (s *MP4Sink) ProcessOutput() stream.Outcome {
	if s.videoDone && s.audioDone {
		return stream.OutcomeFinished()
	}

	if !s.initialized {
		outcome, done, err := s.tryInit()
		if err != nil {
			return stream.OutcomeFatal(err)
		}
		if !done {
			return outcome
		}
		s.initialized = true
	}

	return s.drain()
}

// tryInit waits until the video encoder's parameter sets are Ready or
// the head video sample carries a sample entry, dropping any sample
// without a sample entry that shows up before then, then writes the
// init segment.
func (s *MP4Sink) tryInit() (stream.Outcome, bool, error) {
	if !s.params.Ready() {
		sample, ok := s.videoEdge.Peek()
		if !ok {
			if s.videoEdge.EOS() {
				return stream.Outcome{}, false, compositorerr.Newf(compositorerr.ContractViolation, s.name, "video stream ended before any keyframe was observed")
			}
			return stream.OutcomePendingOn(s.videoID), false, nil
		}
		frame, err := sample.ExpectVideo()
		if err != nil {
			return stream.Outcome{}, false, compositorerr.Wrap(compositorerr.ContractViolation, s.name, err)
		}
		if frame.SampleEntry == nil {
			s.videoEdge.Recv()
			return stream.OutcomeProcessed(), false, nil
		}
	}

	specs := []mp4.TrackSpec{
		{ID: mp4VideoTrackID, TimeScale: mp4VideoTimeScale, Codec: s.videoCodec, Width: s.outW, Height: s.outH,
			VPS: s.params.VPS(), SPS: s.params.SPS(), PPS: s.params.PPS()},
		{ID: mp4AudioTrackID, TimeScale: mp4AudioTimeScale, Codec: media.CodecOpus},
	}
	if err := s.w.Init(specs); err != nil {
		return stream.Outcome{}, false, compositorerr.Wrap(compositorerr.IoFailure, s.name, err)
	}
	return stream.Outcome{}, true, nil
}

func (s *MP4Sink) drain() stream.Outcome {
	progressed := false

	if !s.videoDone {
		if s.videoEdge.EOS() {
			s.videoDone = true
			progressed = true
		} else if sample, ok := s.videoEdge.Recv(); ok {
			frame, err := sample.ExpectVideo()
			if err != nil {
				return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.ContractViolation, s.name, err))
			}
			if err := s.w.WriteVideo(mp4VideoTrackID, frame); err != nil {
				return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.IoFailure, s.name, err))
			}
			progressed = true
		}
	}

	if !s.audioDone {
		if s.audioEdge.EOS() {
			s.audioDone = true
			progressed = true
		} else if sample, ok := s.audioEdge.Recv(); ok {
			data, err := sample.ExpectAudio()
			if err != nil {
				return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.ContractViolation, s.name, err))
			}
			if err := s.w.WriteAudio(mp4AudioTrackID, data); err != nil {
				return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.IoFailure, s.name, err))
			}
			progressed = true
		}
	}

	if s.videoDone && s.audioDone {
		return stream.OutcomeFinished()
	}
	if progressed {
		return stream.OutcomeProcessed()
	}
	return stream.OutcomePendingOn(s.videoID)
}

// Close finalizes the underlying writer.
func (s *MP4Sink) Close() error {
	return s.w.Close()
}
