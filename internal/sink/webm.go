package sink

import (
	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/container/webm"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
)

// WebMSink drains the composited video and mixed audio edges into a
// WebM writer. Unlike the MP4 path, VP8/VP9 sample entries don't depend
// on in-band parameter sets, so the writer's tracks are finalized
// up front when the webm.Writer is constructed and there is no
// deferred-init phase.
type WebMSink struct {
	name                 string
	w                    *webm.Writer
	videoID, audioID     media.StreamId
	videoEdge, audioEdge *stream.Edge
	videoDone, audioDone bool
}

// NewWebMSink builds a sink over the given output edges and an
// already-initialized WebM writer.
func NewWebMSink(name string, w *webm.Writer, videoID, audioID media.StreamId, videoEdge, audioEdge *stream.Edge) *WebMSink {
	return &WebMSink{name: name, w: w, videoID: videoID, audioID: audioID, videoEdge: videoEdge, audioEdge: audioEdge}
}

func (s *WebMSink) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{Name: s.name, InputStreamIDs: []media.StreamId{s.videoID, s.audioID}}
}

func (s *WebMSink) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (s *WebMSink) ProcessOutput() stream.Outcome {
	if s.videoDone && s.audioDone {
		return stream.OutcomeFinished()
	}
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
			if err := s.w.WriteVideo(frame); err != nil {
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
			if err := s.w.WriteAudio(data); err != nil {
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
func (s *WebMSink) Close() error {
	return s.w.Close()
}
