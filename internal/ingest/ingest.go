// Package ingest adapts the pull-based container.mp4.Reader and
// container.webm.Reader demuxers to the push-based stream.Processor
// contract every other graph node speaks: a feeder reads one sample at
// a time from its container reader and pushes it onto the matching
// audio/video output edge. There is no teacher or example file for this
// specific seam (archive ingestion is a detail the corpus's own
// streaming device_connect pipeline never needed, since it muxes a live
// WebRTC session instead of reading one back), so the feeders are built
// directly from the contract spec.md §6.1 and §6.2 lay out for archive
// reading: one source-tagged stream of AudioData/VideoFrame, keyframe
// and sample-entry carried on the samples themselves.
package ingest

import (
	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/container/mp4"
	"github.com/sorapipe/compositor/internal/container/webm"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stream"
)

// MP4Feeder pushes the samples of one MP4Reader track onto a single
// output edge. A source with both audio and video tracks needs one
// feeder per track.
type MP4Feeder struct {
	name       string
	reader     *mp4.Reader
	trackIndex int
	outID      media.StreamId
	outEdge    *stream.Edge
	done       bool
}

// NewMP4Feeder builds a feeder for one track of an already-opened reader.
func NewMP4Feeder(name string, reader *mp4.Reader, trackIndex int, outID media.StreamId, out *stream.Edge) *MP4Feeder {
	return &MP4Feeder{name: name, reader: reader, trackIndex: trackIndex, outID: outID, outEdge: out}
}

func (f *MP4Feeder) Spec() media.ProcessorSpec {
	return media.ProcessorSpec{Name: f.name, OutputStreamIDs: []media.StreamId{f.outID}}
}

func (f *MP4Feeder) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (f *MP4Feeder) ProcessOutput() stream.Outcome {
	if f.done {
		return stream.OutcomeFinished()
	}
	sample, ok, err := f.reader.Next(f.trackIndex)
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.IoFailure, f.name, err))
	}
	if !ok {
		f.outEdge.Close()
		f.done = true
		return stream.OutcomeFinished()
	}
	f.outEdge.Send(sample)
	return stream.OutcomeProcessed()
}

// WebMFeeder demultiplexes every track of a webm.Reader onto the
// matching audio/video output edges, since webm.Reader.Next returns
// samples interleaved across tracks in file order rather than one track
// at a time.
type WebMFeeder struct {
	name        string
	reader      *webm.Reader
	audioTrack  int
	videoTrack  int
	audioOutID  media.StreamId
	videoOutID  media.StreamId
	audioEdge   *stream.Edge
	videoEdge   *stream.Edge
	audioClosed bool
	videoClosed bool
	done        bool
}

// NewWebMFeeder builds a feeder for reader's audio and/or video tracks.
// Pass -1 for a track index the source doesn't carry, and nil for the
// corresponding edge.
func NewWebMFeeder(name string, reader *webm.Reader, audioTrack, videoTrack int, audioOutID, videoOutID media.StreamId, audioEdge, videoEdge *stream.Edge) *WebMFeeder {
	f := &WebMFeeder{
		name: name, reader: reader,
		audioTrack: audioTrack, videoTrack: videoTrack,
		audioOutID: audioOutID, videoOutID: videoOutID,
		audioEdge: audioEdge, videoEdge: videoEdge,
	}
	if audioTrack < 0 {
		f.audioClosed = true
	}
	if videoTrack < 0 {
		f.videoClosed = true
	}
	return f
}

func (f *WebMFeeder) Spec() media.ProcessorSpec {
	var out []media.StreamId
	if !f.audioClosed {
		out = append(out, f.audioOutID)
	}
	if !f.videoClosed {
		out = append(out, f.videoOutID)
	}
	return media.ProcessorSpec{Name: f.name, OutputStreamIDs: out}
}

func (f *WebMFeeder) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (f *WebMFeeder) ProcessOutput() stream.Outcome {
	if f.done {
		return stream.OutcomeFinished()
	}
	trackIdx, sample, ok, err := f.reader.Next()
	if err != nil {
		return stream.OutcomeFatal(compositorerr.Wrap(compositorerr.IoFailure, f.name, err))
	}
	if !ok {
		if !f.audioClosed && f.audioEdge != nil {
			f.audioEdge.Close()
		}
		if !f.videoClosed && f.videoEdge != nil {
			f.videoEdge.Close()
		}
		f.done = true
		return stream.OutcomeFinished()
	}

	switch trackIdx {
	case f.audioTrack:
		f.audioEdge.Send(sample)
	case f.videoTrack:
		f.videoEdge.Send(sample)
	}
	return stream.OutcomeProcessed()
}
