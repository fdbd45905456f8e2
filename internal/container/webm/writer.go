// Package webm writes the compositor's output as a WebM container, used
// for audio-only (Opus) and VP8/VP9 outputs where the caller asked for
// a WebM instead of an MP4 target. Adapted from the teacher's
// transport/stream/webm_muxer.go, which drives the same
// at-wat/ebml-go SimpleBlockWriter for a live mixed audio/video stream;
// this writer fixes the track set at construction time instead of
// discovering it from a live negotiation, since a compositor run knows
// its output tracks up front.
package webm

import (
	"fmt"
	"io"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
)

func codecID(c media.CodecName) (string, error) {
	switch c {
	case media.CodecVP8:
		return "V_VP8", nil
	case media.CodecVP9:
		return "V_VP9", nil
	case media.CodecOpus:
		return "A_OPUS", nil
	default:
		return "", fmt.Errorf("webm: codec %q has no WebM mapping (H.264/H.265/AV1/AAC outputs require the MP4 writer)", c)
	}
}

// TrackSpec describes one track of the output container.
type TrackSpec struct {
	Codec         media.CodecName
	Width, Height media.EvenUsize // video tracks only
}

// Writer muxes up to one video and one audio track into a single WebM
// stream over w.
type Writer struct {
	w io.Writer

	videoWriter webm.BlockWriteCloser
	audioWriter webm.BlockWriteCloser
	videoTrack  int
	audioTrack  int
}

// writerCloser adapts an io.Writer to the io.WriteCloser SimpleBlockWriter
// wants, without giving it the ability to close the caller's writer.
type writerCloser struct {
	w      io.Writer
	closed bool
}

func (wc *writerCloser) Write(p []byte) (int, error) {
	if wc.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := wc.w.Write(p)
	if err != nil {
		wc.closed = true
	}
	return n, err
}

func (wc *writerCloser) Close() error {
	wc.closed = true
	return nil
}

// NewWriter builds the WebM segment header for the given tracks (at most
// one video, at most one audio track) and returns a Writer ready to
// accept samples.
func NewWriter(w io.Writer, tracks []TrackSpec) (*Writer, error) {
	out := &Writer{w: w, videoTrack: -1, audioTrack: -1}

	entries := make([]webm.TrackEntry, 0, len(tracks))
	for _, t := range tracks {
		id, err := codecID(t.Codec)
		if err != nil {
			return nil, compositorerr.Wrap(compositorerr.InputFormat, "webm_writer", err)
		}
		switch t.Codec {
		case media.CodecVP8, media.CodecVP9:
			out.videoTrack = len(entries)
			entries = append(entries, webm.TrackEntry{
				Name:            "Video",
				TrackNumber:     uint64(len(entries) + 1),
				TrackUID:        uint64(len(entries) + 1),
				CodecID:         id,
				TrackType:       1,
				DefaultDuration: uint64((time.Second / 30).Nanoseconds()),
				Video: &webm.Video{
					PixelWidth:  uint64(t.Width.Get()),
					PixelHeight: uint64(t.Height.Get()),
				},
			})
		case media.CodecOpus:
			out.audioTrack = len(entries)
			entries = append(entries, webm.TrackEntry{
				Name:            "Audio",
				TrackNumber:     uint64(len(entries) + 1),
				TrackUID:        uint64(len(entries) + 1),
				CodecID:         id,
				TrackType:       2,
				DefaultDuration: uint64((20 * time.Millisecond).Nanoseconds()),
				Audio: &webm.Audio{
					SamplingFrequency: float64(media.AudioSampleRate48k),
					Channels:          uint64(media.AudioChannelsStereo),
				},
			})
		}
	}
	if len(entries) == 0 {
		return nil, compositorerr.Newf(compositorerr.ContractViolation, "webm_writer", "no writable tracks")
	}

	writers, err := webm.NewSimpleBlockWriter(&writerCloser{w: w}, entries,
		mkvcore.WithOnFatalHandler(func(error) {}))
	if err != nil {
		return nil, compositorerr.Wrap(compositorerr.IoFailure, "webm_writer", fmt.Errorf("init segment: %w", err))
	}
	if out.videoTrack >= 0 {
		out.videoWriter = writers[out.videoTrack]
	}
	if out.audioTrack >= 0 {
		out.audioWriter = writers[out.audioTrack]
	}
	return out, nil
}

// WriteVideo writes one VP8/VP9 frame.
func (w *Writer) WriteVideo(frame *media.VideoFrame) error {
	if w.videoWriter == nil {
		return compositorerr.Newf(compositorerr.ContractViolation, "webm_writer", "no video track configured")
	}
	if len(frame.Data) == 0 {
		return nil
	}
	if _, err := w.videoWriter.Write(frame.KeyFrame, frame.Timestamp.Milliseconds(), frame.Data); err != nil {
		return compositorerr.Wrap(compositorerr.IoFailure, "webm_writer", err)
	}
	return nil
}

// WriteAudio writes one Opus frame.
func (w *Writer) WriteAudio(data *media.AudioData) error {
	if w.audioWriter == nil {
		return compositorerr.Newf(compositorerr.ContractViolation, "webm_writer", "no audio track configured")
	}
	if len(data.Data) == 0 {
		return nil
	}
	if _, err := w.audioWriter.Write(true, data.Timestamp.Milliseconds(), data.Data); err != nil {
		return compositorerr.Wrap(compositorerr.IoFailure, "webm_writer", err)
	}
	return nil
}

// Close finalizes both tracks.
func (w *Writer) Close() error {
	var firstErr error
	if w.videoWriter != nil {
		if err := w.videoWriter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.audioWriter != nil {
		if err := w.audioWriter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return compositorerr.Wrap(compositorerr.IoFailure, "webm_writer", firstErr)
	}
	return nil
}
