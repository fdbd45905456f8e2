package mixer

import (
	"time"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
	"github.com/sorapipe/compositor/internal/stats"
	"github.com/sorapipe/compositor/internal/stream"
)

// Layout renders one composited I420 canvas from the current latched
// frame of every source stream. The geometric tiling policy (grid size,
// cell placement, scaling) is deliberately external to the mixer: the
// mixer's contract is the pull/timing discipline, not the picture
// arrangement.
type Layout interface {
	// Render returns the I420 bytes for a canvas of size outW x outH at
	// presentation time t, given the current frame latched for each
	// source (a nil entry means that source has never produced a frame).
	Render(current map[media.SourceId]*media.VideoFrame, outW, outH media.EvenUsize, t time.Duration) []byte
}

type videoInputStream struct {
	eos     bool
	queue   []*media.VideoFrame
	current *media.VideoFrame
}

// VideoMixer emits one composited I420 frame per output tick at a fixed
// F = num/den frame rate, latching the most recent frame from each
// source and freezing it when that source is lagging or has ended.
// Grounded on the pull/timing contract spec.md lays out explicitly for
// this component (no original_source file covers the compositor: the
// reference implementation's tiling logic lives outside the filtered
// source set, so the pull discipline below is implemented directly from
// the written contract rather than ported line-for-line).
type VideoMixer struct {
	num, den uint32

	inputEdges   map[media.StreamId]*stream.Edge
	sourceOf     map[media.StreamId]media.SourceId
	inputStreams map[media.StreamId]*videoInputStream

	outW, outH     media.EvenUsize
	outputStreamID media.StreamId
	outEdge        *stream.Edge
	layout         Layout

	tick  uint64
	stats *stats.ProcessorStats
}

// NewVideoMixer builds a VideoMixer. sourceOf maps each input stream id
// to the SourceId the layout should key its tiles by.
func NewVideoMixer(num, den uint32, inputEdges map[media.StreamId]*stream.Edge, sourceOf map[media.StreamId]media.SourceId, outW, outH media.EvenUsize, layout Layout, outputStreamID media.StreamId, outEdge *stream.Edge) *VideoMixer {
	streams := make(map[media.StreamId]*videoInputStream, len(inputEdges))
	for id := range inputEdges {
		streams[id] = &videoInputStream{}
	}
	return &VideoMixer{
		num: num, den: den,
		inputEdges: inputEdges, sourceOf: sourceOf, inputStreams: streams,
		outW: outW, outH: outH, layout: layout,
		outputStreamID: outputStreamID, outEdge: outEdge,
		stats: stats.New("video_mixer"),
	}
}

// Stats exposes the mixer's observability counters.
func (m *VideoMixer) Stats() *stats.ProcessorStats { return m.stats }

// FrameRate returns the mixer's fixed output cadence as num/den, for
// components downstream (e.g. the H.265 sample entry's avgFrameRate)
// that need to match it.
func (m *VideoMixer) FrameRate() (num, den uint32) { return m.num, m.den }

// Spec implements stream.Processor.
func (m *VideoMixer) Spec() media.ProcessorSpec {
	ids := make([]media.StreamId, 0, len(m.inputEdges))
	for id := range m.inputEdges {
		ids = append(ids, id)
	}
	return media.ProcessorSpec{
		Name:            "video_mixer",
		InputStreamIDs:  ids,
		OutputStreamIDs: []media.StreamId{m.outputStreamID},
	}
}

// ProcessInput implements stream.Processor; the mixer pulls directly
// from its input edges inside ProcessOutput, so this is a no-op.
func (m *VideoMixer) ProcessInput(media.StreamId, media.MediaSample, bool) {}

func (m *VideoMixer) tickDuration() time.Duration {
	return time.Duration(m.den) * time.Second / time.Duration(m.num)
}

func (m *VideoMixer) outputTimestamp(k uint64) time.Duration {
	return time.Duration(k) * time.Duration(m.den) * time.Second / time.Duration(m.num)
}

// ProcessOutput implements stream.Processor.
func (m *VideoMixer) ProcessOutput() stream.Outcome {
	tOut := m.outputTimestamp(m.tick)

	for id, edge := range m.inputEdges {
		is := m.inputStreams[id]
		if err := m.drain(id, edge, is); err != nil {
			return stream.OutcomeFatal(err)
		}

		for len(is.queue) > 0 && is.queue[0].Timestamp+is.queue[0].Duration <= tOut {
			is.current = is.queue[0]
			is.queue = is.queue[1:]
		}

		ready := is.eos || (len(is.queue) > 0 && is.queue[0].Timestamp > tOut)
		if !ready {
			return stream.OutcomePendingOn(id)
		}
	}

	allDone := true
	for id, is := range m.inputStreams {
		_ = id
		if !(is.eos && len(is.queue) == 0) {
			allDone = false
			break
		}
	}
	if allDone {
		m.outEdge.Close()
		return stream.OutcomeFinished()
	}

	current := make(map[media.SourceId]*media.VideoFrame, len(m.inputStreams))
	for id, is := range m.inputStreams {
		current[m.sourceOf[id]] = is.current
	}

	pixels := m.layout.Render(current, m.outW, m.outH, tOut)
	out := &media.VideoFrame{
		Format:    media.VideoFormatI420,
		Width:     m.outW,
		Height:    m.outH,
		Timestamp: tOut,
		Duration:  m.tickDuration(),
		Data:      pixels,
	}
	m.outEdge.Send(media.NewVideoSample(out))
	m.stats.AddSamplesOut(1)
	m.tick++
	return stream.OutcomeProcessed()
}

// drain pulls every currently-available frame off edge into is's queue,
// without blocking.
func (m *VideoMixer) drain(id media.StreamId, edge *stream.Edge, is *videoInputStream) error {
	if is.eos {
		return nil
	}
	for {
		sample, ok := edge.Recv()
		if !ok {
			if edge.EOS() {
				is.eos = true
			}
			return nil
		}
		frame, err := sample.ExpectVideo()
		if err != nil {
			return compositorerr.Wrap(compositorerr.ContractViolation, "video_mixer", err)
		}
		if frame.Format != media.VideoFormatI420 {
			return compositorerr.Newf(compositorerr.InputFormat, "video_mixer", "stream %d: expected I420, got %q", id, frame.Format)
		}
		is.queue = append(is.queue, frame)
	}
}

// GridLayout is the default Layout: an N-up grid, left-to-right,
// top-to-bottom, each source scaled into an equal-size cell via nearest
// neighbour sampling. This is a convenience default rather than a
// ported algorithm: spec.md treats the tiling geometry itself as an
// external, unspecified parameter, so there is no teacher/example file
// to ground a particular arrangement on.
type GridLayout struct {
	Sources []media.SourceId
	Cols    int
}

// Render implements Layout.
func (g *GridLayout) Render(current map[media.SourceId]*media.VideoFrame, outW, outH media.EvenUsize, t time.Duration) []byte {
	w, h := outW.Get(), outH.Get()
	canvas := make([]byte, w*h+2*((w/2)*(h/2)))
	fillGray(canvas, w, h, 16, 128)

	if len(g.Sources) == 0 {
		return canvas
	}
	cols := g.Cols
	if cols <= 0 {
		cols = ceilSqrt(len(g.Sources))
	}
	rows := (len(g.Sources) + cols - 1) / cols
	cellW := media.TruncatingEvenUsize(w / cols)
	cellH := media.TruncatingEvenUsize(h / rows)

	for i, src := range g.Sources {
		frame := current[src]
		if frame == nil {
			continue
		}
		col, row := i%cols, i/cols
		x0, y0 := col*cellW.Get(), row*cellH.Get()
		blitI420(canvas, w, h, x0, y0, cellW.Get(), cellH.Get(), frame.Data, frame.Width.Get(), frame.Height.Get())
	}
	return canvas
}

func ceilSqrt(n int) int {
	c := 1
	for c*c < n {
		c++
	}
	return c
}

func fillGray(canvas []byte, w, h int, y, uv byte) {
	ySize := w * h
	for i := 0; i < ySize; i++ {
		canvas[i] = y
	}
	for i := ySize; i < len(canvas); i++ {
		canvas[i] = uv
	}
}

// blitI420 nearest-neighbour scales src (srcW x srcH I420) into the
// destination canvas at (x0, y0) sized (dstW x dstH).
func blitI420(dst []byte, dstStrideW, dstStrideH, x0, y0, dstW, dstH int, src []byte, srcW, srcH int) {
	if srcW == 0 || srcH == 0 || dstW == 0 || dstH == 0 {
		return
	}
	dstYPlane := dst[:dstStrideW*dstStrideH]
	dstUPlane := dst[dstStrideW*dstStrideH : dstStrideW*dstStrideH+(dstStrideW/2)*(dstStrideH/2)]
	dstVPlane := dst[dstStrideW*dstStrideH+(dstStrideW/2)*(dstStrideH/2):]

	srcYPlane := src[:srcW*srcH]
	srcUPlane := src[srcW*srcH : srcW*srcH+(srcW/2)*(srcH/2)]
	srcVPlane := src[srcW*srcH+(srcW/2)*(srcH/2):]

	for y := 0; y < dstH; y++ {
		sy := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			sx := x * srcW / dstW
			dstYPlane[(y0+y)*dstStrideW+(x0+x)] = srcYPlane[sy*srcW+sx]
		}
	}
	for y := 0; y < dstH/2; y++ {
		sy := y * (srcH / 2) / (dstH / 2)
		for x := 0; x < dstW/2; x++ {
			sx := x * (srcW / 2) / (dstW / 2)
			dstUPlane[(y0/2+y)*(dstStrideW/2)+(x0/2+x)] = srcUPlane[sy*(srcW/2)+sx]
			dstVPlane[(y0/2+y)*(dstStrideW/2)+(x0/2+x)] = srcVPlane[sy*(srcW/2)+sx]
		}
	}
}
