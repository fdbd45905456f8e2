package mp4

import (
	"bytes"
	"fmt"
	"io"
	"time"

	gomp4 "github.com/abema/go-mp4"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
)

// Reader demuxes a non-fragmented MP4 archive (moov with full stbl
// sample tables, one mdat) into a source-tagged sequence of
// media.AudioData/media.VideoFrame samples, one track at a time. Built
// on abema/go-mp4's generic box-structure walker, since the teacher's
// own dependency surface (transport/stream/fmp4_writer.go) only
// exercises bluenviron/mediacommon's fmp4 *writer* path for a live
// streaming use case; there is no reader to port from, so this parses
// moov/stbl directly from the lower-level box API instead.
type Reader struct {
	r        io.ReadSeeker
	sourceID media.SourceId
	tracks   []*readerTrack
}

type readerTrack struct {
	trackID   uint32
	timeScale uint32
	codec     media.CodecName
	width     media.EvenUsize
	height    media.EvenUsize
	entry     *media.SampleEntry

	samples []sampleLoc
	next    int
}

type sampleLoc struct {
	offset   uint64
	size     uint32
	dts      int64
	syncFlag bool
}

// Open parses the moov box of r and builds the per-track sample tables.
// sourceID tags every sample this reader yields.
func Open(r io.ReadSeeker, sourceID media.SourceId) (*Reader, error) {
	rd := &Reader{r: r, sourceID: sourceID}
	if err := rd.parseMoov(); err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *Reader) parseMoov() error {
	type trakState struct {
		track     *readerTrack
		stscEntry []gomp4.StscEntry
		stszSizes []uint32
		stco      []uint32
		stts      []gomp4.SttsEntry
		stss      map[uint32]bool
	}
	var cur *trakState

	_, err := gomp4.ReadBoxStructure(r.r, func(h *gomp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type.String() {
		case "trak":
			cur = &trakState{track: &readerTrack{}, stss: map[uint32]bool{}}
			if _, err := h.Expand(); err != nil {
				return nil, err
			}
			r.tracks = append(r.tracks, cur.track)
			return nil, nil

		case "mdhd":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			mdhd := box.(*gomp4.Mdhd)
			cur.track.timeScale = mdhd.Timescale

		case "tkhd":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			tkhd := box.(*gomp4.Tkhd)
			if w, ok := media.NewEvenUsize(int(tkhd.Width >> 16)); ok {
				cur.track.width = w
			}
			if ht, ok := media.NewEvenUsize(int(tkhd.Height >> 16)); ok {
				cur.track.height = ht
			}

		case "stsd":
			if _, err := h.Expand(); err != nil {
				return nil, err
			}

		case "avc1":
			cur.track.codec = media.CodecH264
			if _, err := h.Expand(); err != nil {
				return nil, err
			}
		case "hev1", "hvc1":
			cur.track.codec = media.CodecH265
			if _, err := h.Expand(); err != nil {
				return nil, err
			}
		case "vp09":
			cur.track.codec = media.CodecVP9
			if _, err := h.Expand(); err != nil {
				return nil, err
			}
		case "av01":
			cur.track.codec = media.CodecAV1
			if _, err := h.Expand(); err != nil {
				return nil, err
			}
		case "Opus":
			cur.track.codec = media.CodecOpus
			if _, err := h.Expand(); err != nil {
				return nil, err
			}
		case "mp4a":
			cur.track.codec = media.CodecAAC
			if _, err := h.Expand(); err != nil {
				return nil, err
			}

		case "avcC", "hvcC", "vpcC", "av1C", "dOps", "esds":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			var buf bytes.Buffer
			if _, err := gomp4.Marshal(&buf, box, gomp4.Context{}); err != nil {
				return nil, err
			}
			cur.track.entry = &media.SampleEntry{Codec: cur.track.codec, Payload: buf.Bytes()}

		case "stts":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			cur.stts = box.(*gomp4.Stts).Entries

		case "stss":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			for _, n := range box.(*gomp4.Stss).SampleNumber {
				cur.stss[n] = true
			}

		case "stsc":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			cur.stscEntry = box.(*gomp4.Stsc).Entries

		case "stsz":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			stsz := box.(*gomp4.Stsz)
			cur.stszSizes = stsz.EntrySize

		case "stco":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			cur.stco = box.(*gomp4.Stco).ChunkOffset

		case "co64":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			co64 := box.(*gomp4.Co64)
			offsets := make([]uint32, len(co64.ChunkOffset))
			for i, o := range co64.ChunkOffset {
				offsets[i] = uint32(o)
			}
			cur.stco = offsets

		case "stbl":
			if _, err := h.Expand(); err != nil {
				return nil, err
			}
			if cur != nil {
				buildSampleTable(cur.track, cur.stscEntry, cur.stszSizes, cur.stco, cur.stts, cur.stss)
			}
		}
		return nil, nil
	})
	if err != nil {
		return compositorerr.Wrap(compositorerr.InputFormat, "mp4_reader", fmt.Errorf("parse moov: %w", err))
	}
	if len(r.tracks) == 0 {
		return compositorerr.Newf(compositorerr.InputFormat, "mp4_reader", "no tracks found")
	}
	return nil
}

func buildSampleTable(t *readerTrack, stsc []gomp4.StscEntry, sizes []uint32, chunkOffsets []uint32, stts []gomp4.SttsEntry, syncSamples map[uint32]bool) {
	if len(stsc) == 0 || len(chunkOffsets) == 0 {
		return
	}

	// Expand stts into a per-sample duration list.
	durations := make([]int64, 0, len(sizes))
	for _, e := range stts {
		for i := uint32(0); i < e.SampleCount; i++ {
			durations = append(durations, int64(e.SampleDelta))
		}
	}

	sampleIdx := 0
	dts := int64(0)
	for chunkIdx := 0; chunkIdx < len(chunkOffsets); chunkIdx++ {
		samplesInChunk := samplesPerChunk(stsc, chunkIdx+1, len(chunkOffsets))
		offset := uint64(chunkOffsets[chunkIdx])
		for i := 0; i < samplesInChunk && sampleIdx < len(sizes); i++ {
			size := sizes[sampleIdx]
			sync := len(syncSamples) == 0 || syncSamples[uint32(sampleIdx+1)]
			t.samples = append(t.samples, sampleLoc{offset: offset, size: size, dts: dts, syncFlag: sync})
			offset += uint64(size)
			if sampleIdx < len(durations) {
				dts += durations[sampleIdx]
			}
			sampleIdx++
		}
	}
}

func samplesPerChunk(stsc []gomp4.StscEntry, chunkNumber, totalChunks int) int {
	for i := len(stsc) - 1; i >= 0; i-- {
		if int(stsc[i].FirstChunk) <= chunkNumber {
			return int(stsc[i].SamplesPerChunk)
		}
	}
	return 0
}

// TrackCount returns the number of tracks found.
func (r *Reader) TrackCount() int { return len(r.tracks) }

// TrackCodec returns the codec of track i.
func (r *Reader) TrackCodec(i int) media.CodecName { return r.tracks[i].codec }

// Next returns the next sample of track i in decode order, or ok=false
// once the track is exhausted.
func (r *Reader) Next(i int) (media.MediaSample, bool, error) {
	t := r.tracks[i]
	if t.next >= len(t.samples) {
		return media.MediaSample{}, false, nil
	}
	loc := t.samples[t.next]
	t.next++

	buf := make([]byte, loc.size)
	if _, err := r.r.Seek(int64(loc.offset), io.SeekStart); err != nil {
		return media.MediaSample{}, false, compositorerr.Wrap(compositorerr.IoFailure, "mp4_reader", err)
	}
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return media.MediaSample{}, false, compositorerr.Wrap(compositorerr.IoFailure, "mp4_reader", err)
	}

	ts := time.Duration(loc.dts) * time.Second / time.Duration(t.timeScale)
	if t.codec == media.CodecOpus || t.codec == media.CodecAAC {
		return media.NewAudioSample(&media.AudioData{
			SourceID:    r.sourceID,
			Format:      audioFormatFor(t.codec),
			Stereo:      true,
			SampleRate:  media.AudioSampleRate48k,
			Timestamp:   ts,
			SampleEntry: t.entry,
			Data:        buf,
		}), true, nil
	}
	return media.NewVideoSample(&media.VideoFrame{
		SourceID:    r.sourceID,
		Format:      videoFormatFor(t.codec),
		Width:       t.width,
		Height:      t.height,
		Timestamp:   ts,
		KeyFrame:    loc.syncFlag,
		SampleEntry: t.entry,
		Data:        buf,
	}), true, nil
}

func audioFormatFor(c media.CodecName) media.AudioFormat {
	if c == media.CodecOpus {
		return media.AudioFormatOpus
	}
	return media.AudioFormatAAC
}

func videoFormatFor(c media.CodecName) media.VideoFormat {
	// Compressed video frames keep their codec's container framing
	// (length-prefixed NAL for H.264/H.265) and are tagged with the
	// codec's own VideoFormat, the same tag the encoder adapter uses.
	return media.VideoFormat(c)
}
