package webm

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/at-wat/ebml-go"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
)

// webmDoc mirrors just enough of the Matroska/WebM EBML schema to recover
// track descriptions and cluster payloads; at-wat/ebml-go decodes
// standard elements generically via struct tags, but SimpleBlock's
// internal layout (track number / relative timecode / flags / frame
// data) is block structure, not further EBML, so it's parsed by hand in
// parseSimpleBlock below. There is no teacher or example file reading
// WebM (the pack only ever writes it), so this is built directly
// against the Matroska block-structure layout rather than ported code.
type webmDoc struct {
	Segment struct {
		Tracks struct {
			TrackEntry []struct {
				TrackNumber uint64 `ebml:"TrackNumber"`
				TrackType   uint64 `ebml:"TrackType"`
				CodecID     string `ebml:"CodecID"`
				Video       struct {
					PixelWidth  uint64 `ebml:"PixelWidth"`
					PixelHeight uint64 `ebml:"PixelHeight"`
				} `ebml:"Video"`
			} `ebml:"TrackEntry"`
		} `ebml:"Tracks"`
		Cluster []struct {
			Timecode    uint64   `ebml:"Timecode"`
			SimpleBlock [][]byte `ebml:"SimpleBlock"`
		} `ebml:"Cluster"`
	} `ebml:"Segment"`
}

type readerSample struct {
	trackNumber uint64
	timestamp   time.Duration
	keyFrame    bool
	data        []byte
}

type readerTrackInfo struct {
	trackNumber uint64
	codec       media.CodecName
	width       media.EvenUsize
	height      media.EvenUsize
}

// Reader demuxes a WebM archive fully into memory and replays its
// samples in file order, tagged by track.
type Reader struct {
	sourceID media.SourceId
	tracks   []readerTrackInfo
	samples  []readerSample
	next     int
}

func mapCodecID(id string) media.CodecName {
	switch id {
	case "V_VP8":
		return media.CodecVP8
	case "V_VP9":
		return media.CodecVP9
	case "A_OPUS":
		return media.CodecOpus
	default:
		return ""
	}
}

// Open fully decodes r's EBML structure and builds the track/sample
// tables. sourceID tags every sample this reader yields.
func Open(r io.Reader, sourceID media.SourceId) (*Reader, error) {
	var doc webmDoc
	if err := ebml.Unmarshal(r, &doc); err != nil {
		return nil, compositorerr.Wrap(compositorerr.InputFormat, "webm_reader", fmt.Errorf("unmarshal: %w", err))
	}

	rd := &Reader{sourceID: sourceID}
	for _, te := range doc.Segment.Tracks.TrackEntry {
		info := readerTrackInfo{trackNumber: te.TrackNumber, codec: mapCodecID(te.CodecID)}
		if info.codec == media.CodecVP8 || info.codec == media.CodecVP9 {
			if w, ok := media.NewEvenUsize(int(te.Video.PixelWidth)); ok {
				info.width = w
			}
			if h, ok := media.NewEvenUsize(int(te.Video.PixelHeight)); ok {
				info.height = h
			}
		}
		rd.tracks = append(rd.tracks, info)
	}
	if len(rd.tracks) == 0 {
		return nil, compositorerr.Newf(compositorerr.InputFormat, "webm_reader", "no tracks found")
	}

	for _, cluster := range doc.Segment.Cluster {
		for _, raw := range cluster.SimpleBlock {
			sb, err := parseSimpleBlock(raw, cluster.Timecode)
			if err != nil {
				return nil, compositorerr.Wrap(compositorerr.InputFormat, "webm_reader", err)
			}
			rd.samples = append(rd.samples, sb)
		}
	}
	return rd, nil
}

// parseSimpleBlock decodes the Matroska SimpleBlock layout: a vint track
// number, a 16-bit signed relative timecode (in the segment's declared
// timecode scale units, treated here as milliseconds to match the
// writer's convention), a one-byte flags field (bit 0x80 = keyframe),
// then raw frame bytes (lacing is not supported, matching what Writer
// produces: one frame per SimpleBlock).
func parseSimpleBlock(raw []byte, clusterTimecode uint64) (readerSample, error) {
	trackNum, n, err := readVint(raw)
	if err != nil {
		return readerSample{}, err
	}
	raw = raw[n:]
	if len(raw) < 3 {
		return readerSample{}, fmt.Errorf("webm: truncated SimpleBlock")
	}
	relTimecode := int16(binary.BigEndian.Uint16(raw[:2]))
	flags := raw[2]
	data := raw[3:]

	ts := time.Duration(int64(clusterTimecode)+int64(relTimecode)) * time.Millisecond
	return readerSample{
		trackNumber: trackNum,
		timestamp:   ts,
		keyFrame:    flags&0x80 != 0,
		data:        data,
	}, nil
}

// readVint reads a Matroska variable-length integer (the EBML "element
// data size"-style encoding also used for SimpleBlock's track number
// field: the leading 1-bits in the first byte select the field width,
// and those marker bits are then masked out of the value).
func readVint(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("webm: empty vint")
	}
	first := b[0]
	width := 1
	mask := byte(0x80)
	for mask != 0 && first&mask == 0 {
		mask >>= 1
		width++
	}
	if mask == 0 || width > len(b) {
		return 0, 0, fmt.Errorf("webm: malformed vint")
	}
	value := uint64(first &^ mask)
	for i := 1; i < width; i++ {
		value = value<<8 | uint64(b[i])
	}
	return value, width, nil
}

// TrackCount returns the number of tracks found.
func (r *Reader) TrackCount() int { return len(r.tracks) }

// TrackCodec returns the codec of track i.
func (r *Reader) TrackCodec(i int) media.CodecName { return r.tracks[i].codec }

// Next returns the next sample across all tracks in file order, paired
// with the index of the track it belongs to, or ok=false once every
// sample has been consumed.
func (r *Reader) Next() (trackIndex int, sample media.MediaSample, ok bool, err error) {
	if r.next >= len(r.samples) {
		return 0, media.MediaSample{}, false, nil
	}
	s := r.samples[r.next]
	r.next++

	idx := -1
	for i, t := range r.tracks {
		if t.trackNumber == s.trackNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, media.MediaSample{}, false, compositorerr.Newf(compositorerr.InputFormat, "webm_reader", "sample references unknown track %d", s.trackNumber)
	}
	t := r.tracks[idx]

	if t.codec == media.CodecOpus {
		return idx, media.NewAudioSample(&media.AudioData{
			SourceID:   r.sourceID,
			Format:     media.AudioFormatOpus,
			Stereo:     true,
			SampleRate: media.AudioSampleRate48k,
			Timestamp:  s.timestamp,
			Data:       s.data,
		}), true, nil
	}
	return idx, media.NewVideoSample(&media.VideoFrame{
		SourceID:  r.sourceID,
		Format:    media.VideoFormat(t.codec),
		Width:     t.width,
		Height:    t.height,
		Timestamp: s.timestamp,
		KeyFrame:  s.keyFrame,
		Data:      s.data,
	}), true, nil
}
