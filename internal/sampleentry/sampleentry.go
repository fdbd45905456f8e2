// Package sampleentry synthesizes the per-codec container description
// records (avcC, hvcC, vpcC, av1C, esds, dOps) that the encoder adapters
// attach to every encoded sample they emit once a record exists; a
// sample is not left without one when the record is unchanged. The MP4
// sink only checks for a record before writing its init segment, and
// neither container writer reads the records. Field values are grounded on the original
// implementation's video_h264.rs/video_av1.rs/video_h265.rs/audio.rs,
// which hard-code the same constants for the same reason: these are
// config records, not per-frame data, so Hisui (and this port) treats
// them as fixed once the stream's actual parameter sets are known.
//
// The records are encoded directly as raw ISOBMFF box bytes rather than
// through a third-party struct API: the pack's abema/go-mp4 dependency
// targets generic box traversal (used by internal/container/mp4 to walk
// ftyp/moov/moof structure) rather than per-codec configuration records,
// and the exact struct shape it exposes for less common boxes (vpcC,
// av1C, dOps) could not be confirmed without network access — see
// DESIGN.md.
package sampleentry

import (
	"encoding/binary"

	"github.com/sorapipe/compositor/internal/codec/h264"
	"github.com/sorapipe/compositor/internal/media"
)

func box(fourcc string, payload []byte) []byte {
	size := 8 + len(payload)
	out := make([]byte, 0, size)
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(size))
	out = append(out, sizeBuf[:]...)
	out = append(out, fourcc...)
	out = append(out, payload...)
	return out
}

func u16be(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func u32be(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// H264 synthesizes an avcC box from the stream's cached SPS/PPS, using
// the Baseline profile / level 3.1 constants the original project hard
// codes for its H.264 output.
func H264(width, height media.EvenUsize, sps, pps []byte) (*media.SampleEntry, error) {
	const (
		profileCompat      = 0
		lengthSizeMinusOne = 3 // 4-byte NAL length prefix
	)

	payload := []byte{1, h264.ProfileBaseline, profileCompat, h264.Level31, 0xfc | lengthSizeMinusOne, 0xe0 | 1}
	payload = append(payload, u16be(uint16(len(sps)))...)
	payload = append(payload, sps...)
	payload = append(payload, 1) // numOfPPS
	payload = append(payload, u16be(uint16(len(pps)))...)
	payload = append(payload, pps...)

	return &media.SampleEntry{Codec: media.CodecH264, Payload: box("avcC", payload)}, nil
}

// H265 synthesizes an hvcC box from the stream's cached VPS/SPS/PPS,
// using the fixed Main-profile field values the original project's
// video_h265.rs hard codes to match its Sora-produced recordings.
// avgFrameRate is the ceiling of frameRateNum/frameRateDen, the mixer's
// output cadence.
func H265(width, height media.EvenUsize, vps, sps, pps []byte, frameRateNum, frameRateDen uint32) (*media.SampleEntry, error) {
	var avgFrameRate uint16
	if frameRateDen > 0 {
		avgFrameRate = uint16((frameRateNum + frameRateDen - 1) / frameRateDen)
	}

	payload := make([]byte, 0, 23)
	payload = append(payload, 1)                  // configurationVersion
	payload = append(payload, 1)                  // general_profile_space=0/tier=0/idc (Main=1)
	payload = append(payload, u32be(0x60000000)...) // general_profile_compatibility_flags
	payload = append(payload, 0xb0, 0, 0, 0, 0, 0)  // general_constraint_indicator_flags (48 bits)
	payload = append(payload, 123)                 // general_level_idc
	payload = append(payload, 0xf0|0)              // reserved + min_spatial_segmentation_idc hi nibble
	payload = append(payload, 0)                   // min_spatial_segmentation_idc lo byte
	payload = append(payload, 0xfc)                // reserved + parallelismType
	payload = append(payload, 0xfc|1)              // reserved + chroma_format_idc (4:2:0)
	payload = append(payload, 0xf8|0)              // reserved + bit_depth_luma_minus8
	payload = append(payload, 0xf8|0)              // reserved + bit_depth_chroma_minus8
	payload = append(payload, u16be(avgFrameRate)...) // avgFrameRate
	// constantFrameRate(2)=1 / numTemporalLayers(3)=1 / temporalIdNested(1)=1 /
	// lengthSizeMinusOne(2)=3 (4-byte prefix)
	payload = append(payload, 1<<6|1<<3|1<<2|3)

	arrays := []struct {
		nalType uint8
		nalus   [][]byte
	}{
		{32, [][]byte{vps}},
		{33, [][]byte{sps}},
		{34, [][]byte{pps}},
	}
	payload = append(payload, byte(len(arrays)))
	for _, a := range arrays {
		payload = append(payload, 1<<7|a.nalType) // array_completeness=1
		payload = append(payload, u16be(uint16(len(a.nalus)))...)
		for _, nalu := range a.nalus {
			payload = append(payload, u16be(uint16(len(nalu)))...)
			payload = append(payload, nalu...)
		}
	}

	return &media.SampleEntry{Codec: media.CodecH265, Payload: box("hvcC", payload)}, nil
}

// VP9 synthesizes a vpcC box: profile 0, level 0, 8-bit 4:2:0 colocated
// chroma, legal range, BT.709 primaries/transfer/matrix.
func VP9(width, height media.EvenUsize) (*media.SampleEntry, error) {
	payload := []byte{
		1,       // version
		0, 0, 0, // flags (24 bits)
	}
	payload = append(payload, 0)          // profile
	payload = append(payload, 0)          // level
	payload = append(payload, 8<<4|1<<1|0) // bitDepth(4)/chromaSubsampling(3)/videoFullRangeFlag(1)
	payload = append(payload, 1, 1)       // colourPrimaries, transferCharacteristics (BT.709)
	payload = append(payload, 1)          // matrixCoefficients (BT.709)
	payload = append(payload, u16be(0)...) // codecInitializationDataLength

	return &media.SampleEntry{Codec: media.CodecVP9, Payload: box("vpcC", payload)}, nil
}

// VP8 reuses the same vpcC record shape as VP9; the binding spec covers
// both codecs with one box.
func VP8(width, height media.EvenUsize) (*media.SampleEntry, error) {
	e, err := VP9(width, height)
	if err != nil {
		return nil, err
	}
	e.Codec = media.CodecVP8
	return e, nil
}

// AV1 synthesizes an av1C box from the stream's sequence header OBU,
// using the field values the original project's video_av1.rs hard
// codes for 4:2:0, 8-bit, monochrome-off encodes.
func AV1(width, height media.EvenUsize, sequenceHeaderOBU []byte) (*media.SampleEntry, error) {
	payload := []byte{
		1<<7 | 1,  // marker=1, version=1
		0,         // seq_profile(3)=0, seq_level_idx_0(5)=0
		1<<3 | 1<<2, // seq_tier_0/high_bitdepth/twelve_bit/monochrome=0, chroma_subsampling_x/y=1 (4:2:0), chroma_sample_position=0
		0,         // reserved + initial_presentation_delay_present=0 + reserved
	}
	payload = append(payload, sequenceHeaderOBU...)

	return &media.SampleEntry{Codec: media.CodecAV1, Payload: box("av1C", payload)}, nil
}

// Opus synthesizes a dOps ("Opus Specific Box") record for a 48kHz
// stereo stream, per the Opus-in-ISOBMFF mapping used by WebM/MP4
// writers alike.
func Opus() (*media.SampleEntry, error) {
	payload := []byte{
		0,                          // version
		byte(media.AudioChannelsStereo),
		0, 0, // pre-skip
	}
	payload = append(payload, u32be(uint32(media.AudioSampleRate48k))...)
	payload = append(payload, u16be(0)...) // output gain
	payload = append(payload, 0)           // channel mapping family 0 (stereo, no mapping table)

	return &media.SampleEntry{Codec: media.CodecOpus, Payload: box("dOps", payload)}, nil
}

// AAC synthesizes an esds box wrapping an MPEG-4 AudioSpecificConfig for
// AAC-LC, 48kHz stereo.
func AAC() (*media.SampleEntry, error) {
	const (
		audioObjectTypeAACLC  = 2
		samplingFreqIndex48k  = 3
		channelConfigStereo   = 2
	)
	asc := []byte{
		audioObjectTypeAACLC<<3 | samplingFreqIndex48k>>1,
		(samplingFreqIndex48k&1)<<7 | channelConfigStereo<<3,
	}

	// Minimal ES_Descriptor wrapping the AudioSpecificConfig in a
	// DecoderSpecificInfo, inside a DecoderConfigDescriptor, inside the
	// top-level ES_Descriptor. Tag/length bytes follow the MPEG-4
	// expandable-length descriptor encoding (single length byte, since
	// our payloads are always short).
	decSpecificInfo := append([]byte{0x05, byte(len(asc))}, asc...)
	decConfigPayload := append([]byte{
		0x40,       // objectTypeIndication: Audio ISO/IEC 14496-3
		0x15,       // streamType=audio(5)<<2 | upStream(0) | reserved(1)
		0, 0, 0,    // bufferSizeDB
		0, 1, 0, 0, // maxBitrate
		0, 1, 0, 0, // avgBitrate
	}, decSpecificInfo...)
	decConfigDesc := append([]byte{0x04, byte(len(decConfigPayload))}, decConfigPayload...)

	slConfig := []byte{0x06, 0x01, 0x02}
	esPayload := append([]byte{0, 0, 0}, decConfigDesc...) // ES_ID(2) + flags(1)
	esPayload = append(esPayload, slConfig...)
	esDesc := append([]byte{0x03, byte(len(esPayload))}, esPayload...)

	return &media.SampleEntry{Codec: media.CodecAAC, Payload: box("esds", esDesc)}, nil
}
