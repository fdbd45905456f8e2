// Package h265 adds the H.265-specific NAL unit type constants the codec
// adapter needs on top of the shared Annex-B/AVCC conversion helpers in
// internal/codec/h264 (the conversion itself is codec-agnostic: both
// H.264 and H.265 use the same start-code/length-prefix framing).
package h265

import "github.com/sorapipe/compositor/internal/codec/h264"

// NALUHeaderLength is the fixed length-prefix size hisui-family encoders
// emit for both H.264 and H.265.
const NALUHeaderLength = 4

// H.265 NAL unit types relevant to parameter-set extraction.
const (
	NALUnitTypeVPS uint8 = 32
	NALUnitTypePPS uint8 = 34
	NALUnitTypeSPS uint8 = 33
)

// nalUnitType extracts the NAL unit type from an H.265 NAL payload's
// first two header bytes (type occupies bits 1-6 of the first byte).
func nalUnitType(nal []byte) (uint8, bool) {
	if len(nal) < 2 {
		return 0, false
	}
	return (nal[0] >> 1) & 0x3F, true
}

// ExtractParameterSets pulls the raw VPS/SPS/PPS NAL payloads (without
// start codes) out of Annex-B data.
func ExtractParameterSets(annexb []byte) (vps, sps, pps []byte) {
	for _, unit := range h264.SplitByStartCodes(h264.AddStartCodeIfNeeded(annexb)) {
		payload := stripStartCode(unit)
		t, ok := nalUnitType(payload)
		if !ok {
			continue
		}
		switch t {
		case NALUnitTypeVPS:
			vps = payload
		case NALUnitTypeSPS:
			sps = payload
		case NALUnitTypePPS:
			pps = payload
		}
	}
	return vps, sps, pps
}

func stripStartCode(unit []byte) []byte {
	if len(unit) >= 4 && unit[0] == 0 && unit[1] == 0 && unit[2] == 0 && unit[3] == 1 {
		return unit[4:]
	}
	if len(unit) >= 3 && unit[0] == 0 && unit[1] == 0 && unit[2] == 1 {
		return unit[3:]
	}
	return unit
}
