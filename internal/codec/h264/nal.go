// Package h264 implements the Annex-B <-> length-prefixed (AVCC) NAL
// conversions and parameter-set helpers the H.264 codec adapter needs.
// Adapted from the teacher's transport/h264/{nal.go,annexb_to_avc.go}.
package h264

import "bytes"

var (
	StartCode3 = []byte{0x00, 0x00, 0x01}
	StartCode4 = []byte{0x00, 0x00, 0x00, 0x01}
)

// NALUnitType represents H.264 NAL unit types.
type NALUnitType uint8

const (
	NALUnitTypeSlice     NALUnitType = 1
	NALUnitTypeDPA       NALUnitType = 2
	NALUnitTypeDPB       NALUnitType = 3
	NALUnitTypeDPC       NALUnitType = 4
	NALUnitTypeIDR       NALUnitType = 5
	NALUnitTypeSEI       NALUnitType = 6
	NALUnitTypeSPS       NALUnitType = 7
	NALUnitTypePPS       NALUnitType = 8
	NALUnitTypeAUD       NALUnitType = 9
	NALUnitTypeEndSeq    NALUnitType = 10
	NALUnitTypeEndStream NALUnitType = 11
	NALUnitTypeFiller    NALUnitType = 12
)

// Profile/level constants used when synthesizing the avcC sample entry.
const (
	ProfileBaseline = 66
	Level31         = 31
)

// GetNALUnitType extracts the NAL unit type from the first byte after a
// start code.
func GetNALUnitType(data []byte) (NALUnitType, bool) {
	nalStart := FindStartCode(data)
	if nalStart == -1 || nalStart+4 >= len(data) {
		return 0, false
	}

	nalByte := data[nalStart+3]
	if data[nalStart+1] == 0x00 && data[nalStart+2] == 0x00 && data[nalStart+3] == 0x01 {
		if nalStart+4 >= len(data) {
			return 0, false
		}
		nalByte = data[nalStart+4]
	}

	return NALUnitType(nalByte & 0x1F), true
}

// FindStartCode locates the position of the first start code in data.
func FindStartCode(data []byte) int {
	if pos := bytes.Index(data, StartCode4); pos != -1 {
		return pos
	}
	if pos := bytes.Index(data, StartCode3); pos != -1 {
		return pos
	}
	return -1
}

// HasStartCode checks if data begins with a start code.
func HasStartCode(data []byte) bool {
	return bytes.HasPrefix(data, StartCode4) || bytes.HasPrefix(data, StartCode3)
}

// AddStartCodeIfNeeded prepends a start code if data doesn't already have
// one.
func AddStartCodeIfNeeded(data []byte) []byte {
	if HasStartCode(data) {
		return data
	}
	result := make([]byte, 0, len(data)+4)
	result = append(result, StartCode4...)
	result = append(result, data...)
	return result
}

// SplitByStartCodes splits Annex-B data into individual NAL units, each
// retaining its start code.
func SplitByStartCodes(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}

	var units [][]byte
	var currentStart int

	for i := 0; i < len(data)-2; {
		if i < len(data)-3 && bytes.Equal(data[i:i+4], StartCode4) {
			if i > currentStart {
				units = append(units, data[currentStart:i])
			}
			currentStart = i
			i += 4
		} else if bytes.Equal(data[i:i+3], StartCode3) {
			if i > currentStart {
				units = append(units, data[currentStart:i])
			}
			currentStart = i
			i += 3
		} else {
			i++
		}
	}

	if currentStart < len(data) {
		units = append(units, data[currentStart:])
	}

	return units
}

// IsKeyFrame checks if the data contains an IDR NAL unit.
func IsKeyFrame(data []byte) bool {
	for _, unit := range SplitByStartCodes(data) {
		if t, ok := GetNALUnitType(unit); ok && t == NALUnitTypeIDR {
			return true
		}
	}
	return false
}

// PrependSpsPps prepends SPS/PPS configuration data before keyframes.
func PrependSpsPps(data []byte, spsPps []byte) []byte {
	if len(spsPps) == 0 {
		return data
	}
	result := make([]byte, 0, len(spsPps)+len(data))
	result = append(result, spsPps...)
	result = append(result, data...)
	return result
}

// ExtractParameterSets pulls the raw SPS/PPS NAL payloads (without start
// codes) out of Annex-B data, for feeding into sample-entry synthesis.
func ExtractParameterSets(annexb []byte) (sps, pps []byte) {
	for _, unit := range SplitByStartCodes(AddStartCodeIfNeeded(annexb)) {
		t, ok := GetNALUnitType(unit)
		if !ok {
			continue
		}
		payload := stripStartCode(unit)
		switch t {
		case NALUnitTypeSPS:
			sps = payload
		case NALUnitTypePPS:
			pps = payload
		}
	}
	return sps, pps
}

func stripStartCode(unit []byte) []byte {
	if bytes.HasPrefix(unit, StartCode4) {
		return unit[4:]
	}
	if bytes.HasPrefix(unit, StartCode3) {
		return unit[3:]
	}
	return unit
}
