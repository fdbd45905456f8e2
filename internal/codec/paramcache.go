// Package codec hosts the codec-adapter layer: Annex-B/AVCC conversion
// (internal/codec/h264, internal/codec/h265), parameter-set caching, and
// the pure-Go NV12<->I420 planar conversion every video decoder and
// encoder applies to cross the NV12 engine boundary.
package codec

import (
	"github.com/sorapipe/compositor/internal/codec/h264"
	"github.com/sorapipe/compositor/internal/codec/h265"
	"github.com/sorapipe/compositor/internal/media"
)

// ParameterSetCache remembers the most recently seen SPS/PPS/VPS for a
// stream and decides when the sample entry needs to be re-synthesized.
// Adapted from the teacher's transport/stream/sps_pps_extractor.go,
// rewritten from polling a live device's cached parameter sets to
// extracting them from the keyframes of a batch archive.
type ParameterSetCache struct {
	codec media.CodecName
	vps   []byte
	sps   []byte
	pps   []byte
	dirty bool
}

// NewParameterSetCache creates an empty cache for the given codec.
func NewParameterSetCache(codecName media.CodecName) *ParameterSetCache {
	return &ParameterSetCache{codec: codecName}
}

// Observe inspects an encoded access unit and updates the cached
// parameter sets if it carries new ones (H.264/H.265 keyframes re-send
// SPS/PPS/VPS inline; other codecs are no-ops here).
func (c *ParameterSetCache) Observe(annexb []byte) {
	switch c.codec {
	case media.CodecH264:
		sps, pps := h264.ExtractParameterSets(annexb)
		if len(sps) > 0 {
			c.sps, c.dirty = sps, true
		}
		if len(pps) > 0 {
			c.pps, c.dirty = pps, true
		}
	case media.CodecH265:
		vps, sps, pps := h265.ExtractParameterSets(annexb)
		if len(vps) > 0 {
			c.vps, c.dirty = vps, true
		}
		if len(sps) > 0 {
			c.sps, c.dirty = sps, true
		}
		if len(pps) > 0 {
			c.pps, c.dirty = pps, true
		}
	}
}

// Ready reports whether enough parameter sets are cached to synthesize a
// sample entry.
func (c *ParameterSetCache) Ready() bool {
	switch c.codec {
	case media.CodecH264:
		return len(c.sps) > 0 && len(c.pps) > 0
	case media.CodecH265:
		return len(c.vps) > 0 && len(c.sps) > 0 && len(c.pps) > 0
	default:
		return false
	}
}

// ConsumeDirty reports and clears whether Observe found any parameter
// set since the last call (even one identical to the cached copy), so
// the caller knows whether to re-synthesize the sample entry on this
// keyframe.
func (c *ParameterSetCache) ConsumeDirty() bool {
	d := c.dirty
	c.dirty = false
	return d
}

// VPS, SPS, PPS return the currently cached parameter-set payloads.
func (c *ParameterSetCache) VPS() []byte { return c.vps }
func (c *ParameterSetCache) SPS() []byte { return c.sps }
func (c *ParameterSetCache) PPS() []byte { return c.pps }

// AnnexBUnits returns the cached parameter sets framed as Annex-B NAL
// units (start code + raw payload), in the order a decoder expects them
// inline ahead of a keyframe's slice data.
func (c *ParameterSetCache) AnnexBUnits() []byte {
	var out []byte
	if c.codec == media.CodecH265 {
		out = append(out, annexBUnit(c.vps)...)
	}
	out = append(out, annexBUnit(c.sps)...)
	out = append(out, annexBUnit(c.pps)...)
	return out
}

func annexBUnit(nal []byte) []byte {
	if len(nal) == 0 {
		return nil
	}
	out := make([]byte, 0, len(h264.StartCode4)+len(nal))
	out = append(out, h264.StartCode4...)
	out = append(out, nal...)
	return out
}
