// Package engine tracks which decode/encode engines are available for
// which codec, so the graph builder can fail fast with an InputFormat
// error when a layout requests a codec with no registered engine,
// instead of discovering the gap mid-run. Grounded on the original
// implementation's types.rs CodecEngines/Engines maps.
package engine

import (
	"sort"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
)

// Name identifies a concrete decode/encode engine implementation.
type Name string

const (
	NameOpus         Name = "opus"
	NameFdkAAC       Name = "fdk_aac"
	NameAudioToolbox Name = "audio_toolbox"
	NameOpenH264     Name = "openh264"
	NameVideoToolbox Name = "video_toolbox"
	NameLibvpx       Name = "libvpx"
	NameDav1d        Name = "dav1d"
	NameSvtAV1       Name = "svt_av1"
)

// Capabilities is the set of engines available for decode/encode on one
// codec.
type Capabilities struct {
	Decoders map[Name]bool
	Encoders map[Name]bool
}

// Registry maps each codec to its available engines.
type Registry struct {
	codecs map[media.CodecName]*Capabilities
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[media.CodecName]*Capabilities)}
}

func (r *Registry) entry(codec media.CodecName) *Capabilities {
	c, ok := r.codecs[codec]
	if !ok {
		c = &Capabilities{Decoders: map[Name]bool{}, Encoders: map[Name]bool{}}
		r.codecs[codec] = c
	}
	return c
}

// RegisterDecoder marks engine as available to decode codec.
func (r *Registry) RegisterDecoder(codec media.CodecName, engine Name) {
	r.entry(codec).Decoders[engine] = true
}

// RegisterEncoder marks engine as available to encode codec.
func (r *Registry) RegisterEncoder(codec media.CodecName, engine Name) {
	r.entry(codec).Encoders[engine] = true
}

// RequireDecoder fails fast with an InputFormat error if no decoder is
// registered for codec.
func (r *Registry) RequireDecoder(codec media.CodecName) error {
	c, ok := r.codecs[codec]
	if !ok || len(c.Decoders) == 0 {
		return compositorerr.Newf(compositorerr.InputFormat, "engine_registry", "no decoder registered for codec %q", codec)
	}
	return nil
}

// RequireEncoder fails fast with an InputFormat error if no encoder is
// registered for codec.
func (r *Registry) RequireEncoder(codec media.CodecName) error {
	c, ok := r.codecs[codec]
	if !ok || len(c.Encoders) == 0 {
		return compositorerr.Newf(compositorerr.InputFormat, "engine_registry", "no encoder registered for codec %q", codec)
	}
	return nil
}

// ListCodecs returns every codec with at least one registered engine, in
// a stable order, for diagnostics.
func (r *Registry) ListCodecs() []media.CodecName {
	out := make([]media.CodecName, 0, len(r.codecs))
	for c := range r.codecs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Default builds the registry this compositor ships with out of the box:
// every codec paired with the software engine the pack's dependency
// surface actually gives us a path to drive (the hardware/Apple-only
// engines from the original implementation have no analog here and are
// intentionally left unregistered).
func Default() *Registry {
	r := NewRegistry()
	r.RegisterDecoder(media.CodecOpus, NameOpus)
	r.RegisterEncoder(media.CodecOpus, NameOpus)
	r.RegisterDecoder(media.CodecAAC, NameFdkAAC)
	r.RegisterEncoder(media.CodecAAC, NameFdkAAC)
	r.RegisterDecoder(media.CodecH264, NameOpenH264)
	r.RegisterEncoder(media.CodecH264, NameOpenH264)
	r.RegisterDecoder(media.CodecVP8, NameLibvpx)
	r.RegisterEncoder(media.CodecVP8, NameLibvpx)
	r.RegisterDecoder(media.CodecVP9, NameLibvpx)
	r.RegisterEncoder(media.CodecVP9, NameLibvpx)
	r.RegisterDecoder(media.CodecAV1, NameDav1d)
	r.RegisterEncoder(media.CodecAV1, NameSvtAV1)
	return r
}
