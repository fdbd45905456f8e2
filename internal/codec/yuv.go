package codec

import "github.com/sorapipe/compositor/internal/media"

// NV12ToI420 converts an NV12 frame (Y plane followed by interleaved
// U/V) to I420 (Y plane followed by separate U and V planes). No example
// in the retrieved pack performs this specific conversion, so it is
// hand-written here as a plain row/plane shuffle rather than grounded on
// an external collaborator; see DESIGN.md.
func NV12ToI420(data []byte, width, height media.EvenUsize) []byte {
	w, h := width.Get(), height.Get()
	ySize := w * h
	cw, ch := w/2, h/2
	chromaSize := cw * ch

	out := make([]byte, ySize+2*chromaSize)
	copy(out, data[:ySize])

	uPlane := out[ySize : ySize+chromaSize]
	vPlane := out[ySize+chromaSize:]

	nv12Chroma := data[ySize:]
	for i := 0; i < chromaSize; i++ {
		uPlane[i] = nv12Chroma[2*i]
		vPlane[i] = nv12Chroma[2*i+1]
	}
	return out
}

// I420ToNV12 converts an I420 frame to NV12.
func I420ToNV12(data []byte, width, height media.EvenUsize) []byte {
	w, h := width.Get(), height.Get()
	ySize := w * h
	cw, ch := w/2, h/2
	chromaSize := cw * ch

	out := make([]byte, ySize+2*chromaSize)
	copy(out, data[:ySize])

	uPlane := data[ySize : ySize+chromaSize]
	vPlane := data[ySize+chromaSize : ySize+2*chromaSize]

	nv12Chroma := out[ySize:]
	for i := 0; i < chromaSize; i++ {
		nv12Chroma[2*i] = uPlane[i]
		nv12Chroma[2*i+1] = vPlane[i]
	}
	return out
}
