package codec

import (
	"bytes"
	"testing"

	"github.com/sorapipe/compositor/internal/media"
)

func TestNV12I420RoundTrip(t *testing.T) {
	w, _ := media.NewEvenUsize(4)
	h, _ := media.NewEvenUsize(2)

	i420 := make([]byte, 4*2+2*2)
	for i := range i420 {
		i420[i] = byte(i + 1)
	}

	nv12 := I420ToNV12(i420, w, h)
	back := NV12ToI420(nv12, w, h)

	if !bytes.Equal(back, i420) {
		t.Errorf("round trip mismatch: got % x, want % x", back, i420)
	}
}
