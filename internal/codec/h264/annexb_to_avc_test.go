package h264

import (
	"bytes"
	"testing"
)

func TestConvertAnnexBToAVC(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{
			name:  "single NAL unit, 4-byte start code",
			input: []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00},
			want:  []byte{0x00, 0x00, 0x00, 0x03, 0x67, 0x42, 0x00},
		},
		{
			name:  "single NAL unit, 3-byte start code",
			input: []byte{0x00, 0x00, 0x01, 0x68, 0xce},
			want:  []byte{0x00, 0x00, 0x00, 0x02, 0x68, 0xce},
		},
		{
			name: "two NAL units",
			input: []byte{
				0x00, 0x00, 0x00, 0x01, 0x67, 0x42,
				0x00, 0x00, 0x00, 0x01, 0x68, 0xce,
			},
			want: []byte{
				0x00, 0x00, 0x00, 0x02, 0x67, 0x42,
				0x00, 0x00, 0x00, 0x02, 0x68, 0xce,
			},
		},
		{
			name:  "empty",
			input: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertAnnexBToAVC(tt.input)
			if err != nil {
				t.Fatalf("ConvertAnnexBToAVC: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestRoundTripAnnexBAVC(t *testing.T) {
	annexb := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x0a,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xce, 0x3c, 0x80,
	}
	avc, err := ConvertAnnexBToAVC(annexb)
	if err != nil {
		t.Fatalf("ConvertAnnexBToAVC: %v", err)
	}
	back, err := ConvertAVCToAnnexB(avc)
	if err != nil {
		t.Fatalf("ConvertAVCToAnnexB: %v", err)
	}
	if !bytes.Equal(back, annexb) {
		t.Errorf("round trip mismatch: got % x, want % x", back, annexb)
	}
}

func TestIsKeyFrame(t *testing.T) {
	idr := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}
	nonIdr := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x88}

	if !IsKeyFrame(idr) {
		t.Errorf("expected IDR NAL to be detected as a keyframe")
	}
	if IsKeyFrame(nonIdr) {
		t.Errorf("expected non-IDR NAL to not be a keyframe")
	}
}

func TestValidateAnnexBAndAVCData(t *testing.T) {
	annexb := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}
	avcc := []byte{0x00, 0x00, 0x00, 0x02, 0x65, 0x88}

	if !ValidateAnnexBData(annexb) {
		t.Errorf("expected Annex-B data to validate")
	}
	if ValidateAnnexBData(avcc) {
		t.Errorf("expected AVCC data to fail Annex-B validation")
	}
	if !ValidateAVCData(avcc) {
		t.Errorf("expected AVCC data to validate")
	}
	if ValidateAVCData(annexb) {
		t.Errorf("expected Annex-B data to fail AVCC validation")
	}
}

func TestPrependSpsPps(t *testing.T) {
	spsPps := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x00, 0x00, 0x00, 0x01, 0x68, 0xce}
	idr := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}

	got := PrependSpsPps(idr, spsPps)
	want := append(append([]byte{}, spsPps...), idr...)
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}

	if got := PrependSpsPps(idr, nil); !bytes.Equal(got, idr) {
		t.Errorf("expected unchanged data when no parameter sets are cached, got % x", got)
	}
}

func TestExtractParameterSets(t *testing.T) {
	annexb := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x0a,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xce, 0x3c, 0x80,
		0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84,
	}
	sps, pps := ExtractParameterSets(annexb)
	if !bytes.Equal(sps, []byte{0x67, 0x42, 0x00, 0x0a}) {
		t.Errorf("sps = % x", sps)
	}
	if !bytes.Equal(pps, []byte{0x68, 0xce, 0x3c, 0x80}) {
		t.Errorf("pps = % x", pps)
	}
}
