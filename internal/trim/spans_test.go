package trim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestSpansContains(t *testing.T) {
	s := New([]Span{
		{Start: ms(100), End: ms(200)},
		{Start: ms(500), End: ms(600)},
	})
	require.True(t, s.Validate(), "expected valid spans")

	cases := []struct {
		t    time.Duration
		want bool
	}{
		{ms(50), false},
		{ms(100), true},
		{ms(150), true},
		{ms(199), true},
		{ms(200), false},
		{ms(450), false},
		{ms(599), true},
		{ms(600), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, s.Contains(c.t), "Contains(%v)", c.t)
	}
}

func TestSpansValidateRejectsOverlap(t *testing.T) {
	s := New([]Span{
		{Start: ms(0), End: ms(100)},
		{Start: ms(50), End: ms(150)},
	})
	assert.False(t, s.Validate(), "expected overlap to be rejected")
}

func TestSpansSortsUnorderedInput(t *testing.T) {
	s := New([]Span{
		{Start: ms(500), End: ms(600)},
		{Start: ms(100), End: ms(200)},
	})
	require.Equal(t, ms(100), s.At(0).Start)
	require.Equal(t, ms(500), s.At(1).Start)
}
