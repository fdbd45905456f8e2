package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// AudioMixerStats is the counter set the audio mixer reports, grounded on
// the original implementation's AudioMixerStats.
type AudioMixerStats struct {
	TotalInputAudioDataCount      atomic.Uint64
	TotalOutputAudioDataCount     atomic.Uint64
	totalOutputAudioDataDuration  atomic.Int64
	TotalOutputSampleCount        atomic.Uint64
	TotalOutputFilledSampleCount  atomic.Uint64
	TotalTrimmedSampleCount       atomic.Uint64
}

// AddOutputDuration accumulates output audio duration.
func (s *AudioMixerStats) AddOutputDuration(d time.Duration) {
	s.totalOutputAudioDataDuration.Add(int64(d))
}

// OutputDuration returns the accumulated output audio duration.
func (s *AudioMixerStats) OutputDuration() time.Duration {
	return time.Duration(s.totalOutputAudioDataDuration.Load())
}

// AudioMixerSnapshot is a point-in-time copy of AudioMixerStats.
type AudioMixerSnapshot struct {
	TotalInputAudioDataCount     uint64
	TotalOutputAudioDataCount    uint64
	TotalOutputAudioDataDuration time.Duration
	TotalOutputSampleCount       uint64
	TotalOutputFilledSampleCount uint64
	TotalTrimmedSampleCount      uint64
}

// Snapshot takes an atomic point-in-time copy of the counters.
func (s *AudioMixerStats) Snapshot() AudioMixerSnapshot {
	return AudioMixerSnapshot{
		TotalInputAudioDataCount:     s.TotalInputAudioDataCount.Load(),
		TotalOutputAudioDataCount:    s.TotalOutputAudioDataCount.Load(),
		TotalOutputAudioDataDuration: s.OutputDuration(),
		TotalOutputSampleCount:       s.TotalOutputSampleCount.Load(),
		TotalOutputFilledSampleCount: s.TotalOutputFilledSampleCount.Load(),
		TotalTrimmedSampleCount:      s.TotalTrimmedSampleCount.Load(),
	}
}

// Report renders a human-readable summary, matching stats.Snapshot.Report().
func (sn AudioMixerSnapshot) Report() string {
	return fmt.Sprintf(
		"audio_mixer: in=%d out=%d (%s) trimmed=%d filled=%d",
		sn.TotalInputAudioDataCount, sn.TotalOutputAudioDataCount,
		sn.TotalOutputAudioDataDuration, sn.TotalTrimmedSampleCount, sn.TotalOutputFilledSampleCount,
	)
}
