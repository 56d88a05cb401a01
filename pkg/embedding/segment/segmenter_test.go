package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-embed/pkg/audio"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
)

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func TestStarts(t *testing.T) {
	assert.Equal(t, []int{0, 2, 4, 6}, Starts(10, 4, 2, 0))
	assert.Equal(t, []int{0}, Starts(3, 4, 2, 0))
	assert.Nil(t, Starts(0, 4, 2, 0))
	assert.Nil(t, Starts(10, 0, 2, 0))
	// hop below one is clamped
	assert.Len(t, Starts(5, 2, 0, 0), 4)
}

func TestStartsStrideSampling(t *testing.T) {
	// 10 candidate starts reduced to 4 picks indices 0, 2, 5, 7
	starts := Starts(13, 4, 1, 4)
	assert.Equal(t, []int{0, 2, 5, 7}, starts)
}

func TestSegmentShortWaveformYieldsOneSegment(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SegmentSeconds = 2
	cfg.HopSeconds = 1

	wf := &audio.Waveform{Samples: ramp(500), SampleRate: 1000, Channels: 1}
	segs := NewSegmenter(cfg).Segment(wf)

	require.Len(t, segs, 1)
	assert.Equal(t, wf.Samples, segs[0].Samples)
	assert.Equal(t, 0.5, segs[0].Duration(1000))

	segs[0].Samples[0] = 42
	assert.Equal(t, float32(0), wf.Samples[0], "segments own their samples")
}

func TestSegmentEmptyAndZeroLength(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewSegmenter(cfg)

	assert.Empty(t, s.Segment(&audio.Waveform{SampleRate: 1000, Channels: 1}))
	assert.Empty(t, s.Segment(nil))

	cfg.SegmentSeconds = 0.0001
	tiny := NewSegmenter(cfg).Segment(&audio.Waveform{Samples: ramp(100), SampleRate: 1000, Channels: 1})
	assert.Empty(t, tiny)
}

func TestSegmentCapAndLength(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SegmentSeconds = 1
	cfg.HopSeconds = 0.5
	cfg.SegmentsPerSong = 3

	wf := &audio.Waveform{Samples: ramp(10000), SampleRate: 1000, Channels: 1}
	segs := NewSegmenter(cfg).Segment(wf)

	require.Len(t, segs, 3)
	for i, seg := range segs {
		assert.Equal(t, i, seg.Index)
		assert.Len(t, seg.Samples, 1000)
		assert.Equal(t, float32(seg.Start), seg.Samples[0])
	}
	// 19 candidates, stride 19/3
	assert.Equal(t, 0, segs[0].Start)
	assert.Equal(t, 3000, segs[1].Start)
	assert.Equal(t, 6000, segs[2].Start)
}
