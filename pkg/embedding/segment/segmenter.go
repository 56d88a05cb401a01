package segment

import (
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/audio"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
)

// Segment is an owned copy of a contiguous run of mono samples
type Segment struct {
	Index   int       `json:"index"`
	Start   int       `json:"start"`
	Samples []float32 `json:"-"`
}

// Duration returns the segment length in seconds at sampleRate
func (s Segment) Duration(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(sampleRate)
}

// Segmenter slices waveforms into a bounded number of fixed-length windows
type Segmenter struct {
	cfg    config.Config
	logger logging.Logger
}

// NewSegmenter creates a new segmenter
func NewSegmenter(cfg config.Config) *Segmenter {
	return &Segmenter{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "segmenter",
		}),
	}
}

// Starts returns the sample offsets at which segments begin. It is empty when
// the waveform has no samples or the segment length truncates to zero.
func Starts(totalSamples, segmentLength, hop, maxSegments int) []int {
	if segmentLength <= 0 || totalSamples == 0 {
		return nil
	}
	hop = max(1, hop)

	lastStart := max(0, totalSamples-segmentLength)
	starts := make([]int, 0, lastStart/hop+1)
	for s := 0; s <= lastStart; s += hop {
		starts = append(starts, s)
	}
	if len(starts) == 0 {
		starts = append(starts, 0)
	}

	if maxSegments > 0 && len(starts) > maxSegments {
		step := float64(len(starts)) / float64(maxSegments)
		sampled := make([]int, maxSegments)
		for i := range sampled {
			sampled[i] = starts[int(float64(i)*step)]
		}
		starts = sampled
	}

	return starts
}

// Segment splits waveform into segments according to the configured
// segment length, hop and per-song cap. The waveform is assumed to be mono.
func (s *Segmenter) Segment(waveform *audio.Waveform) []Segment {
	if waveform == nil {
		return nil
	}

	logger := s.logger.WithFields(logging.Fields{
		"function":      "Segment",
		"total_samples": len(waveform.Samples),
		"sample_rate":   waveform.SampleRate,
	})

	segmentLength := int(float32(s.cfg.SegmentSeconds) * float32(waveform.SampleRate))
	hop := max(1, int(float32(s.cfg.HopSeconds)*float32(waveform.SampleRate)))
	total := len(waveform.Samples)

	starts := Starts(total, segmentLength, hop, s.cfg.SegmentsPerSong)
	if len(starts) == 0 {
		logger.Warn("No segments produced", logging.Fields{
			"segment_length": segmentLength,
		})
		return nil
	}

	segments := make([]Segment, len(starts))
	for i, start := range starts {
		end := min(start+segmentLength, total)
		segments[i] = Segment{
			Index:   i,
			Start:   start,
			Samples: append([]float32(nil), waveform.Samples[start:end]...),
		}
	}

	logger.Debug("Waveform segmented", logging.Fields{
		"segments":       len(segments),
		"segment_length": segmentLength,
		"hop":            hop,
	})

	return segments
}
