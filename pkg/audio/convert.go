package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Downmix averages interleaved channels into one
func Downmix(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float64, frames)
	for f := range frames {
		sum := 0.0
		for c := range channels {
			sum += samples[f*channels+c]
		}
		out[f] = sum / float64(channels)
	}
	return out
}

// Resample converts interleaved samples from one rate to another. The result
// is trimmed or zero-padded to the exact expected frame count so segment
// arithmetic downstream stays deterministic.
func Resample(samples []float64, channels, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", fromRate, toRate)
	}
	channels = max(1, channels)

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := rs.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to resample: %w", err)
	}

	frames := len(samples) / channels
	want := int(int64(frames)*int64(toRate)/int64(fromRate)) * channels
	switch {
	case len(out) > want:
		out = out[:want]
	case len(out) < want:
		out = append(out, make([]float64, want-len(out))...)
	}
	return out, nil
}

// toWaveform applies the requested channel layout and rate to decoded PCM
func toWaveform(path string, samples []float64, channels, sampleRate, targetRate int, mono bool) (*Waveform, error) {
	if len(samples) == 0 {
		return nil, NewDecodeError(path, "no audio samples", nil)
	}

	if mono {
		samples = Downmix(samples, channels)
		channels = 1
	}

	rate := sampleRate
	if targetRate > 0 && targetRate != sampleRate {
		var err error
		samples, err = Resample(samples, channels, sampleRate, targetRate)
		if err != nil {
			return nil, NewDecodeError(path, "resampling failed", err)
		}
		rate = targetRate
	}

	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v)
	}

	return &Waveform{Samples: out, SampleRate: rate, Channels: channels}, nil
}
