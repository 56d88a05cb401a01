package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores w as 16-bit PCM WAV at path
func WriteWAV(path string, w *Waveform) error {
	if w == nil || w.SampleRate <= 0 || w.Channels <= 0 {
		return fmt.Errorf("invalid waveform")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	const bitDepth = 16
	data := make([]int, len(w.Samples))
	for i, v := range w.Samples {
		clamped := math.Max(-1, math.Min(1, float64(v)))
		data[i] = int(math.Round(clamped * 32767))
	}

	enc := wav.NewEncoder(f, w.SampleRate, bitDepth, w.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.Channels, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}

// Sine generates a mono sine wave, mostly for fixtures and self-checks
func Sine(freq, amplitude float64, sampleRate int, seconds float64) *Waveform {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return &Waveform{Samples: samples, SampleRate: sampleRate, Channels: 1}
}
