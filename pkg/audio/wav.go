package audio

import (
	"os"

	"github.com/go-audio/wav"
)

// WAVDecoder decodes PCM WAV files with go-audio/wav
type WAVDecoder struct{}

func NewWAVDecoder() *WAVDecoder {
	return &WAVDecoder{}
}

func (d *WAVDecoder) Decode(path string, targetSampleRate int, mono bool) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewDecodeError(path, "cannot open file", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, NewDecodeError(path, "not a valid WAV file", nil)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, NewDecodeError(path, "cannot read PCM data", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, NewDecodeError(path, "no audio stream", nil)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}

	return toWaveform(path, samples, buf.Format.NumChannels, buf.Format.SampleRate, targetSampleRate, mono)
}
