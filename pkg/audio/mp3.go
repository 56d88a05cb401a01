package audio

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 layer III files with go-mp3. The library always
// yields 16-bit little-endian stereo.
type MP3Decoder struct{}

func NewMP3Decoder() *MP3Decoder {
	return &MP3Decoder{}
}

func (d *MP3Decoder) Decode(path string, targetSampleRate int, mono bool) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewDecodeError(path, "cannot open file", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, NewDecodeError(path, "not a valid MP3 stream", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, NewDecodeError(path, "cannot read MP3 frames", err)
	}

	const channels = 2
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float64(v) / 32768.0
	}

	return toWaveform(path, samples, channels, dec.SampleRate(), targetSampleRate, mono)
}
