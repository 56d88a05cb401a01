package audio

import (
	"fmt"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

// Waveform is decoded PCM as float samples in [-1, 1], interleaved when
// Channels > 1. It is not modified after decoding.
type Waveform struct {
	Samples    []float32 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
}

// Frames returns the number of sample frames (samples per channel)
func (w *Waveform) Frames() int {
	if w.Channels <= 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// Duration returns the length in seconds
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(w.Frames()) / float64(w.SampleRate)
}

// Mono returns w averaged down to one channel, or w itself when it already
// has one.
func (w *Waveform) Mono() *Waveform {
	if w.Channels <= 1 {
		return w
	}
	frames := w.Frames()
	out := make([]float32, frames)
	for f := range frames {
		var sum float32
		for c := range w.Channels {
			sum += w.Samples[f*w.Channels+c]
		}
		out[f] = sum / float32(w.Channels)
	}
	return &Waveform{Samples: out, SampleRate: w.SampleRate, Channels: 1}
}

// Decoder turns an audio file into a Waveform at targetSampleRate, downmixed
// to one channel when mono is set.
type Decoder interface {
	Decode(path string, targetSampleRate int, mono bool) (*Waveform, error)
}

// DecodeError reports a file that could not be opened, has no audio stream or
// could not be converted to the requested format.
type DecodeError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Cause  error  `json:"-"`
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s: %s", e.Path, e.Reason)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, common.ErrDecode) match decoder failures
func (e *DecodeError) Is(target error) bool {
	return target == error(common.ErrDecode)
}

// NewDecodeError creates a new decode error
func NewDecodeError(path, reason string, cause error) *DecodeError {
	return &DecodeError{Path: path, Reason: reason, Cause: cause}
}
