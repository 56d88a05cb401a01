package audio

import (
	"fmt"
	"sync"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Backend names accepted by NewDecoder
const (
	BackendAuto   = "auto"
	BackendWAV    = "wav"
	BackendMP3    = "mp3"
	BackendFFmpeg = "ffmpeg"
)

// Factory picks a decoder per file by detected format. It implements Decoder.
type Factory struct {
	decoders map[Format]func() Decoder
	detector *Detector
	mu       sync.RWMutex
	logger   logging.Logger
}

// NewFactory creates a factory with the pure-Go WAV and MP3 decoders and,
// when ffmpegPath resolves, ffmpeg for every other format.
func NewFactory(ffmpegPath string) *Factory {
	f := &Factory{
		decoders: make(map[Format]func() Decoder),
		detector: NewDetector(),
		logger: logging.WithFields(logging.Fields{
			"component": "decoder_factory",
		}),
	}

	f.RegisterDecoderFactory(FormatWAV, func() Decoder { return NewWAVDecoder() })
	f.RegisterDecoderFactory(FormatMP3, func() Decoder { return NewMP3Decoder() })

	if ff, err := NewFFmpegDecoder(ffmpegPath); err == nil {
		f.RegisterDecoderFactory(FormatOther, func() Decoder { return ff })
	} else {
		f.logger.Debug("ffmpeg unavailable, only WAV and MP3 will decode", logging.Fields{
			"error": err.Error(),
		})
	}

	return f
}

// NewDecoder returns the decoder for a configured backend name
func NewDecoder(backend, ffmpegPath string) (Decoder, error) {
	switch backend {
	case "", BackendAuto:
		return NewFactory(ffmpegPath), nil
	case BackendWAV:
		return NewWAVDecoder(), nil
	case BackendMP3:
		return NewMP3Decoder(), nil
	case BackendFFmpeg:
		return NewFFmpegDecoder(ffmpegPath)
	default:
		return nil, fmt.Errorf("unknown decoder backend %q", backend)
	}
}

// RegisterDecoderFactory registers a decoder constructor for a format
func (f *Factory) RegisterDecoderFactory(format Format, factory func() Decoder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.decoders[format] = factory
}

// CreateDecoder creates a decoder for the given format
func (f *Factory) CreateDecoder(format Format) (Decoder, error) {
	f.mu.RLock()
	factory, exists := f.decoders[format]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported audio format: %s", format)
	}
	return factory(), nil
}

// SupportedFormats returns the formats with a registered decoder
func (f *Factory) SupportedFormats() []Format {
	f.mu.RLock()
	defer f.mu.RUnlock()

	formats := make([]Format, 0, len(f.decoders))
	for format := range f.decoders {
		formats = append(formats, format)
	}
	return formats
}

// Decode detects the file's format and delegates to the matching decoder
func (f *Factory) Decode(path string, targetSampleRate int, mono bool) (*Waveform, error) {
	format, err := f.detector.DetectFormat(path)
	if err != nil {
		return nil, err
	}

	dec, err := f.CreateDecoder(format)
	if err != nil {
		return nil, NewDecodeError(path, "unsupported format", err)
	}

	f.logger.Debug("Decoding audio file", logging.Fields{
		"path":        path,
		"format":      string(format),
		"target_rate": targetSampleRate,
		"mono":        mono,
	})

	return dec.Decode(path, targetSampleRate, mono)
}
