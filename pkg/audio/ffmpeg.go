package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
)

// FFmpegDecoder shells out to ffmpeg for containers and codecs the pure-Go
// decoders do not handle. ffmpeg does the downmix and resampling itself.
type FFmpegDecoder struct {
	ffmpegPath string
}

// NewFFmpegDecoder resolves ffmpegPath (or "ffmpeg" from PATH when empty)
func NewFFmpegDecoder(ffmpegPath string) (*FFmpegDecoder, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &FFmpegDecoder{ffmpegPath: resolved}, nil
}

func (d *FFmpegDecoder) Decode(path string, targetSampleRate int, mono bool) (*Waveform, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewDecodeError(path, "cannot open file", err)
	}
	if targetSampleRate <= 0 {
		return nil, NewDecodeError(path, "ffmpeg decoding requires a target sample rate", nil)
	}

	channels := 2
	if mono {
		channels = 1
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", fmt.Sprintf("%d", channels),
		"-ar", fmt.Sprintf("%d", targetSampleRate),
		"-",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(d.ffmpegPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = "ffmpeg failed"
		}
		return nil, NewDecodeError(path, reason, err)
	}

	raw := stdout.Bytes()
	if len(raw) < 4 {
		return nil, NewDecodeError(path, "no audio stream", nil)
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}

	return &Waveform{Samples: samples, SampleRate: targetSampleRate, Channels: channels}, nil
}
