package audio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies an audio container
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOther   Format = "other"
	FormatUnknown Format = "unknown"
)

type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// DetectFormat inspects the file header first and falls back to the extension
func (d *Detector) DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, NewDecodeError(path, "cannot open file", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return FormatUnknown, NewDecodeError(path, "empty file", nil)
		}
		return FormatUnknown, NewDecodeError(path, "cannot read header", err)
	}

	if format := detectFromHeader(header[:n]); format != FormatUnknown {
		return format, nil
	}
	return detectFromExtension(path), nil
}

func detectFromHeader(header []byte) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// MPEG audio frame sync; AAC ADTS uses the same sync with layer bits 00
		if header[1]&0x06 != 0 {
			return FormatMP3
		}
		return FormatOther
	case len(header) >= 4 && (bytes.Equal(header[0:4], []byte("fLaC")) || bytes.Equal(header[0:4], []byte("OggS"))):
		return FormatOther
	case len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")):
		return FormatOther
	}
	return FormatUnknown
}

func detectFromExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	case "":
		return FormatUnknown
	default:
		return FormatOther
	}
}
