package config

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

// Onset detection methods understood by the tempo extractor
const (
	OnsetMelFlux = "melflux"
	OnsetFlux    = "flux"
	OnsetComplex = "complex"
	OnsetHFC     = "hfc"
)

// Config controls every numeric stage of the embedding pipeline.
// It is a value type and is never mutated by the pipeline.
type Config struct {
	SampleRate      int     `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
	Mono            bool    `mapstructure:"mono" yaml:"mono" json:"mono"`
	MelBands        int     `mapstructure:"mel_n_mels" yaml:"mel_n_mels" json:"mel_n_mels"`
	MelHopMs        float64 `mapstructure:"mel_hop_ms" yaml:"mel_hop_ms" json:"mel_hop_ms"`
	ChromaBins      int     `mapstructure:"chroma_bins" yaml:"chroma_bins" json:"chroma_bins"`
	TempoWin        int     `mapstructure:"tempo_win" yaml:"tempo_win" json:"tempo_win"`
	SegmentSeconds  float64 `mapstructure:"seg_seconds" yaml:"seg_seconds" json:"seg_seconds"`
	HopSeconds      float64 `mapstructure:"hop_seconds" yaml:"hop_seconds" json:"hop_seconds"`
	SegmentsPerSong int     `mapstructure:"segments_per_song" yaml:"segments_per_song" json:"segments_per_song"`
	UseHPSS         bool    `mapstructure:"use_hpss" yaml:"use_hpss" json:"use_hpss"`
	OnsetMethod     string  `mapstructure:"onset_method" yaml:"onset_method" json:"onset_method"`
}

// DefaultConfig returns the parameters the reference model was trained with
func DefaultConfig() Config {
	return Config{
		SampleRate:      44100,
		Mono:            true,
		MelBands:        128,
		MelHopMs:        25.0,
		ChromaBins:      12,
		TempoWin:        160,
		SegmentSeconds:  18.6,
		HopSeconds:      6.4,
		SegmentsPerSong: 3,
		UseHPSS:         false,
		OnsetMethod:     OnsetMelFlux,
	}
}

// MelHopLength is the analysis hop in samples shared by the mel and onset stages
func (c Config) MelHopLength(sampleRate int) int {
	// float32 product keeps truncation identical to the reference for values
	// like 44100*25/1000 that are not exact in float64
	hop := int(float32(sampleRate) * float32(c.MelHopMs) / 1000.0)
	return max(1, hop)
}

// Validate reports the first invalid parameter as an INVALID_ARGUMENT error
func (c Config) Validate() error {
	var problem string
	switch {
	case c.SampleRate <= 0:
		problem = "sample_rate must be positive"
	case c.MelBands <= 0:
		problem = "mel_n_mels must be positive"
	case c.MelHopMs <= 0:
		problem = "mel_hop_ms must be positive"
	case c.ChromaBins <= 0:
		problem = "chroma_bins must be positive"
	case c.TempoWin <= 0:
		problem = "tempo_win must be positive"
	case c.SegmentSeconds <= 0:
		problem = "seg_seconds must be positive"
	case c.HopSeconds <= 0:
		problem = "hop_seconds must be positive"
	case c.SegmentsPerSong < 0:
		problem = "segments_per_song cannot be negative"
	}
	if problem == "" {
		switch strings.ToLower(c.OnsetMethod) {
		case "", OnsetMelFlux, OnsetFlux, OnsetComplex, OnsetHFC:
		default:
			problem = fmt.Sprintf("unknown onset_method %q", c.OnsetMethod)
		}
	}

	if problem != "" {
		return common.NewEmbeddingError(common.ErrCodeInvalidArgument, "config", problem, nil)
	}
	return nil
}
