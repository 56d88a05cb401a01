package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 128, cfg.MelBands)
	assert.Equal(t, 160, cfg.TempoWin)
	assert.Equal(t, 3, cfg.SegmentsPerSong)
	assert.False(t, cfg.UseHPSS)
}

func TestMelHopLength(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1102, cfg.MelHopLength(44100))
	assert.Equal(t, 551, cfg.MelHopLength(22050))

	cfg.MelHopMs = 0.001
	assert.Equal(t, 1, cfg.MelHopLength(100))
}

func TestValidateRejectsBadValues(t *testing.T) {
	mutations := map[string]func(*Config){
		"sample rate": func(c *Config) { c.SampleRate = 0 },
		"mel bands":   func(c *Config) { c.MelBands = -1 },
		"tempo win":   func(c *Config) { c.TempoWin = 0 },
		"segments":    func(c *Config) { c.SegmentsPerSong = -2 },
		"onset":       func(c *Config) { c.OnsetMethod = "energy" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}
}
