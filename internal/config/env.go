package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// LoadEnv reads NBACKT_* overrides for the game settings.
func LoadEnv() (GameConfig, error) {
	var cfg GameConfig
	if err := env.Parse(&cfg); err != nil {
		return GameConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Merge returns base with every field set in override replacing it.
func (base GameConfig) Merge(override GameConfig) GameConfig {
	out := base
	if override.Mode != nil {
		out.Mode = override.Mode
	}
	if override.NBack != nil {
		out.NBack = override.NBack
	}
	if override.Length != nil {
		out.Length = override.Length
	}
	if override.Alphabet != nil {
		out.Alphabet = override.Alphabet
	}
	if override.MatchPct != nil {
		out.MatchPct = override.MatchPct
	}
	if override.Interval != nil {
		out.Interval = override.Interval
	}
	if override.EarlyPress != nil {
		out.EarlyPress = override.EarlyPress
	}
	if override.SpeechCmd != nil {
		out.SpeechCmd = override.SpeechCmd
	}
	if override.Seed != nil {
		out.Seed = override.Seed
	}
	return out
}
