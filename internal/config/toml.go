// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Game GameConfig `toml:"game"`
}

// GameConfig maps round settings. Nil fields were not set in the file or
// environment.
type GameConfig struct {
	Mode       *string  `toml:"mode" env:"NBACKT_MODE"`
	NBack      *int     `toml:"n-back" env:"NBACKT_N_BACK"`
	Length     *int     `toml:"length" env:"NBACKT_LENGTH"`
	Alphabet   *int     `toml:"alphabet" env:"NBACKT_ALPHABET"`
	MatchPct   *float64 `toml:"match-pct" env:"NBACKT_MATCH_PCT"`
	Interval   *string  `toml:"interval" env:"NBACKT_INTERVAL"`
	EarlyPress *string  `toml:"early-press" env:"NBACKT_EARLY_PRESS"`
	SpeechCmd  *string  `toml:"speech-cmd" env:"NBACKT_SPEECH_CMD"`
	Seed       *int64   `toml:"seed" env:"NBACKT_SEED"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
