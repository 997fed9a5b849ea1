// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when a session configuration cannot be played.
var ErrInvalidConfig = errors.New("invalid session config")

// MaxAlphabet is the number of grid cells and spoken letters available.
const MaxAlphabet = 9

// Mode selects how stimuli are presented.
type Mode string

const (
	ModeVisual      Mode = "visual"
	ModeAudio       Mode = "audio"
	ModeAudioVisual Mode = "audiovisual"
)

// Modes lists all modes in display order.
var Modes = []Mode{ModeVisual, ModeAudio, ModeAudioVisual}

// ParseMode normalizes a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "visual", "v":
		return ModeVisual, nil
	case "audio", "a":
		return ModeAudio, nil
	case "audiovisual", "audio-visual", "av":
		return ModeAudioVisual, nil
	}
	return "", fmt.Errorf("unknown mode %q (use visual, audio or audiovisual)", s)
}

// Label returns a human-readable mode name.
func (m Mode) Label() string {
	switch m {
	case ModeAudio:
		return "Audio"
	case ModeAudioVisual:
		return "Audio+Visual"
	default:
		return "Visual"
	}
}

// Speaks reports whether stimuli are spoken in this mode.
func (m Mode) Speaks() bool {
	return m == ModeAudio || m == ModeAudioVisual
}

// Shows reports whether stimuli are drawn on the grid in this mode.
func (m Mode) Shows() bool {
	return m == ModeVisual || m == ModeAudioVisual
}

// EarlyPress decides what a match press does before N stimuli were shown.
type EarlyPress string

const (
	// EarlyPressReset zeroes the running score.
	EarlyPressReset EarlyPress = "reset"
	// EarlyPressIgnore leaves the score untouched.
	EarlyPressIgnore EarlyPress = "ignore"
)

// ParseEarlyPress normalizes an early-press policy name.
func ParseEarlyPress(s string) (EarlyPress, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reset", "":
		return EarlyPressReset, nil
	case "ignore", "noop", "no-op":
		return EarlyPressIgnore, nil
	}
	return "", fmt.Errorf("unknown early-press policy %q (use reset or ignore)", s)
}

// SessionConfig defines round settings. It is fixed while a round runs.
type SessionConfig struct {
	Mode       Mode
	NBack      int
	Length     int
	Alphabet   int
	MatchPct   float64
	Interval   time.Duration
	EarlyPress EarlyPress
	Seed       int64
}

// DefaultSessionConfig mirrors the stock game settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Mode:       ModeVisual,
		NBack:      2,
		Length:     10,
		Alphabet:   MaxAlphabet,
		MatchPct:   0.3,
		Interval:   2000 * time.Millisecond,
		EarlyPress: EarlyPressReset,
	}
}

// Validate checks that a round can be generated and played.
func (c SessionConfig) Validate() error {
	switch c.Mode {
	case ModeVisual, ModeAudio, ModeAudioVisual:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.NBack < 1 {
		return fmt.Errorf("%w: n-back must be >= 1", ErrInvalidConfig)
	}
	if c.Length <= c.NBack {
		return fmt.Errorf("%w: length (%d) must be greater than n-back (%d)", ErrInvalidConfig, c.Length, c.NBack)
	}
	if c.Alphabet < 2 || c.Alphabet > MaxAlphabet {
		return fmt.Errorf("%w: alphabet must be between 2 and %d", ErrInvalidConfig, MaxAlphabet)
	}
	if c.MatchPct < 0 || c.MatchPct > 1 {
		return fmt.Errorf("%w: match-pct must be between 0 and 1", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be > 0", ErrInvalidConfig)
	}
	switch c.EarlyPress {
	case EarlyPressReset, EarlyPressIgnore:
	default:
		return fmt.Errorf("%w: unknown early-press policy %q", ErrInvalidConfig, c.EarlyPress)
	}
	return nil
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Mode        Mode
	NBack       int
	Since       *time.Time
	Last        int
	CurveWindow int
}

// RoundStats captures a completed round.
type RoundStats struct {
	RoundID       string
	StartedAt     time.Time
	EndedAt       time.Time
	Mode          Mode
	NBack         int
	Length        int
	Alphabet      int
	IntervalMs    int64
	Score         int
	UserMatches   int
	ActualMatches int
	Presses       int
}

// RoundAggregate summarizes a stored round for reporting.
type RoundAggregate struct {
	ID            int64
	RoundID       string
	EndedAt       time.Time
	Mode          Mode
	NBack         int
	Length        int
	Score         int
	UserMatches   int
	ActualMatches int
	Presses       int
}

// ModeAggregate aggregates rounds played with one mode and n-back distance.
type ModeAggregate struct {
	Mode          Mode
	NBack         int
	Rounds        int
	BestScore     int
	TotalScore    int
	UserMatches   int
	ActualMatches int
}
