// Package main provides the CLI entrypoint for nbackt.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/nbackt/internal/config"
	"github.com/verte-zerg/nbackt/internal/model"
	"github.com/verte-zerg/nbackt/internal/session"
	"github.com/verte-zerg/nbackt/internal/speech"
	"github.com/verte-zerg/nbackt/internal/stats"
	"github.com/verte-zerg/nbackt/internal/statsui"
	"github.com/verte-zerg/nbackt/internal/store"
	"github.com/verte-zerg/nbackt/internal/tui"
)

const (
	defaultCurveWindow = 10
)

var (
	playMode       string
	playNBack      int
	playLength     int
	playAlphabet   int
	playMatchPct   float64
	playInterval   string
	playEarlyPress string
	playSpeechCmd  string
	playSeed       int64
	playDebug      bool

	statsMode        string
	statsNBack       int
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	highscoreReset bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := model.DefaultSessionConfig()
	rootCmd := &cobra.Command{
		Use:           "nbackt",
		Short:         "TUI n-back memory trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playMode, "mode", string(defaults.Mode), "stimulus mode: visual, audio or audiovisual")
	rootCmd.Flags().IntVar(&playNBack, "n", defaults.NBack, "n-back distance")
	rootCmd.Flags().IntVar(&playLength, "length", defaults.Length, "stimuli per round")
	rootCmd.Flags().IntVar(&playAlphabet, "alphabet", defaults.Alphabet, "number of distinct stimuli (2-9)")
	rootCmd.Flags().Float64Var(&playMatchPct, "match-pct", defaults.MatchPct, "share of eligible positions that are matches (0-1)")
	rootCmd.Flags().StringVar(&playInterval, "interval", defaults.Interval.String(), "time each stimulus is shown")
	rootCmd.Flags().StringVar(&playEarlyPress, "early-press", string(defaults.EarlyPress), "match press before n stimuli: reset or ignore")
	rootCmd.Flags().StringVar(&playSpeechCmd, "speech-cmd", "", "text-to-speech command for audio modes, e.g. \"espeak\"")
	rootCmd.Flags().Int64Var(&playSeed, "seed", 0, "sequence seed (0 picks a random seed)")
	rootCmd.Flags().BoolVar(&playDebug, "debug", false, "write a debug log to "+config.DefaultLogPath())

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newHighscoreCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv()
	if err != nil {
		return err
	}
	game := fileCfg.Game.Merge(envCfg)
	applyStringConfig(cmd, "mode", &playMode, game.Mode)
	applyIntConfig(cmd, "n", &playNBack, game.NBack)
	applyIntConfig(cmd, "length", &playLength, game.Length)
	applyIntConfig(cmd, "alphabet", &playAlphabet, game.Alphabet)
	applyFloatConfig(cmd, "match-pct", &playMatchPct, game.MatchPct)
	applyStringConfig(cmd, "interval", &playInterval, game.Interval)
	applyStringConfig(cmd, "early-press", &playEarlyPress, game.EarlyPress)
	applyStringConfig(cmd, "speech-cmd", &playSpeechCmd, game.SpeechCmd)
	applyInt64Config(cmd, "seed", &playSeed, game.Seed)

	cfg, err := buildSessionConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(playDebug)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	var speaker session.Speaker = speech.Nop{}
	if playSpeechCmd != "" {
		cmdSpeaker, err := speech.NewCommand(playSpeechCmd)
		if err != nil {
			return fmt.Errorf("invalid --speech-cmd: %w", err)
		}
		cmdSpeaker.OnError = func(err error) {
			logger.Warn("speech failed", "err", err)
		}
		defer func() {
			if cerr := cmdSpeaker.Close(); cerr != nil {
				logErrf("failed to stop speech: %v\n", cerr)
			}
		}()
		speaker = cmdSpeaker
	} else if cfg.Mode.Speaks() {
		logErrln("no --speech-cmd set; audio stimuli will be silent")
	}

	ctx := context.Background()
	sess, err := session.New(ctx, cfg, st,
		session.WithRecorder(st),
		session.WithSpeaker(speaker),
		session.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer sess.Close()

	program := tea.NewProgram(tui.NewModel(sess), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func buildSessionConfig() (model.SessionConfig, error) {
	mode, err := model.ParseMode(playMode)
	if err != nil {
		return model.SessionConfig{}, fmt.Errorf("invalid --mode: %w", err)
	}
	earlyPress, err := model.ParseEarlyPress(playEarlyPress)
	if err != nil {
		return model.SessionConfig{}, fmt.Errorf("invalid --early-press: %w", err)
	}
	interval, err := time.ParseDuration(strings.TrimSpace(playInterval))
	if err != nil {
		return model.SessionConfig{}, fmt.Errorf("invalid --interval: %w", err)
	}
	cfg := model.SessionConfig{
		Mode:       mode,
		NBack:      playNBack,
		Length:     playLength,
		Alphabet:   playAlphabet,
		MatchPct:   playMatchPct,
		Interval:   interval,
		EarlyPress: earlyPress,
		Seed:       playSeed,
	}
	if err := cfg.Validate(); err != nil {
		return model.SessionConfig{}, err
	}
	return cfg, nil
}

// newLogger returns a debug file logger, or a discarding one when debug is off.
func newLogger(debug bool) (*slog.Logger, func(), error) {
	if !debug {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil // slog.DiscardHandler needs go1.24
	}
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := writeConfigTemplate(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// writeConfigTemplate creates the config file unless it already exists.
func writeConfigTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat config: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show round history and learning curves",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsMode, "mode", "", "mode filter")
	cmd.Flags().IntVar(&statsNBack, "n", 0, "n-back filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N rounds")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildStatsConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsPlain {
		return printStats(cmd.Context(), cmd.OutOrStdout(), st, cfg)
	}
	program := tea.NewProgram(statsui.NewModel(st, cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func buildStatsConfig() (model.StatsConfig, error) {
	cfg := model.StatsConfig{
		NBack:       statsNBack,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}
	if statsMode != "" {
		mode, err := model.ParseMode(statsMode)
		if err != nil {
			return cfg, fmt.Errorf("invalid --mode: %w", err)
		}
		cfg.Mode = mode
	}
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return cfg, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	if cfg.NBack < 0 {
		return cfg, fmt.Errorf("--n must be >= 0")
	}
	if cfg.Last < 0 {
		return cfg, fmt.Errorf("--last must be >= 0")
	}
	if cfg.CurveWindow < 1 {
		return cfg, fmt.Errorf("--curve-window must be >= 1")
	}
	return cfg, nil
}

func printStats(ctx context.Context, w io.Writer, st *store.Store, cfg model.StatsConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := stats.BuildReport(ctx, st, cfg)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := stats.RenderReport(w, report, cfg.CurveWindow); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newHighscoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "highscore",
		Short: "Show or reset the highscore",
		Args:  cobra.NoArgs,
		RunE:  runHighscoreCmd,
	}
	cmd.Flags().BoolVar(&highscoreReset, "reset", false, "reset the highscore to 0")
	return cmd
}

func runHighscoreCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return highscore(cmd.Context(), cmd.OutOrStdout(), st, highscoreReset)
}

func highscore(ctx context.Context, w io.Writer, st *store.Store, reset bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if reset {
		if err := st.ResetHighscore(ctx); err != nil {
			return fmt.Errorf("failed to reset highscore: %w", err)
		}
	}
	hs, err := st.Highscore(ctx)
	if err != nil {
		return fmt.Errorf("failed to load highscore: %w", err)
	}
	if _, err := fmt.Fprintln(w, hs); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	d := model.DefaultSessionConfig()
	return fmt.Sprintf(`# nbackt configuration
# Uncomment a value to enable it. NBACKT_<KEY> environment variables
# (e.g. NBACKT_N_BACK=3) override this file, and CLI flags override both.

[game]
# mode = %q          # visual, audio or audiovisual
# n-back = %d              # N-back distance
# length = %d             # Stimuli per round
# alphabet = %d            # Distinct stimuli (2-9)
# match-pct = %.2f        # Share of eligible positions that are matches (0-1)
# interval = %q          # Time each stimulus is shown
# early-press = %q      # Match press before N stimuli: reset or ignore
# speech-cmd = "espeak"    # Text-to-speech command for audio modes
# seed = 0                 # Sequence seed (0 picks a random seed)
`,
		d.Mode,
		d.NBack,
		d.Length,
		d.Alphabet,
		d.MatchPct,
		d.Interval.String(),
		d.EarlyPress,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
