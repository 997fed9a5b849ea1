// Package session runs N-back rounds: sequence setup, timed stimulus
// advancement, match checking and highscore bookkeeping.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/nbackt/internal/generator"
	"github.com/verte-zerg/nbackt/internal/model"
)

// ErrRoundInProgress is returned when settings change while a round runs.
var ErrRoundInProgress = errors.New("round in progress")

// Phase is the lifecycle stage of a round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}

// State is a snapshot of the session as seen by observers.
type State struct {
	RoundID       string
	Config        model.SessionConfig
	Phase         Phase
	Index         int
	Value         int
	Score         int
	Highscore     int
	UserMatches   int
	ActualMatches int
	Presses       int
}

// RoundFinished reports whether the last stimulus of the round has elapsed.
func (s State) RoundFinished() bool {
	return s.Phase == PhaseFinished
}

// SequenceGenerator builds the stimulus sequence for a round.
type SequenceGenerator interface {
	Generate(length, alphabet, matches, nBack int) ([]int, error)
}

// Preferences persists the highscore across runs.
type Preferences interface {
	Highscore(ctx context.Context) (int, error)
	SaveHighscore(ctx context.Context, score int) error
}

// Speaker voices a stimulus.
type Speaker interface {
	Speak(text string)
}

// RoundRecorder stores finished rounds.
type RoundRecorder interface {
	RecordRound(ctx context.Context, round model.RoundStats) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Session.
type Option func(*Session)

// WithGenerator replaces the default random generator.
func WithGenerator(gen SequenceGenerator) Option {
	return func(s *Session) {
		s.gen = gen
	}
}

// WithSpeaker sets the speech collaborator used in audio modes.
func WithSpeaker(sp Speaker) Option {
	return func(s *Session) {
		s.speaker = sp
	}
}

// WithRecorder stores every finished round.
func WithRecorder(rec RoundRecorder) Option {
	return func(s *Session) {
		s.recorder = rec
	}
}

// WithLogger sets the debug logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithSleeper replaces the timer used between stimuli.
func WithSleeper(sleep Sleeper) Option {
	return func(s *Session) {
		s.sleep = sleep
	}
}

// WithClock sets the time source for round timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session owns the state of one player's rounds.
//
// Start and Reset cancel and wait for the running loop before touching state,
// so at most one loop advances the session at any time.
type Session struct {
	// lifecycle serializes Start, Reset and Close.
	lifecycle sync.Mutex

	mu        sync.Mutex
	cfg       model.SessionConfig
	state     State
	seq       []int
	consumed  []bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	gen      SequenceGenerator
	prefs    Preferences
	speaker  Speaker
	recorder RoundRecorder
	logger   *slog.Logger
	sleep    Sleeper
	now      func() time.Time
	hub      *Hub
}

// New builds an idle session and loads the stored highscore.
func New(ctx context.Context, cfg model.SessionConfig, prefs Preferences, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:     cfg,
		prefs:   prefs,
		speaker: nopSpeaker{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // discard handler (slog.DiscardHandler needs go1.24)
		sleep:   sleepContext,
		now:     time.Now,
	}
	if cfg.Seed != 0 {
		s.gen = generator.NewWithSeed(cfg.Seed)
	} else {
		s.gen = generator.New()
	}
	for _, opt := range opts {
		opt(s)
	}

	highscore := 0
	if prefs != nil {
		hs, err := prefs.Highscore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load highscore: %w", err)
		}
		highscore = hs
	}
	s.state = idleState(cfg, highscore)
	s.hub = NewHub(s.state)
	return s, nil
}

func idleState(cfg model.SessionConfig, highscore int) State {
	return State{
		Config:    cfg,
		Phase:     PhaseIdle,
		Index:     -1,
		Value:     -1,
		Highscore: highscore,
	}
}

// Config returns the settings used for the next round.
func (s *Session) Config() model.SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig replaces the settings. It fails while a round is running.
func (s *Session) SetConfig(cfg model.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase == PhaseRunning {
		return ErrRoundInProgress
	}
	s.cfg = cfg
	s.state.Config = cfg
	s.hub.Publish(s.state)
	return nil
}

// SetMode changes only the presentation mode.
func (s *Session) SetMode(mode model.Mode) error {
	cfg := s.Config()
	cfg.Mode = mode
	return s.SetConfig(cfg)
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sequence returns a copy of the current round's stimuli.
func (s *Session) Sequence() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.seq...)
}

// Subscribe returns a channel that receives every state change.
func (s *Session) Subscribe() (string, <-chan State) {
	return s.hub.Subscribe()
}

// Unsubscribe stops deliveries to the given subscriber.
func (s *Session) Unsubscribe(id string) bool {
	return s.hub.Unsubscribe(id)
}

// Start begins a new round, cancelling any round in progress.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLoop()

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	target := generator.TargetMatches(cfg.Length, cfg.NBack, cfg.MatchPct)
	seq, err := s.gen.Generate(cfg.Length, cfg.Alphabet, target, cfg.NBack)
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	s.seq = seq
	s.consumed = make([]bool, len(seq))
	s.startedAt = s.now()
	s.state = State{
		RoundID:       uuid.NewString(),
		Config:        cfg,
		Phase:         PhaseRunning,
		Index:         -1,
		Value:         -1,
		Highscore:     s.state.Highscore,
		ActualMatches: generator.CountMatches(seq, cfg.NBack),
	}
	s.logger.Debug("sequence generated",
		"round", s.state.RoundID,
		"mode", cfg.Mode,
		"n", cfg.NBack,
		"sequence", seq,
		"matches", s.state.ActualMatches,
	)
	s.hub.Publish(s.state)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(loopCtx, done, append([]int(nil), seq...), cfg)
	return nil
}

// Reset stops any round and returns to the idle state. The highscore and
// settings are kept.
func (s *Session) Reset() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLoop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = nil
	s.consumed = nil
	s.state = idleState(s.cfg, s.state.Highscore)
	s.hub.Publish(s.state)
}

// Close stops any round and closes all subscriptions.
func (s *Session) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLoop()
	s.hub.Close()
}

// CheckMatch evaluates a match press against the stimulus N steps back.
func (s *Session) CheckMatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if st.Phase != PhaseRunning {
		return false
	}
	n := st.Config.NBack
	if st.Index < n {
		if st.Config.EarlyPress == model.EarlyPressIgnore {
			return false
		}
		st.Presses++
		st.Score = 0
		s.logger.Debug("match pressed before enough stimuli", "round", st.RoundID, "index", st.Index)
		s.hub.Publish(s.state)
		return false
	}

	back := st.Index - n
	match := !s.consumed[back] && s.seq[st.Index] == s.seq[back]
	st.Presses++
	if match {
		st.UserMatches++
		st.Score += n
		s.consumed[back] = true
		s.logger.Debug("match", "round", st.RoundID, "index", st.Index)
	} else {
		st.Score--
		st.UserMatches--
		s.logger.Debug("no match", "round", st.RoundID, "index", st.Index)
	}
	s.hub.Publish(s.state)
	return match
}

func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Session) run(ctx context.Context, done chan struct{}, seq []int, cfg model.SessionConfig) {
	defer close(done)
	for i, v := range seq {
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.state.Index = i
		s.state.Value = v
		s.hub.Publish(s.state)
		s.mu.Unlock()

		if cfg.Mode.Speaks() {
			s.speaker.Speak(Letter(v))
		}
		if err := s.sleep(ctx, cfg.Interval); err != nil {
			return
		}
	}
	s.finish(ctx)
}

func (s *Session) finish(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	st := &s.state
	st.Phase = PhaseFinished
	// Persist even if the round is reset right after it ends.
	persistCtx := context.WithoutCancel(ctx)
	if st.Score > st.Highscore {
		st.Highscore = st.Score
		if s.prefs != nil {
			if err := s.prefs.SaveHighscore(persistCtx, st.Score); err != nil {
				s.logger.Error("failed to save highscore", "err", err)
			}
		}
	}
	if s.recorder != nil {
		round := model.RoundStats{
			RoundID:       st.RoundID,
			StartedAt:     s.startedAt,
			EndedAt:       s.now(),
			Mode:          st.Config.Mode,
			NBack:         st.Config.NBack,
			Length:        st.Config.Length,
			Alphabet:      st.Config.Alphabet,
			IntervalMs:    st.Config.Interval.Milliseconds(),
			Score:         st.Score,
			UserMatches:   st.UserMatches,
			ActualMatches: st.ActualMatches,
			Presses:       st.Presses,
		}
		if err := s.recorder.RecordRound(persistCtx, round); err != nil {
			s.logger.Error("failed to record round", "err", err)
		}
	}
	s.logger.Debug("round finished",
		"round", st.RoundID,
		"score", st.Score,
		"matches", st.UserMatches,
		"actual", st.ActualMatches,
	)
	s.hub.Publish(s.state)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopSpeaker struct{}

func (nopSpeaker) Speak(string) {}
