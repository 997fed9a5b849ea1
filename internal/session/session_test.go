package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/nbackt/internal/model"
)

var scenario = []int{3, 5, 3, 5, 2, 2, 7, 1, 2, 2}

type fixedGen struct {
	seq []int
}

func (g fixedGen) Generate(length, _, _, _ int) ([]int, error) {
	return append([]int(nil), g.seq[:length]...), nil
}

type memPrefs struct {
	mu        sync.Mutex
	highscore int
	saves     []int
	loadErr   error
}

func (p *memPrefs) Highscore(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highscore, p.loadErr
}

func (p *memPrefs) SaveHighscore(_ context.Context, score int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.highscore = score
	p.saves = append(p.saves, score)
	return nil
}

func (p *memPrefs) savedScores() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.saves...)
}

type memRecorder struct {
	mu     sync.Mutex
	rounds []model.RoundStats
}

func (r *memRecorder) RecordRound(_ context.Context, round model.RoundStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, round)
	return nil
}

type recordingSpeaker struct {
	mu    sync.Mutex
	words []string
}

func (s *recordingSpeaker) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words = append(s.words, text)
}

// stepper lets a test release the loop one stimulus at a time.
type stepper struct {
	ch chan struct{}
}

func newStepper() *stepper {
	return &stepper{ch: make(chan struct{})}
}

func (s *stepper) sleep(ctx context.Context, _ time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ch:
		return nil
	}
}

func (s *stepper) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case s.ch <- struct{}{}:
		case <-time.After(2 * time.Second):
			t.Fatalf("loop did not consume step %d", i)
		}
	}
}

func immediate(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func waitFor(t *testing.T, ch <-chan State, pred func(State) bool) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatalf("state channel closed")
			}
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state")
		}
	}
}

func atIndex(round string, i int) func(State) bool {
	return func(st State) bool {
		return st.RoundID == round && st.Phase == PhaseRunning && st.Index == i
	}
}

func finished(st State) bool {
	return st.Phase == PhaseFinished
}

func scenarioConfig() model.SessionConfig {
	cfg := model.DefaultSessionConfig()
	cfg.NBack = 2
	cfg.Length = len(scenario)
	return cfg
}

func newTestSession(t *testing.T, cfg model.SessionConfig, prefs Preferences, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithGenerator(fixedGen{seq: scenario})}, opts...)
	s, err := New(context.Background(), cfg, prefs, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStartCountsTrueMatchesFromOriginalSequence(t *testing.T) {
	t.Parallel()

	st := newStepper()
	s := newTestSession(t, scenarioConfig(), &memPrefs{}, WithSleeper(st.sleep))
	require.NoError(t, s.Start(context.Background()))

	state := s.State()
	assert.Equal(t, PhaseRunning, state.Phase)
	assert.Equal(t, 2, state.ActualMatches)
	assert.Equal(t, scenario, s.Sequence())
	assert.NotEmpty(t, state.RoundID)
}

func TestCheckMatchScoring(t *testing.T) {
	t.Parallel()

	st := newStepper()
	s := newTestSession(t, scenarioConfig(), &memPrefs{}, WithSleeper(st.sleep))
	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	round := s.State().RoundID

	waitFor(t, ch, atIndex(round, 0))
	assert.False(t, s.CheckMatch(), "too early")
	assert.Equal(t, 0, s.State().Score)

	st.step(t, 2)
	waitFor(t, ch, atIndex(round, 2))
	assert.True(t, s.CheckMatch())
	state := s.State()
	assert.Equal(t, 2, state.Score)
	assert.Equal(t, 1, state.UserMatches)

	// The earlier position is consumed; pressing again is a miss.
	assert.False(t, s.CheckMatch())
	state = s.State()
	assert.Equal(t, 1, state.Score)
	assert.Equal(t, 0, state.UserMatches)

	st.step(t, 1)
	waitFor(t, ch, atIndex(round, 3))
	assert.True(t, s.CheckMatch())
	assert.Equal(t, 3, s.State().Score)

	st.step(t, 1)
	waitFor(t, ch, atIndex(round, 4))
	assert.False(t, s.CheckMatch())
	state = s.State()
	assert.Equal(t, 2, state.Score)
	assert.Equal(t, 0, state.UserMatches)
	assert.Equal(t, 5, state.Presses)
	assert.Equal(t, 2, state.ActualMatches, "true matches are unaffected by presses")
}

func TestUserMatchesCanGoNegative(t *testing.T) {
	t.Parallel()

	st := newStepper()
	s := newTestSession(t, scenarioConfig(), &memPrefs{}, WithSleeper(st.sleep))
	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	round := s.State().RoundID

	st.step(t, 4)
	waitFor(t, ch, atIndex(round, 4))
	assert.False(t, s.CheckMatch())
	assert.False(t, s.CheckMatch())
	state := s.State()
	assert.Equal(t, -2, state.Score)
	assert.Equal(t, -2, state.UserMatches)
}

func TestEarlyPressPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		policy      model.EarlyPress
		wantPresses int
	}{
		{name: "reset", policy: model.EarlyPressReset, wantPresses: 1},
		{name: "ignore", policy: model.EarlyPressIgnore, wantPresses: 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := scenarioConfig()
			cfg.EarlyPress = tc.policy
			st := newStepper()
			s := newTestSession(t, cfg, &memPrefs{}, WithSleeper(st.sleep))
			_, ch := s.Subscribe()
			require.NoError(t, s.Start(context.Background()))
			round := s.State().RoundID

			st.step(t, 1)
			waitFor(t, ch, atIndex(round, 1))
			assert.False(t, s.CheckMatch())
			state := s.State()
			assert.Equal(t, 0, state.Score)
			assert.Equal(t, tc.wantPresses, state.Presses)
		})
	}
}

func TestCheckMatchOutsideRound(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, scenarioConfig(), &memPrefs{}, WithSleeper(immediate))
	assert.False(t, s.CheckMatch())
	assert.Equal(t, 0, s.State().Presses)

	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	waitFor(t, ch, finished)
	assert.False(t, s.CheckMatch())
	assert.Equal(t, 0, s.State().Presses)
}

func TestRoundFinishUpdatesHighscoreAndRecordsRound(t *testing.T) {
	t.Parallel()

	prefs := &memPrefs{highscore: 1}
	rec := &memRecorder{}
	st := newStepper()
	s := newTestSession(t, scenarioConfig(), prefs, WithSleeper(st.sleep), WithRecorder(rec))
	assert.Equal(t, 1, s.State().Highscore)

	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	round := s.State().RoundID

	st.step(t, 2)
	waitFor(t, ch, atIndex(round, 2))
	require.True(t, s.CheckMatch())

	st.step(t, len(scenario)-2)
	state := waitFor(t, ch, finished)
	assert.True(t, state.RoundFinished())
	assert.Equal(t, 2, state.Score)
	assert.Equal(t, 2, state.Highscore)
	assert.Equal(t, []int{2}, prefs.savedScores())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.rounds, 1)
	got := rec.rounds[0]
	assert.Equal(t, round, got.RoundID)
	assert.Equal(t, 2, got.Score)
	assert.Equal(t, 1, got.UserMatches)
	assert.Equal(t, 2, got.ActualMatches)
	assert.Equal(t, 1, got.Presses)
	assert.Equal(t, model.ModeVisual, got.Mode)
}

func TestHighscoreNotSavedWhenNotExceeded(t *testing.T) {
	t.Parallel()

	prefs := &memPrefs{highscore: 0}
	s := newTestSession(t, scenarioConfig(), prefs, WithSleeper(immediate))
	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))

	state := waitFor(t, ch, finished)
	assert.Equal(t, 0, state.Score)
	assert.Equal(t, 0, state.Highscore)
	assert.Empty(t, prefs.savedScores(), "equal score must not be written")
}

func TestStartCancelsRunningLoop(t *testing.T) {
	t.Parallel()

	st := newStepper()
	s := newTestSession(t, scenarioConfig(), &memPrefs{}, WithSleeper(st.sleep))
	_, ch := s.Subscribe()

	require.NoError(t, s.Start(context.Background()))
	first := s.State().RoundID
	waitFor(t, ch, atIndex(first, 0))
	s.mu.Lock()
	firstDone := s.done
	s.mu.Unlock()

	require.NoError(t, s.Start(context.Background()))
	second := s.State().RoundID
	require.NotEqual(t, first, second)

	select {
	case <-firstDone:
	default:
		t.Fatalf("first loop still running after restart")
	}

	waitFor(t, ch, atIndex(second, 0))
	st.step(t, 1)
	state := waitFor(t, ch, atIndex(second, 1))
	assert.Equal(t, second, state.RoundID)
	assert.Equal(t, 1, s.State().Index)
}

func TestResetReturnsToIdle(t *testing.T) {
	t.Parallel()

	prefs := &memPrefs{highscore: 4}
	st := newStepper()
	s := newTestSession(t, scenarioConfig(), prefs, WithSleeper(st.sleep))
	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	round := s.State().RoundID
	st.step(t, 2)
	waitFor(t, ch, atIndex(round, 2))
	require.True(t, s.CheckMatch())

	s.Reset()
	state := s.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Equal(t, -1, state.Index)
	assert.Equal(t, -1, state.Value)
	assert.Equal(t, 0, state.Score)
	assert.Equal(t, 4, state.Highscore)
	assert.Empty(t, s.Sequence())
	assert.Empty(t, prefs.savedScores())
}

func TestSetConfigRejectedDuringRound(t *testing.T) {
	t.Parallel()

	st := newStepper()
	s := newTestSession(t, scenarioConfig(), &memPrefs{}, WithSleeper(st.sleep))
	require.NoError(t, s.SetMode(model.ModeAudio))
	assert.Equal(t, model.ModeAudio, s.Config().Mode)

	require.NoError(t, s.Start(context.Background()))
	err := s.SetMode(model.ModeVisual)
	assert.ErrorIs(t, err, ErrRoundInProgress)
	assert.Equal(t, model.ModeAudio, s.State().Config.Mode)

	s.Reset()
	assert.NoError(t, s.SetMode(model.ModeVisual))
}

func TestSetConfigValidates(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, scenarioConfig(), nil)
	cfg := scenarioConfig()
	cfg.NBack = cfg.Length
	assert.ErrorIs(t, s.SetConfig(cfg), model.ErrInvalidConfig)
}

func TestAudioModeSpeaksLetters(t *testing.T) {
	t.Parallel()

	cfg := scenarioConfig()
	cfg.Mode = model.ModeAudio
	sp := &recordingSpeaker{}
	s := newTestSession(t, cfg, &memPrefs{}, WithSleeper(immediate), WithSpeaker(sp))
	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	waitFor(t, ch, finished)

	sp.mu.Lock()
	defer sp.mu.Unlock()
	assert.Equal(t, []string{"Q", "R", "Q", "R", "Z", "Z", "W", "A", "Z", "Z"}, sp.words)
}

func TestVisualModeDoesNotSpeak(t *testing.T) {
	t.Parallel()

	sp := &recordingSpeaker{}
	s := newTestSession(t, scenarioConfig(), &memPrefs{}, WithSleeper(immediate), WithSpeaker(sp))
	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	waitFor(t, ch, finished)

	sp.mu.Lock()
	defer sp.mu.Unlock()
	assert.Empty(t, sp.words)
}

func TestNewFailsWhenHighscoreUnavailable(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), scenarioConfig(), &memPrefs{loadErr: errors.New("disk gone")})
	assert.ErrorContains(t, err, "failed to load highscore")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := scenarioConfig()
	cfg.NBack = 0
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestRealTimerAdvancesAndFinishes(t *testing.T) {
	t.Parallel()

	cfg := scenarioConfig()
	cfg.Interval = time.Millisecond
	s := newTestSession(t, cfg, &memPrefs{})
	_, ch := s.Subscribe()
	require.NoError(t, s.Start(context.Background()))
	state := waitFor(t, ch, finished)
	assert.Equal(t, len(scenario)-1, state.Index)
}

func TestLetter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A", Letter(1))
	assert.Equal(t, "I", Letter(9))
	assert.Equal(t, "", Letter(0))
	assert.Equal(t, "", Letter(10))
}

func TestHighscorePersistsAcrossSessions(t *testing.T) {
	t.Parallel()

	prefs := &memPrefs{}
	st := newStepper()
	first := newTestSession(t, scenarioConfig(), prefs, WithSleeper(st.sleep))
	_, ch := first.Subscribe()
	require.NoError(t, first.Start(context.Background()))
	round := first.State().RoundID
	st.step(t, 3)
	waitFor(t, ch, atIndex(round, 3))
	require.True(t, first.CheckMatch())
	st.step(t, len(scenario)-3)
	waitFor(t, ch, finished)
	first.Close()

	second := newTestSession(t, scenarioConfig(), prefs)
	assert.Equal(t, 2, second.State().Highscore)
}
