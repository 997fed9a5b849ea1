package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLengthAndRange(t *testing.T) {
	t.Parallel()

	gen := NewWithSeed(42)
	for _, tc := range []struct {
		length, alphabet, nBack int
	}{
		{10, 9, 2},
		{30, 9, 3},
		{5, 2, 1},
		{50, 4, 7},
	} {
		matches := TargetMatches(tc.length, tc.nBack, 0.3)
		seq, err := gen.Generate(tc.length, tc.alphabet, matches, tc.nBack)
		require.NoError(t, err)
		require.Len(t, seq, tc.length)
		for _, v := range seq {
			assert.GreaterOrEqual(t, v, 1)
			assert.LessOrEqual(t, v, tc.alphabet)
		}
	}
}

func TestGenerateHitsTargetMatches(t *testing.T) {
	t.Parallel()

	gen := NewWithSeed(7)
	for i := 0; i < 50; i++ {
		seq, err := gen.Generate(20, 9, 6, 2)
		require.NoError(t, err)
		assert.Equal(t, 6, CountMatches(seq, 2), "sequence %v", seq)
	}
}

func TestGenerateClampsMatches(t *testing.T) {
	t.Parallel()

	seq, err := NewWithSeed(1).Generate(5, 3, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, CountMatches(seq, 2))
}

func TestGenerateZeroMatches(t *testing.T) {
	t.Parallel()

	seq, err := NewWithSeed(3).Generate(12, 2, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, CountMatches(seq, 1))
}

func TestGenerateRejectsInvalidParams(t *testing.T) {
	t.Parallel()

	gen := NewWithSeed(1)
	tests := []struct {
		name                             string
		length, alphabet, matches, nBack int
	}{
		{name: "n-back equals length", length: 3, alphabet: 9, matches: 1, nBack: 3},
		{name: "n-back above length", length: 3, alphabet: 9, matches: 1, nBack: 4},
		{name: "zero n-back", length: 10, alphabet: 9, matches: 1, nBack: 0},
		{name: "single symbol", length: 10, alphabet: 1, matches: 1, nBack: 2},
		{name: "negative matches", length: 10, alphabet: 9, matches: -1, nBack: 2},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := gen.Generate(tc.length, tc.alphabet, tc.matches, tc.nBack)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	t.Parallel()

	a, err := NewWithSeed(99).Generate(15, 9, 4, 2)
	require.NoError(t, err)
	b, err := NewWithSeed(99).Generate(15, 9, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCountMatchesScenario(t *testing.T) {
	t.Parallel()

	seq := []int{3, 5, 3, 5, 2, 2, 7, 1, 2, 2}
	assert.Equal(t, 2, CountMatches(seq, 2))
	assert.Equal(t, 0, CountMatches(seq, 0))
	assert.Equal(t, 0, CountMatches(seq, len(seq)))
}

func TestTargetMatches(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, TargetMatches(10, 2, 0.3))
	assert.Equal(t, 0, TargetMatches(10, 2, 0))
	assert.Equal(t, 0, TargetMatches(2, 2, 0.5))
	assert.Equal(t, 8, TargetMatches(10, 2, 1))
}
