// Package generator builds N-back stimulus sequences.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrInvalidParams is returned when no sequence can satisfy the request.
var ErrInvalidParams = errors.New("invalid sequence parameters")

// Generator produces randomized stimulus sequences.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a Generator with a fixed seed.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns length values in [1, alphabet] with exactly matches
// positions i where seq[i] == seq[i-nBack]. matches is clamped to the number
// of eligible positions.
func (g *Generator) Generate(length, alphabet, matches, nBack int) ([]int, error) {
	if err := checkParams(length, alphabet, matches, nBack); err != nil {
		return nil, err
	}
	eligible := length - nBack
	if matches > eligible {
		matches = eligible
	}

	matchAt := make([]bool, length)
	for _, off := range g.rnd.Perm(eligible)[:matches] {
		matchAt[nBack+off] = true
	}

	seq := make([]int, length)
	for i := range seq {
		switch {
		case i < nBack:
			seq[i] = g.rnd.Intn(alphabet) + 1
		case matchAt[i]:
			seq[i] = seq[i-nBack]
		default:
			seq[i] = g.valueExcept(alphabet, seq[i-nBack])
		}
	}
	return seq, nil
}

// valueExcept draws uniformly from [1, alphabet] without v.
func (g *Generator) valueExcept(alphabet, v int) int {
	n := g.rnd.Intn(alphabet-1) + 1
	if n >= v {
		n++
	}
	return n
}

func checkParams(length, alphabet, matches, nBack int) error {
	if nBack < 1 {
		return fmt.Errorf("%w: n-back must be >= 1", ErrInvalidParams)
	}
	if nBack >= length {
		return fmt.Errorf("%w: n-back (%d) must be less than length (%d)", ErrInvalidParams, nBack, length)
	}
	if alphabet < 2 {
		return fmt.Errorf("%w: alphabet must be >= 2", ErrInvalidParams)
	}
	if matches < 0 {
		return fmt.Errorf("%w: matches must be >= 0", ErrInvalidParams)
	}
	return nil
}

// TargetMatches converts a match share into a match count for a sequence.
func TargetMatches(length, nBack int, pct float64) int {
	eligible := length - nBack
	if eligible <= 0 || pct <= 0 {
		return 0
	}
	n := int(math.Round(float64(eligible) * pct))
	if n > eligible {
		n = eligible
	}
	return n
}

// CountMatches counts positions that equal the value nBack steps earlier.
func CountMatches(seq []int, nBack int) int {
	if nBack < 1 {
		return 0
	}
	count := 0
	for i := nBack; i < len(seq); i++ {
		if seq[i] == seq[i-nBack] {
			count++
		}
	}
	return count
}
