package random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollDieRange(t *testing.T) {
	src := New()
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := RollDie(src)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 6)
		seen[v] = true
	}
	assert.Len(t, seen, 6)
}

func TestShuffleIsPermutation(t *testing.T) {
	src := New()
	in := []string{"a", "b", "c", "d", "e"}
	s := append([]string(nil), in...)
	Shuffle(src, s)
	assert.ElementsMatch(t, in, s)
}

// All 3! = 6 orderings of three items should show up with roughly equal frequency.
func TestShuffleUniformity(t *testing.T) {
	src := New()
	const trials = 12000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		s := []string{"a", "b", "c"}
		Shuffle(src, s)
		counts[strings.Join(s, "")]++
	}
	require.Len(t, counts, 6)
	expected := trials / 6
	for order, n := range counts {
		// Generous bounds: about 8 standard deviations.
		assert.InDelta(t, expected, n, 320, "ordering %s", order)
	}
}

func TestIntnNonPositive(t *testing.T) {
	assert.Equal(t, 0, New().Intn(0))
}
