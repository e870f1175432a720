package randutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	out := Shuffle(New(7), ids)

	assert.ElementsMatch(t, ids, out)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids, "input must not be mutated")
}

func TestShuffleSameSeedSameOrder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}

	assert.Equal(t, Shuffle(New(3), ids), Shuffle(New(3), ids))
}

func TestShuffleCoversAllPositions(t *testing.T) {
	ids := []string{"a", "b", "c"}
	src := New(11)
	firsts := map[string]int{}
	for i := 0; i < 300; i++ {
		firsts[Shuffle(src, ids)[0]]++
	}
	for _, id := range ids {
		assert.Greater(t, firsts[id], 50, id)
	}
}
