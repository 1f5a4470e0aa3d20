package dist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleNeverNegative(t *testing.T) {
	src := NewSource(1)
	n := NewNormal(1, "price", 0.5, 5.0)
	for i := 0; i < 1000; i++ {
		assert.GreaterOrEqual(t, n.Sample(src), 0.0)
	}
}

func TestSampleInStaysInBounds(t *testing.T) {
	src := NewSource(2)
	n := NewNormal(1, "elastic", 0.5, 0.2)
	for i := 0; i < 1000; i++ {
		v := n.SampleIn(src, 0.01, 1.0)
		require.GreaterOrEqual(t, v, 0.01)
		require.LessOrEqual(t, v, 1.0)
	}
}

func TestSampleInFallsBackWhenUnreachable(t *testing.T) {
	src := NewSource(3)
	// Distribution far away from the requested interval.
	n := NewNormal(1, "price", 1000, 0.001)
	v := n.SampleIn(src, 0.0, 1.0)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0)
}

func TestUniformBounds(t *testing.T) {
	src := NewSource(4)
	for i := 0; i < 1000; i++ {
		v := src.Uniform(10, 20)
		require.GreaterOrEqual(t, v, 10.0)
		require.Less(t, v, 20.0)
	}
	assert.Equal(t, 5.0, src.Uniform(5, 5))
}

func TestPermIsPermutation(t *testing.T) {
	src := NewSource(5)
	perm := src.Perm(10)
	require.Len(t, perm, 10)
	seen := make(map[int]bool)
	for _, v := range perm {
		require.False(t, seen[v])
		seen[v] = true
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 10)
	}
}

func TestSeededSourceIsDeterministic(t *testing.T) {
	a := NewSource(42)
	b := NewSource(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}
