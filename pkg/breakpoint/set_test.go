package breakpoint

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDedupsAndSorts(t *testing.T) {
	got, err := Normalize([]int{500, 100, 100, 300})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 100, 300, 500, Unbounded}, got)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	in := []int{W768, W320, W768, W0, W1200}
	a, err := Normalize(in)
	require.NoError(t, err)
	b, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	again, err := Normalize(a)
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []int{3, 1, 2}
	_, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, in)
}

func TestNormalizeRejectsInvalidInput(t *testing.T) {
	for name, in := range map[string][]int{
		"nil":      nil,
		"empty":    {},
		"negative": {320, -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(in)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(1, 2))
	assert.Equal(t, 1, Compare(2, 1))
	assert.Equal(t, 0, Compare(2, 2))
}

func TestResolveBoundaryScenario(t *testing.T) {
	set, err := Normalize([]int{320, 480, 640})
	require.NoError(t, err)

	tests := []struct {
		width int
		want  State
	}{
		{480, Exact(480)},
		{400, Between(320, 480, 400)},
		{10, Between(0, 320, 10)},
		{0, Exact(0)},
		{641, Between(640, Unbounded, 641)},
		{320, Exact(320)},
	}
	for _, tt := range tests {
		got := Resolve(set, tt.width)
		assert.Equal(t, tt.want, got, "width %d", tt.width)
	}

	assert.False(t, Resolve(set, 5000).Bounded())
	assert.True(t, Resolve(set, 500).Bounded())
}

func TestResolveMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(12)
		raw := make([]int, n)
		for i := range raw {
			raw[i] = rng.Intn(2000)
		}
		set, err := Normalize(raw)
		require.NoError(t, err)

		for i := 0; i < 50; i++ {
			w := rng.Intn(2500)
			got := Resolve(set, w)

			exact := false
			lo, hi := 0, Unbounded
			for _, b := range set {
				if b == w {
					exact = true
				}
				if b < w && b > lo {
					lo = b
				}
				if b > w && b < hi {
					hi = b
				}
			}
			if exact {
				require.Equal(t, Exact(w), got, "set %v width %d", set, w)
				continue
			}
			require.Equal(t, Between(lo, hi, w), got, "set %v width %d", set, w)
			require.True(t, got.MinWidth < got.Width && got.Width < got.MaxWidth)
		}
	}
}

func TestStateContains(t *testing.T) {
	s := Between(320, 480, 400)
	assert.True(t, s.Contains(321))
	assert.False(t, s.Contains(320))
	assert.False(t, s.Contains(480))
	assert.True(t, Exact(480).Contains(480))
	assert.Equal(t, "{minWidth: 320, maxWidth: 480, width: 400}", s.String())
	assert.Equal(t, "{width: 480}", Exact(480).String())
}
