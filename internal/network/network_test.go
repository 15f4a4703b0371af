package network

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSymmetric(t *testing.T, nb Neighbors) {
	t.Helper()
	for u, ns := range nb {
		require.True(t, sort.IntsAreSorted(ns), "neighbors of %d not sorted", u)
		for _, v := range ns {
			require.NotEqual(t, u, v, "self loop at %d", u)
			idx := sort.SearchInts(nb[v], u)
			require.True(t, idx < len(nb[v]) && nb[v][idx] == u, "edge %d-%d not symmetric", u, v)
		}
	}
}

func TestNewBuilder(t *testing.T) {
	tests := []struct {
		kind    string
		want    Builder
		wantErr bool
	}{
		{"", NewmanWattsStrogatz{}, false},
		{KindNewmanWattsStrogatz, NewmanWattsStrogatz{}, false},
		{KindWattsStrogatz, WattsStrogatz{}, false},
		{"barabasi-albert", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := NewBuilder(tt.kind)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, b)
		})
	}
}

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		n, k    int
		p       float64
		wantErr bool
	}{
		{"ok", 100, 4, 0.1, false},
		{"no edges", 10, 0, 0, false},
		{"zero nodes", 0, 0, 0, true},
		{"odd k", 10, 3, 0.1, true},
		{"k too large", 4, 4, 0.1, true},
		{"negative p", 10, 2, -0.1, true},
		{"p above one", 10, 2, 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParams(tt.n, tt.k, tt.p)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidParams))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewmanWattsStrogatz_RingWhenNoShortcuts(t *testing.T) {
	nb, err := NewmanWattsStrogatz{}.Build(10, 4, 0, 1)
	require.NoError(t, err)
	assertSymmetric(t, nb)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 4, nb.Degree(i))
	}
	assert.Equal(t, []int{1, 2, 8, 9}, nb[0])
	assert.Equal(t, 20, nb.Edges())
	assert.Equal(t, 1, Components(nb))
}

func TestNewmanWattsStrogatz_AddsShortcuts(t *testing.T) {
	nb, err := NewmanWattsStrogatz{}.Build(100, 4, 0.1, 42)
	require.NoError(t, err)
	assertSymmetric(t, nb)

	// Ring edges are never removed.
	for i := 0; i < 100; i++ {
		assert.GreaterOrEqual(t, nb.Degree(i), 4)
	}
	assert.Greater(t, nb.Edges(), 200)
	assert.Equal(t, 1, Components(nb))
}

func TestNewmanWattsStrogatz_Deterministic(t *testing.T) {
	a, err := NewmanWattsStrogatz{}.Build(100, 4, 0.3, 7)
	require.NoError(t, err)
	b, err := NewmanWattsStrogatz{}.Build(100, 4, 0.3, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewmanWattsStrogatz{}.Build(100, 4, 0.3, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestWattsStrogatz_PreservesEdgeCount(t *testing.T) {
	nb, err := WattsStrogatz{}.Build(60, 4, 0.2, 3)
	require.NoError(t, err)
	assertSymmetric(t, nb)
	assert.Equal(t, 120, nb.Edges())
}

func TestWattsStrogatz_FullRewireStillSimple(t *testing.T) {
	nb, err := WattsStrogatz{}.Build(20, 2, 1, 5)
	require.NoError(t, err)
	assertSymmetric(t, nb)
	assert.Equal(t, 20, nb.Edges())
}

func TestComponents_Isolated(t *testing.T) {
	nb, err := NewmanWattsStrogatz{}.Build(5, 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, Components(nb))
	assert.Equal(t, 0, nb.Edges())
}
