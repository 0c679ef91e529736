package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewArithmetic(t *testing.T) {
	v := NewView(5)
	require.Equal(t, uint64(5), v.Uint64())

	next := v.Add1()
	require.Equal(t, uint64(6), next.Uint64())
	require.True(t, next.Greater(v))
	require.True(t, v.Less(next))

	back := next.Sub1()
	require.True(t, back.Equal(v))
}

func TestViewModN(t *testing.T) {
	v := NewView(7)
	require.Equal(t, uint64(3), v.ModN(0, 4))
	require.Equal(t, uint64(0), v.ModN(1, 4))
}

func TestViewZero(t *testing.T) {
	require.Equal(t, uint64(0), ViewZero.Uint64())
	require.True(t, ViewZero.Equal(NewView(0)))
}

func TestViewMin(t *testing.T) {
	a := NewView(3)
	b := NewView(9)
	require.True(t, a.Min(b).Equal(a))
	require.True(t, b.Min(a).Equal(a))
}

func TestViewGreaterOrEqual(t *testing.T) {
	a := NewView(4)
	b := NewView(4)
	c := NewView(5)
	require.True(t, a.GreaterOrEqual(b))
	require.True(t, c.GreaterOrEqual(a))
	require.False(t, a.GreaterOrEqual(c))
}
