package pbft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuorum(t *testing.T) {
	cases := []struct {
		n, want int
	}{
		{0, 0},
		{1, 1},
		{4, 3},
		{7, 5},
		{10, 7},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Quorum(c.n), "n=%d", c.n)
	}
}

func TestTwoQuorumsOverlapBeyondByzantineCount(t *testing.T) {
	// Any two quorums among n nodes share more than f nodes, so they
	// cannot be disjoint even if every Byzantine node sits in both.
	for n := 1; n <= 20; n++ {
		f := (n - 1) / 3
		q := Quorum(n)
		require.Greater(t, 2*q-n, f, "n=%d f=%d q=%d", n, f, q)
	}
}
