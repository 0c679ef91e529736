package peerseen

import (
	"fmt"
	"testing"

	"github.com/chainbft/pbft-core/types"

	"github.com/stretchr/testify/require"
)

func TestMarkThenSeen(t *testing.T) {
	f := New(DefaultCaps())

	require.False(t, f.Seen("peerA", types.KindPrepare, "fp1"))
	f.Mark("peerA", types.KindPrepare, "fp1")
	require.True(t, f.Seen("peerA", types.KindPrepare, "fp1"))
}

func TestMarkIsPerPeerAndPerKind(t *testing.T) {
	f := New(DefaultCaps())
	f.Mark("peerA", types.KindPrepare, "fp1")

	require.False(t, f.Seen("peerB", types.KindPrepare, "fp1"))
	require.False(t, f.Seen("peerA", types.KindSign, "fp1"))
}

func TestMarkEvictsOldestOnOverflow(t *testing.T) {
	caps := Caps{Prepare: 2, Sign: 2, Commit: 2, ViewChange: 2}
	f := New(caps)

	f.Mark("peerA", types.KindPrepare, "fp1")
	f.Mark("peerA", types.KindPrepare, "fp2")
	require.Equal(t, 2, f.Size("peerA", types.KindPrepare))

	f.Mark("peerA", types.KindPrepare, "fp3")
	require.Equal(t, 2, f.Size("peerA", types.KindPrepare))
	require.False(t, f.Seen("peerA", types.KindPrepare, "fp1"))
	require.True(t, f.Seen("peerA", types.KindPrepare, "fp2"))
	require.True(t, f.Seen("peerA", types.KindPrepare, "fp3"))
}

func TestMarkDuplicateDoesNotEvict(t *testing.T) {
	caps := Caps{Prepare: 2, Sign: 2, Commit: 2, ViewChange: 2}
	f := New(caps)

	f.Mark("peerA", types.KindPrepare, "fp1")
	f.Mark("peerA", types.KindPrepare, "fp2")
	f.Mark("peerA", types.KindPrepare, "fp1")

	require.Equal(t, 2, f.Size("peerA", types.KindPrepare))
	require.True(t, f.Seen("peerA", types.KindPrepare, "fp1"))
	require.True(t, f.Seen("peerA", types.KindPrepare, "fp2"))
}

func TestClearAllWipesEveryPeer(t *testing.T) {
	f := New(DefaultCaps())
	f.Mark("peerA", types.KindCommit, "fp1")
	f.Mark("peerB", types.KindCommit, "fp2")

	f.ClearAll()

	require.False(t, f.Seen("peerA", types.KindCommit, "fp1"))
	require.False(t, f.Seen("peerB", types.KindCommit, "fp2"))
}

func TestCapReturnsConfiguredCapacityPerKind(t *testing.T) {
	caps := Caps{Prepare: 1, Sign: 2, Commit: 3, ViewChange: 4}
	f := New(caps)

	require.Equal(t, 1, f.Cap(types.KindPrepare))
	require.Equal(t, 2, f.Cap(types.KindSign))
	require.Equal(t, 3, f.Cap(types.KindCommit))
	require.Equal(t, 4, f.Cap(types.KindViewChange))
}

func TestDefaultCapsAreLowThousandsPerKind(t *testing.T) {
	c := DefaultCaps()
	require.Equal(t, 2000, c.Prepare)
	require.Equal(t, 2000, c.Sign)
	require.Equal(t, 2000, c.Commit)
	require.Equal(t, 2000, c.ViewChange)
}

func TestManyDistinctFingerprintsEachTrackedUntilEviction(t *testing.T) {
	f := New(Caps{Prepare: 10, Sign: 10, Commit: 10, ViewChange: 10})
	for i := 0; i < 10; i++ {
		f.Mark("peerA", types.KindSign, fmt.Sprintf("fp-%d", i))
	}
	require.Equal(t, 10, f.Size("peerA", types.KindSign))
}
