package roster

import (
	"testing"

	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto/ed25519"

	"github.com/stretchr/testify/require"
)

func makeValidators(n int) []*types.Validator {
	vs := make([]*types.Validator, n)
	for i := 0; i < n; i++ {
		pk := ed25519.GenPrivKey().PubKey()
		vs[i] = types.NewValidator(pk, int32(i))
	}
	return vs
}

func TestNewRosterSelfIdx(t *testing.T) {
	vs := makeValidators(4)
	r := New(vs, 2)
	require.Equal(t, int32(2), r.SelfIdx())
	require.Equal(t, 4, r.MinerCount())
}

func TestPubkeyOfAndByIdx(t *testing.T) {
	vs := makeValidators(3)
	r := New(vs, 0)

	require.Equal(t, vs[1].PubKey, r.PubkeyOf(1))
	require.Nil(t, r.PubkeyOf(99))
}

func TestLookupByKey(t *testing.T) {
	vs := makeValidators(3)
	r := New(vs, 0)

	kind, idx := r.LookupByKey(vs[2].PubKey)
	require.Equal(t, AccountMiner, kind)
	require.Equal(t, int32(2), idx)

	unknown := ed25519.GenPrivKey().PubKey()
	kind, idx = r.LookupByKey(unknown)
	require.Equal(t, AccountUnknown, kind)
	require.Equal(t, int32(-1), idx)
}

func TestAdvanceKeepsHistoryForOlderHeights(t *testing.T) {
	vs0 := makeValidators(4)
	r := New(vs0, 0)

	vs10 := makeValidators(5)
	r.Advance(10, vs10, 1)

	require.Equal(t, 5, r.MinerCount())
	require.Equal(t, int32(1), r.SelfIdx())

	require.Equal(t, vs0, r.SnapshotAt(0).Validators)
	require.Equal(t, vs0, r.SnapshotAt(5).Validators)
	require.Equal(t, vs10, r.SnapshotAt(10).Validators)
	require.Equal(t, vs10, r.SnapshotAt(999).Validators)
}

func TestMinerListReturnsPubKeysInOrder(t *testing.T) {
	vs := makeValidators(3)
	r := New(vs, 0)

	keys := r.MinerList(0)
	require.Len(t, keys, 3)
	for i, v := range vs {
		require.True(t, keys[i].Equals(v.PubKey))
	}
}

func TestSnapshotSizeNilSafe(t *testing.T) {
	var s *Snapshot
	require.Equal(t, 0, s.Size())
	require.Nil(t, s.ByIdx(0))
}
