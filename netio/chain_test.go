package netio

import (
	"testing"

	"github.com/chainbft/pbft-core/pbft"
	"github.com/chainbft/pbft-core/types"

	"github.com/stretchr/testify/require"
)

func TestStoreAddBlockCacheAndBlock(t *testing.T) {
	store, err := NewStore("chain", t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	header := types.Header{ChainID: "test-chain", Height: 1}
	executed := &pbft.ExecutedBlock{Header: header, Body: []byte("body-1"), NumTxs: 1}

	store.AddBlockCache(executed)

	hash := executed.Header.Hash()
	require.Equal(t, []byte("body-1"), store.Block(hash))
}

func TestStoreBlockUnknownHashReturnsNil(t *testing.T) {
	store, err := NewStore("chain", t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.Nil(t, store.Block([]byte("never-seen")))
}

func TestStoreAdvanceUpdatesTip(t *testing.T) {
	store, err := NewStore("chain", t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	height, hash := store.Tip()
	require.Equal(t, uint64(0), height)
	require.Nil(t, hash)

	store.Advance(5, []byte("hash-at-5"))

	height, hash = store.Tip()
	require.Equal(t, uint64(5), height)
	require.Equal(t, []byte("hash-at-5"), hash)
}

func TestStoreTipSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore("chain", dir)
	require.NoError(t, err)
	store.Advance(7, []byte("hash-at-7"))
	require.NoError(t, store.Close())

	reopened, err := NewStore("chain", dir)
	require.NoError(t, err)
	defer reopened.Close()

	height, hash := reopened.Tip()
	require.Equal(t, uint64(7), height)
	require.Equal(t, []byte("hash-at-7"), hash)
}

func TestExecutorCheckBlockValidDerivesTxsHash(t *testing.T) {
	e := NewExecutor()
	body := []byte("a transaction batch")

	executed, err := e.CheckBlockValid(nil, body)
	require.NoError(t, err)
	require.Equal(t, body, executed.Body)
	require.Equal(t, 1, executed.NumTxs)
	require.NotEmpty(t, executed.Header.TxsHash)
}

func TestExecutorCheckBlockValidIsDeterministic(t *testing.T) {
	e := NewExecutor()
	body := []byte("same body twice")

	e1, err := e.CheckBlockValid(nil, body)
	require.NoError(t, err)
	e2, err := e.CheckBlockValid(nil, body)
	require.NoError(t, err)

	require.Equal(t, e1.Header.TxsHash, e2.Header.TxsHash)
}
