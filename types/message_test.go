package types

import (
	"testing"
	"time"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"github.com/stretchr/testify/require"
)

func TestUniqueKeyStableAcrossRetransmission(t *testing.T) {
	hash := tmbytes.HexBytes([]byte("block-hash"))
	k1 := UniqueKey(KindSign, 10, NewView(1), 2, hash)
	k2 := UniqueKey(KindSign, 10, NewView(1), 2, hash)
	require.Equal(t, k1, k2)
}

func TestUniqueKeyDiffersByKind(t *testing.T) {
	hash := tmbytes.HexBytes([]byte("block-hash"))
	k1 := UniqueKey(KindSign, 10, NewView(1), 2, hash)
	k2 := UniqueKey(KindCommit, 10, NewView(1), 2, hash)
	require.NotEqual(t, k1, k2)
}

func TestPrepareUniqueKeyIgnoresBlockBytes(t *testing.T) {
	hash := tmbytes.HexBytes([]byte("block-hash"))
	base := Msg{Height: 5, View: NewView(2), Idx: 1, BlockHash: hash}

	p1 := &Prepare{Msg: base, Block: []byte("body-a")}
	p2 := &Prepare{Msg: base, Block: []byte("body-b-longer")}

	require.Equal(t, p1.UniqueKey(), p2.UniqueKey())
}

func TestSig2BytesExcludesSig2AndBlock(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	m1 := Msg{Height: 1, View: NewView(0), Idx: 0, Timestamp: ts, BlockHash: []byte("h"), Sig2: []byte("first")}
	m2 := m1
	m2.Sig2 = []byte("completely-different")

	require.Equal(t, m1.Sig2Bytes(KindPrepare), m2.Sig2Bytes(KindPrepare))

	p1 := &Prepare{Msg: m1, Block: []byte("body-a")}
	p2 := &Prepare{Msg: m1, Block: []byte("body-b-longer")}
	require.Equal(t, p1.Sig2Bytes(), p2.Sig2Bytes())
}

func TestSig2BytesDiffersByKind(t *testing.T) {
	m := Msg{Height: 1, View: NewView(0), Idx: 0, BlockHash: []byte("h")}
	require.NotEqual(t, m.Sig2Bytes(KindPrepare), m.Sig2Bytes(KindSign))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "Prepare", KindPrepare.String())
	require.Equal(t, "Sign", KindSign.String())
	require.Equal(t, "Commit", KindCommit.String())
	require.Equal(t, "ViewChange", KindViewChange.String())
}
