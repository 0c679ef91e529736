package types

import (
	"testing"

	"github.com/tendermint/tendermint/crypto/ed25519"

	"github.com/stretchr/testify/require"
)

func TestGetAddressDeterministic(t *testing.T) {
	priv := ed25519.GenPrivKey()
	pub := priv.PubKey()

	a1 := GetAddress(pub)
	a2 := GetAddress(pub)
	require.True(t, a1.Equal(a2))
}

func TestAddressEqualDistinguishesKeys(t *testing.T) {
	a := GetAddress(ed25519.GenPrivKey().PubKey())
	b := GetAddress(ed25519.GenPrivKey().PubKey())
	require.False(t, a.Equal(b))
}

func TestAddressEqualNilIsFalse(t *testing.T) {
	var a Address
	b := GetAddress(ed25519.GenPrivKey().PubKey())
	require.False(t, a.Equal(b))
	require.False(t, b.Equal(a))
}
