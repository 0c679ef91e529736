package privval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenFilePVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "priv_validator_key.json")

	pv := GenFilePV(3, keyPath)
	pv.Save()

	_, err := os.Stat(keyPath)
	require.NoError(t, err)

	loaded := LoadFilePV(keyPath)
	require.Equal(t, pv.GetAddress(), loaded.GetAddress())
	require.Equal(t, pv.Key.Idx, loaded.GetIdx())

	pk, err := loaded.GetPubKey()
	require.NoError(t, err)
	require.True(t, pk.Equals(pv.Key.PubKey))
}

func TestLoadOrGenFilePVCreatesOnFirstCall(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "priv_validator_key.json")

	first := LoadOrGenFilePV(1, keyPath)
	second := LoadOrGenFilePV(1, keyPath)

	require.Equal(t, first.GetAddress(), second.GetAddress())
}

func TestSignHashProducesVerifiableSignature(t *testing.T) {
	dir := t.TempDir()
	pv := GenFilePV(0, filepath.Join(dir, "priv_validator_key.json"))

	hash := []byte("block-hash-placeholder")
	sig, err := pv.SignHash(hash)
	require.NoError(t, err)

	pk, err := pv.GetPubKey()
	require.NoError(t, err)
	require.True(t, pk.VerifySignature(hash, sig))
}
