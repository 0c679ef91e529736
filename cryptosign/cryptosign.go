// Package cryptosign wraps tendermint's ed25519 primitives behind the
// Crypto interface the consensus core consumes.
package cryptosign

import (
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/ed25519"
)

// Signer implements pbft.Crypto.
type Signer struct{}

func New() *Signer {
	return &Signer{}
}

func (s *Signer) Sign(sk crypto.PrivKey, hash []byte) ([]byte, error) {
	return sk.Sign(hash)
}

func (s *Signer) Verify(pk crypto.PubKey, sig []byte, hash []byte) bool {
	if pk == nil || sig == nil {
		return false
	}
	return pk.VerifySignature(hash, sig)
}

// GenPrivKey generates a fresh ed25519 key for a validator identity.
func GenPrivKey() crypto.PrivKey {
	return ed25519.GenPrivKey()
}
