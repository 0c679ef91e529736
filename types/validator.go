// fork from github.com/tendermint/tendermint/types/validator.go
package types

import (
	"errors"
	"fmt"

	"github.com/tendermint/tendermint/crypto"
)

// Validator is one miner in the roster: a stable index and its signing key.
// The index is what the primary-election formula and every wire message
// key off of; the address is derived from the key and used only for
// display and roster lookups by key.
type Validator struct {
	Idx     int32         `json:"idx"`
	Address Address       `json:"address"`
	PubKey  crypto.PubKey `json:"pub_key"`
}

// NewValidator returns a new validator with the given pubkey and index.
func NewValidator(pubKey crypto.PubKey, idx int32) *Validator {
	return &Validator{
		Idx:     idx,
		Address: GetAddress(pubKey),
		PubKey:  pubKey,
	}
}

// ValidateBasic performs basic validation.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return errors.New("nil validator")
	}
	if v.PubKey == nil {
		return errors.New("validator does not have a public key")
	}
	if len(v.Address) != crypto.AddressSize {
		return fmt.Errorf("validator address is the wrong size: %v", v.Address)
	}
	if v.Idx < 0 {
		return fmt.Errorf("validator index must be non-negative: %d", v.Idx)
	}
	return nil
}

// Copy returns a shallow copy of the validator.
func (v *Validator) Copy() *Validator {
	vCopy := *v
	return &vCopy
}

func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{idx:%d addr:%v}", v.Idx, v.Address)
}

// PrivValidator signs the two signature scopes the core needs: a raw hash
// (sig) and a message's canonical metadata (sig2).
type PrivValidator interface {
	GetAddress() Address
	GetPubKey() (crypto.PubKey, error)
	GetIdx() int32
	SignHash(hash []byte) ([]byte, error)
}
