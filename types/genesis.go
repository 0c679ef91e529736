package types

import (
	"errors"
	"io/ioutil"
	"time"

	"github.com/tendermint/tendermint/crypto"
	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/tempfile"
)

// GenesisValidator is one miner's entry in the genesis document: its
// index, address, and public key.
type GenesisValidator struct {
	Idx     int32         `json:"idx"`
	Address Address       `json:"address"`
	PubKey  crypto.PubKey `json:"pub_key"`
	Name    string        `json:"name,omitempty"`
}

// GenesisDoc is the cluster's starting roster and chain identity: every
// node that boots from the same file arrives at the same height-0
// roster.
type GenesisDoc struct {
	ChainID     string             `json:"chain_id"`
	GenesisTime time.Time          `json:"genesis_time"`
	Validators  []GenesisValidator `json:"validators"`
}

// ValidateBasic sanity-checks a loaded genesis document.
func (doc *GenesisDoc) ValidateBasic() error {
	if doc.ChainID == "" {
		return errors.New("genesis doc must have a chain_id")
	}
	if len(doc.Validators) == 0 {
		return errors.New("genesis doc must have at least one validator")
	}
	seen := make(map[int32]bool, len(doc.Validators))
	for _, v := range doc.Validators {
		if seen[v.Idx] {
			return errors.New("genesis doc has duplicate validator idx")
		}
		seen[v.Idx] = true
	}
	return nil
}

// SaveAs writes the genesis document to file as indented JSON.
func (doc *GenesisDoc) SaveAs(file string) error {
	data, err := tmjson.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return tempfile.WriteFileAtomic(file, data, 0644)
}

// ToValidators returns the genesis roster as *Validator.
func (doc *GenesisDoc) ToValidators() []*Validator {
	out := make([]*Validator, len(doc.Validators))
	for i, gv := range doc.Validators {
		out[i] = &Validator{Idx: gv.Idx, Address: gv.Address, PubKey: gv.PubKey}
	}
	return out
}

// GenesisDocFromFile reads and parses a genesis document from disk.
func GenesisDocFromFile(file string) (*GenesisDoc, error) {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, err
	}
	doc := &GenesisDoc{}
	if err := tmjson.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if err := doc.ValidateBasic(); err != nil {
		return nil, err
	}
	return doc, nil
}
