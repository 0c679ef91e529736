package privval

import (
	"fmt"
	"io/ioutil"

	"github.com/chainbft/pbft-core/cryptosign"
	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"
)

// FilePVKey stores the immutable part of a PrivValidator: its identity,
// keypair, and rank among the validator set.
type FilePVKey struct {
	Idx     int32          `json:"idx"`
	Address types.Address  `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	PrivKey crypto.PrivKey `json:"priv_key"`

	filePath string
}

// Save persists the FilePVKey to its filePath.
func (pvKey FilePVKey) Save() {
	outFile := pvKey.filePath
	if outFile == "" {
		panic("cannot save PrivValidator key: filePath not set")
	}

	jsonBytes, err := tmjson.MarshalIndent(pvKey, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := tempfile.WriteFileAtomic(outFile, jsonBytes, 0600); err != nil {
		panic(err)
	}
}

// FilePV implements types.PrivValidator using an ed25519 keypair persisted
// to disk.
type FilePV struct {
	Key FilePVKey
}

// NewFilePV builds a validator identity from an existing key and index.
func NewFilePV(privKey crypto.PrivKey, idx int32, keyFilePath string) *FilePV {
	return &FilePV{
		Key: FilePVKey{
			Idx:      idx,
			Address:  types.GetAddress(privKey.PubKey()),
			PubKey:   privKey.PubKey(),
			PrivKey:  privKey,
			filePath: keyFilePath,
		},
	}
}

// GenFilePV generates a new validator with a randomly generated ed25519
// key, but does not call Save().
func GenFilePV(idx int32, keyFilePath string) *FilePV {
	return NewFilePV(cryptosign.GenPrivKey(), idx, keyFilePath)
}

// LoadFilePV loads a FilePV from keyFilePath. If the file does not exist,
// the program exits.
func LoadFilePV(keyFilePath string) *FilePV {
	keyJSONBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		tmos.Exit(err.Error())
	}
	pvKey := FilePVKey{}
	if err := tmjson.Unmarshal(keyJSONBytes, &pvKey); err != nil {
		tmos.Exit(fmt.Sprintf("error reading PrivValidator key from %v: %v\n", keyFilePath, err))
	}

	pvKey.PubKey = pvKey.PrivKey.PubKey()
	pvKey.Address = types.GetAddress(pvKey.PubKey)
	pvKey.filePath = keyFilePath

	return &FilePV{Key: pvKey}
}

// LoadOrGenFilePV loads a FilePV from keyFilePath, or generates and saves
// a new one at idx if it does not exist.
func LoadOrGenFilePV(idx int32, keyFilePath string) *FilePV {
	if tmos.FileExists(keyFilePath) {
		return LoadFilePV(keyFilePath)
	}
	pv := GenFilePV(idx, keyFilePath)
	pv.Save()
	return pv
}

// GetAddress returns the address of the validator.
func (pv *FilePV) GetAddress() types.Address {
	return pv.Key.Address
}

// GetPubKey returns the public key of the validator.
func (pv *FilePV) GetPubKey() (crypto.PubKey, error) {
	return pv.Key.PubKey, nil
}

// GetIdx returns the validator's rank in the roster.
func (pv *FilePV) GetIdx() int32 {
	return pv.Key.Idx
}

// SignHash signs an arbitrary message hash with the validator's private
// key. Consensus messages carry their own framing (types.Msg.SigBytes,
// Sig2Bytes), so there is no vote/proposal-specific canonicalization step
// here the way a BFT SMR chain's vote signing would need.
func (pv *FilePV) SignHash(hash []byte) ([]byte, error) {
	return pv.Key.PrivKey.Sign(hash)
}

// Save persists the FilePV to disk.
func (pv *FilePV) Save() {
	pv.Key.Save()
}

// String returns a string representation of the FilePV.
func (pv *FilePV) String() string {
	return fmt.Sprintf("PrivValidator{idx:%v addr:%v}", pv.Key.Idx, pv.GetAddress())
}
