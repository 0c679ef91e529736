package types

import (
	"time"

	"github.com/tendermint/tendermint/crypto/merkle"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Header is the pre-seal header a proposal carries. BlockHash is computed
// over every field except ProposalTime (the signature list lives on
// SealedBlock, not here), so it is reproducible by every peer that
// re-executes the block.
type Header struct {
	ChainID        string           `json:"chain_id"`
	Height         uint64           `json:"height"`
	LastBlockHash  tmbytes.HexBytes `json:"last_block_hash"`
	TxsHash        tmbytes.HexBytes `json:"txs_hash"`
	ValidatorAddr  Address          `json:"validator_addr"`
	ValidatorsHash tmbytes.HexBytes `json:"validators_hash"`
	ProposalTime   time.Time        `json:"proposal_time"`

	blockHash tmbytes.HexBytes
}

// Hash returns the pre-seal hash, memoized after the first call. Two
// headers with identical fields hash identically, which is what lets a
// re-executing peer compare its own result against the claimed hash.
func (h *Header) Hash() tmbytes.HexBytes {
	if h == nil {
		return nil
	}
	if h.blockHash == nil {
		h.blockHash = merkle.HashFromByteSlices([][]byte{
			[]byte(h.ChainID),
			heightBytes(h.Height),
			h.LastBlockHash,
			h.TxsHash,
			[]byte(h.ValidatorAddr),
			h.ValidatorsHash,
		})
	}
	return h.blockHash
}

// InvalidateHash clears the memoized hash after a field changes (used when
// re-sealing a re-executed proposal under the original author's identity).
func (h *Header) InvalidateHash() {
	h.blockHash = nil
}

func heightBytes(h uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(h >> (8 * i))
	}
	return b
}

// SealedSignature is one entry of the certificate attached to a committed
// block: the signer's roster index and its commit-phase signature.
type SealedSignature struct {
	Idx int32            `json:"idx"`
	Sig tmbytes.HexBytes `json:"sig"`
}

// SealedBlock is the block as it leaves the consensus core: header, body
// bytes as re-executed by the primary's peers, and the full set of commit
// signatures gathered for it (not just a quorum — see checkAndSave).
type SealedBlock struct {
	Header     Header            `json:"header"`
	Body       []byte            `json:"body"`
	Signatures []SealedSignature `json:"signatures"`
	MinerList  []tmbytes.HexBytes `json:"miner_list"`
}
