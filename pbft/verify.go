package pbft

import (
	"github.com/chainbft/pbft-core/pbfterrors"
	"github.com/chainbft/pbft-core/types"
)

// CheckBlockSign validates a sealed block's signer set and quorum on
// import. It is the callback a chain importer runs before accepting a
// block it did not itself participate in sequencing.
func CheckBlockSign(rst Roster, cr Crypto, block *types.SealedBlock) error {
	snapshotHeight := uint64(0)
	if block.Header.Height > 0 {
		snapshotHeight = block.Header.Height - 1
	}
	minerList := rst.MinerList(snapshotHeight)

	if len(block.MinerList) != len(minerList) {
		return pbfterrors.ErrBlockMismatch
	}
	for i, k := range minerList {
		if block.MinerList[i] == nil || k == nil || string(block.MinerList[i]) != string(k.Bytes()) {
			return pbfterrors.ErrBlockMismatch
		}
	}

	n := len(minerList)
	f := (n - 1) / 3
	quorum := n - f
	if len(block.Signatures) < quorum {
		return pbfterrors.ErrBlockMismatch
	}

	hash := block.Header.Hash()
	seen := make(map[int32]bool, len(block.Signatures))
	for _, sig := range block.Signatures {
		if seen[sig.Idx] {
			return pbfterrors.ErrBlockMismatch
		}
		seen[sig.Idx] = true

		pk := rst.PubkeyOf(sig.Idx)
		if pk == nil {
			return pbfterrors.ErrBadSignature
		}
		if !cr.Verify(pk, sig.Sig, hash) {
			return pbfterrors.ErrBadSignature
		}
	}
	return nil
}
