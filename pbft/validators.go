package pbft

import (
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/crypto/merkle"
)

// ValidatorsHash returns the canonical hash of the roster snapshot in
// effect at height. A proposal's header carries this value, and a
// verifying peer reproduces it the same way before comparing header
// hashes, so both sides must call this rather than hash the roster
// independently.
func ValidatorsHash(r Roster, height uint64) tmbytes.HexBytes {
	pks := r.MinerList(height)
	bz := make([][]byte, len(pks))
	for i, pk := range pks {
		bz[i] = pk.Bytes()
	}
	return merkle.HashFromByteSlices(bz)
}
