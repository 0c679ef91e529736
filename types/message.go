package types

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tendermint/tendermint/crypto/merkle"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Kind identifies one of the four PBFT wire messages.
type Kind byte

const (
	KindPrepare Kind = iota
	KindSign
	KindCommit
	KindViewChange
)

func (k Kind) String() string {
	switch k {
	case KindPrepare:
		return "Prepare"
	case KindSign:
		return "Sign"
	case KindCommit:
		return "Commit"
	case KindViewChange:
		return "ViewChange"
	default:
		return "Unknown"
	}
}

// Msg is the shared field set every wire message carries. Prepare embeds it
// and additionally carries Block; Sign, Commit and ViewChange embed it bare.
type Msg struct {
	Height    uint64           `json:"height"`
	View      View             `json:"view"`
	Idx       int32            `json:"idx"`
	Timestamp time.Time        `json:"timestamp"`
	BlockHash tmbytes.HexBytes `json:"block_hash"`
	Sig       tmbytes.HexBytes `json:"sig"`  // over BlockHash
	Sig2      tmbytes.HexBytes `json:"sig2"` // over every field above; never over Block
}

// SigBytes is what Sig authenticates.
func (m *Msg) SigBytes() []byte {
	return m.BlockHash
}

// Sig2Bytes is what Sig2 authenticates: every metadata field, deterministic
// field order, excluding Sig2 itself and any payload (Prepare.Block).
func (m *Msg) Sig2Bytes(kind Kind) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(kind))
	buf = appendUint64(buf, m.Height)
	buf = append(buf, m.View.Bytes()...)
	buf = appendInt32(buf, m.Idx)
	buf = appendUint64(buf, uint64(m.Timestamp.UnixNano()))
	buf = append(buf, m.BlockHash...)
	buf = append(buf, m.Sig...)
	return buf
}

// UniqueKey is the fingerprint used for dedup and peer-seen tracking. It is
// a deterministic function of (kind, height, view, idx, blockHash) and
// nothing else, so retransmissions of an identical vote fingerprint
// identically regardless of timestamp or signature bytes.
func UniqueKey(kind Kind, height uint64, view View, idx int32, blockHash []byte) string {
	buf := make([]byte, 0, 48)
	buf = append(buf, byte(kind))
	buf = appendUint64(buf, height)
	buf = append(buf, view.Bytes()...)
	buf = appendInt32(buf, idx)
	buf = append(buf, blockHash...)
	h := merkle.HashFromByteSlices([][]byte{buf})
	return tmbytes.HexBytes(h).String()
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

// Prepare is the pre-prepare/proposal message. It is the only kind that
// carries the serialized block body; Sig2 excludes Block so a
// retransmission with re-executed Block bytes does not need re-signing by
// the original author's identity. Header travels with the proposal but is
// excluded from Sig2 as well: an accepting node rebuilds it from its own
// execution (its Hash() must equal BlockHash) and takes only ProposalTime
// from the received copy.
type Prepare struct {
	Msg
	Block  []byte `json:"block"`
	Header Header `json:"header"`
}

func (p *Prepare) UniqueKey() string {
	return UniqueKey(KindPrepare, p.Height, p.View, p.Idx, p.BlockHash)
}

func (p *Prepare) Sig2Bytes() []byte {
	return p.Msg.Sig2Bytes(KindPrepare)
}

// Sign is the phase-2 (prepare/sign) vote.
type Sign struct {
	Msg
}

func (s *Sign) UniqueKey() string {
	return UniqueKey(KindSign, s.Height, s.View, s.Idx, s.BlockHash)
}

func (s *Sign) Sig2Bytes() []byte {
	return s.Msg.Sig2Bytes(KindSign)
}

func (s *Sign) SigHex() string {
	return s.Sig.String()
}

// Commit is the phase-3 vote.
type Commit struct {
	Msg
}

func (c *Commit) UniqueKey() string {
	return UniqueKey(KindCommit, c.Height, c.View, c.Idx, c.BlockHash)
}

func (c *Commit) Sig2Bytes() []byte {
	return c.Msg.Sig2Bytes(KindCommit)
}

func (c *Commit) SigHex() string {
	return c.Sig.String()
}

// ViewChange requests the roster advance to a new view, carrying the
// sender's view of the chain tip so peers can anti-fork-check it.
type ViewChange struct {
	Msg
}

func (v *ViewChange) UniqueKey() string {
	return UniqueKey(KindViewChange, v.Height, v.View, v.Idx, v.BlockHash)
}

func (v *ViewChange) Sig2Bytes() []byte {
	return v.Msg.Sig2Bytes(KindViewChange)
}

func (v *ViewChange) String() string {
	return fmt.Sprintf("ViewChange{height:%d view:%v idx:%d}", v.Height, v.View, v.Idx)
}
