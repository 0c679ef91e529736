// Package netio provides the default Chain and Executor collaborators a
// node wires into pbft.Core: a goleveldb-backed block store and a
// generic executor that treats a proposal's body as an opaque
// transaction batch, re-deriving its hash rather than interpreting it.
package netio

import (
	"encoding/binary"
	"sync"

	"github.com/tendermint/tendermint/crypto/merkle"
	tmdb "github.com/tendermint/tm-db"
	goleveldb "github.com/tendermint/tm-db/goleveldb"

	"github.com/chainbft/pbft-core/pbft"
	"github.com/chainbft/pbft-core/types"
)

const (
	tableBlockByHash   = "b"
	tableHeightToHash  = "h"
	keyChainTip        = "tip"
)

// Store is the committed-block backing store: one row per sealed block,
// plus a height index and a tip pointer, all in one goleveldb database.
type Store struct {
	db tmdb.DB

	mtx     sync.RWMutex
	tip     uint64
	tipHash []byte
}

// NewStore opens (creating if absent) a goleveldb-backed block store.
func NewStore(name, dir string) (*Store, error) {
	db, err := goleveldb.NewDB(name, dir)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.loadTip(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadTip() error {
	hash, err := s.db.Get([]byte(keyChainTip))
	if err != nil {
		return err
	}
	if hash == nil {
		s.tip = 0
		s.tipHash = nil
		return nil
	}
	heightBz, err := s.db.Get(heightKey(hash))
	if err != nil {
		return err
	}
	s.tip = decodeHeight(heightBz)
	s.tipHash = hash
	return nil
}

// AddBlockCache persists a re-executed block body under its claimed
// header hash, without advancing the chain tip. The tip only advances
// once Advance is called by the caller driving pbft.Core.ReportBlock.
func (s *Store) AddBlockCache(executed *pbft.ExecutedBlock) {
	hash := executed.Header.Hash()
	batch := s.db.NewBatch()
	defer batch.Close()
	batch.Set(hashKey(hash), executed.Body)
	batch.Set(heightKey(hash), encodeHeight(executed.Header.Height))
	batch.Write()
}

// Advance records hash as the new chain tip once its sign/commit
// certificate has been finalized by the core.
func (s *Store) Advance(height uint64, hash []byte) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.tip = height
	s.tipHash = hash
	s.db.Set([]byte(keyChainTip), hash)
	s.db.Set(heightKey(hash), encodeHeight(height))
}

// Block returns the cached body for hash, or nil if never seen.
func (s *Store) Block(hash []byte) []byte {
	v, err := s.db.Get(hashKey(hash))
	if err != nil {
		return nil
	}
	return v
}

// Tip returns the chain's current height and block hash.
func (s *Store) Tip() (uint64, []byte) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tip, s.tipHash
}

func (s *Store) Close() error {
	return s.db.Close()
}

func hashKey(hash []byte) []byte {
	return append([]byte(tableBlockByHash), hash...)
}

func heightKey(hash []byte) []byte {
	return append([]byte(tableHeightToHash), hash...)
}

func encodeHeight(h uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, h)
	return b
}

func decodeHeight(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Executor re-executes a proposal by treating its body as an opaque
// transaction batch: it re-derives the body's hash and hands back a
// header whose fields the core compares against the claim. Embedding
// applications with real transaction semantics (account balances,
// smart-contract state, ...) implement pbft.Executor themselves and
// wire that in place of this one; this default is what a plain
// byte-batch chain needs.
type Executor struct{}

// NewExecutor builds a byte-batch Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// CheckBlockValid re-derives a proposal's transaction-batch hash and
// reports the result as an ExecutedBlock; the caller (pbft.Core) fills
// in the remaining header fields it already knows (height, validator,
// previous hash) before comparing hashes.
func (e *Executor) CheckBlockValid(claimedHash []byte, blockBytes []byte) (*pbft.ExecutedBlock, error) {
	txsHash := merkle.HashFromByteSlices([][]byte{blockBytes})
	return &pbft.ExecutedBlock{
		Header: types.Header{TxsHash: txsHash},
		Body:   blockBytes,
		NumTxs: 1,
	}, nil
}
