// Package backupstore persists the committed-prepare checkpoint so a
// primary that crashes between sign-quorum and block persistence can
// re-propose the same content after restart. It uses tendermint's tm-db
// interface over the goleveldb driver.
package backupstore

import (
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chainbft/pbft-core/pbfterrors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	goleveldb "github.com/tendermint/tm-db/goleveldb"
)

// CommittedPrepareKey is the single durable key this store manages.
const CommittedPrepareKey = "committed"

// minFreeBytes is the free-space floor below which Open reports
// ErrNotEnoughDiskSpace instead of whatever the driver returns.
const minFreeBytes = 1024

// Store is the durable key/value backing for the committed-prepare
// checkpoint. It is intentionally tiny: one key, read at startup and
// written once per sign-quorum.
type Store struct {
	db     tmdb.DB
	logger log.Logger
	path   string
}

// Open opens (creating if absent) a goleveldb-backed store at dir/name. It
// classifies the two host-fatal open conditions: ErrDatabaseAlreadyOpen
// (another process holds the lock) and ErrNotEnoughDiskSpace (driver open
// fails with free space under 1KiB).
func Open(name, dir string, logger log.Logger) (*Store, error) {
	db, err := goleveldb.NewDB(name, dir)
	if err != nil {
		if isLockHeld(err) {
			return nil, pbfterrors.ErrDatabaseAlreadyOpen
		}
		if free, ok := freeBytes(dir); ok && free < minFreeBytes {
			return nil, pbfterrors.ErrNotEnoughDiskSpace
		}
		return nil, pbfterrors.Wrap(err, "open backup store")
	}
	return &Store{db: db, logger: logger, path: dir}, nil
}

// Repair recovers a corrupted store in place before Open is retried. It
// bypasses the tm-db wrapper and calls goleveldb's own recovery path
// directly, which rebuilds the manifest from whatever table files are
// still readable and drops anything it cannot parse.
func Repair(name, dir string) error {
	db, err := leveldb.RecoverFile(filepath.Join(dir, name+".db"), nil)
	if err != nil {
		return pbfterrors.Wrap(err, "repair backup store")
	}
	return db.Close()
}

// Get reads a key, returning (nil, nil) if absent.
func (s *Store) Get(key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key))
	if err != nil {
		return nil, pbfterrors.Wrap(err, "backup store get")
	}
	return v, nil
}

// Put writes a key. Failures are logged by the caller and do not abort the
// commit path.
func (s *Store) Put(key string, value []byte) error {
	if err := s.db.Set([]byte(key), value); err != nil {
		return pbfterrors.Wrap(pbfterrors.ErrBackupIOFailure, "backup store put: "+err.Error())
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() tmdb.DB {
	return s.db
}

func isLockHeld(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "lock") && (strings.Contains(msg, "already") || strings.Contains(msg, "resource temporarily unavailable"))
}

func freeBytes(dir string) (uint64, bool) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, false
	}
	return stat.Bavail * uint64(stat.Bsize), true
}
