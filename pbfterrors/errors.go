// Package pbfterrors names the error kinds the consensus core can surface.
// Handlers compare against these with errors.Is; nothing here panics.
package pbfterrors

import "github.com/pkg/errors"

var (
	// ErrConfig covers roster-self lookup failure, N=0, and miner-list
	// size mismatches. The sealing gate returns false; the engine keeps
	// running.
	ErrConfig = errors.New("config error")

	// ErrBadSignature is returned when Sig or Sig2 fails to verify.
	ErrBadSignature = errors.New("bad signature")

	// ErrStaleMessage covers height/view below the current slot.
	ErrStaleMessage = errors.New("stale message")

	// ErrFutureMessage covers height/view above the current slot.
	ErrFutureMessage = errors.New("future message")

	// ErrDuplicateMessage covers a fingerprint or (blockHash, signer)
	// already present.
	ErrDuplicateMessage = errors.New("duplicate message")

	// ErrWrongLeader is returned when a Prepare's Idx is not the computed
	// primary.
	ErrWrongLeader = errors.New("wrong leader")

	// ErrBlockMismatch covers an executor hash disagreeing with the
	// claimed hash, or a proposal contradicting the committed-prepare.
	ErrBlockMismatch = errors.New("block mismatch")

	// ErrExecutionFailure is returned when the executor rejects a block.
	ErrExecutionFailure = errors.New("execution failure")

	// ErrBackupIOFailure is returned when a durable write fails. Handlers
	// log it but do not abort the commit path.
	ErrBackupIOFailure = errors.New("backup io failure")

	// ErrNotEnoughDiskSpace is fatal at startup.
	ErrNotEnoughDiskSpace = errors.New("not enough disk space")

	// ErrDatabaseAlreadyOpen is fatal at startup.
	ErrDatabaseAlreadyOpen = errors.New("database already open")
)

// Wrap attaches context to one of the sentinel errors above while
// preserving errors.Is compatibility.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}
