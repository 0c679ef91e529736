package pbft

import "github.com/chainbft/pbft-core/pbfterrors"

// Local aliases for the sentinel errors handlers compare against, so this
// package reads naturally while still sharing the canonical definitions in
// pbfterrors (consumed by the host and by tests via errors.Is).
var (
	errConfig           = pbfterrors.ErrConfig
	errBadSignature     = pbfterrors.ErrBadSignature
	errStaleMessage     = pbfterrors.ErrStaleMessage
	errFutureMessage    = pbfterrors.ErrFutureMessage
	errDuplicateMessage = pbfterrors.ErrDuplicateMessage
	errWrongLeader      = pbfterrors.ErrWrongLeader
	errBlockMismatch    = pbfterrors.ErrBlockMismatch
	errExecutionFailure = pbfterrors.ErrExecutionFailure
)
