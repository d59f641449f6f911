package ledger

import (
	"errors"

	"github.com/danthegoodman1/icetx/utils"
)

var (
	// ErrCorruptLedger means no valid state can be resolved. It is permanent.
	ErrCorruptLedger = utils.PermError("corrupt ledger")
	// ErrCommitFailed means the publish protocol failed part way; the ledger
	// is still at the previous txn and the same builder may be committed again.
	ErrCommitFailed = errors.New("commit failed")
	// ErrNotDurable means the txn was published and is the writer's current
	// state, but the directory sync after the pointer swap failed, so it may
	// not survive a crash. The builder is spent; the next commit makes the
	// directory durable again.
	ErrNotDurable = errors.New("txn published but not durable")

	ErrInvariantViolation = errors.New("tx invariant violation")
	ErrWriterLocked       = errors.New("ledger is locked by another writer")
	ErrWriterClosed       = errors.New("writer is closed")
	ErrReaderClosed       = errors.New("reader is closed")
	ErrBuilderClosed      = errors.New("builder was already committed or rolled back")
	ErrStaleBuilder       = errors.New("builder was started from an older txn")
	ErrNoActivePartition  = errors.New("table has no active partition")
	ErrSnapshotContended  = errors.New("could not pin a snapshot before it was reclaimed")
)
