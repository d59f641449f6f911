package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danthegoodman1/icetx/datastore"
	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/metrics"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/rs/zerolog"
)

// TxReader resolves published states without taking the writer lock. It
// holds at most one snapshot at a time; the generation behind it is kept on
// disk until Release.
type TxReader struct {
	ds     datastore.DataStore
	ownsDS bool
	ret    *retention
	logger zerolog.Logger

	mu      sync.Mutex
	held    *txfile.TxState
	pinned  bool
	closed  bool
	ctx     context.Context
	attempt int
}

// OpenReader opens the table for reading. No snapshot is resolved until
// Snapshot is called.
func OpenReader(ctx context.Context, tablePath string, opts Options) (*TxReader, error) {
	ds, ownsDS, err := opts.dataStore(tablePath, false)
	if err != nil {
		return nil, fmt.Errorf("error opening table directory: %w", err)
	}
	l := logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &TxReader{
		ds:      ds,
		ownsDS:  ownsDS,
		ret:     retentionFor(ds.Path("")),
		logger:  gologger.ForTable(l, ds.Path("")),
		ctx:     ctx,
		attempt: defaultSnapshotAttempts,
	}, nil
}

func (r *TxReader) readPointer() (uint64, error) {
	b, err := r.ds.ReadFile(r.ctx, pointerFileName)
	if err != nil {
		return 0, err
	}
	return decodePointer(b)
}

// Snapshot resolves the latest published state and returns a copy of it.
// The previous snapshot, if any, is released. A table that has never been
// committed yields the empty state at txn 0. The txn returned never goes
// backwards for the same reader.
func (r *TxReader) Snapshot() (*txfile.TxState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrReaderClosed
	}

	for i := 0; i < r.attempt; i++ {
		txn, err := r.readPointer()
		if errors.Is(err, datastore.ErrNotFound) {
			metrics.Snapshots.WithLabelValues("empty").Inc()
			if r.held != nil {
				return r.held.Clone(), nil
			}
			return txfile.NewEmptyState(), nil
		} else if err != nil {
			metrics.Snapshots.WithLabelValues("error").Inc()
			return nil, err
		}

		if r.held != nil && txn <= r.held.Txn {
			metrics.Snapshots.WithLabelValues("unchanged").Inc()
			return r.held.Clone(), nil
		}

		if !r.ret.acquire(txn) {
			continue
		}
		state, err := r.load(txn)
		if errors.Is(err, datastore.ErrNotFound) {
			// reclaimed between reading the pointer and pinning it
			r.ret.release(txn)
			continue
		} else if err != nil {
			r.ret.release(txn)
			metrics.Snapshots.WithLabelValues("error").Inc()
			return nil, err
		}

		r.unpin()
		r.held = state
		r.pinned = true
		metrics.Snapshots.WithLabelValues("resolved").Inc()
		return state.Clone(), nil
	}

	metrics.Snapshots.WithLabelValues("contended").Inc()
	return nil, ErrSnapshotContended
}

func (r *TxReader) load(txn uint64) (*txfile.TxState, error) {
	b, release, err := r.ds.MapFile(r.ctx, StateFileName(txn))
	if err != nil {
		return nil, err
	}
	state, err := txfile.Decode(b)
	if rerr := release(); rerr != nil {
		r.logger.Warn().Err(rerr).Uint64("txn", txn).Msg("failed to unmap state file")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: txn %d: %w", ErrCorruptLedger, txn, err)
	}
	if state.Txn != txn {
		return nil, fmt.Errorf("%w: file of txn %d holds txn %d", ErrCorruptLedger, txn, state.Txn)
	}
	if err = state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: txn %d: %w", ErrCorruptLedger, txn, err)
	}
	return state, nil
}

// Reload reports whether a txn newer than the held snapshot has been
// published. It does not move the snapshot; call Snapshot for that.
func (r *TxReader) Reload() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrReaderClosed
	}

	txn, err := r.readPointer()
	if errors.Is(err, datastore.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	var held uint64
	if r.held != nil {
		held = r.held.Txn
	}
	return txn > held, nil
}

// Txn is the txn of the held snapshot, 0 if none.
func (r *TxReader) Txn() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held == nil {
		return 0
	}
	return r.held.Txn
}

// Release lets the writer reclaim the held snapshot. The next Snapshot still
// never returns an older txn than the one released.
func (r *TxReader) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unpin()
}

func (r *TxReader) unpin() {
	if r.pinned {
		r.ret.release(r.held.Txn)
		r.pinned = false
	}
}

func (r *TxReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.unpin()
	r.closed = true
	if r.ownsDS {
		return r.ds.Shutdown(r.ctx)
	}
	return nil
}
