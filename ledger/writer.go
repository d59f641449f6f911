package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/icetx/datastore"
	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/metrics"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/danthegoodman1/icetx/utils"
	"github.com/juju/fslock"
	"github.com/rs/zerolog"
)

var logger = gologger.NewLogger()

// TxWriter is the single owner of ledger mutation for one table. It is not
// safe for concurrent use; callers serialize access per table.
type TxWriter struct {
	ds      datastore.DataStore
	ownsDS  bool
	lock    *fslock.Lock
	ret     *retention
	opts    Options
	logger  zerolog.Logger
	session string

	current *txfile.TxState
	// generations lists the state files on disk, ascending.
	generations []uint64
	closed      bool
}

// OpenWriter takes the table's writer lock and loads its latest valid state.
// A table without a ledger starts empty at txn 0.
func OpenWriter(ctx context.Context, tablePath string, opts Options) (*TxWriter, error) {
	ds, ownsDS, err := opts.dataStore(tablePath, true)
	if err != nil {
		return nil, fmt.Errorf("error opening table directory: %w", err)
	}

	l := logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	w := &TxWriter{
		ds:      ds,
		ownsDS:  ownsDS,
		lock:    fslock.New(ds.Path(lockFileName)),
		ret:     retentionFor(ds.Path("")),
		opts:    opts,
		session: utils.GenRandomShortID(),
	}
	w.logger = gologger.ForTable(l, ds.Path("")).With().Str("writer", w.session).Logger()

	if err = w.lock.TryLock(); err != nil {
		if ownsDS {
			ds.Shutdown(ctx)
		}
		if errors.Is(err, fslock.ErrLocked) {
			return nil, ErrWriterLocked
		}
		return nil, fmt.Errorf("error in lock.TryLock: %w", err)
	}

	if err = w.resolve(ctx); err != nil {
		w.release(ctx)
		return nil, err
	}

	w.logger.Debug().Uint64("txn", w.current.Txn).Int("generations", len(w.generations)).Msg("opened ledger writer")
	return w, nil
}

// resolve resolves the current state from the pointer, falling back to the
// newest retained generation that still decodes, and removes leftovers of
// interrupted commits.
func (w *TxWriter) resolve(ctx context.Context) error {
	names, err := w.ds.List(ctx, stateFilePrefix)
	if err != nil {
		return fmt.Errorf("error listing state files: %w", err)
	}
	gens := parseGenerations(names)

	if err = w.removeTempPointers(ctx); err != nil {
		return err
	}

	pointerTxn, err := w.readPointer(ctx)
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		// A pointer has never been published. A lone first state file is the
		// remains of an interrupted first commit; anything more means the
		// pointer was lost.
		if len(gens) > 1 || (len(gens) == 1 && gens[0] != 1) {
			return fmt.Errorf("%w: %d state files but no pointer record", ErrCorruptLedger, len(gens))
		}
		w.current = txfile.NewEmptyState()
	case errors.Is(err, ErrCorruptLedger):
		w.logger.Warn().Err(err).Msg("pointer record is corrupt, recovering from retained generations")
		if err = w.fallback(ctx, gens, ^uint64(0)); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		state, err := w.loadState(ctx, pointerTxn)
		if err != nil {
			w.logger.Warn().Err(err).Uint64("txn", pointerTxn).Msg("current state is unreadable, recovering from retained generations")
			if err = w.fallback(ctx, gens, pointerTxn); err != nil {
				return err
			}
		} else {
			w.current = state
		}
	}

	for _, txn := range gens {
		if txn <= w.current.Txn {
			w.generations = append(w.generations, txn)
			continue
		}
		w.logger.Info().Uint64("txn", txn).Msg("removing state file of an interrupted commit")
		if err := w.ds.Remove(ctx, StateFileName(txn)); err != nil {
			return fmt.Errorf("error removing orphan state: %w", err)
		}
	}

	w.reclaim(ctx)
	return nil
}

// fallback adopts the newest generation at or below limit that decodes and
// republishes the pointer to it.
func (w *TxWriter) fallback(ctx context.Context, gens []uint64, limit uint64) error {
	for i := len(gens) - 1; i >= 0; i-- {
		txn := gens[i]
		if txn > limit {
			continue
		}
		state, err := w.loadState(ctx, txn)
		if err != nil {
			w.logger.Warn().Err(err).Uint64("txn", txn).Msg("retained generation is unreadable")
			continue
		}
		if err = w.publishPointer(ctx, txn); err != nil {
			return fmt.Errorf("error republishing pointer: %w", err)
		}
		w.logger.Warn().Uint64("txn", txn).Msg("recovered ledger to retained generation")
		w.current = state
		return nil
	}
	return fmt.Errorf("%w: no valid state among %d generations", ErrCorruptLedger, len(gens))
}

func (w *TxWriter) readPointer(ctx context.Context) (uint64, error) {
	b, err := w.ds.ReadFile(ctx, pointerFileName)
	if err != nil {
		return 0, err
	}
	return decodePointer(b)
}

func (w *TxWriter) loadState(ctx context.Context, txn uint64) (*txfile.TxState, error) {
	b, err := w.ds.ReadFile(ctx, StateFileName(txn))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptLedger, err)
	}
	state, err := txfile.Decode(b)
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

func (w *TxWriter) removeTempPointers(ctx context.Context) error {
	names, err := w.ds.List(ctx, pointerTempPrefix)
	if err != nil {
		return fmt.Errorf("error listing temp pointers: %w", err)
	}
	for _, name := range names {
		if err = w.ds.Remove(ctx, name); err != nil {
			return fmt.Errorf("error removing temp pointer: %w", err)
		}
	}
	return nil
}

// BeginTxn starts a builder from the current state.
func (w *TxWriter) BeginTxn() *TxBuilder {
	return newBuilder(w, w.current)
}

// Rollback discards b. It never touches the ledger and may be called any
// number of times.
func (w *TxWriter) Rollback(b *TxBuilder) {
	if b == nil || b.writer != w {
		return
	}
	b.done = true
}

// Current returns a copy of the last published state.
func (w *TxWriter) Current() *txfile.TxState {
	return w.current.Clone()
}

// Commit validates b and publishes it as the next txn. On ErrCommitFailed the
// ledger is unchanged and b may be committed again. On ErrNotDurable the txn
// is published and returned along with the error.
func (w *TxWriter) Commit(ctx context.Context, b *TxBuilder) (uint64, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	if b == nil || b.writer != w || b.done {
		return 0, ErrBuilderClosed
	}
	if b.base.Txn != w.current.Txn {
		return 0, fmt.Errorf("%w: builder at %d, ledger at %d", ErrStaleBuilder, b.base.Txn, w.current.Txn)
	}
	if err := b.validate(); err != nil {
		return 0, err
	}

	state := b.TxState.Clone()
	state.Txn = w.current.Txn + 1

	start := time.Now()
	var syncErr error
	if err := w.publish(ctx, state); errors.Is(err, errPointerNotDurable) {
		// Readers may already hold the new txn, so it is adopted rather than
		// withdrawn. Its number is never handed out again.
		w.logger.Error().Err(err).Uint64("txn", state.Txn).Msg("txn published but not durable")
		syncErr = fmt.Errorf("%w: txn %d: %w", ErrNotDurable, state.Txn, err)
	} else if err != nil {
		metrics.CommitFailures.Inc()
		w.logger.Error().Err(err).Uint64("txn", state.Txn).Msg("commit failed")
		return 0, fmt.Errorf("%w: txn %d: %w", ErrCommitFailed, state.Txn, err)
	} else {
		metrics.CommitLatency.Observe(time.Since(start).Seconds())
	}
	metrics.Commits.Inc()

	b.done = true
	w.current = state
	w.generations = append(w.generations, state.Txn)
	w.logger.Debug().
		Uint64("txn", state.Txn).
		Uint64("rows", state.RowCount()).
		Int("partitions", len(state.Partitions)).
		Dur("duration", time.Since(start)).
		Msg("published txn")

	for _, hook := range w.opts.OnCommit {
		hook(ctx, state.Clone())
	}

	w.reclaim(ctx)
	return state.Txn, syncErr
}

// publish writes the full state, syncs it, and only then swaps the pointer.
// A crash before the rename leaves the old pointer and an orphan state file
// that the next OpenWriter removes. Once the rename succeeds the txn is
// visible and publish returns errPointerNotDurable at worst.
func (w *TxWriter) publish(ctx context.Context, state *txfile.TxState) error {
	name := StateFileName(state.Txn)
	if err := w.ds.WriteFileSync(ctx, name, txfile.Encode(state)); err != nil {
		w.removeQuietly(ctx, name)
		return fmt.Errorf("error writing state: %w", err)
	}

	if err := w.publishPointer(ctx, state.Txn); err != nil {
		if !errors.Is(err, errPointerNotDurable) {
			w.removeQuietly(ctx, name)
		}
		return err
	}
	return nil
}

var errPointerNotDurable = errors.New("pointer swapped but directory sync failed")

func (w *TxWriter) publishPointer(ctx context.Context, txn uint64) error {
	tmp := pointerTempName()
	if err := w.ds.WriteFileSync(ctx, tmp, encodePointer(txn)); err != nil {
		w.removeQuietly(ctx, tmp)
		return fmt.Errorf("error writing pointer: %w", err)
	}
	if err := w.ds.Rename(ctx, tmp, pointerFileName); err != nil {
		w.removeQuietly(ctx, tmp)
		return fmt.Errorf("error swapping pointer: %w", err)
	}
	if err := w.ds.SyncDir(ctx); err != nil {
		return fmt.Errorf("%w: %w", errPointerNotDurable, err)
	}
	return nil
}

func (w *TxWriter) removeQuietly(ctx context.Context, name string) {
	if err := w.ds.Remove(ctx, name); err != nil {
		w.logger.Warn().Err(err).Str("file", name).Msg("failed to remove file")
	}
}

// Reclaim deletes old generations that are outside the retention window and
// not referenced by any reader in this process. It returns how many it
// deleted. Commit calls it after every publish.
func (w *TxWriter) Reclaim(ctx context.Context) int {
	if w.closed {
		return 0
	}
	return w.reclaim(ctx)
}

func (w *TxWriter) reclaim(ctx context.Context) int {
	retain := w.opts.retainGenerations()
	if w.current.Txn < retain {
		return 0
	}
	cutoff := w.current.Txn - retain

	var candidates []uint64
	for _, txn := range w.generations {
		if txn > cutoff {
			break
		}
		candidates = append(candidates, txn)
	}
	if len(candidates) == 0 {
		return 0
	}

	victims := w.ret.beginReclaim(candidates)
	defer w.ret.endReclaim(victims)

	removed := make(map[uint64]bool, len(victims))
	for _, txn := range victims {
		if err := w.ds.Remove(ctx, StateFileName(txn)); err != nil {
			w.logger.Warn().Err(err).Uint64("txn", txn).Msg("failed to reclaim generation")
			continue
		}
		removed[txn] = true
	}

	kept := w.generations[:0]
	for _, txn := range w.generations {
		if !removed[txn] {
			kept = append(kept, txn)
		}
	}
	w.generations = kept

	if len(removed) > 0 {
		metrics.ReclaimedGenerations.Add(float64(len(removed)))
		w.logger.Debug().Int("count", len(removed)).Uint64("cutoff", cutoff).Msg("reclaimed generations")
	}
	return len(removed)
}

// Generations lists the state files retained on disk, ascending.
func (w *TxWriter) Generations() []uint64 {
	out := make([]uint64, len(w.generations))
	copy(out, w.generations)
	return out
}

// Path is the table directory.
func (w *TxWriter) Path() string {
	return w.ds.Path("")
}

// Close releases the writer lock. Published states stay on disk.
func (w *TxWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.release(ctx)
}

func (w *TxWriter) release(ctx context.Context) error {
	err := w.lock.Unlock()
	if w.ownsDS {
		if serr := w.ds.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
	}
	if err != nil {
		return fmt.Errorf("error releasing writer: %w", err)
	}
	return nil
}
