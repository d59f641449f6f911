package table

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/ledger"
	"github.com/danthegoodman1/icetx/part"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/go-playground/validator/v10"
)

type (
	// AppendBatch is what a producer reports after writing rows into one
	// partition bucket.
	AppendBatch struct {
		Rows uint64 `validate:"required"`
		// Timestamps in epoch microseconds. Both must fall in the same bucket.
		MinTimestamp int64
		MaxTimestamp int64 `validate:"gtefield=MinTimestamp"`
		// SymbolDeltas[i] is the number of distinct values the batch added to
		// symbol column i.
		SymbolDeltas []uint32
		// SizeBytes is the size of the target partition after the write, 0 if
		// unknown.
		SizeBytes uint64
	}

	// Table serializes producers of one table onto its ledger writer.
	Table struct {
		Name string
		By   partitioner.PartitionBy

		mu sync.Mutex
		w  *ledger.TxWriter
	}
)

var (
	logger   = gologger.NewLogger()
	validate = validator.New()

	ErrBatchSpansPartitions = errors.New("batch spans more than one partition")
	ErrUnknownSymbolColumn  = errors.New("batch references an unknown symbol column")
)

func New(name string, by partitioner.PartitionBy, w *ledger.TxWriter) *Table {
	return &Table{
		Name: name,
		By:   by,
		w:    w,
	}
}

// Apply folds batch into b. Rows for the active bucket extend it, rows for a
// newer bucket close it and open a new one, and rows for an older bucket
// rewrite that partition in place.
func Apply(b *ledger.TxBuilder, by partitioner.PartitionBy, batch AppendBatch) error {
	if err := validate.Struct(batch); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	key, err := partitioner.Floor(by, batch.MinTimestamp)
	if err != nil {
		return err
	}
	maxKey, err := partitioner.Floor(by, batch.MaxTimestamp)
	if err != nil {
		return err
	}
	if key != maxKey {
		return fmt.Errorf("[%d, %d]: %w", batch.MinTimestamp, batch.MaxTimestamp, ErrBatchSpansPartitions)
	}
	if len(batch.SymbolDeltas) > len(b.SymbolCounts) {
		return fmt.Errorf("%d deltas for %d symbol columns: %w", len(batch.SymbolDeltas), len(b.SymbolCounts), ErrUnknownSymbolColumn)
	}

	last, ok := b.Partitions.Last()
	switch {
	case !ok || key > last.Timestamp:
		if err = b.AppendPartition(part.Partition{
			Timestamp: key,
			RowCount:  batch.Rows,
			SizeBytes: batch.SizeBytes,
		}); err != nil {
			return err
		}
	case key == last.Timestamp:
		if err = b.SetActiveRowCount(last.RowCount + batch.Rows); err != nil {
			return err
		}
		if batch.SizeBytes > 0 {
			if err = b.SetActiveSize(batch.SizeBytes); err != nil {
				return err
			}
		}
	default:
		i := b.Partitions.IndexOf(key)
		if i < 0 {
			return fmt.Errorf("no partition at %d before active %d: %w", key, last.Timestamp, part.ErrOutOfOrderPartition)
		}
		existing := b.Partitions[i]
		size := batch.SizeBytes
		if size == 0 {
			size = existing.SizeBytes
		}
		if _, err = b.ReplacePartition(key, existing.RowCount+batch.Rows, size); err != nil {
			return err
		}
	}

	if b.RowCount() > batch.Rows && batch.MinTimestamp < b.MinTimestamp && !b.Rewritten() {
		// rows older than anything committed merge into existing data
		b.BumpDataVersion()
	}
	b.ObserveTimestamps(batch.MinTimestamp, batch.MaxTimestamp)

	for i, d := range batch.SymbolDeltas {
		if d > math.MaxUint32-b.SymbolCounts[i] {
			return fmt.Errorf("symbol column %d overflows at %d + %d: %w", i, b.SymbolCounts[i], d, ledger.ErrInvariantViolation)
		}
		if err = b.SetSymbolCount(i, b.SymbolCounts[i]+d); err != nil {
			return err
		}
	}
	return nil
}

// Commit applies batches in order and publishes them as one txn. Nothing is
// published if any batch is rejected.
func (t *Table) Commit(ctx context.Context, batches ...AppendBatch) (*txfile.TxState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.w.BeginTxn()
	for i, batch := range batches {
		if err := Apply(b, t.By, batch); err != nil {
			t.w.Rollback(b)
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
	}
	return t.commit(ctx, b)
}

// AddSymbolColumn registers a new symbol column and returns its ordinal.
func (t *Table) AddSymbolColumn(ctx context.Context) (int, *txfile.TxState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.w.BeginTxn()
	ordinal := b.AddSymbolColumn()
	s, err := t.commit(ctx, b)
	if err != nil {
		return 0, nil, err
	}
	return ordinal, s, nil
}

// RewritePartition records that the partition keyed by ts was rewritten with
// rows rows, as a merge or column conversion does.
func (t *Table) RewritePartition(ctx context.Context, ts int64, rows, sizeBytes uint64) (part.Partition, *txfile.TxState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.w.BeginTxn()
	p, err := b.ReplacePartition(ts, rows, sizeBytes)
	if err != nil {
		t.w.Rollback(b)
		return p, nil, err
	}
	s, err := t.commit(ctx, b)
	if err != nil {
		return p, nil, err
	}
	return p, s, nil
}

func (t *Table) Truncate(ctx context.Context) (*txfile.TxState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.w.BeginTxn()
	b.Truncate()
	return t.commit(ctx, b)
}

func (t *Table) commit(ctx context.Context, b *ledger.TxBuilder) (*txfile.TxState, error) {
	_, err := t.w.Commit(ctx, b)
	if errors.Is(err, ledger.ErrNotDurable) {
		// published, so resubmitting the rows would apply them twice
		return t.w.Current(), fmt.Errorf("error committing to %s: %w", t.Name, err)
	} else if err != nil {
		t.w.Rollback(b)
		return nil, fmt.Errorf("error committing to %s: %w", t.Name, err)
	}
	return t.w.Current(), nil
}

// Current returns the last state published by this table's writer.
func (t *Table) Current() *txfile.TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Current()
}

// Generations lists the ledger generations still on disk, ascending.
func (t *Table) Generations() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Generations()
}

// Dirs lists the on-disk directory of every partition in s, in order.
func Dirs(by partitioner.PartitionBy, s *txfile.TxState) ([]string, error) {
	dirs := make([]string, 0, len(s.Partitions))
	for _, p := range s.Partitions {
		d, err := partitioner.DirName(by, p)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, nil
}

func (t *Table) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger.Debug().Str("table", t.Name).Msg("closing table writer")
	return t.w.Close(ctx)
}
