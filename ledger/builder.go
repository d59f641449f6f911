package ledger

import (
	"fmt"

	"github.com/danthegoodman1/icetx/part"
	"github.com/danthegoodman1/icetx/txfile"
)

// TxBuilder is the writer's mutable draft of the next transaction. Fields of
// the embedded state can be set directly; the helpers keep the row counters in
// step with the partition directory. Txn is assigned on commit.
type TxBuilder struct {
	txfile.TxState

	base      *txfile.TxState
	writer    *TxWriter
	truncated bool
	done      bool
}

func newBuilder(w *TxWriter, base *txfile.TxState) *TxBuilder {
	return &TxBuilder{
		TxState: *base.Clone(),
		base:    base,
		writer:  w,
	}
}

// BaseTxn is the txn the builder was started from.
func (b *TxBuilder) BaseTxn() uint64 {
	return b.base.Txn
}

// Base returns a copy of the state the builder was started from.
func (b *TxBuilder) Base() *txfile.TxState {
	return b.base.Clone()
}

// Rewritten reports whether the data version was bumped since the base.
func (b *TxBuilder) Rewritten() bool {
	return b.DataVersion > b.base.DataVersion
}

func (b *TxBuilder) syncRowCounts() {
	b.FixedRowCount = b.Partitions.FixedRowCount()
	b.TransientRowCount = b.Partitions.TransientRowCount()
}

// AppendPartition opens p as the new active partition. The previous active
// partition becomes closed and its rows move into FixedRowCount.
func (b *TxBuilder) AppendPartition(p part.Partition) error {
	if err := b.Partitions.Append(p); err != nil {
		return err
	}
	b.syncRowCounts()
	return nil
}

// SetActiveRowCount sets the row count of the active partition.
func (b *TxBuilder) SetActiveRowCount(rows uint64) error {
	if len(b.Partitions) == 0 {
		return ErrNoActivePartition
	}
	b.Partitions[len(b.Partitions)-1].RowCount = rows
	b.syncRowCounts()
	return nil
}

// SetActiveSize records the on-disk size of the active partition.
func (b *TxBuilder) SetActiveSize(sizeBytes uint64) error {
	if len(b.Partitions) == 0 {
		return ErrNoActivePartition
	}
	b.Partitions[len(b.Partitions)-1].SizeBytes = sizeBytes
	return nil
}

// ReplacePartition records an in place rewrite of the partition keyed by ts,
// for out of order merges and column conversions. The name version and the
// data version are bumped.
func (b *TxBuilder) ReplacePartition(ts int64, rows, sizeBytes uint64) (part.Partition, error) {
	p, err := b.Partitions.Replace(ts, rows, sizeBytes)
	if err != nil {
		return p, err
	}
	b.DataVersion++
	b.syncRowCounts()
	return p, nil
}

// ObserveTimestamps widens the timestamp bounds to cover [min, max].
func (b *TxBuilder) ObserveTimestamps(min, max int64) {
	if min < b.MinTimestamp {
		b.MinTimestamp = min
	}
	if max > b.MaxTimestamp {
		b.MaxTimestamp = max
	}
}

// AddSymbolColumn registers a new symbol column and returns its ordinal.
func (b *TxBuilder) AddSymbolColumn() int {
	b.SymbolCounts = append(b.SymbolCounts, 0)
	b.StructureVersion++
	return len(b.SymbolCounts) - 1
}

func (b *TxBuilder) SetSymbolCount(ordinal int, count uint32) error {
	if ordinal < 0 || ordinal >= len(b.SymbolCounts) {
		return fmt.Errorf("symbol column %d of %d: %w", ordinal, len(b.SymbolCounts), ErrInvariantViolation)
	}
	b.SymbolCounts[ordinal] = count
	return nil
}

func (b *TxBuilder) BumpStructureVersion() {
	b.StructureVersion++
}

func (b *TxBuilder) BumpDataVersion() {
	b.DataVersion++
}

// Truncate drops every partition. It is the only way to reset the timestamp
// bounds of a table that already holds rows.
func (b *TxBuilder) Truncate() {
	b.Partitions = nil
	b.FixedRowCount = 0
	b.TransientRowCount = 0
	b.MinTimestamp = txfile.UnsetMinTimestamp
	b.MaxTimestamp = txfile.UnsetMaxTimestamp
	b.DataVersion++
	b.truncated = true
}

// validate checks the draft against the published state invariants and the
// transition rules from the base state.
func (b *TxBuilder) validate() error {
	if err := b.TxState.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvariantViolation, err)
	}

	base := b.base
	if b.StructureVersion < base.StructureVersion {
		return fmt.Errorf("%w: structure version went from %d to %d", ErrInvariantViolation, base.StructureVersion, b.StructureVersion)
	}
	if b.DataVersion < base.DataVersion {
		return fmt.Errorf("%w: data version went from %d to %d", ErrInvariantViolation, base.DataVersion, b.DataVersion)
	}
	if len(b.SymbolCounts) < len(base.SymbolCounts) && b.StructureVersion == base.StructureVersion {
		return fmt.Errorf("%w: symbol columns dropped without a structure version change", ErrInvariantViolation)
	}
	if b.truncated || base.Empty() {
		return nil
	}
	if b.MinTimestamp != base.MinTimestamp && b.DataVersion == base.DataVersion {
		return fmt.Errorf("%w: min timestamp changed from %d to %d without a data rewrite", ErrInvariantViolation, base.MinTimestamp, b.MinTimestamp)
	}
	if b.MaxTimestamp < base.MaxTimestamp {
		return fmt.Errorf("%w: max timestamp went back from %d to %d", ErrInvariantViolation, base.MaxTimestamp, b.MaxTimestamp)
	}
	return nil
}
