package txfile

import (
	"errors"
	"fmt"
	"math"

	"github.com/danthegoodman1/icetx/part"
)

const (
	// UnsetMinTimestamp and UnsetMaxTimestamp mark an empty table.
	UnsetMinTimestamp int64 = math.MaxInt64
	UnsetMaxTimestamp int64 = math.MinInt64
)

type (
	// SymbolCounts holds the distinct value count of each symbol column,
	// indexed by the column's ordinal among symbol columns.
	SymbolCounts []uint32

	// TxState is one committed transaction. Once published it is never
	// modified; readers get their own copy.
	TxState struct {
		Txn              uint64
		StructureVersion uint64
		DataVersion      uint64

		// FixedRowCount covers every partition but the active one.
		FixedRowCount uint64
		// TransientRowCount is the row count of the active partition.
		TransientRowCount uint64

		MinTimestamp int64
		MaxTimestamp int64

		Partitions   part.Directory
		SymbolCounts SymbolCounts
	}
)

var ErrInvalidState = errors.New("invalid tx state")

// NewEmptyState is the state of a table before its first commit.
func NewEmptyState() *TxState {
	return &TxState{
		MinTimestamp: UnsetMinTimestamp,
		MaxTimestamp: UnsetMaxTimestamp,
	}
}

func (s *TxState) RowCount() uint64 {
	return s.FixedRowCount + s.TransientRowCount
}

func (s *TxState) Empty() bool {
	return s.RowCount() == 0
}

func (s *TxState) Clone() *TxState {
	c := *s
	c.Partitions = s.Partitions.Clone()
	if s.SymbolCounts != nil {
		c.SymbolCounts = make(SymbolCounts, len(s.SymbolCounts))
		copy(c.SymbolCounts, s.SymbolCounts)
	}
	return &c
}

// Validate checks the invariants every published state holds.
func (s *TxState) Validate() error {
	if err := s.Partitions.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidState, err)
	}
	if fixed := s.Partitions.FixedRowCount(); fixed != s.FixedRowCount {
		return fmt.Errorf("%w: fixed row count %d but closed partitions hold %d rows", ErrInvalidState, s.FixedRowCount, fixed)
	}
	if transient := s.Partitions.TransientRowCount(); transient != s.TransientRowCount {
		return fmt.Errorf("%w: transient row count %d but active partition holds %d rows", ErrInvalidState, s.TransientRowCount, transient)
	}
	if s.Empty() {
		if s.MinTimestamp != UnsetMinTimestamp || s.MaxTimestamp != UnsetMaxTimestamp {
			return fmt.Errorf("%w: empty table with timestamp bounds [%d, %d]", ErrInvalidState, s.MinTimestamp, s.MaxTimestamp)
		}
		return nil
	}
	if s.MinTimestamp == UnsetMinTimestamp || s.MaxTimestamp == UnsetMaxTimestamp {
		return fmt.Errorf("%w: %d rows without timestamp bounds", ErrInvalidState, s.RowCount())
	}
	if s.MinTimestamp > s.MaxTimestamp {
		return fmt.Errorf("%w: min timestamp %d after max timestamp %d", ErrInvalidState, s.MinTimestamp, s.MaxTimestamp)
	}
	return nil
}

// Equal compares two states field by field. Nil and empty slices are equal.
func (s *TxState) Equal(o *TxState) bool {
	if s.Txn != o.Txn ||
		s.StructureVersion != o.StructureVersion ||
		s.DataVersion != o.DataVersion ||
		s.FixedRowCount != o.FixedRowCount ||
		s.TransientRowCount != o.TransientRowCount ||
		s.MinTimestamp != o.MinTimestamp ||
		s.MaxTimestamp != o.MaxTimestamp ||
		len(s.Partitions) != len(o.Partitions) ||
		len(s.SymbolCounts) != len(o.SymbolCounts) {
		return false
	}
	for i := range s.Partitions {
		if s.Partitions[i] != o.Partitions[i] {
			return false
		}
	}
	for i := range s.SymbolCounts {
		if s.SymbolCounts[i] != o.SymbolCounts[i] {
			return false
		}
	}
	return true
}
