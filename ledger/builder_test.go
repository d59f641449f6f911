package ledger

import (
	"context"
	"testing"

	"github.com/danthegoodman1/icetx/part"
	"github.com/stretchr/testify/require"
)

func TestBuilderInvariants(t *testing.T) {
	ctx := context.Background()
	w := openWriter(t, newTablePath(t), Options{})
	commitRows(t, w, 1000, 5) // bounds [1000, 1005]

	tests := []struct {
		name   string
		mutate func(b *TxBuilder)
	}{
		{"max timestamp goes back", func(b *TxBuilder) { b.MaxTimestamp = 1001 }},
		{"min timestamp moves without rewrite", func(b *TxBuilder) { b.ObserveTimestamps(900, 1005) }},
		{"fixed count out of step", func(b *TxBuilder) { b.FixedRowCount = 3 }},
		{"transient count out of step", func(b *TxBuilder) { b.TransientRowCount = 1 }},
		{"unordered partitions", func(b *TxBuilder) {
			b.Partitions = append(b.Partitions, part.Partition{Timestamp: 10})
		}},
		{"min after max", func(b *TxBuilder) { b.MinTimestamp = 2000; b.BumpDataVersion() }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := w.BeginTxn()
			tc.mutate(b)
			_, err := w.Commit(ctx, b)
			require.ErrorIs(t, err, ErrInvariantViolation)
			require.EqualValues(t, 1, w.Current().Txn)
		})
	}
}

func TestBuilderRewritesMayMoveMinTimestamp(t *testing.T) {
	ctx := context.Background()
	w := openWriter(t, newTablePath(t), Options{})
	commitRows(t, w, 1000, 5)
	commitRows(t, w, 2000, 5)

	b := w.BeginTxn()
	p, err := b.ReplacePartition(1000, 8, 512)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.NameVersion)
	b.ObserveTimestamps(990, 990)
	_, err = w.Commit(ctx, b)
	require.NoError(t, err)

	s := w.Current()
	require.EqualValues(t, 990, s.MinTimestamp)
	require.EqualValues(t, 1, s.DataVersion)
	require.EqualValues(t, 8, s.FixedRowCount)
	require.EqualValues(t, 5, s.TransientRowCount)

	b = w.BeginTxn()
	_, err = b.ReplacePartition(1500, 1, 1)
	require.ErrorIs(t, err, part.ErrPartitionNotFound)
}

func TestBuilderTruncate(t *testing.T) {
	ctx := context.Background()
	w := openWriter(t, newTablePath(t), Options{})
	commitRows(t, w, 1000, 5)

	b := w.BeginTxn()
	b.Truncate()
	_, err := w.Commit(ctx, b)
	require.NoError(t, err)
	require.True(t, w.Current().Empty())
	require.Empty(t, w.Current().Partitions)

	// bounds may start over after a truncate
	commitRows(t, w, 500, 1)
	require.EqualValues(t, 500, w.Current().MinTimestamp)
}

func TestBuilderSymbolColumns(t *testing.T) {
	ctx := context.Background()
	w := openWriter(t, newTablePath(t), Options{})

	b := w.BeginTxn()
	require.Equal(t, 0, b.AddSymbolColumn())
	require.Equal(t, 1, b.AddSymbolColumn())
	require.NoError(t, b.SetSymbolCount(1, 42))
	require.ErrorIs(t, b.SetSymbolCount(2, 1), ErrInvariantViolation)
	_, err := w.Commit(ctx, b)
	require.NoError(t, err)

	s := w.Current()
	require.EqualValues(t, 2, s.StructureVersion)
	require.Equal(t, []uint32{0, 42}, []uint32(s.SymbolCounts))

	b = w.BeginTxn()
	b.SymbolCounts = b.SymbolCounts[:1]
	_, err = w.Commit(ctx, b)
	require.ErrorIs(t, err, ErrInvariantViolation)

	b = w.BeginTxn()
	b.StructureVersion = 1
	_, err = w.Commit(ctx, b)
	require.ErrorIs(t, err, ErrInvariantViolation)

	b = w.BeginTxn()
	b.SymbolCounts = b.SymbolCounts[:1]
	b.BumpStructureVersion()
	_, err = w.Commit(ctx, b)
	require.NoError(t, err)
}

func TestBuilderLifecycle(t *testing.T) {
	ctx := context.Background()
	w := openWriter(t, newTablePath(t), Options{})

	b := w.BeginTxn()
	require.ErrorIs(t, b.SetActiveRowCount(1), ErrNoActivePartition)
	require.ErrorIs(t, b.SetActiveSize(1), ErrNoActivePartition)

	w.Rollback(b)
	w.Rollback(b)
	w.Rollback(nil)
	_, err := w.Commit(ctx, b)
	require.ErrorIs(t, err, ErrBuilderClosed)

	first, second := w.BeginTxn(), w.BeginTxn()
	require.NoError(t, first.AppendPartition(part.Partition{Timestamp: 1000, RowCount: 1}))
	first.ObserveTimestamps(1000, 1000)
	_, err = w.Commit(ctx, first)
	require.NoError(t, err)
	_, err = w.Commit(ctx, first)
	require.ErrorIs(t, err, ErrBuilderClosed)

	require.EqualValues(t, 0, second.BaseTxn())
	_, err = w.Commit(ctx, second)
	require.ErrorIs(t, err, ErrStaleBuilder)

	// a rolled back builder leaves nothing behind
	b = w.BeginTxn()
	require.NoError(t, b.SetActiveRowCount(50))
	w.Rollback(b)
	require.EqualValues(t, 1, w.Current().TransientRowCount)
	require.Equal(t, []uint64{1}, w.Generations())
}
