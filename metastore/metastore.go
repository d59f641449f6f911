package metastore

import (
	"context"
	"errors"
	"time"

	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/txfile"
)

var (
	logger = gologger.NewLogger()

	ErrInvalidLimit = errors.New("limit must be positive")
)

type (
	// MetaStore keeps a queryable history of the commits of every table. The
	// ledger is the source of truth; the history is written after a txn is
	// published and may lag behind it.
	MetaStore interface {
		RecordCommit(ctx context.Context, table string, s *txfile.TxState) error
		// ListCommits returns the newest commits of table first.
		ListCommits(ctx context.Context, table string, limit int) ([]Commit, error)

		Shutdown(ctx context.Context) error
	}

	Commit struct {
		Table            string
		Txn              uint64
		StructureVersion uint64
		DataVersion      uint64
		RowCount         uint64
		PartitionCount   int
		// MinTimestamp and MaxTimestamp are nil while the table is empty.
		MinTimestamp *int64
		MaxTimestamp *int64
		CommittedAt  time.Time
	}
)

func NewCommit(table string, s *txfile.TxState) Commit {
	c := Commit{
		Table:            table,
		Txn:              s.Txn,
		StructureVersion: s.StructureVersion,
		DataVersion:      s.DataVersion,
		RowCount:         s.RowCount(),
		PartitionCount:   len(s.Partitions),
		CommittedAt:      time.Now().UTC(),
	}
	if !s.Empty() {
		minTS, maxTS := s.MinTimestamp, s.MaxTimestamp
		c.MinTimestamp = &minTS
		c.MaxTimestamp = &maxTS
	}
	return c
}
