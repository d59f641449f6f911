package metastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/icetx/txfile"
	"github.com/danthegoodman1/icetx/utils"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

type CRDBMetaStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewCRDBMetaStore(pool *pgxpool.Pool, timeout time.Duration) *CRDBMetaStore {
	return &CRDBMetaStore{
		pool:    pool,
		timeout: timeout,
	}
}

// pgError marks errors that no retry will fix as permanent: bad input,
// constraint and schema errors.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23", "42":
			return fmt.Errorf("%w: %w", utils.PermError("postgres error "+pgErr.Code), err)
		}
	}
	return err
}

func (cms *CRDBMetaStore) RecordCommit(ctx context.Context, table string, s *txfile.TxState) error {
	logger := zerolog.Ctx(ctx)
	c := NewCommit(table, s)

	err := utils.ReliableExecInTx(ctx, cms.pool, cms.timeout, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO tx_commits (table_name, txn, structure_version, data_version, row_count, partition_count, min_ts, max_ts, committed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (table_name, txn) DO UPDATE SET
				structure_version = excluded.structure_version,
				data_version = excluded.data_version,
				row_count = excluded.row_count,
				partition_count = excluded.partition_count,
				min_ts = excluded.min_ts,
				max_ts = excluded.max_ts,
				committed_at = excluded.committed_at
		`, c.Table, int64(c.Txn), int64(c.StructureVersion), int64(c.DataVersion), int64(c.RowCount), c.PartitionCount, c.MinTimestamp, c.MaxTimestamp, c.CommittedAt)
		if err != nil {
			return pgError(fmt.Errorf("error inserting commit: %w", err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error in ReliableExecInTx: %w", err)
	}
	logger.Debug().Str("table", table).Uint64("txn", c.Txn).Msg("recorded commit")
	return nil
}

func (cms *CRDBMetaStore) ListCommits(ctx context.Context, table string, limit int) ([]Commit, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	var commits []Commit
	err := utils.ReliableExec(ctx, cms.timeout, func(ctx context.Context) error {
		commits = commits[:0]
		rows, err := cms.pool.Query(ctx, `
			SELECT txn, structure_version, data_version, row_count, partition_count, min_ts, max_ts, committed_at
			FROM tx_commits
			WHERE table_name = $1
			ORDER BY txn DESC
			LIMIT $2
		`, table, limit)
		if err != nil {
			return pgError(fmt.Errorf("error querying commits: %w", err))
		}
		defer rows.Close()

		for rows.Next() {
			var (
				txn, sv, dv, rowCount int64
				partitions            int
				minTS, maxTS          pgtype.Int8
				at                    pgtype.Timestamptz
			)
			if err = rows.Scan(&txn, &sv, &dv, &rowCount, &partitions, &minTS, &maxTS, &at); err != nil {
				return pgError(fmt.Errorf("error scanning commit: %w", err))
			}
			c := Commit{
				Table:            table,
				Txn:              uint64(txn),
				StructureVersion: uint64(sv),
				DataVersion:      uint64(dv),
				RowCount:         uint64(rowCount),
				PartitionCount:   partitions,
				CommittedAt:      at.Time,
			}
			if minTS.Status == pgtype.Present {
				c.MinTimestamp = utils.Ptr(minTS.Int)
			}
			if maxTS.Status == pgtype.Present {
				c.MaxTimestamp = utils.Ptr(maxTS.Int)
			}
			commits = append(commits, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("error in ReliableExec: %w", err)
	}
	return commits, nil
}

func (cms *CRDBMetaStore) Shutdown(context.Context) error {
	cms.pool.Close()
	return nil
}
