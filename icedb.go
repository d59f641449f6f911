package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/icetx/crdb"
	"github.com/danthegoodman1/icetx/metastore"
	"github.com/danthegoodman1/icetx/migrations"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/table"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/danthegoodman1/icetx/utils"
)

const (
	metaStoreTimeout   = time.Second * 10
	memoryCommitsLimit = 1000
)

type (
	// IceTx is the long running server state: the tables under the data
	// directory and the commit history they report to.
	IceTx struct {
		Catalog   *table.Catalog
		MetaStore metastore.MetaStore
	}
)

// NewIceTx builds the catalog and metastore from the environment. The commit
// history goes to CockroachDB when CRDB_DSN is set, and to memory otherwise.
func NewIceTx(ctx context.Context, dataDir string, by partitioner.PartitionBy, retain int) (*IceTx, error) {
	var ms metastore.MetaStore
	if utils.CRDB_DSN != "" {
		pool, err := crdb.Connect(ctx, utils.CRDB_DSN)
		if err != nil {
			return nil, fmt.Errorf("error in crdb.Connect: %w", err)
		}
		if err = migrations.CheckMigrations(utils.CRDB_DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("error checking migrations: %w", err)
		}
		ms = metastore.NewCRDBMetaStore(pool, metaStoreTimeout)
	} else {
		logger.Warn().Msg("CRDB_DSN not set, keeping commit history in memory")
		ms = metastore.NewMemoryMetaStore(memoryCommitsLimit)
	}

	catalog := table.NewCatalog(dataDir, by, retain)
	catalog.OnCommit = func(ctx context.Context, name string, s *txfile.TxState) {
		// the txn is already published, a lagging history is acceptable
		if err := ms.RecordCommit(ctx, name, s); err != nil {
			logger.Error().Err(err).Str("table", name).Uint64("txn", s.Txn).Msg("error recording commit")
		}
	}

	return &IceTx{
		Catalog:   catalog,
		MetaStore: ms,
	}, nil
}

func (itx *IceTx) Shutdown(ctx context.Context) error {
	if err := itx.Catalog.Shutdown(ctx); err != nil {
		return fmt.Errorf("error in Catalog.Shutdown: %w", err)
	}
	if err := itx.MetaStore.Shutdown(ctx); err != nil {
		return fmt.Errorf("error in MetaStore.Shutdown: %w", err)
	}
	return nil
}
