package ledger

import (
	"context"

	"github.com/danthegoodman1/icetx/datastore"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/rs/zerolog"
)

const (
	DefaultRetainGenerations = 2
	defaultSnapshotAttempts  = 16
)

type (
	// CommitHook observes every successful publish. It runs on the writer's
	// goroutine after the new state is durable and visible.
	CommitHook func(ctx context.Context, state *txfile.TxState)

	Options struct {
		// DataStore overrides the disk store rooted at the table path.
		DataStore datastore.DataStore
		// RetainGenerations is how many of the newest states are kept on disk
		// regardless of reader references, for readers in other processes.
		// Values below 1 mean DefaultRetainGenerations.
		RetainGenerations int
		OnCommit          []CommitHook
		Logger            *zerolog.Logger
	}
)

func (o Options) retainGenerations() uint64 {
	if o.RetainGenerations < 1 {
		return DefaultRetainGenerations
	}
	return uint64(o.RetainGenerations)
}

func (o Options) dataStore(tablePath string, create bool) (datastore.DataStore, bool, error) {
	if o.DataStore != nil {
		return o.DataStore, false, nil
	}
	ds, err := datastore.NewDiskDataStore(tablePath, create)
	if err != nil {
		return nil, false, err
	}
	return ds, true, nil
}
