package datastore

import (
	"context"
	"errors"

	"github.com/danthegoodman1/icetx/gologger"
)

var (
	logger = gologger.NewLogger()

	ErrNotFound = errors.New("file not found")
)

type (
	// DataStore is the file layer under a single table directory. Names are
	// relative to that directory. The ledger publishes through it so tests can
	// inject faults between the steps of a commit.
	DataStore interface {
		// ReadFile returns the whole file, ErrNotFound if it does not exist.
		ReadFile(ctx context.Context, name string) ([]byte, error)
		// MapFile maps a file read only. The returned release func must be
		// called once the bytes are no longer referenced.
		MapFile(ctx context.Context, name string) (b []byte, release func() error, err error)
		// WriteFileSync creates or truncates name, writes b and fsyncs it.
		WriteFileSync(ctx context.Context, name string, b []byte) error
		// Rename atomically replaces newName with oldName.
		Rename(ctx context.Context, oldName, newName string) error
		Remove(ctx context.Context, name string) error
		// List returns the names that start with prefix, unordered.
		List(ctx context.Context, prefix string) ([]string, error)
		// SyncDir makes renames and removals in the directory durable.
		SyncDir(ctx context.Context) error
		Exists(ctx context.Context, name string) (bool, error)
		// Path returns the absolute path of name, for locks and diagnostics.
		Path(name string) string

		Shutdown(ctx context.Context) error
	}
)
