package table

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/danthegoodman1/icetx/datastore"
	"github.com/danthegoodman1/icetx/ledger"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/rs/zerolog"
)

type (
	// Catalog owns the one writer and one shared reader of every table under
	// a data directory.
	Catalog struct {
		DataDir string
		By      partitioner.PartitionBy
		Retain  int
		// OnCommit observes every commit of every table.
		OnCommit func(ctx context.Context, table string, s *txfile.TxState)

		mu      sync.Mutex
		tables  map[string]*Table
		readers map[string]*ledger.TxReader
	}
)

var (
	tableNameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,128}$`)

	ErrInvalidTableName = errors.New("invalid table name")
	ErrTableNotFound    = errors.New("table not found")
)

func NewCatalog(dataDir string, by partitioner.PartitionBy, retain int) *Catalog {
	return &Catalog{
		DataDir: dataDir,
		By:      by,
		Retain:  retain,
		tables:  make(map[string]*Table),
		readers: make(map[string]*ledger.TxReader),
	}
}

func (c *Catalog) tablePath(name string) (string, error) {
	if !tableNameRe.MatchString(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidTableName)
	}
	return filepath.Join(c.DataDir, name), nil
}

// Table returns the writer side of name, creating the table on first use.
func (c *Catalog) Table(ctx context.Context, name string) (*Table, error) {
	path, err := c.tablePath(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[name]; ok {
		return t, nil
	}

	opts := ledger.Options{RetainGenerations: c.Retain}
	if c.OnCommit != nil {
		opts.OnCommit = []ledger.CommitHook{func(ctx context.Context, s *txfile.TxState) {
			c.OnCommit(ctx, name, s)
		}}
	}
	w, err := ledger.OpenWriter(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("error opening writer for %s: %w", name, err)
	}
	zerolog.Ctx(ctx).Debug().Str("table", name).Uint64("txn", w.Current().Txn).Msg("opened table")

	t := New(name, c.By, w)
	c.tables[name] = t
	return t, nil
}

// Snapshot returns the latest published state of name through the table's
// shared reader.
func (c *Catalog) Snapshot(name string) (*txfile.TxState, error) {
	path, err := c.tablePath(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	r, ok := c.readers[name]
	if !ok {
		// the reader outlives the request
		r, err = ledger.OpenReader(context.Background(), path, ledger.Options{})
		if errors.Is(err, datastore.ErrNotFound) {
			c.mu.Unlock()
			return nil, fmt.Errorf("%s: %w", name, ErrTableNotFound)
		} else if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.readers[name] = r
	}
	c.mu.Unlock()

	return r.Snapshot()
}

// Shutdown closes every reader and writer. Errors are logged and the first
// one is returned.
func (c *Catalog) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for name, r := range c.readers {
		if err := r.Close(); err != nil {
			logger.Error().Err(err).Str("table", name).Msg("error closing reader")
			if first == nil {
				first = err
			}
		}
	}
	for name, t := range c.tables {
		if err := t.Close(ctx); err != nil {
			logger.Error().Err(err).Str("table", name).Msg("error closing table")
			if first == nil {
				first = err
			}
		}
	}
	c.readers = make(map[string]*ledger.TxReader)
	c.tables = make(map[string]*Table)
	return first
}
