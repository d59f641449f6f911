package metastore

import (
	"context"
	"sort"
	"sync"

	"github.com/danthegoodman1/icetx/txfile"
)

// MemoryMetaStore is used when no CRDB_DSN is configured. It keeps the last
// maxPerTable commits of each table for the life of the process.
type MemoryMetaStore struct {
	mu          sync.Mutex
	commits     map[string][]Commit
	maxPerTable int
}

func NewMemoryMetaStore(maxPerTable int) *MemoryMetaStore {
	return &MemoryMetaStore{
		commits:     make(map[string][]Commit),
		maxPerTable: maxPerTable,
	}
}

func (m *MemoryMetaStore) RecordCommit(_ context.Context, table string, s *txfile.TxState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	commits := m.commits[table]
	c := NewCommit(table, s)
	for i := range commits {
		if commits[i].Txn == s.Txn {
			// a writer fallback hands out discarded txn numbers again
			commits[i] = c
			return nil
		}
	}
	commits = append(commits, c)
	sort.Slice(commits, func(i, j int) bool { return commits[i].Txn < commits[j].Txn })
	if m.maxPerTable > 0 && len(commits) > m.maxPerTable {
		commits = commits[len(commits)-m.maxPerTable:]
	}
	m.commits[table] = commits
	return nil
}

func (m *MemoryMetaStore) ListCommits(_ context.Context, table string, limit int) ([]Commit, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	commits := m.commits[table]
	out := make([]Commit, 0, min(limit, len(commits)))
	for i := len(commits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, commits[i])
	}
	return out, nil
}

func (m *MemoryMetaStore) Shutdown(context.Context) error {
	return nil
}
