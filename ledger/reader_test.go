package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotOfEmptyTable(t *testing.T) {
	path := newTablePath(t)
	openWriter(t, path, Options{})
	r := openReader(t, path)

	s, err := r.Snapshot()
	require.NoError(t, err)
	require.EqualValues(t, 0, s.Txn)
	require.True(t, s.Empty())
	require.NoError(t, s.Validate())

	changed, err := r.Reload()
	require.NoError(t, err)
	require.False(t, changed)
}

func TestReaderOfMissingTable(t *testing.T) {
	_, err := OpenReader(context.Background(), newTablePath(t), Options{})
	require.Error(t, err)
}

func TestSnapshotIsACopy(t *testing.T) {
	path := newTablePath(t)
	w := openWriter(t, path, Options{})
	r := openReader(t, path)
	commitRows(t, w, 1000, 3)

	s, err := r.Snapshot()
	require.NoError(t, err)
	s.Partitions[0].RowCount = 100

	s, err = r.Snapshot()
	require.NoError(t, err)
	require.EqualValues(t, 3, s.Partitions[0].RowCount)
}

func TestReload(t *testing.T) {
	path := newTablePath(t)
	w := openWriter(t, path, Options{})
	r := openReader(t, path)

	commitRows(t, w, 1000, 1)
	changed, err := r.Reload()
	require.NoError(t, err)
	require.True(t, changed)

	_, err = r.Snapshot()
	require.NoError(t, err)
	changed, err = r.Reload()
	require.NoError(t, err)
	require.False(t, changed)

	commitRows(t, w, 1000, 1)
	changed, err = r.Reload()
	require.NoError(t, err)
	require.True(t, changed)
	require.EqualValues(t, 1, r.Txn())
}

func TestClosedReader(t *testing.T) {
	path := newTablePath(t)
	w := openWriter(t, path, Options{})
	commitRows(t, w, 1000, 1)

	r, err := OpenReader(context.Background(), path, Options{})
	require.NoError(t, err)
	_, err = r.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 1, w.ret.referenced(1))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.Equal(t, 0, w.ret.referenced(1))

	_, err = r.Snapshot()
	require.ErrorIs(t, err, ErrReaderClosed)
	_, err = r.Reload()
	require.ErrorIs(t, err, ErrReaderClosed)
}

func TestConcurrentReadersNeverGoBack(t *testing.T) {
	const commits = 60
	path := newTablePath(t)
	w := openWriter(t, path, Options{})

	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
	)
	for i := 0; i < 4; i++ {
		r := openReader(t, path)
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-done:
					return
				default:
				}
				s, err := r.Snapshot()
				if !assert.NoError(t, err) {
					return
				}
				assert.GreaterOrEqual(t, s.Txn, last)
				assert.NoError(t, s.Validate())
				// every commit adds one row
				assert.Equal(t, s.Txn, s.RowCount())
				last = s.Txn
			}
		}()
	}

	for i := 0; i < commits; i++ {
		ts := int64(1000 * (1 + i/10))
		commitRows(t, w, ts, 1)
	}
	close(done)
	wg.Wait()

	s, err := openReader(t, path).Snapshot()
	require.NoError(t, err)
	require.True(t, s.Equal(w.Current()))
	require.EqualValues(t, commits, s.Txn)
}
