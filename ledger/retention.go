package ledger

import (
	"sync"

	"github.com/danthegoodman1/icetx/metrics"
)

// retention counts reader references per generation of one table. Every
// writer and reader in the process that opens the same table directory shares
// one instance.
type retention struct {
	mu         sync.Mutex
	refs       map[uint64]int
	reclaiming map[uint64]struct{}
}

var retentions sync.Map // table path -> *retention

func retentionFor(tablePath string) *retention {
	r, _ := retentions.LoadOrStore(tablePath, &retention{
		refs:       make(map[uint64]int),
		reclaiming: make(map[uint64]struct{}),
	})
	return r.(*retention)
}

// acquire pins txn. It fails if the writer has already started reclaiming it,
// in which case the caller must re-read the pointer.
func (r *retention) acquire(txn uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reclaiming[txn]; ok {
		return false
	}
	r.refs[txn]++
	metrics.OpenReaders.Inc()
	return true
}

func (r *retention) release(txn uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.refs[txn]
	if !ok {
		return
	}
	if n <= 1 {
		delete(r.refs, txn)
	} else {
		r.refs[txn] = n - 1
	}
	metrics.OpenReaders.Dec()
}

func (r *retention) referenced(txn uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[txn]
}

// beginReclaim marks every unreferenced txn in candidates as reclaiming and
// returns them. Readers can no longer pin those until endReclaim.
func (r *retention) beginReclaim(candidates []uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint64
	for _, txn := range candidates {
		if r.refs[txn] > 0 {
			continue
		}
		r.reclaiming[txn] = struct{}{}
		out = append(out, txn)
	}
	return out
}

func (r *retention) endReclaim(txns []uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range txns {
		delete(r.reclaiming, txn)
	}
}
