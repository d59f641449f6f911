package part

import (
	"errors"
	"fmt"
	"sort"
)

type (
	// Partition describes one time bucket of a table.
	Partition struct {
		// Timestamp is the bucket start in microseconds, the partition key.
		Timestamp int64
		RowCount  uint64
		// NameVersion is bumped every time the partition directory is replaced
		// on disk, 0 on first creation.
		NameVersion uint32
		SizeBytes   uint64
	}

	// Directory is the ordered set of partitions of a table. Timestamps are
	// strictly ascending; the last entry is the active partition.
	Directory []Partition
)

var (
	ErrOutOfOrderPartition = errors.New("partition timestamp is not after the active partition")
	ErrPartitionNotFound   = errors.New("partition not found")
	ErrDuplicatePartition  = errors.New("duplicate partition timestamp")
	ErrUnorderedPartitions = errors.New("partitions are not in ascending timestamp order")
)

// Append adds p as the new active partition. It only accepts timestamps after
// the current last entry; out of order data goes through Replace.
func (d *Directory) Append(p Partition) error {
	if n := len(*d); n > 0 && p.Timestamp <= (*d)[n-1].Timestamp {
		return fmt.Errorf("append %d after %d: %w", p.Timestamp, (*d)[n-1].Timestamp, ErrOutOfOrderPartition)
	}
	*d = append(*d, p)
	return nil
}

// FindPartitionFor returns the index of the partition whose bucket holds ts,
// that is the last partition with Timestamp <= ts. It returns -1 when ts is
// before the first partition. exact is true when ts is a partition key.
func (d Directory) FindPartitionFor(ts int64) (index int, exact bool) {
	i := sort.Search(len(d), func(i int) bool {
		return d[i].Timestamp > ts
	})
	if i == 0 {
		return -1, false
	}
	return i - 1, d[i-1].Timestamp == ts
}

// IndexOf returns the index of the partition keyed exactly by ts, or -1.
func (d Directory) IndexOf(ts int64) int {
	i, exact := d.FindPartitionFor(ts)
	if !exact {
		return -1
	}
	return i
}

// Replace swaps the descriptor keyed by ts for a rewritten one with a bumped
// name version. Position in the directory never changes.
func (d Directory) Replace(ts int64, rowCount, sizeBytes uint64) (Partition, error) {
	i := d.IndexOf(ts)
	if i < 0 {
		return Partition{}, fmt.Errorf("replace %d: %w", ts, ErrPartitionNotFound)
	}
	d[i] = Partition{
		Timestamp:   ts,
		RowCount:    rowCount,
		NameVersion: d[i].NameVersion + 1,
		SizeBytes:   sizeBytes,
	}
	return d[i], nil
}

func (d Directory) Len() int {
	return len(d)
}

// Last returns the active partition, ok is false when the directory is empty.
func (d Directory) Last() (Partition, bool) {
	if len(d) == 0 {
		return Partition{}, false
	}
	return d[len(d)-1], true
}

// FixedRowCount sums the rows of every partition but the active one.
func (d Directory) FixedRowCount() uint64 {
	var sum uint64
	for i := 0; i < len(d)-1; i++ {
		sum += d[i].RowCount
	}
	return sum
}

// TransientRowCount is the row count of the active partition.
func (d Directory) TransientRowCount() uint64 {
	last, ok := d.Last()
	if !ok {
		return 0
	}
	return last.RowCount
}

func (d Directory) TotalRowCount() uint64 {
	return d.FixedRowCount() + d.TransientRowCount()
}

func (d Directory) Clone() Directory {
	if d == nil {
		return nil
	}
	c := make(Directory, len(d))
	copy(c, d)
	return c
}

// Validate checks strict ascending order of partition timestamps.
func (d Directory) Validate() error {
	for i := 1; i < len(d); i++ {
		if d[i].Timestamp == d[i-1].Timestamp {
			return fmt.Errorf("partition %d at %d: %w", i, d[i].Timestamp, ErrDuplicatePartition)
		}
		if d[i].Timestamp < d[i-1].Timestamp {
			return fmt.Errorf("partition %d at %d before %d: %w", i, d[i].Timestamp, d[i-1].Timestamp, ErrUnorderedPartitions)
		}
	}
	return nil
}

// Range returns the partitions that can hold rows in [lo, hi], used for
// pruning scans. Both bounds are inclusive microsecond timestamps. The result
// is a copy.
func (d Directory) Range(lo, hi int64) Directory {
	if hi < lo || len(d) == 0 {
		return nil
	}
	start, _ := d.FindPartitionFor(lo)
	if start < 0 {
		start = 0
	}
	end := sort.Search(len(d), func(i int) bool {
		return d[i].Timestamp > hi
	})
	if end <= start {
		return nil
	}
	return d[start:end].Clone()
}
