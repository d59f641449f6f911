package part

import (
	"errors"
	"testing"
)

func TestAppendKeepsOrder(t *testing.T) {
	var d Directory
	for _, ts := range []int64{1000, 2000, 3000} {
		if err := d.Append(Partition{Timestamp: ts, RowCount: 1}); err != nil {
			t.Fatal(err)
		}
	}

	for _, ts := range []int64{3000, 2500, 0} {
		err := d.Append(Partition{Timestamp: ts})
		if !errors.Is(err, ErrOutOfOrderPartition) {
			t.Fatalf("append %d: expected ErrOutOfOrderPartition, got %v", ts, err)
		}
	}

	if d.Len() != 3 {
		t.Fatalf("rejected appends changed the directory: %+v", d)
	}
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestFindPartitionFor(t *testing.T) {
	d := Directory{
		{Timestamp: 1000},
		{Timestamp: 2000},
		{Timestamp: 4000},
	}

	cases := []struct {
		ts    int64
		index int
		exact bool
	}{
		{ts: 999, index: -1},
		{ts: 1000, index: 0, exact: true},
		{ts: 1999, index: 0},
		{ts: 2000, index: 1, exact: true},
		{ts: 3999, index: 1},
		{ts: 4000, index: 2, exact: true},
		{ts: 1 << 50, index: 2},
	}
	for _, c := range cases {
		i, exact := d.FindPartitionFor(c.ts)
		if i != c.index || exact != c.exact {
			t.Fatalf("FindPartitionFor(%d) = %d, %v; want %d, %v", c.ts, i, exact, c.index, c.exact)
		}
	}

	var empty Directory
	if i, _ := empty.FindPartitionFor(10); i != -1 {
		t.Fatalf("empty directory returned %d", i)
	}
}

func TestReplaceBumpsNameVersion(t *testing.T) {
	d := Directory{
		{Timestamp: 1000, RowCount: 5},
		{Timestamp: 2000, RowCount: 2},
	}

	p, err := d.Replace(1000, 7, 512)
	if err != nil {
		t.Fatal(err)
	}
	if p.NameVersion != 1 || d[0].RowCount != 7 || d[0].SizeBytes != 512 {
		t.Fatalf("unexpected replacement: %+v", d[0])
	}
	if _, err = d.Replace(1000, 8, 0); err != nil {
		t.Fatal(err)
	}
	if d[0].NameVersion != 2 {
		t.Fatalf("expected name version 2, got %d", d[0].NameVersion)
	}

	if _, err = d.Replace(1500, 1, 0); !errors.Is(err, ErrPartitionNotFound) {
		t.Fatalf("expected ErrPartitionNotFound, got %v", err)
	}
}

func TestRowCounts(t *testing.T) {
	d := Directory{
		{Timestamp: 1000, RowCount: 9},
		{Timestamp: 2000, RowCount: 4},
		{Timestamp: 3000, RowCount: 3},
	}
	if d.FixedRowCount() != 13 {
		t.Fatalf("fixed row count %d", d.FixedRowCount())
	}
	if d.TransientRowCount() != 3 {
		t.Fatalf("transient row count %d", d.TransientRowCount())
	}
	if d.TotalRowCount() != 16 {
		t.Fatalf("total row count %d", d.TotalRowCount())
	}
}

func TestValidate(t *testing.T) {
	if err := (Directory{{Timestamp: 2}, {Timestamp: 2}}).Validate(); !errors.Is(err, ErrDuplicatePartition) {
		t.Fatalf("expected ErrDuplicatePartition, got %v", err)
	}
	if err := (Directory{{Timestamp: 2}, {Timestamp: 1}}).Validate(); !errors.Is(err, ErrUnorderedPartitions) {
		t.Fatalf("expected ErrUnorderedPartitions, got %v", err)
	}
}

func TestRange(t *testing.T) {
	d := Directory{
		{Timestamp: 1000},
		{Timestamp: 2000},
		{Timestamp: 3000},
	}
	r := d.Range(1500, 2500)
	if len(r) != 2 || r[0].Timestamp != 1000 || r[1].Timestamp != 2000 {
		t.Fatalf("unexpected range %+v", r)
	}
	if r := d.Range(0, 999); len(r) != 0 {
		t.Fatalf("expected nothing before the first partition, got %+v", r)
	}
	if r := d.Range(5000, 6000); len(r) != 1 || r[0].Timestamp != 3000 {
		t.Fatalf("expected the active partition, got %+v", r)
	}

	r[0].RowCount = 99
	r = append(r, Partition{Timestamp: 2500})
	if d[0].RowCount != 0 || d[2].Timestamp != 3000 {
		t.Fatalf("range writes reached the directory: %+v", d)
	}
}
