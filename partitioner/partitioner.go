package partitioner

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/danthegoodman1/icetx/part"
)

type (
	// PartitionBy is the time granularity a table is split by.
	PartitionBy string

	PartitionFunc struct {
		// Floor truncates t to the start of its bucket.
		Floor func(t time.Time) time.Time
		// Format renders a bucket start as a directory name.
		Format func(t time.Time) string
	}
)

const (
	NONE  PartitionBy = "NONE"
	HOUR  PartitionBy = "HOUR"
	DAY   PartitionBy = "DAY"
	WEEK  PartitionBy = "WEEK"
	MONTH PartitionBy = "MONTH"
	YEAR  PartitionBy = "YEAR"

	// NoneTimestamp keys the single partition of an unpartitioned table.
	NoneTimestamp int64 = math.MinInt64
	noneDirName         = "default"
)

var (
	Functions = map[PartitionBy]PartitionFunc{
		HOUR: {
			Floor:  func(t time.Time) time.Time { return t.Truncate(time.Hour) },
			Format: layout("2006-01-02T15"),
		},
		DAY: {
			Floor:  floorDay,
			Format: layout("2006-01-02"),
		},
		WEEK: {
			Floor: func(t time.Time) time.Time {
				d := floorDay(t)
				// ISO weeks start on Monday
				return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
			},
			Format: func(t time.Time) string {
				y, w := t.ISOWeek()
				return fmt.Sprintf("%04d-W%02d", y, w)
			},
		},
		MONTH: {
			Floor: func(t time.Time) time.Time {
				return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			},
			Format: layout("2006-01"),
		},
		YEAR: {
			Floor: func(t time.Time) time.Time {
				return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
			},
			Format: layout("2006"),
		},
	}

	ErrFuncNotFound = errors.New("unknown partition granularity")
)

func floorDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func layout(l string) func(t time.Time) string {
	return func(t time.Time) string { return t.Format(l) }
}

// Parse accepts a granularity name in any case.
func Parse(s string) (PartitionBy, error) {
	by := PartitionBy(strings.ToUpper(strings.TrimSpace(s)))
	if by == NONE {
		return by, nil
	}
	if _, ok := Functions[by]; !ok {
		return "", fmt.Errorf("%q: %w", s, ErrFuncNotFound)
	}
	return by, nil
}

// Floor returns the partition key, in epoch microseconds, of the bucket
// holding tsMicros.
func Floor(by PartitionBy, tsMicros int64) (int64, error) {
	if by == NONE {
		return NoneTimestamp, nil
	}
	f, ok := Functions[by]
	if !ok {
		return 0, fmt.Errorf("%q: %w", by, ErrFuncNotFound)
	}
	return f.Floor(time.UnixMicro(tsMicros).UTC()).UnixMicro(), nil
}

// Format renders the bucket starting at tsMicros as a directory name.
func Format(by PartitionBy, tsMicros int64) (string, error) {
	if by == NONE {
		return noneDirName, nil
	}
	f, ok := Functions[by]
	if !ok {
		return "", fmt.Errorf("%q: %w", by, ErrFuncNotFound)
	}
	return f.Format(time.UnixMicro(tsMicros).UTC()), nil
}

// DirName is the on-disk directory of p. Rewrites of a partition get a
// ".<nameVersion>" suffix so the previous directory stays readable by open
// snapshots.
func DirName(by PartitionBy, p part.Partition) (string, error) {
	name, err := Format(by, p.Timestamp)
	if err != nil {
		return "", err
	}
	if p.NameVersion > 0 {
		name += "." + strconv.FormatUint(uint64(p.NameVersion), 10)
	}
	return name, nil
}
