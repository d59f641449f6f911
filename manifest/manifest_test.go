package manifest

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/danthegoodman1/icetx/part"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func sampleState() *txfile.TxState {
	return &txfile.TxState{
		Txn:               7,
		DataVersion:       1,
		FixedRowCount:     9,
		TransientRowCount: 2,
		MinTimestamp:      1704153600000000,
		MaxTimestamp:      1704240000000000,
		Partitions: part.Directory{
			{Timestamp: 1704153600000000, RowCount: 9, NameVersion: 1, SizeBytes: 4096},
			{Timestamp: 1704240000000000, RowCount: 2},
		},
	}
}

func TestRows(t *testing.T) {
	rows, err := Rows("trades", partitioner.DAY, sampleState())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2024-01-02.1", rows[0]["dir"])
	require.Equal(t, "2024-01-03", rows[1]["dir"])
	require.Equal(t, false, rows[0]["active"])
	require.Equal(t, true, rows[1]["active"])

	_, err = Rows("trades", partitioner.DAY, txfile.NewEmptyState())
	require.ErrorIs(t, err, ErrEmptyManifest)
}

func TestWriteFile(t *testing.T) {
	rows, err := Rows("trades", partitioner.DAY, sampleState())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "manifest.parquet")
	require.NoError(t, WriteFile(path, rows))

	schema, err := Schema(rows)
	require.NoError(t, err)
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, schema, 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 2, pr.GetNumRows())
}

func TestWrite(t *testing.T) {
	rows, err := Rows("trades", partitioner.DAY, sampleState())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PAR1")))
}
