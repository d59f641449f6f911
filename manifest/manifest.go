package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danthegoodman1/gojsonutils"
	"github.com/danthegoodman1/icetx/parquet_accumulator"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// A manifest is the partition directory of one txn as a parquet file, one row
// per partition, so that archived ledgers can be queried by engines that read
// parquet.

var (
	ErrEmptyManifest = errors.New("table has no partitions")
	ErrNotFlatMap    = errors.New("not a flat map")
)

// Rows renders the partitions of s as flat rows.
func Rows(table string, by partitioner.PartitionBy, s *txfile.TxState) ([]map[string]any, error) {
	if len(s.Partitions) == 0 {
		return nil, ErrEmptyManifest
	}
	rows := make([]map[string]any, 0, len(s.Partitions))
	for i, p := range s.Partitions {
		dir, err := partitioner.DirName(by, p)
		if err != nil {
			return nil, err
		}
		flat, err := gojsonutils.Flatten(map[string]any{
			"table":            table,
			"txn":              s.Txn,
			"structureVersion": s.StructureVersion,
			"dataVersion":      s.DataVersion,
			"timestamp":        p.Timestamp,
			"dir":              dir,
			"rowCount":         p.RowCount,
			"nameVersion":      p.NameVersion,
			"sizeBytes":        p.SizeBytes,
			"active":           i == len(s.Partitions)-1,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("error flattening manifest row: %w", err)
		}
		row, ok := flat.(map[string]any)
		if !ok {
			return nil, ErrNotFlatMap
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Schema returns the parquet-go JSON schema for rows.
func Schema(rows []map[string]any) (string, error) {
	acc := parquet_accumulator.NewParquetAccumulator()
	for _, row := range rows {
		acc.WriteRow(row)
	}
	return acc.GetSchemaString()
}

type jsonWriter interface {
	Write(src interface{}) error
	WriteStop() error
}

func writeRows(pw jsonWriter, rows []map[string]any) error {
	for _, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("error in json.Marshal of manifest row: %w", err)
		}
		if err = pw.Write(string(b)); err != nil {
			return fmt.Errorf("error in pw.Write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("error in pw.WriteStop: %w", err)
	}
	return nil
}

// Write encodes rows as parquet into w.
func Write(w io.Writer, rows []map[string]any) error {
	schema, err := Schema(rows)
	if err != nil {
		return err
	}
	pw, err := writer.NewJSONWriterFromWriter(schema, w, 4)
	if err != nil {
		return fmt.Errorf("error creating parquet writer: %w", err)
	}
	return writeRows(pw, rows)
}

// WriteFile encodes rows as parquet into a local file.
func WriteFile(path string, rows []map[string]any) error {
	schema, err := Schema(rows)
	if err != nil {
		return err
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("error creating parquet writer: %w", err)
	}
	if err = writeRows(pw, rows); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}
