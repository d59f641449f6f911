package parquet_accumulator

import (
	"testing"

	"github.com/danthegoodman1/icetx/utils"
)

func TestGetSchemaString(t *testing.T) {
	a := NewParquetAccumulator()
	a.WriteRow(map[string]any{
		"dir": "2024-01-02",
	})
	a.WriteRow(map[string]any{
		"rowCount": uint64(12),
		"skipped":  nil,
	})
	a.WriteRow(map[string]any{
		"symbolCounts": []any{uint32(4)},
		"active":       true,
	})
	a.WriteRow(map[string]any{
		"dir":      utils.Ptr("ignored, already known"),
		"rowCount": 1.5,
		"ratio":    0.25,
	})

	schemaString, err := a.GetSchemaString()
	if err != nil {
		t.Fatal(err)
	}
	expected := `{"Tag":"name=parquet_go_root, repetitiontype=REQUIRED","Fields":[` +
		`{"Tag":"type=BOOLEAN, name=Active, repetitiontype=OPTIONAL"},` +
		`{"Tag":"type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN, name=Dir, repetitiontype=OPTIONAL"},` +
		`{"Tag":"type=DOUBLE, name=Ratio, repetitiontype=OPTIONAL"},` +
		`{"Tag":"type=INT64, name=RowCount, repetitiontype=OPTIONAL"},` +
		`{"Tag":"type=LIST, name=SymbolCounts, repetitiontype=OPTIONAL","Fields":[{"Tag":"type=INT64, name=Element, repetitiontype=OPTIONAL"}]}` +
		`]}`
	if schemaString != expected {
		t.Log(schemaString)
		t.Fatal("got incorrect schema string")
	}
}

func TestColumns(t *testing.T) {
	a := NewParquetAccumulator()
	a.WriteRow(map[string]any{
		"b":     "x",
		"a":     int64(1),
		"empty": []any{nil},
	})

	names := a.GetColumnNames()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("unexpected columns %v", names)
	}
	types := a.GetColumnTypes()
	if types[0] != "int" || types[1] != "string" {
		t.Fatalf("unexpected types %v", types)
	}
}
