package parquet_accumulator

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

type (
	// ParquetSchemaAccumulator infers a parquet-go JSON schema from flat rows.
	// The first non nil value seen for a column decides its type.
	ParquetSchemaAccumulator struct {
		fields map[string]*ParquetSchema
	}

	ParquetSchema struct {
		TagStructs SchemaTag
		Fields     []*ParquetSchema
	}

	ParquetJSONSchema struct {
		Tag    string               `json:",omitempty"`
		Fields []*ParquetJSONSchema `json:",omitempty"`
	}

	SchemaTag struct {
		Name           string
		Type           string
		ConvertedType  string
		RepetitionType RepetitionType
		Encoding       string
	}

	RepetitionType string
)

var (
	Optional RepetitionType = "OPTIONAL"
	Required RepetitionType = "REQUIRED"
)

func NewParquetAccumulator() ParquetSchemaAccumulator {
	return ParquetSchemaAccumulator{
		fields: make(map[string]*ParquetSchema),
	}
}

func (pa *ParquetSchemaAccumulator) WriteRow(row map[string]any) {
	for key, val := range row {
		if _, exists := pa.fields[key]; exists {
			continue
		}
		if s := getParquetSchema(key, val); s != nil {
			pa.fields[key] = s
		}
	}
}

// getParquetSchema returns nil for values whose type cannot be told yet.
func getParquetSchema(key string, item any) *ParquetSchema {
	if item == nil || key == "" {
		return nil
	}
	schema := &ParquetSchema{
		TagStructs: SchemaTag{
			// parquet-go matches JSON keys against the exported form
			Name:           strings.ToUpper(key[:1]) + key[1:],
			RepetitionType: Optional,
		},
	}

	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if elem := getParquetSchema("Element", v.Index(i).Interface()); elem != nil {
				schema.TagStructs.Type = "LIST"
				schema.Fields = []*ParquetSchema{elem}
				return schema
			}
		}
		return nil
	case reflect.String:
		schema.TagStructs.Type = "BYTE_ARRAY"
		schema.TagStructs.ConvertedType = "UTF8"
		schema.TagStructs.Encoding = "PLAIN"
	case reflect.Bool:
		schema.TagStructs.Type = "BOOLEAN"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		schema.TagStructs.Type = "INT64"
	default:
		// decoded JSON numbers land here too
		schema.TagStructs.Type = "DOUBLE"
	}
	return schema
}

func (pa *ParquetSchemaAccumulator) sortedFields() []*ParquetSchema {
	keys := make([]string, 0, len(pa.fields))
	for k := range pa.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*ParquetSchema, len(keys))
	for i, k := range keys {
		out[i] = pa.fields[k]
	}
	return out
}

// GetColumnNames returns the column names in schema order.
func (pa *ParquetSchemaAccumulator) GetColumnNames() []string {
	var cols []string
	for _, field := range pa.sortedFields() {
		cols = append(cols, field.TagStructs.Name)
	}
	return cols
}

func (ps *ParquetSchema) GetType() string {
	switch ps.TagStructs.Type {
	case "BYTE_ARRAY":
		return "string"
	case "INT64":
		return "int"
	case "BOOLEAN":
		return "bool"
	case "LIST":
		return fmt.Sprintf("list(%s)", ps.Fields[0].GetType())
	default:
		return "float"
	}
}

// GetColumnTypes returns the types of the columns in schema order.
func (pa *ParquetSchemaAccumulator) GetColumnTypes() []string {
	var cols []string
	for _, field := range pa.sortedFields() {
		cols = append(cols, field.GetType())
	}
	return cols
}

func (ps *ParquetSchema) ToParquetJSONSchema() *ParquetJSONSchema {
	tags := []string{"type=" + ps.TagStructs.Type}
	if ps.TagStructs.ConvertedType != "" {
		tags = append(tags, "convertedtype="+ps.TagStructs.ConvertedType)
	}
	if ps.TagStructs.Encoding != "" {
		tags = append(tags, "encoding="+ps.TagStructs.Encoding)
	}
	tags = append(tags, "name="+ps.TagStructs.Name)
	if ps.TagStructs.RepetitionType != "" {
		tags = append(tags, "repetitiontype="+string(ps.TagStructs.RepetitionType))
	}
	out := &ParquetJSONSchema{Tag: strings.Join(tags, ", ")}
	for _, field := range ps.Fields {
		out.Fields = append(out.Fields, field.ToParquetJSONSchema())
	}
	return out
}

// GetSchemaString returns the schema in the JSON form parquet-go's JSON
// writer takes.
func (pa *ParquetSchemaAccumulator) GetSchemaString() (string, error) {
	pjs := ParquetJSONSchema{
		Tag: "name=parquet_go_root, repetitiontype=REQUIRED",
	}
	for _, field := range pa.sortedFields() {
		pjs.Fields = append(pjs.Fields, field.ToParquetJSONSchema())
	}

	b, err := json.Marshal(pjs)
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}
