package txfile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/danthegoodman1/icetx/part"
)

type (
	// Transcript is the human readable form of a TxState used by the offline
	// tooling. Counts are repeated next to their arrays so that a hand edited
	// transcript that drops an entry is caught on the way back in.
	Transcript struct {
		Txn               uint64                `json:"txn"`
		StructureVersion  uint64                `json:"structureVersion"`
		DataVersion       uint64                `json:"dataVersion"`
		FixedRowCount     uint64                `json:"fixedRowCount"`
		TransientRowCount uint64                `json:"transientRowCount"`
		MinTimestamp      int64                 `json:"minTimestamp"`
		MaxTimestamp      int64                 `json:"maxTimestamp"`
		PartitionCount    *int                  `json:"partitionCount,omitempty"`
		SymbolColumnCount *int                  `json:"symbolColumnCount,omitempty"`
		SymbolCounts      []uint32              `json:"symbolCounts"`
		Partitions        []TranscriptPartition `json:"partitions"`
	}

	TranscriptPartition struct {
		Timestamp   int64  `json:"timestamp"`
		RowCount    uint64 `json:"rowCount"`
		NameVersion uint32 `json:"nameVersion"`
		SizeBytes   uint64 `json:"sizeBytes"`
	}
)

func NewTranscript(s *TxState) Transcript {
	pc, sc := len(s.Partitions), len(s.SymbolCounts)
	t := Transcript{
		Txn:               s.Txn,
		StructureVersion:  s.StructureVersion,
		DataVersion:       s.DataVersion,
		FixedRowCount:     s.FixedRowCount,
		TransientRowCount: s.TransientRowCount,
		MinTimestamp:      s.MinTimestamp,
		MaxTimestamp:      s.MaxTimestamp,
		PartitionCount:    &pc,
		SymbolColumnCount: &sc,
		SymbolCounts:      make([]uint32, sc),
		Partitions:        make([]TranscriptPartition, pc),
	}
	copy(t.SymbolCounts, s.SymbolCounts)
	for i, p := range s.Partitions {
		t.Partitions[i] = TranscriptPartition(p)
	}
	return t
}

// State converts a transcript back to a TxState, applying the same ordering
// and size checks Decode applies to binary input.
func (t Transcript) State() (*TxState, error) {
	if t.PartitionCount != nil && *t.PartitionCount != len(t.Partitions) {
		return nil, ErrSizeMismatch.withDetail("partitionCount %d but %d partitions listed", *t.PartitionCount, len(t.Partitions))
	}
	if t.SymbolColumnCount != nil && *t.SymbolColumnCount != len(t.SymbolCounts) {
		return nil, ErrSizeMismatch.withDetail("symbolColumnCount %d but %d symbol counts listed", *t.SymbolColumnCount, len(t.SymbolCounts))
	}

	s := &TxState{
		Txn:               t.Txn,
		StructureVersion:  t.StructureVersion,
		DataVersion:       t.DataVersion,
		FixedRowCount:     t.FixedRowCount,
		TransientRowCount: t.TransientRowCount,
		MinTimestamp:      t.MinTimestamp,
		MaxTimestamp:      t.MaxTimestamp,
	}
	if len(t.SymbolCounts) > 0 {
		s.SymbolCounts = make(SymbolCounts, len(t.SymbolCounts))
		copy(s.SymbolCounts, t.SymbolCounts)
	}
	if len(t.Partitions) > 0 {
		s.Partitions = make(part.Directory, len(t.Partitions))
		for i, p := range t.Partitions {
			s.Partitions[i] = part.Partition(p)
			if i > 0 && p.Timestamp <= t.Partitions[i-1].Timestamp {
				return nil, ErrOrderingViolation.withDetail("partition %d at %d follows %d", i, p.Timestamp, t.Partitions[i-1].Timestamp)
			}
		}
	}
	return s, nil
}

// EncodeHuman renders s as indented JSON.
func EncodeHuman(s *TxState) ([]byte, error) {
	b, err := json.MarshalIndent(NewTranscript(s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error in json.MarshalIndent: %w", err)
	}
	return append(b, '\n'), nil
}

// DecodeHuman parses a transcript produced by EncodeHuman, or edited by hand.
// Unknown fields are rejected so that a typo does not silently zero a counter.
func DecodeHuman(b []byte) (*TxState, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var t Transcript
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("error in json.Decode: %w", err)
	}
	return t.State()
}
