package txfile

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/danthegoodman1/icetx/part"
)

// Binary layout, all integers little endian:
//
//	offset  size  field
//	0       4     magic "ITX1"
//	4       4     flags (reserved, 0)
//	8       8     txn
//	16      8     structure version
//	24      8     data version
//	32      8     fixed row count
//	40      8     transient row count
//	48      8     min timestamp
//	56      8     max timestamp
//	64      4     partition count
//	68      4     symbol column count
//	72      8     header checksum, xxhash64 of bytes [0, 72)
//	80      4*S   symbol counts
//	...     32*P  partitions: timestamp, row count, name version, reserved, size
//	end-8   8     checksum, xxhash64 of everything before it
const (
	Magic = "ITX1"

	offMagic             = 0
	offFlags             = 4
	offTxn               = 8
	offStructureVersion  = 16
	offDataVersion       = 24
	offFixedRowCount     = 32
	offTransientRowCount = 40
	offMinTimestamp      = 48
	offMaxTimestamp      = 56
	offPartitionCount    = 64
	offSymbolCount       = 68
	offHeaderChecksum    = 72

	headerFieldsSize = 72
	HeaderSize       = 80
	ChecksumSize     = 8
	SymbolEntrySize  = 4

	PartitionEntrySize = 32
	offPartTimestamp   = 0
	offPartRowCount    = 8
	offPartNameVersion = 16
	offPartSizeBytes   = 24

	MinEncodedSize      = HeaderSize + ChecksumSize
	maxDeclaredArrayLen = 1 << 24
)

var le = binary.LittleEndian

// EncodedSize is the length of the binary form of a state with the given
// array sizes.
func EncodedSize(partitions, symbols int) int {
	return HeaderSize + symbols*SymbolEntrySize + partitions*PartitionEntrySize + ChecksumSize
}

// Encode serializes s. It does not validate s; the writer does that before
// publishing.
func Encode(s *TxState) []byte {
	buf := make([]byte, EncodedSize(len(s.Partitions), len(s.SymbolCounts)))

	copy(buf[offMagic:], Magic)
	le.PutUint32(buf[offFlags:], 0)
	le.PutUint64(buf[offTxn:], s.Txn)
	le.PutUint64(buf[offStructureVersion:], s.StructureVersion)
	le.PutUint64(buf[offDataVersion:], s.DataVersion)
	le.PutUint64(buf[offFixedRowCount:], s.FixedRowCount)
	le.PutUint64(buf[offTransientRowCount:], s.TransientRowCount)
	le.PutUint64(buf[offMinTimestamp:], uint64(s.MinTimestamp))
	le.PutUint64(buf[offMaxTimestamp:], uint64(s.MaxTimestamp))
	le.PutUint32(buf[offPartitionCount:], uint32(len(s.Partitions)))
	le.PutUint32(buf[offSymbolCount:], uint32(len(s.SymbolCounts)))
	le.PutUint64(buf[offHeaderChecksum:], xxhash.Sum64(buf[:headerFieldsSize]))

	off := HeaderSize
	for _, c := range s.SymbolCounts {
		le.PutUint32(buf[off:], c)
		off += SymbolEntrySize
	}
	for _, p := range s.Partitions {
		le.PutUint64(buf[off+offPartTimestamp:], uint64(p.Timestamp))
		le.PutUint64(buf[off+offPartRowCount:], p.RowCount)
		le.PutUint32(buf[off+offPartNameVersion:], p.NameVersion)
		le.PutUint64(buf[off+offPartSizeBytes:], p.SizeBytes)
		off += PartitionEntrySize
	}

	le.PutUint64(buf[off:], xxhash.Sum64(buf[:off]))
	return buf
}

// Decode parses and verifies a binary state. The header is verified by its own
// checksum before the declared array sizes are trusted, so a damaged count
// surfaces as a checksum mismatch and a short buffer as truncation.
func Decode(buf []byte) (*TxState, error) {
	if len(buf) < MinEncodedSize {
		return nil, ErrTruncated.withDetail("%d bytes, need at least %d", len(buf), MinEncodedSize)
	}
	if got, want := le.Uint64(buf[offHeaderChecksum:]), xxhash.Sum64(buf[:headerFieldsSize]); got != want {
		return nil, ErrChecksumMismatch.withDetail("header checksum %016x, computed %016x", got, want)
	}

	partitionCount := le.Uint32(buf[offPartitionCount:])
	symbolCount := le.Uint32(buf[offSymbolCount:])
	if partitionCount > maxDeclaredArrayLen || symbolCount > maxDeclaredArrayLen {
		return nil, ErrSizeMismatch.withDetail("declared %d partitions and %d symbol columns", partitionCount, symbolCount)
	}
	declared := EncodedSize(int(partitionCount), int(symbolCount))
	if len(buf) < declared {
		return nil, ErrTruncated.withDetail("%d bytes, header declares %d", len(buf), declared)
	}
	if len(buf) > declared {
		return nil, ErrSizeMismatch.withDetail("%d bytes, header declares %d partitions and %d symbol columns (%d bytes)", len(buf), partitionCount, symbolCount, declared)
	}

	body := declared - ChecksumSize
	if got, want := le.Uint64(buf[body:]), xxhash.Sum64(buf[:body]); got != want {
		return nil, ErrChecksumMismatch.withDetail("checksum %016x, computed %016x", got, want)
	}
	if string(buf[offMagic:offMagic+len(Magic)]) != Magic {
		return nil, ErrUnknownFormat.withDetail("magic %q", buf[offMagic:offMagic+len(Magic)])
	}

	s := &TxState{
		Txn:               le.Uint64(buf[offTxn:]),
		StructureVersion:  le.Uint64(buf[offStructureVersion:]),
		DataVersion:       le.Uint64(buf[offDataVersion:]),
		FixedRowCount:     le.Uint64(buf[offFixedRowCount:]),
		TransientRowCount: le.Uint64(buf[offTransientRowCount:]),
		MinTimestamp:      int64(le.Uint64(buf[offMinTimestamp:])),
		MaxTimestamp:      int64(le.Uint64(buf[offMaxTimestamp:])),
	}

	off := HeaderSize
	if symbolCount > 0 {
		s.SymbolCounts = make(SymbolCounts, symbolCount)
		for i := range s.SymbolCounts {
			s.SymbolCounts[i] = le.Uint32(buf[off:])
			off += SymbolEntrySize
		}
	}
	if partitionCount > 0 {
		s.Partitions = make(part.Directory, partitionCount)
		for i := range s.Partitions {
			s.Partitions[i] = part.Partition{
				Timestamp:   int64(le.Uint64(buf[off+offPartTimestamp:])),
				RowCount:    le.Uint64(buf[off+offPartRowCount:]),
				NameVersion: le.Uint32(buf[off+offPartNameVersion:]),
				SizeBytes:   le.Uint64(buf[off+offPartSizeBytes:]),
			}
			if i > 0 && s.Partitions[i].Timestamp <= s.Partitions[i-1].Timestamp {
				return nil, ErrOrderingViolation.withDetail("partition %d at %d follows %d", i, s.Partitions[i].Timestamp, s.Partitions[i-1].Timestamp)
			}
			off += PartitionEntrySize
		}
	}

	return s, nil
}

// Checksum returns the trailing checksum stored in an encoded buffer, or 0 if
// the buffer is too short to hold one.
func Checksum(buf []byte) uint64 {
	if len(buf) < MinEncodedSize {
		return 0
	}
	return le.Uint64(buf[len(buf)-ChecksumSize:])
}
