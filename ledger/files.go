package ledger

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/danthegoodman1/icetx/utils"
)

const (
	stateFilePrefix   = "_txn."
	pointerFileName   = "_txn_ptr"
	pointerTempPrefix = "_txn_ptr.tmp-"
	lockFileName      = "_txn_lock"

	pointerMagic = "ITXP"
	pointerSize  = 24
)

// StateFileName is the file holding the serialized state of txn.
func StateFileName(txn uint64) string {
	return stateFilePrefix + strconv.FormatUint(txn, 10)
}

func parseStateFileName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, stateFilePrefix) {
		return 0, false
	}
	txn, err := strconv.ParseUint(name[len(stateFilePrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return txn, true
}

// parseGenerations returns the txns of the state files in names, ascending.
func parseGenerations(names []string) []uint64 {
	var gens []uint64
	for _, name := range names {
		if txn, ok := parseStateFileName(name); ok {
			gens = append(gens, txn)
		}
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens
}

func pointerTempName() string {
	return pointerTempPrefix + utils.GenRandomShortID()
}

// The pointer record names the active txn. It is small enough to be
// replaced by a single rename, so readers observe the old or the new value.
//
//	0   4  magic "ITXP"
//	4   4  reserved
//	8   8  txn
//	16  8  xxhash64 of bytes [0, 16)
func encodePointer(txn uint64) []byte {
	buf := make([]byte, pointerSize)
	copy(buf, pointerMagic)
	binary.LittleEndian.PutUint64(buf[8:], txn)
	binary.LittleEndian.PutUint64(buf[16:], xxhash.Sum64(buf[:16]))
	return buf
}

func decodePointer(buf []byte) (uint64, error) {
	if len(buf) != pointerSize {
		return 0, fmt.Errorf("%w: pointer record is %d bytes", ErrCorruptLedger, len(buf))
	}
	if binary.LittleEndian.Uint64(buf[16:]) != xxhash.Sum64(buf[:16]) {
		return 0, fmt.Errorf("%w: pointer record checksum mismatch", ErrCorruptLedger)
	}
	if string(buf[:4]) != pointerMagic {
		return 0, fmt.Errorf("%w: pointer record magic %q", ErrCorruptLedger, buf[:4])
	}
	return binary.LittleEndian.Uint64(buf[8:]), nil
}
