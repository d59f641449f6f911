package s3_helper

import (
	"strings"
	"testing"

	"github.com/danthegoodman1/icetx/utils"
	"github.com/stretchr/testify/require"
)

func TestArchiveKey(t *testing.T) {
	key := ArchiveKey("trades", 42)
	require.True(t, strings.HasPrefix(key, utils.S3_PREFIX+"/trades/"))

	table, txn, err := ParseArchiveKey(key)
	require.NoError(t, err)
	require.Equal(t, "trades", table)
	require.EqualValues(t, 42, txn)

	table, txn, err = ParseArchiveKey(key + StateSuffix)
	require.NoError(t, err)
	require.Equal(t, "trades", table)
	require.EqualValues(t, 42, txn)

	for _, bad := range []string{"", "nounderscore", "ledgers/trades/abc_x", "abc_1"} {
		_, _, err = ParseArchiveKey(bad)
		require.ErrorIs(t, err, ErrBadArchiveKey, bad)
	}
}
