package txfile

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHumanRoundTrip(t *testing.T) {
	states := []*TxState{NewEmptyState(), sampleState()}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		states = append(states, randomState(r))
	}

	for _, s := range states {
		text, err := EncodeHuman(s)
		require.NoError(t, err)

		got, err := DecodeHuman(text)
		require.NoError(t, err)
		require.True(t, s.Equal(got), "transcript:\n%s", text)

		// binary produced from the transcript is identical to the original
		require.Equal(t, Encode(s), Encode(got))
	}
}

func TestHumanTranscriptFields(t *testing.T) {
	text, err := EncodeHuman(sampleState())
	require.NoError(t, err)

	for _, field := range []string{
		`"txn": 42`,
		`"structureVersion": 3`,
		`"dataVersion": 7`,
		`"fixedRowCount": 14`,
		`"transientRowCount": 6`,
		`"minTimestamp": 1000`,
		`"maxTimestamp": 3050`,
		`"partitionCount": 3`,
		`"symbolColumnCount": 3`,
		`"nameVersion": 2`,
	} {
		require.Contains(t, string(text), field)
	}
}

func TestDecodeHumanSizeMismatch(t *testing.T) {
	text := `{"txn": 1, "minTimestamp": 1000, "maxTimestamp": 1000, "partitionCount": 2,
		"symbolCounts": [], "partitions": [{"timestamp": 1000, "rowCount": 1}]}`
	_, err := DecodeHuman([]byte(text))
	require.ErrorIs(t, err, ErrSizeMismatch)

	text = `{"txn": 1, "symbolColumnCount": 1, "symbolCounts": [], "partitions": []}`
	_, err = DecodeHuman([]byte(text))
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestDecodeHumanOrderingViolation(t *testing.T) {
	text := `{"txn": 3, "fixedRowCount": 1, "transientRowCount": 1, "minTimestamp": 1000, "maxTimestamp": 2000,
		"partitions": [{"timestamp": 2000, "rowCount": 1}, {"timestamp": 1000, "rowCount": 1}]}`
	_, err := DecodeHuman([]byte(text))
	require.ErrorIs(t, err, ErrOrderingViolation)
}

func TestDecodeHumanWithoutCounts(t *testing.T) {
	text := `{"txn": 1, "fixedRowCount": 0, "transientRowCount": 5, "minTimestamp": 1000, "maxTimestamp": 1050,
		"symbolCounts": [4], "partitions": [{"timestamp": 1000, "rowCount": 5}]}`
	s, err := DecodeHuman([]byte(text))
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	require.Equal(t, uint64(5), s.Partitions[0].RowCount)
	require.Equal(t, SymbolCounts{4}, s.SymbolCounts)
}

func TestDecodeHumanRejectsGarbage(t *testing.T) {
	_, err := DecodeHuman([]byte(`{"txn": 1, "txnn": 2}`))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "txnn"))

	_, err = DecodeHuman([]byte(`not json`))
	require.Error(t, err)
}
