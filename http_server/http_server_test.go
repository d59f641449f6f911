package http_server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danthegoodman1/icetx/metastore"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/table"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMicro()

const hour = int64(time.Hour / time.Microsecond)

func newTestServer(t *testing.T) *HTTPServer {
	catalog := table.NewCatalog(t.TempDir(), partitioner.DAY, 2)
	ms := metastore.NewMemoryMetaStore(10)
	catalog.OnCommit = func(ctx context.Context, name string, s *txfile.TxState) {
		require.NoError(t, ms.RecordCommit(ctx, name, s))
	}
	t.Cleanup(func() { catalog.Shutdown(context.Background()) })
	return NewHTTPServer(catalog, ms)
}

func do(t *testing.T, s *HTTPServer, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func commitBody(rows uint64, minTS, maxTS int64) string {
	return fmt.Sprintf(`{"Batches":[{"Rows":%d,"MinTimestamp":%d,"MaxTimestamp":%d}]}`, rows, minTS, maxTS)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/hc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestCommitAndSnapshot(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/tables/trades/snapshot", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(5, day+hour, day+2*hour))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[CommitRes](t, rec)
	require.EqualValues(t, 1, res.Txn)
	require.EqualValues(t, 5, res.Rows)

	rec = do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(3, day+25*hour, day+25*hour))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/tables/trades/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[SnapshotRes](t, rec)
	require.EqualValues(t, 2, snap.Txn)
	require.EqualValues(t, 5, snap.FixedRowCount)
	require.EqualValues(t, 3, snap.TransientRowCount)
	require.Equal(t, []string{"2024-01-02", "2024-01-03"}, snap.Dirs)

	rec = do(t, s, http.MethodGet, "/tables/trades/commits?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	commits := decode[[]metastore.Commit](t, rec)
	require.Len(t, commits, 1)
	require.EqualValues(t, 2, commits[0].Txn)
	require.EqualValues(t, 8, commits[0].RowCount)
}

func TestCommitRejected(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/tables/trades/commit", `{"Batches":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(0, day, day))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(1, day, day+48*hour))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/bad.name/commit", commitBody(1, day, day))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(1, day+48*hour, day+48*hour))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// a bucket older than every partition has nowhere to go
	rec = do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(1, day, day))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/tables/trades/commits?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSymbolsRewriteAndTruncate(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/tables/trades/symbols", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sym := decode[SymbolColumnRes](t, rec)
	require.EqualValues(t, 1, sym.Txn)
	require.Equal(t, 0, sym.Ordinal)

	rec = do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(5, day, day))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/tables/trades/partitions/%d/rewrite", day), `{"Rows":4,"SizeBytes":64}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rw := decode[RewriteRes](t, rec)
	require.EqualValues(t, 3, rw.Txn)
	require.EqualValues(t, 1, rw.NameVersion)
	require.Equal(t, "2024-01-02.1", rw.Dir)

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/tables/trades/partitions/%d/rewrite", day+hour), `{"Rows":4}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/trades/partitions/notanumber/rewrite", `{"Rows":4}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/tables/trades/truncate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[SnapshotRes](t, rec)
	require.EqualValues(t, 4, snap.Txn)
	require.Empty(t, snap.Partitions)
	require.Empty(t, snap.Dirs)
}

func TestDebugRoutes(t *testing.T) {
	s := newTestServer(t)

	for i := int64(0); i < 4; i++ {
		rec := do(t, s, http.MethodPost, "/tables/trades/commit", commitBody(1, day+i*24*hour, day+i*24*hour))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodGet, "/debug/tables/trades/partitions", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, decode[[]partitionRes](t, rec), 4)

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/debug/tables/trades/partitions?from=%d&to=%d", day+25*hour, day+49*hour), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	partitions := decode[[]partitionRes](t, rec)
	require.Len(t, partitions, 2)
	require.Equal(t, "2024-01-03", partitions[0].Dir)
	require.Equal(t, "2024-01-04", partitions[1].Dir)

	rec = do(t, s, http.MethodGet, "/debug/tables/trades/partitions?from=x", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/debug/tables/trades/generations", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gens := decode[generationsRes](t, rec)
	require.EqualValues(t, 4, gens.Current)
	require.Contains(t, gens.Generations, uint64(4))
}
