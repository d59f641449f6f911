package http_server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danthegoodman1/icetx/metastore"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/table"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/danthegoodman1/icetx/utils"
	"github.com/rs/zerolog"
)

type (
	SnapshotRes struct {
		txfile.Transcript
		// Dirs holds the directory of each partition, in order.
		Dirs []string `json:"dirs"`
	}

	CommitReqBody struct {
		Batches []table.AppendBatch `validate:"required,min=1,dive"`
	}

	CommitRes struct {
		Txn    uint64
		Rows   uint64
		TimeMS int64
	}

	SymbolColumnRes struct {
		Txn     uint64
		Ordinal int
	}

	RewriteReqBody struct {
		Rows      uint64
		SizeBytes uint64
	}

	RewriteRes struct {
		Txn         uint64
		Dir         string
		NameVersion uint32
	}
)

const (
	commitTimeout       = time.Second * 30
	defaultCommitsLimit = 100
)

func (s *HTTPServer) snapshotRes(st *txfile.TxState) (SnapshotRes, error) {
	dirs, err := table.Dirs(s.Catalog.By, st)
	if err != nil {
		return SnapshotRes{}, err
	}
	return SnapshotRes{
		Transcript: txfile.NewTranscript(st),
		Dirs:       utils.ArrayOrEmpty(dirs),
	}, nil
}

func (s *HTTPServer) GetSnapshot(c *CustomContext) error {
	st, err := s.Catalog.Snapshot(c.Param("table"))
	if err != nil {
		return c.LedgerError(err, "error resolving snapshot")
	}
	res, err := s.snapshotRes(st)
	if err != nil {
		return c.InternalError(err, "error rendering snapshot")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) Commit(c *CustomContext) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), commitTimeout)
	defer cancel()
	logger := zerolog.Ctx(ctx)

	var reqBody CommitReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	t, err := s.Catalog.Table(ctx, c.Param("table"))
	if err != nil {
		return c.LedgerError(err, "error opening table")
	}

	var rows uint64
	for _, b := range reqBody.Batches {
		rows += b.Rows
	}
	st, err := t.Commit(ctx, reqBody.Batches...)
	if err != nil {
		return c.LedgerError(err, "error committing batches")
	}

	res := CommitRes{
		Txn:    st.Txn,
		Rows:   rows,
		TimeMS: time.Since(start).Milliseconds(),
	}
	logger.Debug().Interface("response", res).Msg("committed batches")
	return c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) AddSymbolColumn(c *CustomContext) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), commitTimeout)
	defer cancel()

	t, err := s.Catalog.Table(ctx, c.Param("table"))
	if err != nil {
		return c.LedgerError(err, "error opening table")
	}
	ordinal, st, err := t.AddSymbolColumn(ctx)
	if err != nil {
		return c.LedgerError(err, "error adding symbol column")
	}
	return c.JSON(http.StatusOK, SymbolColumnRes{
		Txn:     st.Txn,
		Ordinal: ordinal,
	})
}

func (s *HTTPServer) RewritePartition(c *CustomContext) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), commitTimeout)
	defer cancel()

	ts, err := strconv.ParseInt(c.Param("ts"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "partition timestamp must be an integer")
	}
	var reqBody RewriteReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	t, err := s.Catalog.Table(ctx, c.Param("table"))
	if err != nil {
		return c.LedgerError(err, "error opening table")
	}
	p, st, err := t.RewritePartition(ctx, ts, reqBody.Rows, reqBody.SizeBytes)
	if err != nil {
		return c.LedgerError(err, "error rewriting partition")
	}
	dir, err := partitioner.DirName(t.By, p)
	if err != nil {
		return c.InternalError(err, "error rendering partition dir")
	}
	return c.JSON(http.StatusOK, RewriteRes{
		Txn:         st.Txn,
		Dir:         dir,
		NameVersion: p.NameVersion,
	})
}

func (s *HTTPServer) Truncate(c *CustomContext) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), commitTimeout)
	defer cancel()

	t, err := s.Catalog.Table(ctx, c.Param("table"))
	if err != nil {
		return c.LedgerError(err, "error opening table")
	}
	st, err := t.Truncate(ctx)
	if err != nil {
		return c.LedgerError(err, "error truncating table")
	}
	res, err := s.snapshotRes(st)
	if err != nil {
		return c.InternalError(err, "error rendering snapshot")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) ListCommits(c *CustomContext) error {
	limit := defaultCommitsLimit
	if l := c.QueryParam("limit"); l != "" {
		var err error
		if limit, err = strconv.Atoi(l); err != nil || limit < 1 {
			return c.String(http.StatusBadRequest, "limit must be a positive integer")
		}
	}

	commits, err := s.MetaStore.ListCommits(c.Request().Context(), c.Param("table"), limit)
	if err != nil {
		return c.InternalError(err, "error listing commits")
	}
	return c.JSON(http.StatusOK, utils.ArrayOrEmpty[metastore.Commit](commits))
}
