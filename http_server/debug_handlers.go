package http_server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/danthegoodman1/icetx/part"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/utils"
)

type (
	partitionRes struct {
		part.Partition
		Dir string
	}

	generationsRes struct {
		Current     uint64
		Generations []uint64
	}
)

func int64Query(c *CustomContext, name string, fallback int64) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// GetPartitions lists the partitions of the latest snapshot that can hold
// rows in [from, to].
func (s *HTTPServer) GetPartitions(c *CustomContext) error {
	from, err := int64Query(c, "from", math.MinInt64)
	if err != nil {
		return c.String(http.StatusBadRequest, "from must be an integer")
	}
	to, err := int64Query(c, "to", math.MaxInt64)
	if err != nil {
		return c.String(http.StatusBadRequest, "to must be an integer")
	}

	st, err := s.Catalog.Snapshot(c.Param("table"))
	if err != nil {
		return c.LedgerError(err, "error resolving snapshot")
	}

	var partitions []partitionRes
	for _, p := range st.Partitions.Range(from, to) {
		dir, err := partitioner.DirName(s.Catalog.By, p)
		if err != nil {
			return c.InternalError(err, "error rendering partition dir")
		}
		partitions = append(partitions, partitionRes{Partition: p, Dir: dir})
	}

	return c.JSON(http.StatusOK, utils.ArrayOrEmpty(partitions))
}

func (s *HTTPServer) GetGenerations(c *CustomContext) error {
	t, err := s.Catalog.Table(c.Request().Context(), c.Param("table"))
	if err != nil {
		return c.LedgerError(err, "error opening table")
	}
	return c.JSON(http.StatusOK, generationsRes{
		Current:     t.Current().Txn,
		Generations: utils.ArrayOrEmpty(t.Generations()),
	})
}
