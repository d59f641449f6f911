package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/metastore"
	"github.com/danthegoodman1/icetx/table"
	"github.com/danthegoodman1/icetx/utils"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

var logger = gologger.NewLogger()

type HTTPServer struct {
	Echo      *echo.Echo
	Catalog   *table.Catalog
	MetaStore metastore.MetaStore
}

type CustomValidator struct {
	validator *validator.Validate
}

// NewHTTPServer builds the router without binding a port.
func NewHTTPServer(catalog *table.Catalog, ms metastore.MetaStore) *HTTPServer {
	s := &HTTPServer{
		Echo:      echo.New(),
		Catalog:   catalog,
		MetaStore: ms,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.JSONSerializer = &utils.NoEscapeJSONSerializer{}

	s.Echo.Use(CreateReqContext)
	s.Echo.Use(LoggerMiddleware)
	s.Echo.Use(middleware.CORS())
	s.Echo.Validator = &CustomValidator{validator: validator.New()}

	// technical - no auth
	s.Echo.GET("/hc", s.HealthCheck)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	tables := s.Echo.Group("/tables/:table")
	tables.GET("/snapshot", ccHandler(s.GetSnapshot))
	tables.POST("/commit", ccHandler(s.Commit))
	tables.POST("/symbols", ccHandler(s.AddSymbolColumn))
	tables.POST("/partitions/:ts/rewrite", ccHandler(s.RewritePartition))
	tables.POST("/truncate", ccHandler(s.Truncate))
	tables.GET("/commits", ccHandler(s.ListCommits))

	debug := s.Echo.Group("/debug/tables/:table")
	debug.GET("/partitions", ccHandler(s.GetPartitions))
	debug.GET("/generations", ccHandler(s.GetGenerations))

	return s
}

func StartHTTPServer(catalog *table.Catalog, ms metastore.MetaStore) *HTTPServer {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", utils.HTTP_PORT))
	if err != nil {
		logger.Error().Err(err).Msg("error creating tcp listener, exiting")
		os.Exit(1)
	}
	s := NewHTTPServer(catalog, ms)

	s.Echo.Listener = listener
	go func() {
		logger.Info().Msg("starting h2c server on " + listener.Addr().String())
		err := s.Echo.StartH2CServer("", &http2.Server{})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("failed to start h2c server, exiting")
			os.Exit(1)
		}
	}()

	return s
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func ValidateRequest(c echo.Context, s interface{}) error {
	if err := c.Bind(s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(s); err != nil {
		return err
	}
	return nil
}

func (*HTTPServer) HealthCheck(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	return err
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			// default handler
			c.Error(err)
		}
		stop := time.Since(start)
		logger := zerolog.Ctx(c.Request().Context())
		req := c.Request()
		res := c.Response()

		p := req.URL.Path
		if p == "" {
			p = "/"
		}

		cl := req.Header.Get(echo.HeaderContentLength)
		if cl == "" {
			cl = "0"
		}
		logger.Debug().Str("method", req.Method).Str("remote_ip", c.RealIP()).Str("req_uri", req.RequestURI).Str("handler_path", c.Path()).Str("path", p).Int("status", res.Status).Int64("latency_ns", int64(stop)).Str("protocol", req.Proto).Str("bytes_in", cl).Int64("bytes_out", res.Size).Msg("req received")
		return nil
	}
}
