package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/icetx/gologger"
	"github.com/jackc/pgx/v4/pgxpool"
)

var (
	StandardContextTimeout = 10 * time.Second

	logger = gologger.NewLogger()
)

// Connect opens a pool to the CRDB cluster the commit log lives in.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	logger.Debug().Msg("connecting to CRDB...")
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error in pgxpool.ParseConfig: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.HealthCheckPeriod = time.Second * 5
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 30

	ctx, cancel := context.WithTimeout(ctx, StandardContextTimeout)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error in pgxpool.ConnectConfig: %w", err)
	}
	logger.Debug().Msg("connected to CRDB")
	return pool, nil
}
