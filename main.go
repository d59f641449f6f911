package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/http_server"
	"github.com/danthegoodman1/icetx/migrations"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/utils"
	"github.com/spf13/cobra"
)

var logger = gologger.NewLogger()

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "icetx",
		Short: "Transaction ledger for a partitioned time-series column store",
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newTxCommand(),
		newManifestCommand(),
		newArchiveCommand(),
		newRestoreCommand(),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var (
		dataDir     string
		partitionBy string
		retain      int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ledger server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := partitioner.Parse(partitionBy)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return serve(dataDir, by, retain)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&dataDir, "data-dir", utils.DATA_DIR, "`dir` holding one directory per table")
	partitionByFlag(fs, &partitionBy)
	fs.IntVar(&retain, "retain", int(utils.RETAIN_GENERATIONS), "ledger generations kept behind the current one")
	return cmd
}

func serve(dataDir string, by partitioner.PartitionBy, retain int) error {
	logger.Debug().Msg("starting icetx")

	itx, err := NewIceTx(context.Background(), dataDir, by, retain)
	if err != nil {
		logger.Error().Err(err).Msg("error starting icetx")
		return err
	}

	httpServer := http_server.StartHTTPServer(itx.Catalog, itx.MetaStore)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	sleepTime := utils.SHUTDOWN_SLEEP_SEC
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}

	// writers are closed after the server so no commit is cut off
	if err := itx.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown ledgers")
		return err
	}
	logger.Info().Msg("successfully shutdown ledgers")
	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending commit history migrations to CRDB_DSN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if utils.CRDB_DSN == "" {
				return fmt.Errorf("CRDB_DSN is not set")
			}
			cmd.SilenceUsage = true
			n, err := migrations.RunMigrations(utils.CRDB_DSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n)
			return nil
		},
	}
}
