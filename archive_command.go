package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/danthegoodman1/icetx/datastore"
	"github.com/danthegoodman1/icetx/ledger"
	"github.com/danthegoodman1/icetx/manifest"
	"github.com/danthegoodman1/icetx/partitioner"
	"github.com/danthegoodman1/icetx/s3_helper"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/danthegoodman1/icetx/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// restoredSuffix keeps recovered states out of the generation list, so a
// writer never mistakes one for a published txn.
const restoredSuffix = ".restored"

func partitionByFlag(fs *pflag.FlagSet, partitionBy *string) {
	fs.StringVar(partitionBy, "partition-by", utils.PARTITION_BY, "partitioning the table was created with")
}

func newManifestCommand() *cobra.Command {
	var partitionBy string
	cmd := &cobra.Command{
		Use:   "manifest <table_path> <parquet_path>",
		Short: "Write the partition list of a table's current state as parquet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := partitioner.Parse(partitionBy)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			ctx := toolLogger.WithContext(context.Background())
			s, err := readLedger(ctx, args[0])
			if err != nil {
				return err
			}
			rows, err := manifest.Rows(filepath.Base(args[0]), by, s)
			if err != nil {
				return err
			}
			if err = manifest.WriteFile(args[1], rows); err != nil {
				return err
			}
			toolLogger.Info().Str("path", args[1]).Int("partitions", len(rows)).Uint64("txn", s.Txn).Msg("wrote manifest")
			return nil
		},
	}
	partitionByFlag(cmd.Flags(), &partitionBy)
	return cmd
}

type archive struct {
	state      []byte
	transcript []byte
	manifest   []byte
}

func buildArchive(name string, by partitioner.PartitionBy, s *txfile.TxState) (*archive, error) {
	transcript, err := txfile.EncodeHuman(s)
	if err != nil {
		return nil, err
	}
	a := &archive{
		state:      txfile.Encode(s),
		transcript: transcript,
	}
	if s.Partitions.Len() == 0 {
		return a, nil
	}
	rows, err := manifest.Rows(name, by, s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = manifest.Write(&buf, rows); err != nil {
		return nil, err
	}
	a.manifest = buf.Bytes()
	return a, nil
}

func newArchiveCommand() *cobra.Command {
	var partitionBy string
	cmd := &cobra.Command{
		Use:   "archive <table_path>",
		Short: "Upload the current state of a table to S3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := partitioner.Parse(partitionBy)
			if err != nil {
				return err
			}
			if utils.S3_BUCKET_NAME == "" {
				return fmt.Errorf("S3_BUCKET_NAME is not set")
			}
			cmd.SilenceUsage = true

			ctx := toolLogger.WithContext(context.Background())
			s, err := readLedger(ctx, args[0])
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			a, err := buildArchive(name, by, s)
			if err != nil {
				return err
			}

			key := s3_helper.ArchiveKey(name, s.Txn)
			if _, err = s3_helper.WriteBytesToS3(ctx, key+s3_helper.StateSuffix, a.state, aws.String("application/octet-stream")); err != nil {
				return err
			}
			if _, err = s3_helper.WriteBytesToS3(ctx, key+s3_helper.TranscriptSuffix, a.transcript, aws.String("application/json")); err != nil {
				return err
			}
			if a.manifest != nil {
				if _, err = s3_helper.WriteBytesToS3(ctx, key+s3_helper.ManifestSuffix, a.manifest, aws.String("application/vnd.apache.parquet")); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	partitionByFlag(cmd.Flags(), &partitionBy)
	return cmd
}

func newRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <table_path> <key>",
		Short: "Download an archived state next to a table for inspection with tx -d",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if utils.S3_BUCKET_NAME == "" {
				return fmt.Errorf("S3_BUCKET_NAME is not set")
			}
			key := strings.TrimSuffix(args[1], s3_helper.StateSuffix)
			if _, _, err := s3_helper.ParseArchiveKey(key); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			ctx := toolLogger.WithContext(context.Background())
			b, err := s3_helper.ReadBytesFromS3(ctx, key+s3_helper.StateSuffix)
			if err != nil {
				return err
			}
			path, err := writeRestored(ctx, args[0], b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// writeRestored verifies an archived state and writes it into the table
// directory under a name no ledger reader or writer picks up.
func writeRestored(ctx context.Context, tablePath string, b []byte) (string, error) {
	s, err := txfile.Decode(b)
	if err != nil {
		return "", fmt.Errorf("error decoding archived state: %w", err)
	}
	if err = s.Validate(); err != nil {
		return "", fmt.Errorf("error validating archived state: %w", err)
	}

	ds, err := datastore.NewDiskDataStore(tablePath, true)
	if err != nil {
		return "", err
	}
	defer ds.Shutdown(ctx)
	name := ledger.StateFileName(s.Txn) + restoredSuffix
	if err = ds.WriteFileSync(ctx, name, b); err != nil {
		return "", fmt.Errorf("error writing %s: %w", name, err)
	}
	return ds.Path(name), nil
}
