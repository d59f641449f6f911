package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danthegoodman1/icetx/datastore"
	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/ledger"
	"github.com/danthegoodman1/icetx/txfile"
	"github.com/spf13/cobra"
)

var (
	// stdout carries transcripts, so offline commands log to stderr
	toolLogger = gologger.NewStderrLogger()

	ErrNoPublishedTxn = errors.New("no published txn")
)

func newTxCommand() *cobra.Command {
	var serialize, deserialize bool
	cmd := &cobra.Command{
		Use:   "tx (-d <txn_path> | -s <json_path> <txn_path>)",
		Short: "Convert between ledger state files and JSON transcripts",
		Long: `With -d, decode a ledger state file, or the current state of a table
directory, and print its transcript. With -s, encode a transcript into a
ledger state file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case deserialize == serialize:
				return fmt.Errorf("exactly one of -d or -s is required")
			case deserialize && len(args) != 1:
				return fmt.Errorf("-d takes one txn path, got %d args", len(args))
			case serialize && len(args) != 2:
				return fmt.Errorf("-s takes a json path and a txn path, got %d args", len(args))
			}
			cmd.SilenceUsage = true

			ctx := toolLogger.WithContext(context.Background())
			if deserialize {
				s, err := readLedger(ctx, args[0])
				if err != nil {
					return err
				}
				b, err := txfile.EncodeHuman(s)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			s, err := readTranscript(args[0])
			if err != nil {
				return err
			}
			return writeState(ctx, args[1], s)
		},
	}
	fs := cmd.Flags()
	fs.BoolVarP(&deserialize, "deserialize", "d", false, "decode a ledger state into a transcript")
	fs.BoolVarP(&serialize, "serialize", "s", false, "encode a transcript into a ledger state")
	return cmd
}

// readLedger decodes a state file, or resolves the current state of a table
// directory through its pointer.
func readLedger(ctx context.Context, path string) (*txfile.TxState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error in os.Stat: %w", err)
	}
	if !info.IsDir() {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error in os.ReadFile: %w", err)
		}
		s, err := txfile.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("error decoding %s: %w", path, err)
		}
		if err = s.Validate(); err != nil {
			return nil, fmt.Errorf("error validating %s: %w", path, err)
		}
		return s, nil
	}

	r, err := ledger.OpenReader(ctx, path, ledger.Options{Logger: &toolLogger})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	s, err := r.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	if s.Txn == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPublishedTxn)
	}
	return s, nil
}

func readTranscript(path string) (*txfile.TxState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error in os.ReadFile: %w", err)
	}
	s, err := txfile.DecodeHuman(b)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	if err = s.Validate(); err != nil {
		return nil, fmt.Errorf("error validating %s: %w", path, err)
	}
	return s, nil
}

// writeState writes the binary form of s to path and fsyncs it.
func writeState(ctx context.Context, path string, s *txfile.TxState) error {
	ds, err := datastore.NewDiskDataStore(filepath.Dir(path), false)
	if err != nil {
		return err
	}
	defer ds.Shutdown(ctx)
	if err = ds.WriteFileSync(ctx, filepath.Base(path), txfile.Encode(s)); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	toolLogger.Debug().Str("path", path).Uint64("txn", s.Txn).Msg("wrote ledger state")
	return nil
}
