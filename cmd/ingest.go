package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fuse a file of observations into the property store",
	Long:  "Reads observations from a JSON Lines, CSV or XLSX file, normalizes each address, extracts distress signals and contacts, and fuses the result into the stored property under a per-address lock.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		format, _ := cmd.Flags().GetString("format")
		source, _ := cmd.Flags().GetString("source")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		capturedAt, _ := cmd.Flags().GetString("captured-at")
		output, _ := cmd.Flags().GetString("output")

		if format == "" {
			format = ingest.DetectFormat(path)
		}
		opts := ingest.RowOptions{SourceKey: source}
		if capturedAt != "" {
			t, err := time.Parse(time.RFC3339, capturedAt)
			if err != nil {
				return eris.Wrap(err, "parse --captured-at")
			}
			opts.CapturedAt = t.UTC()
		}
		if concurrency > 0 {
			cfg.Ingest.Concurrency = concurrency
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := initService(cfg, st)
		obsCh, errCh := ingest.StreamFile(ctx, path, format, opts)

		start := time.Now()
		stats, err := svc.IngestAll(ctx, obsCh)
		cancel()
		readErr := <-errCh
		if err != nil {
			return eris.Wrap(err, "ingest")
		}
		if readErr != nil && !errors.Is(readErr, context.Canceled) {
			return eris.Wrap(readErr, "ingest: read")
		}

		zap.L().Info("ingest complete",
			zap.String("file", path),
			zap.Int64("processed", stats.Processed),
			zap.Int64("created", stats.Created),
			zap.Int64("updated", stats.Updated),
			zap.Int64("unchanged", stats.Unchanged),
			zap.Int64("rejected", stats.Rejected),
			zap.Duration("elapsed", time.Since(start)),
		)
		return writeOutput(os.Stdout, output, stats)
	},
}

func init() {
	f := ingestCmd.Flags()
	f.String("file", "", "observation file (.jsonl, .csv or .xlsx)")
	f.String("format", "", "file format: jsonl, csv or xlsx (default: from extension)")
	f.String("source", "", "source key for records that do not name one")
	f.Int("concurrency", 0, "observations fused in parallel (default: ingest.concurrency)")
	f.String("captured-at", "", "capture time (RFC 3339) for records without one")
	f.String("output", outputJSON, "summary format: json or yaml")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
