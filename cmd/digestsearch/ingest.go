package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	dombatch "github.com/kailas-cloud/digestsearch/internal/domain/batch"
	logpkg "github.com/kailas-cloud/digestsearch/internal/logger"
	ingestuc "github.com/kailas-cloud/digestsearch/internal/usecase/ingest"
)

// fileRecord is one line of an ingest file.
type fileRecord struct {
	MessageID   string      `json:"message_id"`
	WorkspaceID string      `json:"workspace_id"`
	ChannelID   string      `json:"channel_id"`
	UserID      string      `json:"user_id"`
	Text        string      `json:"text"`
	TS          json.Number `json:"ts"`
	Topics      []string    `json:"topics"`
}

func buildIngestCmd(env *string) *cobra.Command {
	var batchesPerSec float64
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: "Upsert messages from a JSON Lines file",
		Long: `Upsert messages from a JSON Lines file, one message record per line.
Use "-" to read standard input. Records are sent in batches of
index.max_batch_size; re-running the same file only updates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), *env, args[0], batchLimiter(batchesPerSec), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64Var(&batchesPerSec, "rate", 0,
		"max batches per second sent to the embedding provider (0 = unlimited)")
	return cmd
}

// batchLimiter returns a limiter for the given rate. Zero or negative means unlimited.
func batchLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}

func runIngest(ctx context.Context, env, path string, limiter *rate.Limiter, out io.Writer) error {
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	defer a.close()
	ctx = logpkg.ContextWithLogger(ctx, a.logger)

	var total ingestTotals
	err = readBatches(in, a.cfg.Index.MaxBatchSize, func(batch []ingestuc.Record) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
		report, err := a.ingest.UpsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("upsert batch at record %d: %w", total.seen, err)
		}
		total.add(report.Results)
		for _, r := range report.Results {
			if r.Err() != nil {
				a.logger.Warn("Record failed", zap.String("message_id", r.ID()), zap.Error(r.Err()))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "records=%d updated=%d inserted=%d failed=%d\n",
		total.seen, total.updated, total.inserted, total.failed)
	return nil
}

type ingestTotals struct {
	seen, updated, inserted, failed int
}

func (t *ingestTotals) add(results []dombatch.Result) {
	for _, r := range results {
		t.seen++
		switch r.Outcome() {
		case dombatch.OutcomeUpdated:
			t.updated++
		case dombatch.OutcomeInserted:
			t.inserted++
		default:
			t.failed++
		}
	}
}

// readBatches decodes JSON Lines from r and calls fn with up to size records.
// Blank lines are skipped.
func readBatches(r io.Reader, size int, fn func([]ingestuc.Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	batch := make([]ingestuc.Record, 0, size)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var fr fileRecord
		if err := json.Unmarshal(raw, &fr); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, ingestuc.Record{
			MessageID:   fr.MessageID,
			WorkspaceID: fr.WorkspaceID,
			ChannelID:   fr.ChannelID,
			UserID:      fr.UserID,
			Text:        fr.Text,
			TS:          fr.TS.String(),
			Topics:      fr.Topics,
		})
		if len(batch) == size {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]ingestuc.Record, 0, size)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
