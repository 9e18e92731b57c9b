package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/listing-verifier/internal/app"
	"github.com/joseph-ayodele/listing-verifier/internal/common"
	"github.com/joseph-ayodele/listing-verifier/internal/core/async"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
	"github.com/joseph-ayodele/listing-verifier/internal/export"
)

type batchOptions struct {
	workers  int
	timeout  time.Duration
	xlsxPath string
	mdPath   string
	title    string
	verbose  bool
}

// NewRootCmd creates the listing-batch command.
func NewRootCmd() *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "listing-batch <requests.jsonl>",
		Short: "Score a file of vehicle listings and write reports",
		Long: `listing-batch reads one analysis request per line (the same JSON body the
HTTP API accepts), scores every listing with a bounded worker pool and writes
the results as XLSX and/or Markdown.

Configuration is read from the environment and CONFIG_FILE, as for listingd.

Examples:
  listing-batch listings.jsonl --xlsx out.xlsx
  listing-batch listings.jsonl --markdown report.md --workers 8`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "Concurrent analyses")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "Per-listing time limit")
	cmd.Flags().StringVar(&opts.xlsxPath, "xlsx", "", "Write an XLSX report to this path")
	cmd.Flags().StringVar(&opts.mdPath, "markdown", "", "Write a Markdown report to this path (- for stdout)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Report title")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func runBatch(cmd *cobra.Command, input string, opts *batchOptions) error {
	if opts.xlsxPath == "" && opts.mdPath == "" {
		opts.mdPath = "-"
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	logger := common.NewLoggerTo(cmd.ErrOrStderr(), level, "text")

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	jobs, rejected, err := readJobs(f)
	if err != nil {
		return err
	}
	logger.Info("batch.loaded", "jobs", len(jobs), "rejected", len(rejected))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	rows := append(rejected, analyzeAll(ctx, comps.Analyzer, jobs, opts, logger)...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	rep := export.Report{Title: opts.title, GeneratedAt: time.Now(), Rows: rows}
	return writeReports(ctx, cmd.OutOrStdout(), rep, opts, logger)
}

// readJobs parses one request per non-blank line. Lines that do not decode are
// returned as failed rows so they still appear in the report.
func readJobs(r io.Reader) ([]async.Job, []export.Row, error) {
	var (
		jobs     []async.Job
		rejected []export.Row
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	seq := 0
	for sc.Scan() {
		seq++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var req entity.AnalysisRequest
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			rejected = append(rejected, export.Row{Seq: seq, Error: "invalid json: " + err.Error()})
			continue
		}
		jobs = append(jobs, async.Job{Seq: seq, Request: req})
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	return jobs, rejected, nil
}

func analyzeAll(ctx context.Context, an async.Analyzer, jobs []async.Job, opts *batchOptions, logger *slog.Logger) []export.Row {
	q := async.NewProcessorQueue(an, logger,
		async.WithWorkers(opts.workers),
		async.WithProcessTimeout(opts.timeout),
	)

	go func() {
		defer q.Close()
		for _, job := range jobs {
			if err := q.Enqueue(ctx, job); err != nil {
				logger.Warn("batch.enqueue_failed", "seq", job.Seq, "error", err)
				return
			}
		}
	}()

	rows := make([]export.Row, 0, len(jobs))
	for res := range q.Results() {
		rows = append(rows, export.NewRow(res.Seq, res.Request, res.Analysis, res.Err, res.Elapsed))
	}
	return rows
}

func writeReports(ctx context.Context, stdout io.Writer, rep export.Report, opts *batchOptions, logger *slog.Logger) error {
	svc := export.NewService(logger)

	if opts.xlsxPath != "" {
		data, err := svc.XLSX(ctx, rep)
		if err != nil {
			return err
		}
		if err := writeFile(opts.xlsxPath, data); err != nil {
			return err
		}
		logger.Info("batch.report.xlsx", "path", opts.xlsxPath)
	}

	switch opts.mdPath {
	case "":
	case "-":
		return svc.Markdown(stdout, rep)
	default:
		f, err := createFile(opts.mdPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := svc.Markdown(f, rep); err != nil {
			return err
		}
		logger.Info("batch.report.markdown", "path", opts.mdPath)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func createFile(path string) (*os.File, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}
