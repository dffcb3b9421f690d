package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

// --- Batch Rendering ---

const lockFileName = ".recipecard.lock"

// batchOptions configure one batch run.
type batchOptions struct {
	OutputDir     string
	Workers       int
	SkipUnchanged bool
	Render        renderOptions
	Progress      io.Writer // nil hides the progress bar
}

// batchResult is the outcome for one input.
type batchResult struct {
	Input      string
	Output     string
	Status     string
	Err        error
	PageHeight float64
	Bytes      int64
	Elapsed    time.Duration
}

// batchReport is the outcome of a whole run, in input order.
type batchReport struct {
	RunID   string
	Results []batchResult
}

func (r *batchReport) counts() (ok, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case statusOK:
			ok++
		case statusFailed:
			failed++
		case statusSkipped:
			skipped++
		}
	}
	return ok, failed, skipped
}

func (r *batchReport) hasFailures() bool {
	_, failed, _ := r.counts()
	return failed > 0
}

// batchRunner holds the shared state of one run. Everything it touches from
// workers is either read-only or guarded.
type batchRunner struct {
	opts   batchOptions
	fonts  *fontSet
	ledger *ledger
	logger *slog.Logger
	runID  string
	names  *nameRegistry
}

// runBatch renders every input into opts.OutputDir. A failing input is
// recorded and the run carries on; the returned error is reserved for
// problems with the run itself, such as a locked output directory.
func runBatch(ctx context.Context, inputs []string, opts batchOptions, fonts *fontSet, led *ledger, logger *slog.Logger) (*batchReport, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(opts.OutputDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, opts.OutputDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release output lock", "error", err)
		}
	}()

	runID := uuid.NewString()
	r := &batchRunner{
		opts:   opts,
		fonts:  fonts,
		ledger: led,
		logger: logger.With("run_id", runID),
		runID:  runID,
		names:  newNameRegistry(),
	}
	r.logger.Info("batch started", "inputs", len(inputs), "workers", opts.Workers, "output_dir", opts.OutputDir)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(inputs),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("rendering"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	report := &batchReport{RunID: runID, Results: make([]batchResult, len(inputs))}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < max(1, opts.Workers); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Results[i] = r.process(ctx, inputs[i])
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}
	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	ok, failed, skipped := report.counts()
	r.logger.Info("batch finished", "ok", ok, "failed", failed, "skipped", skipped)
	return report, nil
}

// process renders one input. Panics are turned into a failed result so that
// one bad record cannot take the run down.
func (r *batchRunner) process(ctx context.Context, input string) (res batchResult) {
	start := time.Now()
	res = batchResult{Input: input, Status: statusFailed}
	defer func() {
		if p := recover(); p != nil {
			res.Status = statusFailed
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Elapsed = time.Since(start)
		if res.Err != nil {
			r.logger.Error("render failed", "path", input, "error", res.Err)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	b, err := loadBundle(input, "", r.logger)
	if err != nil {
		res.Err = err
		r.record(ctx, res, "", "")
		return res
	}

	settings := r.opts.Render.settingsKey()
	if r.opts.SkipUnchanged && r.ledger != nil {
		same, last, err := r.ledger.unchanged(ctx, input, b.Digest, settings)
		if err != nil {
			r.logger.Warn("ledger lookup failed", "path", input, "error", err)
		}
		if same {
			res.Status = statusSkipped
			res.Output = last.OutputPath
			res.PageHeight = last.PageHeight
			res.Bytes = last.Bytes
			r.logger.Info("unchanged, skipping", "path", input, "output", last.OutputPath)
			r.record(ctx, res, b.Digest, settings)
			return res
		}
	}

	name := r.names.claim(sanitizeFilename(b.Record.displayName()))
	outPath := filepath.Join(r.opts.OutputDir, name+formatExtension(r.opts.Render.Format))
	card, n, err := r.writeCard(ctx, b, outPath)
	if err != nil {
		res.Err = err
		r.record(ctx, res, b.Digest, settings)
		return res
	}

	res.Status = statusOK
	res.Output = outPath
	res.PageHeight = card.Height
	res.Bytes = n
	r.logger.Info("card written", "path", input, "output", outPath, "height_mm", card.Height)
	r.record(ctx, res, b.Digest, settings)
	return res
}

// writeCard renders into a temp file next to outPath and renames it into
// place, so a failed render never leaves a partial card behind.
func (r *batchRunner) writeCard(ctx context.Context, b *bundle, outPath string) (*CardLayout, int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".recipecard-*.tmp")
	if err != nil {
		return nil, 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	cw := &countingWriter{w: tmp}
	card, err := renderCard(ctx, b, r.opts.Render, r.fonts, cw, r.logger)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		cleanup()
		return nil, 0, err
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		cleanup()
		return nil, 0, fmt.Errorf("move output into place: %w", err)
	}
	return card, cw.n, nil
}

func (r *batchRunner) record(ctx context.Context, res batchResult, inputSHA, settings string) {
	if r.ledger == nil {
		return
	}
	e := renderEntry{
		RunID:        r.runID,
		InputPath:    res.Input,
		InputSHA256:  inputSHA,
		SettingsHash: settings,
		OutputPath:   res.Output,
		Status:       res.Status,
		PageHeight:   res.PageHeight,
		Bytes:        res.Bytes,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	// the ledger write must land even when the run is being cancelled
	if err := r.ledger.Record(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Warn("ledger write failed", "path", res.Input, "error", err)
	}
}

// nameRegistry hands out unique output names within one run: "Dal",
// "Dal_2", "Dal_3".
type nameRegistry struct {
	mu   sync.Mutex
	used map[string]bool
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{used: make(map[string]bool)}
}

func (n *nameRegistry) claim(base string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	name := base
	for i := 2; n.used[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}

// errorText is the message shown for a result, "" when it succeeded.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Op + " " + filepath.Base(pathErr.Path) + ": " + pathErr.Err.Error()
	}
	return err.Error()
}
