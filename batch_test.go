package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
)

func writeRecord(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testBatchOptions(t *testing.T) batchOptions {
	return batchOptions{
		OutputDir: filepath.Join(t.TempDir(), "cards"),
		Workers:   2,
		Render:    testRenderOptions("svg"),
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	in := t.TempDir()
	inputs := []string{
		writeRecord(t, in, "dal.json", testRecordJSON),
		writeRecord(t, in, "broken.json", "[1, 2]"),
		filepath.Join(in, "missing.zip"),
		writeRecord(t, in, "tikka.json", `{"name": "Paneer Tikka", "Instruction": [{"Text": "Grill", "durationInSec": 60}]}`),
	}
	opts := testBatchOptions(t)
	var progress bytes.Buffer
	opts.Progress = &progress

	report, err := runBatch(context.Background(), inputs, opts, testFonts(t), nil, discardLogger())
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if report.RunID == "" || len(report.Results) != len(inputs) {
		t.Fatalf("report = %+v", report)
	}

	ok, failed, skipped := report.counts()
	if ok != 2 || failed != 2 || skipped != 0 || !report.hasFailures() {
		t.Errorf("counts = %d/%d/%d", ok, failed, skipped)
	}
	if res := report.Results[1]; res.Status != statusFailed || !errors.Is(res.Err, ErrInvalidRecord) {
		t.Errorf("broken record result = %+v", res)
	}
	for _, i := range []int{0, 3} {
		res := report.Results[i]
		if res.Status != statusOK || res.PageHeight < 228 || res.Bytes == 0 {
			t.Errorf("result %d = %+v", i, res)
			continue
		}
		info, err := os.Stat(res.Output)
		if err != nil || info.Size() != res.Bytes {
			t.Errorf("output %s: %v (size %v, reported %d)", res.Output, err, info, res.Bytes)
		}
	}
	if filepath.Base(report.Results[0].Output) != "Dal Tadka.svg" {
		t.Errorf("output name = %s", report.Results[0].Output)
	}

	leftovers, _ := filepath.Glob(filepath.Join(opts.OutputDir, ".recipecard-*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
	if summary := batchSummaryTable(report); !strings.Contains(summary, "broken.json") || !strings.Contains(summary, "Dal Tadka.svg") {
		t.Errorf("summary table:\n%s", summary)
	}
}

func TestRunBatchIsolatesOversizedRecord(t *testing.T) {
	in := t.TempDir()
	inputs := []string{
		writeRecord(t, in, "dal.json", testRecordJSON),
		writeRecord(t, in, "stock.json", `{"name": "Stock", "Instruction": [{"Text": "boil", "durationInSec": "90000000"}]}`),
		writeRecord(t, in, "tikka.json", `{"name": "Paneer Tikka", "Instruction": [{"Text": "Grill", "durationInSec": 60}]}`),
	}

	for _, format := range []string{"svg", "png"} {
		t.Run(format, func(t *testing.T) {
			opts := testBatchOptions(t)
			opts.Render = testRenderOptions(format)

			report, err := runBatch(context.Background(), inputs, opts, testFonts(t), nil, discardLogger())
			if err != nil {
				t.Fatalf("runBatch: %v", err)
			}
			if ok, failed, _ := report.counts(); ok != 2 || failed != 1 {
				t.Errorf("counts = %d ok, %d failed", ok, failed)
			}
			if res := report.Results[1]; res.Status != statusFailed || !errors.Is(res.Err, ErrInvalidRecord) {
				t.Errorf("oversized record result = %+v", res)
			}
			for _, i := range []int{0, 2} {
				if res := report.Results[i]; res.Status != statusOK {
					t.Errorf("result %d = %+v", i, res)
				}
			}
		})
	}
}

func TestRunBatchUniqueNames(t *testing.T) {
	in := t.TempDir()
	inputs := []string{
		writeRecord(t, in, "a.json", testRecordJSON),
		writeRecord(t, in, "b.json", testRecordJSON),
		writeRecord(t, in, "c.json", testRecordJSON),
	}
	opts := testBatchOptions(t)
	opts.Workers = 1

	report, err := runBatch(context.Background(), inputs, opts, testFonts(t), nil, discardLogger())
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	want := []string{"Dal Tadka.svg", "Dal Tadka_2.svg", "Dal Tadka_3.svg"}
	for i, res := range report.Results {
		if filepath.Base(res.Output) != want[i] {
			t.Errorf("output %d = %s, want %s", i, res.Output, want[i])
		}
	}
}

func TestRunBatchHonoursLock(t *testing.T) {
	opts := testBatchOptions(t)
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(opts.OutputDir, lockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer held.Unlock()

	_, err = runBatch(context.Background(), nil, opts, testFonts(t), nil, discardLogger())
	if !errors.Is(err, ErrOutputLocked) {
		t.Errorf("error = %v, want ErrOutputLocked", err)
	}
}

func TestRunBatchSkipUnchanged(t *testing.T) {
	ctx := context.Background()
	in := t.TempDir()
	record := writeRecord(t, in, "dal.json", testRecordJSON)
	led := openTestLedger(t)
	opts := testBatchOptions(t)
	opts.SkipUnchanged = true
	fonts := testFonts(t)

	first, err := runBatch(ctx, []string{record}, opts, fonts, led, discardLogger())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runBatch(ctx, []string{record}, opts, fonts, led, discardLogger())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Results[0].Status != statusOK || second.Results[0].Status != statusSkipped {
		t.Fatalf("statuses = %s, %s", first.Results[0].Status, second.Results[0].Status)
	}
	if second.Results[0].Output != first.Results[0].Output {
		t.Errorf("skipped result points at %s", second.Results[0].Output)
	}

	writeRecord(t, in, "dal.json", strings.Replace(testRecordJSON, "30", "45", 1))
	third, _ := runBatch(ctx, []string{record}, opts, fonts, led, discardLogger())
	if third.Results[0].Status != statusOK {
		t.Errorf("changed record was skipped")
	}

	entries, err := led.Recent(ctx, 10)
	if err != nil || len(entries) != 3 {
		t.Fatalf("ledger entries = %d, %v", len(entries), err)
	}
	if entries[1].Status != statusSkipped || entries[0].RunID == entries[1].RunID {
		t.Errorf("ledger = %+v", entries)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := t.TempDir()
	inputs := []string{writeRecord(t, in, "dal.json", testRecordJSON)}

	report, err := runBatch(ctx, inputs, testBatchOptions(t), testFonts(t), nil, discardLogger())
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if res := report.Results[0]; res.Status != statusFailed || !errors.Is(res.Err, context.Canceled) {
		t.Errorf("result = %+v", res)
	}
}

func TestNameRegistry(t *testing.T) {
	n := newNameRegistry()
	got := []string{n.claim("Dal"), n.claim("Dal"), n.claim("Dal_2"), n.claim("Dal"), n.claim("Tikka")}
	want := []string{"Dal", "Dal_2", "Dal_2_2", "Dal_3", "Tikka"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("claim %d = %q, want %q", i, got[i], want[i])
		}
	}
}
