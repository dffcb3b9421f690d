package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfig writes a quiet configuration whose ledger and output live in dir.
func testConfig(t *testing.T, dir string) string {
	t.Helper()
	isolateEnv(t)
	body := fmt.Sprintf(`
[render]
format = "svg"

[batch]
output_dir = %q
ledger_path = %q
workers = 2

[logging]
level = "error"
format = "json"
`, filepath.Join(dir, "cards"), filepath.Join(dir, "cards", "recipecard.db"))
	path := filepath.Join(dir, "recipecard.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	record := writeRecord(t, dir, "dal.json", testRecordJSON)

	out, err := runCLI(t, "-c", cfg, "render", record)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<svg") || !strings.Contains(out, "Dal Tadka") {
		t.Errorf("stdout is not the svg card: %.200s", out)
	}

	target := filepath.Join(dir, "dal.html")
	if _, err := runCLI(t, "-c", cfg, "render", record, "-f", "html", "-o", target); err != nil {
		t.Fatalf("render html: %v", err)
	}
	if data, err := os.ReadFile(target); err != nil || !bytes.HasPrefix(data, []byte("<!DOCTYPE html>")) {
		t.Errorf("html file: %v", err)
	}

	bad := filepath.Join(dir, "bad.svg")
	_, err = runCLI(t, "-c", cfg, "render", record, "--seconds-per-bar", "0", "-o", bad)
	if !errors.Is(err, ErrInvalidSecondsPerBar) {
		t.Errorf("seconds-per-bar 0: error = %v", err)
	}
	if _, statErr := os.Stat(bad); statErr == nil {
		t.Errorf("output file created for a rejected render")
	}

	if _, err := runCLI(t, "-c", cfg, "render", record, "-f", "tiff"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("tiff: error = %v", err)
	}
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	record := writeRecord(t, dir, "dal.json", testRecordJSON)

	out, err := runCLI(t, "-c", cfg, "inspect", record, "--yaml")
	if err != nil {
		t.Fatalf("inspect --yaml: %v", err)
	}
	for _, want := range []string{"name: Dal Tadka", "seconds_per_bar: 9", "step_number: 1", "text: Heat oil"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml lacks %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "-c", cfg, "inspect", record)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "Dal Tadka") || !strings.Contains(out, "Heat oil") {
		t.Errorf("tables lack the recipe:\n%s", out)
	}
}

func TestBatchAndHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	in := filepath.Join(dir, "in")
	os.Mkdir(in, 0o755)
	writeZip(t, filepath.Join(in, "dal.zip"), map[string][]byte{"record.json": []byte(testRecordJSON)})
	writeZip(t, filepath.Join(in, "empty.zip"), map[string][]byte{"photo.png": testPNG(t)})

	out, err := runCLI(t, "-c", cfg, "batch", in)
	if !errors.Is(err, errBatchFailures) {
		t.Fatalf("batch error = %v, want errBatchFailures", err)
	}
	if !strings.Contains(out, "1 rendered, 1 failed, 0 skipped") {
		t.Errorf("summary:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "cards", "Dal Tadka.svg")); err != nil {
		t.Errorf("card not written: %v", err)
	}

	out, err = runCLI(t, "-c", cfg, "history", "-n", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "dal.zip") || !strings.Contains(out, "empty.zip") {
		t.Errorf("history:\n%s", out)
	}
}

func TestConfigInitCommand(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "recipecard.toml")

	out, err := runCLI(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	if _, err := runCLI(t, "config", "init", path); err == nil {
		t.Errorf("config init overwrote without --overwrite")
	}
	if _, err := runCLI(t, "config", "init", path, "--overwrite"); err != nil {
		t.Errorf("config init --overwrite: %v", err)
	}
}
