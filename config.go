package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const defaultConfigName = "recipecard.toml"

// RenderConfig controls how cards are laid out and encoded.
type RenderConfig struct {
	SecondsPerBar   int     `toml:"seconds_per_bar"`
	Format          string  `toml:"format"` // svg, html, png, jpg
	Engine          string  `toml:"engine"` // native or chrome
	PxPerMM         float64 `toml:"px_per_mm"`
	JPEGQuality     int     `toml:"jpeg_quality"`
	MinPageHeightMM float64 `toml:"min_page_height_mm"`
	PagePaddingMM   float64 `toml:"page_padding_mm"`
}

// FontsConfig points at TTF files. Empty paths use the embedded Go fonts.
type FontsConfig struct {
	Regular string `toml:"regular"`
	Bold    string `toml:"bold"`
}

// BatchConfig controls the batch command.
type BatchConfig struct {
	OutputDir     string `toml:"output_dir"`
	Workers       int    `toml:"workers"`
	LedgerPath    string `toml:"ledger_path"` // empty disables the ledger
	SkipUnchanged bool   `toml:"skip_unchanged"`
}

// LoggingConfig selects log level and handler.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console, json or auto
}

// Config is the whole recipecard configuration file.
type Config struct {
	Render  RenderConfig  `toml:"render"`
	Fonts   FontsConfig   `toml:"fonts"`
	Palette Palette       `toml:"palette"`
	Batch   BatchConfig   `toml:"batch"`
	Logging LoggingConfig `toml:"logging"`
}

func defaultConfig() Config {
	return Config{
		Render: RenderConfig{
			SecondsPerBar:   defaultSecondsPerBar,
			Format:          "png",
			Engine:          "native",
			PxPerMM:         300 / mmPerInch,
			JPEGQuality:     90,
			MinPageHeightMM: 228,
			PagePaddingMM:   20,
		},
		Palette: defaultPalette(),
		Batch: BatchConfig{
			OutputDir:  "cards",
			Workers:    4,
			LedgerPath: "cards/recipecard.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// loadConfig reads the configuration file at path, or recipecard.toml in the
// working directory when path is empty. A missing file is not an error: the
// defaults apply. It returns the resolved path and whether the file existed.
func loadConfig(path string) (*Config, string, bool, error) {
	cfg := defaultConfig()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, fmt.Errorf("resolve config path %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", abs)
	}
	return abs, true, nil
}

// applyEnv loads .env from the working directory, if any, and applies the
// RECIPECARD_* overrides on top of the file values.
func (c *Config) applyEnv() error {
	_ = godotenv.Load()

	if v := os.Getenv("RECIPECARD_SECONDS_PER_BAR"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("RECIPECARD_SECONDS_PER_BAR: %w", err)
		}
		c.Render.SecondsPerBar = n
	}
	if v := os.Getenv("RECIPECARD_FORMAT"); v != "" {
		c.Render.Format = v
	}
	if v := os.Getenv("RECIPECARD_OUTPUT_DIR"); v != "" {
		c.Batch.OutputDir = v
	}
	if v := os.Getenv("RECIPECARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// normalize fills zero values with defaults and lower-cases enum fields.
// SecondsPerBar is left alone so that validate can reject a bad value.
func (c *Config) normalize() {
	def := defaultConfig()

	c.Render.Format = strings.ToLower(strings.TrimSpace(c.Render.Format))
	if c.Render.Format == "" {
		c.Render.Format = def.Render.Format
	}
	if c.Render.Format == "jpeg" {
		c.Render.Format = "jpg"
	}
	c.Render.Engine = strings.ToLower(strings.TrimSpace(c.Render.Engine))
	if c.Render.Engine == "" {
		c.Render.Engine = def.Render.Engine
	}
	if c.Render.PxPerMM <= 0 {
		c.Render.PxPerMM = def.Render.PxPerMM
	}
	if c.Render.JPEGQuality <= 0 {
		c.Render.JPEGQuality = def.Render.JPEGQuality
	}
	if c.Render.MinPageHeightMM <= 0 {
		c.Render.MinPageHeightMM = def.Render.MinPageHeightMM
	}
	if c.Render.PagePaddingMM <= 0 {
		c.Render.PagePaddingMM = def.Render.PagePaddingMM
	}

	c.Palette = c.Palette.withDefaults()

	c.Batch.OutputDir = strings.TrimSpace(c.Batch.OutputDir)
	if c.Batch.OutputDir == "" {
		c.Batch.OutputDir = def.Batch.OutputDir
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = def.Batch.Workers
	}
	c.Batch.LedgerPath = strings.TrimSpace(c.Batch.LedgerPath)

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

var (
	supportedFormats = map[string]bool{"svg": true, "html": true, "png": true, "jpg": true}
	supportedEngines = map[string]bool{"native": true, "chrome": true}
)

func (c *Config) validate() error {
	if c.Render.SecondsPerBar <= 0 {
		return fmt.Errorf("render.seconds_per_bar: %w: %d", ErrInvalidSecondsPerBar, c.Render.SecondsPerBar)
	}
	if !supportedFormats[c.Render.Format] {
		return fmt.Errorf("render.format: %w: %q", ErrUnsupportedFormat, c.Render.Format)
	}
	if !supportedEngines[c.Render.Engine] {
		return fmt.Errorf("render.engine must be native or chrome, got %q", c.Render.Engine)
	}
	if c.Render.JPEGQuality > 100 {
		return fmt.Errorf("render.jpeg_quality must be 1-100, got %d", c.Render.JPEGQuality)
	}
	if err := c.Palette.validate(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be console, json or auto, got %q", c.Logging.Format)
	}
	return nil
}

// layout derives the page geometry from the render settings.
func (c *Config) layout() LayoutConfig {
	return initializeLayoutConfig(c.Render.MinPageHeightMM, c.Render.PagePaddingMM)
}

// createSampleConfig writes the annotated sample configuration to path. An
// existing file is only replaced when overwrite is set.
func createSampleConfig(path string, overwrite bool) error {
	if path == "" {
		path = defaultConfigName
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check config path: %w", err)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
