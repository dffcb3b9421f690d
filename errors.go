package main

import "errors"

var (
	// ErrInvalidRecord marks input that cannot be read as a recipe object at all.
	ErrInvalidRecord = errors.New("invalid recipe record")
	// ErrNoRecipeFile is returned when a bundle carries no .json or .txt record.
	ErrNoRecipeFile = errors.New("bundle has no recipe file")
	// ErrInvalidSecondsPerBar rejects a non-positive timeline density.
	ErrInvalidSecondsPerBar = errors.New("seconds per bar must be a positive integer")
	// ErrUnsupportedFormat rejects output formats other than svg, html, png, jpg.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrImageTooLarge rejects raster pages beyond maxRasterPixels.
	ErrImageTooLarge = errors.New("raster page too large")
	// ErrOutputLocked is returned when another batch holds the output directory.
	ErrOutputLocked = errors.New("output directory is locked by another batch")
)
