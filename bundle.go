package main

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// --- Recipe Bundles ---

// cardImage is the recipe photo: raw bytes for vector output, decoded
// pixels for raster output.
type cardImage struct {
	Name string
	Mime string
	Data []byte
	Img  image.Image
}

// bundle is one recipe ready for rendering.
type bundle struct {
	Source string
	Record *RecipeRecord
	Photo  *cardImage // nil renders the placeholder
	Digest string    // sha256 of every input byte
}

var imageExts = []string{".jpg", ".jpeg", ".png"}

func isImageName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExts {
		if ext == e {
			return true
		}
	}
	return false
}

func isRecordName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".json" || ext == ".txt"
}

// loadBundle reads a .zip bundle or a bare .json record. imagePath overrides
// the photo for a bare record; empty means look for a sibling image.
func loadBundle(path, imagePath string, logger *slog.Logger) (*bundle, error) {
	logger.Info("reading bundle", "path", path)
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return loadZipBundle(path, logger)
	}
	return loadJSONBundle(path, imagePath, logger)
}

func loadZipBundle(path string, logger *slog.Logger) (*bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}

	var recordFile, imageFile *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") || strings.HasPrefix(filepath.Base(f.Name), "._") {
			continue
		}
		switch {
		case recordFile == nil && isRecordName(f.Name):
			recordFile = f
		case imageFile == nil && isImageName(f.Name):
			imageFile = f
		}
	}
	if recordFile == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRecipeFile, path)
	}

	raw, err := readZipFile(recordFile)
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecipe(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", recordFile.Name, err)
	}

	b := &bundle{Source: path, Record: rec, Digest: digest(data)}
	if imageFile != nil {
		imgData, err := readZipFile(imageFile)
		if err != nil {
			return nil, err
		}
		b.Photo = decodeCardImage(imageFile.Name, imgData, logger)
	}
	return b, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func loadJSONBundle(path, imagePath string, logger *slog.Logger) (*bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", path, err)
	}
	rec, err := decodeRecipe(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if imagePath == "" {
		imagePath = siblingImage(path)
	}
	b := &bundle{Source: path, Record: rec}
	inputs := [][]byte{raw}
	if imagePath != "" {
		imgData, err := os.ReadFile(imagePath)
		if err != nil {
			// a missing photo never fails the render
			logger.Warn("photo unreadable, using placeholder", "path", imagePath, "error", err)
		} else {
			b.Photo = decodeCardImage(imagePath, imgData, logger)
			inputs = append(inputs, imgData)
		}
	}
	b.Digest = digest(inputs...)
	return b, nil
}

// siblingImage finds "name.jpg" (or .jpeg, .png) next to "name.json".
func siblingImage(recordPath string) string {
	base := strings.TrimSuffix(recordPath, filepath.Ext(recordPath))
	for _, ext := range imageExts {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext
		}
	}
	return ""
}

// decodeCardImage returns nil when the bytes are not a decodable image.
func decodeCardImage(name string, data []byte, logger *slog.Logger) *cardImage {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Warn("photo not decodable, using placeholder", "image", name, "error", err)
		return nil
	}
	return &cardImage{Name: name, Mime: "image/" + format, Data: data, Img: img}
}

func digest(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// expandInputs turns directory arguments into their .zip bundles. File
// arguments pass through in order.
func expandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", arg, err)
		}
		var zips []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
				zips = append(zips, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(zips)
		out = append(out, zips...)
	}
	return out, nil
}
