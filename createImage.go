// createImage.go
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"

	"github.com/chromedp/chromedp"
)

// generateImage rasterizes an SVG card in headless Chrome and writes it as
// PNG or JPEG. It is the "chrome" engine; the native engine is drawRaster.
func generateImage(ctx context.Context, svgString, format string, quality int, outputWriter io.Writer, logger *slog.Logger) error {
	// 1. Load the SVG straight from a data URI, no temp file
	dataURI := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svgString))

	// 2. Setup chromedp
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	// 3. Navigate and screenshot the svg element
	var screenshotBuf []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate(dataURI),
		chromedp.WaitVisible(`svg`, chromedp.ByQuery),
		chromedp.Screenshot(`svg`, &screenshotBuf, chromedp.ByQuery),
	}

	logger.Debug("running chromedp tasks", "format", format)
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return fmt.Errorf("chromedp execution failed: %w", err)
	}
	if len(screenshotBuf) == 0 {
		return fmt.Errorf("screenshot buffer is empty, screenshot failed")
	}

	// 4. The screenshot is PNG; re-encode for JPEG
	screenshotReader := bytes.NewReader(screenshotBuf)
	switch format {
	case "png":
		if _, err := io.Copy(outputWriter, screenshotReader); err != nil {
			return fmt.Errorf("failed to write PNG screenshot data: %w", err)
		}
	case "jpg", "jpeg":
		img, err := png.Decode(screenshotReader)
		if err != nil {
			return fmt.Errorf("failed to decode PNG screenshot: %w", err)
		}
		if err := jpeg.Encode(outputWriter, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q with chromedp", ErrUnsupportedFormat, format)
	}

	logger.Debug("encoded image using chromedp", "format", strings.ToUpper(format), "bytes", len(screenshotBuf))
	return nil
}
