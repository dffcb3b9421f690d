package main

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
)

// --- Native Raster Painter ---

// rasterPainter paints shapes onto a gg context. Coordinates are converted to
// pixels here rather than through a context transform, which would scale
// glyph bitmaps instead of rendering them at full resolution.
type rasterPainter struct {
	dc      *gg.Context
	fonts   *fontSet
	pxPerMM float64
	faces   map[FontStyle]font.Face
}

func (p *rasterPainter) px(mm float64) float64 { return mm * p.pxPerMM }

// maxRasterPixels bounds the RGBA canvas (4 bytes per pixel).
const maxRasterPixels = 64 << 20

// rasterSize is the pixel size of card at pxPerMM.
func rasterSize(card *CardLayout, pxPerMM float64) (int, int, error) {
	if pxPerMM <= 0 {
		return 0, 0, fmt.Errorf("px_per_mm must be positive, got %v", pxPerMM)
	}
	w := math.Ceil(card.Width * pxPerMM)
	h := math.Ceil(card.Height * pxPerMM)
	if w < 1 || h < 1 || w*h > maxRasterPixels {
		return 0, 0, fmt.Errorf("%w: %.0fx%.0f px", ErrImageTooLarge, w, h)
	}
	return int(w), int(h), nil
}

// drawRaster paints card at pxPerMM and encodes it as PNG or JPEG.
func drawRaster(card *CardLayout, fonts *fontSet, pxPerMM float64, format string, quality int, w io.Writer) error {
	width, height, err := rasterSize(card, pxPerMM)
	if err != nil {
		return err
	}

	p := &rasterPainter{
		dc:      gg.NewContext(width, height),
		fonts:   fonts,
		pxPerMM: pxPerMM,
		faces:   make(map[FontStyle]font.Face),
	}
	for _, s := range card.Shapes {
		p.paint(s)
	}

	img := p.dc.Image()
	switch format {
	case "png":
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("failed to encode PNG: %w", err)
		}
	case "jpg", "jpeg":
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		return fmt.Errorf("%w: raster %q", ErrUnsupportedFormat, format)
	}
	return nil
}

func (p *rasterPainter) paint(s Shape) {
	dc := p.dc
	switch s.Kind {
	case shapeRect:
		if s.Fill == "" {
			return
		}
		dc.DrawRectangle(p.px(s.X), p.px(s.Y), p.px(s.W), p.px(s.H))
		dc.SetColor(parseColor(s.Fill))
		dc.Fill()

	case shapeTopRoundedRect:
		p.topRoundedRect(s)
		dc.SetColor(parseColor(s.Fill))
		dc.Fill()

	case shapeCircle:
		dc.DrawCircle(p.px(s.X), p.px(s.Y), p.px(s.R))
		p.fillAndStroke(s)

	case shapeLine:
		if len(s.Points) < 2 {
			return
		}
		dc.MoveTo(p.px(s.Points[0].X), p.px(s.Points[0].Y))
		for _, pt := range s.Points[1:] {
			dc.LineTo(p.px(pt.X), p.px(pt.Y))
		}
		dc.SetLineCap(gg.LineCapRound)
		dc.SetLineJoin(gg.LineJoinRound)
		dc.SetLineWidth(math.Max(1, p.px(s.StrokeWidth)))
		dc.SetColor(parseColor(s.Stroke))
		dc.Stroke()

	case shapeText:
		dc.SetFontFace(p.face(s.Font))
		dc.SetColor(parseColor(s.Fill))
		ax := 0.0
		if s.Anchor == anchorMiddle {
			ax = 0.5
		}
		dc.DrawStringAnchored(s.Text, p.px(s.X), p.px(s.Y), ax, 0)

	case shapeImage:
		if s.Image == nil || s.Image.Img == nil {
			return
		}
		frame := fitImage(s.Image.Img, int(math.Round(p.px(s.W))), int(math.Round(p.px(s.H))))
		dc.DrawImage(frame, int(math.Round(p.px(s.X))), int(math.Round(p.px(s.Y))))
	}
}

func (p *rasterPainter) fillAndStroke(s Shape) {
	dc := p.dc
	switch {
	case s.Fill != "" && s.Stroke != "":
		dc.SetColor(parseColor(s.Fill))
		dc.FillPreserve()
		dc.SetColor(parseColor(s.Stroke))
		dc.SetLineWidth(math.Max(1, p.px(s.StrokeWidth)))
		dc.Stroke()
	case s.Fill != "":
		dc.SetColor(parseColor(s.Fill))
		dc.Fill()
	case s.Stroke != "":
		dc.SetColor(parseColor(s.Stroke))
		dc.SetLineWidth(math.Max(1, p.px(s.StrokeWidth)))
		dc.Stroke()
	default:
		dc.ClearPath()
	}
}

func (p *rasterPainter) topRoundedRect(s Shape) {
	dc := p.dc
	x, y, w, h := p.px(s.X), p.px(s.Y), p.px(s.W), p.px(s.H)
	r := math.Min(p.px(s.R), math.Min(w/2, h))
	dc.NewSubPath()
	dc.MoveTo(x, y+h)
	dc.LineTo(x, y+r)
	dc.DrawArc(x+r, y+r, r, math.Pi, 1.5*math.Pi)
	dc.LineTo(x+w-r, y)
	dc.DrawArc(x+w-r, y+r, r, 1.5*math.Pi, 2*math.Pi)
	dc.LineTo(x+w, y+h)
	dc.ClosePath()
}

// face builds faces at a resolution where one point covers pxPerMM*25.4/72
// pixels.
func (p *rasterPainter) face(style FontStyle) font.Face {
	if f, ok := p.faces[style]; ok {
		return f
	}
	f := p.fonts.newFace(style, mmPerInch*p.pxPerMM)
	p.faces[style] = f
	return f
}

// fitImage scales src to exactly w x h pixels.
func fitImage(src image.Image, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
