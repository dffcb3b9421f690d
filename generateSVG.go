// generateSVG.go
package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// svgo works in integer user units; one unit is a hundredth of a millimetre.
const svgUnitsPerMM = 100

const svgFontFamily = "Go, Helvetica, Arial, sans-serif"

func su(mm float64) int { return int(math.Round(mm * svgUnitsPerMM)) }

// GenerateSVG paints the card as a standalone SVG document sized in mm.
func GenerateSVG(card *CardLayout) (string, error) {
	if card == nil {
		return "", fmt.Errorf("no card layout to paint")
	}
	var buf bytes.Buffer
	canvas := svg.New(&buf)

	w, h := int(math.Ceil(card.Width)), int(math.Ceil(card.Height))
	canvas.StartviewUnit(w, h, "mm", 0, 0, w*svgUnitsPerMM, h*svgUnitsPerMM)
	canvas.Title(card.Name)

	for _, s := range card.Shapes {
		if err := paintSVGShape(canvas, s); err != nil {
			return "", fmt.Errorf("paint %s: %w", s.Role, err)
		}
	}

	canvas.End()
	return buf.String(), nil
}

func paintSVGShape(canvas *svg.SVG, s Shape) error {
	class := fmt.Sprintf(`class="%s"`, s.Role)
	switch s.Kind {
	case shapeRect:
		if s.Fill == "" {
			return nil
		}
		canvas.Rect(su(s.X), su(s.Y), su(s.W), su(s.H), class, "fill:"+s.Fill)

	case shapeTopRoundedRect:
		canvas.Path(topRoundedPath(s), class, "fill:"+s.Fill)

	case shapeCircle:
		canvas.Circle(su(s.X), su(s.Y), su(s.R), class, svgPaintStyle(s))

	case shapeLine:
		if len(s.Points) < 2 {
			return nil
		}
		xs := make([]int, len(s.Points))
		ys := make([]int, len(s.Points))
		for i, p := range s.Points {
			xs[i], ys[i] = su(p.X), su(p.Y)
		}
		canvas.Polyline(xs, ys, class, fmt.Sprintf("fill:none;stroke:%s;stroke-width:%d;stroke-linecap:round;stroke-linejoin:round", s.Stroke, max(1, su(s.StrokeWidth))))

	case shapeText:
		weight := "normal"
		if s.Font.Bold {
			weight = "bold"
		}
		anchor := "start"
		if s.Anchor == anchorMiddle {
			anchor = "middle"
		}
		canvas.Text(su(s.X), su(s.Y), s.Text, class, fmt.Sprintf("font-family:%s;font-size:%d;font-weight:%s;text-anchor:%s;fill:%s",
			svgFontFamily, su(ptToMM(s.Font.Size)), weight, anchor, s.Fill))

	case shapeImage:
		if s.Image == nil || len(s.Image.Data) == 0 {
			return nil
		}
		href := "data:" + s.Image.Mime + ";base64," + base64.StdEncoding.EncodeToString(s.Image.Data)
		canvas.Image(su(s.X), su(s.Y), su(s.W), su(s.H), href, class, `preserveAspectRatio="none"`)

	default:
		return fmt.Errorf("unknown shape kind %d", s.Kind)
	}
	return nil
}

func svgPaintStyle(s Shape) string {
	fill := s.Fill
	if fill == "" {
		fill = "none"
	}
	if s.Stroke == "" {
		return "fill:" + fill
	}
	return fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%d", fill, s.Stroke, max(1, su(s.StrokeWidth)))
}

// topRoundedPath outlines a rectangle whose top two corners are rounded.
func topRoundedPath(s Shape) string {
	r := math.Min(s.R, math.Min(s.W/2, s.H))
	x0, y0, x1, y1 := su(s.X), su(s.Y), su(s.X+s.W), su(s.Y+s.H)
	ri := su(r)

	var d strings.Builder
	fmt.Fprintf(&d, "M%d,%d ", x0, y1)
	fmt.Fprintf(&d, "L%d,%d ", x0, y0+ri)
	fmt.Fprintf(&d, "A%d,%d 0 0 1 %d,%d ", ri, ri, x0+ri, y0)
	fmt.Fprintf(&d, "L%d,%d ", x1-ri, y0)
	fmt.Fprintf(&d, "A%d,%d 0 0 1 %d,%d ", ri, ri, x1, y0+ri)
	fmt.Fprintf(&d, "L%d,%d Z", x1, y1)
	return d.String()
}
