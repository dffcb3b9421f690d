package main

import (
	"fmt"
	"math"
)

// --- Card Layout ---

// A card is one printed page; records beyond these bounds are rejected
// before any geometry is allocated.
const (
	maxTimelineBars = 1000
	maxCardSteps    = 200
)

// cardOptions are the render settings the layout reads.
type cardOptions struct {
	SecondsPerBar int
	Layout        LayoutConfig
	Palette       Palette
	Photo         *cardImage
}

// CardLayout is the finished, paintable card: every shape in paint order
// plus the intermediate results the inspect command reports.
type CardLayout struct {
	Name          string
	Width, Height float64
	Shapes        []Shape
	Steps         []NormalizedStep
	Meta          RecipeMeta
	Timeline      TimelineLayout
	Blocks        StepLayout
	LeftBottom    float64
	RightBottom   float64
}

// layoutCard computes the whole card for rec. rec itself is never modified.
func layoutCard(rec *RecipeRecord, opts cardOptions, m textMeasurer) (*CardLayout, error) {
	if opts.SecondsPerBar <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSecondsPerBar, opts.SecondsPerBar)
	}
	cfg := opts.Layout
	pal := opts.Palette.withDefaults()

	clean := cleanRecord(rec)
	steps := normalizeSteps(clean.Steps)
	meta := parseDescription(clean.Description)
	total := totalDuration(steps)
	if len(steps) > maxCardSteps {
		return nil, fmt.Errorf("%w: %d steps, at most %d fit on a card", ErrInvalidRecord, len(steps), maxCardSteps)
	}
	if bars := totalBars(steps, opts.SecondsPerBar); bars > maxTimelineBars {
		return nil, fmt.Errorf("%w: timeline needs %d bars, at most %d fit on a card", ErrInvalidRecord, bars, maxTimelineBars)
	}

	card := &CardLayout{
		Name:  clean.displayName(),
		Width: cfg.PageWidth,
		Steps: steps,
		Meta:  meta,
	}

	// paper is sized once the content extent is known
	var d displayList
	d.rect("paper", 0, 0, cfg.PageWidth, 0, pal.Paper)

	card.LeftBottom = layoutLeftColumn(&d, leftColumnParams{
		Name:        card.Name,
		Photo:       opts.Photo,
		Meta:        meta,
		Ingredients: clean.Ingredients,
		TotalSec:    total,
	}, cfg, pal, m)

	drawChannelHeader(&d, hasStirrerActivity(clean.Steps), cfg, pal)

	g := cfg.timelineGeometry()
	card.Timeline = layoutTimeline(steps, opts.SecondsPerBar, g)
	card.Blocks = layoutStepBlocks(steps, clean.Ingredients, opts.SecondsPerBar, cfg, m)

	drawTimeline(&d, card.Timeline, pal)
	card.Blocks.drawConnectors(&d, cfg, pal)
	d.rect("spine", card.Timeline.Spine.X, card.Timeline.Spine.Y, card.Timeline.Spine.W, card.Timeline.Spine.H, pal.Skin)
	card.Blocks.drawStirrer(&d, cfg, pal)
	card.Blocks.drawMarkers(&d, cfg, pal)
	card.Blocks.drawBlocks(&d, cfg, pal)
	card.RightBottom = drawTerminal(&d, card.Timeline.Terminal, meta.Output, cfg, pal)

	for _, b := range card.Blocks.Blocks {
		card.RightBottom = math.Max(card.RightBottom, b.AnchorY+b.Advance-cfg.HeaderAllowance)
	}

	card.Height = pageHeight(d.bounds, cfg)
	d.shapes[0].H = card.Height
	card.Shapes = d.shapes
	return card, nil
}

// pageHeight is the content extent plus padding, never below the minimum.
func pageHeight(b bounds, cfg LayoutConfig) float64 {
	if !b.isSet {
		return cfg.MinPageHeight
	}
	return math.Max(cfg.MinPageHeight, math.Ceil(b.maxY+cfg.PagePadding))
}

// estimateHeight sizes the page for rec before anything is painted. It runs
// the same layout the painters consume, so the two cannot disagree.
func estimateHeight(rec *RecipeRecord, opts cardOptions, m textMeasurer) (float64, error) {
	card, err := layoutCard(rec, opts, m)
	if err != nil {
		return 0, err
	}
	return card.Height, nil
}

// --- Right Column Header ---

const (
	rulerTicks     = 11
	rulerTickLong  = 3.0
	rulerTickShort = 2.0
)

// drawChannelHeader draws the INDUCTION and MICROWAVE circles, the stirrer
// glyph between them and the ruler under each circle.
func drawChannelHeader(d *displayList, stirrer bool, cfg LayoutConfig, pal Palette) {
	r := cfg.channelRadius()
	channels := []struct {
		x     float64
		label string
		fill  string
	}{
		{cfg.inductionX(), "INDUCTION", pal.Induction},
		{cfg.magnetronX(), "MICROWAVE", pal.Magnetron},
	}
	for _, ch := range channels {
		d.circle("channel", ch.x, cfg.ChannelY, r, ch.fill, "", 0)
		d.text("channel-label", ch.x, cfg.ChannelY+0.9, ch.label, fontChannelLabel, pal.Paper, anchorMiddle)
		drawRuler(d, ch.x-r, cfg.RulerBaseY, cfg.ChannelDiameter/float64(rulerTicks-1), pal)
	}

	if stirrer {
		cx := (cfg.inductionX() + cfg.magnetronX()) / 2
		cy := cfg.ChannelY
		d.circle("stirrer-glyph", cx, cy, 1.8, pal.Paper, pal.Ink, 0.3)
		d.polyline("stirrer-glyph", pal.Ink, 0.3, Point{cx - 1.2, cy - 1.2}, Point{cx + 1.2, cy + 1.2})
		d.polyline("stirrer-glyph", pal.Ink, 0.3, Point{cx - 1.2, cy + 1.2}, Point{cx + 1.2, cy - 1.2})
	}
}

// drawRuler draws ticks rising from baseY, long and short alternately.
func drawRuler(d *displayList, x0, baseY, spacing float64, pal Palette) {
	for i := 0; i < rulerTicks; i++ {
		h := rulerTickShort
		if i%2 == 0 {
			h = rulerTickLong
		}
		x := x0 + float64(i)*spacing
		d.polyline("ruler", pal.Ink, 0.2, Point{x, baseY}, Point{x, baseY - h})
	}
}

// --- Timeline Drawing ---

func drawTimeline(d *displayList, tl TimelineLayout, pal Palette) {
	fills := map[segmentKind]string{
		segmentTrack:     pal.Track,
		segmentExtra:     pal.extraTrack(),
		segmentPump:      pal.Pump,
		segmentInduction: pal.InductionBar,
		segmentMagnetron: pal.MagnetronBar,
	}
	for _, seg := range tl.Segments {
		d.rect("bar", seg.X, seg.Y, seg.W, seg.H, fills[seg.Kind])
	}
}

// drawTerminal draws the completion marker with its check and the total
// output caption, and returns the caption's baseline.
func drawTerminal(d *displayList, at Point, output string, cfg LayoutConfig, pal Palette) float64 {
	r := cfg.MarkerRadius
	d.circle("terminal", at.X, at.Y, r, pal.Skin, pal.Ink, ptToMM(0.5))
	d.polyline("terminal-check", pal.Ink, 0.3,
		Point{at.X - 1, at.Y},
		Point{at.X - 0.3, at.Y + 0.8},
		Point{at.X + 1.1, at.Y - 0.8},
	)

	y := at.Y + r + 5
	d.text("total-output-label", at.X, y, "Total Output:", fontTotalOutput, pal.Ink, anchorMiddle)
	y += 4
	d.text("total-output", at.X, y, output, fontDetail, pal.Ink, anchorMiddle)
	return y
}
