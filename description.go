package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// --- Description Metadata ---

type descriptionSection int

const (
	sectionNone descriptionSection = iota
	sectionOutput
	sectionAccessories
	sectionNormalTime
	sectionEssentials
)

// Longer markers first so "FINAL OUTPUT" wins over "OUTPUT".
var descriptionMarkers = []struct {
	marker  string
	section descriptionSection
}{
	{"NORMAL COOKING TIME", sectionNormalTime},
	{"OTHER ESSENTIALS", sectionEssentials},
	{"FINAL OUTPUT", sectionOutput},
	{"NORMAL TIME", sectionNormalTime},
	{"ACCESSORIES", sectionAccessories},
	{"OUTPUT", sectionOutput},
}

// RecipeMeta is the metadata embedded in a recipe description.
type RecipeMeta struct {
	Output            string          `yaml:"output"`
	Accessories       []string        `yaml:"accessories"`
	NormalCookingTime string          `yaml:"normal_cooking_time,omitempty"` // empty when the description has none
	OtherEssentials   []EssentialLine `yaml:"other_essentials,omitempty"`
}

// EssentialLine is one "Other Essentials" entry, e.g. {"1 l", "Pre-Heated Oil"}.
type EssentialLine struct {
	Qty  string `yaml:"qty,omitempty"`
	Item string `yaml:"item"`
}

var (
	firstIntRe  = regexp.MustCompile(`\d+`)
	essentialRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]+)\s+(.+)`)
)

// parseDescription splits the description into marker sections. A marker
// starts a line; its section runs until the next marker or the end of text.
// Text on the marker line after the keyword belongs to the section.
func parseDescription(desc string) RecipeMeta {
	sections := make(map[descriptionSection][]string)
	current := sectionNone
	for _, raw := range strings.Split(strings.ReplaceAll(desc, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if section, rest, ok := matchMarker(line); ok {
			current = section
			line = rest
		}
		if line == "" || current == sectionNone {
			continue
		}
		sections[current] = append(sections[current], line)
	}

	meta := RecipeMeta{Output: "n/a"}
	if lines := sections[sectionOutput]; len(lines) > 0 {
		meta.Output = strings.Join(strings.Fields(gmUnitRe.ReplaceAllString(lines[0], "g")), " ")
	}
	for _, line := range sections[sectionAccessories] {
		if item := titleCase(strings.TrimLeft(line, "-*• ")); item != "" {
			meta.Accessories = append(meta.Accessories, item)
		}
	}
	if m := firstIntRe.FindString(strings.Join(sections[sectionNormalTime], " ")); m != "" {
		mins, _ := strconv.Atoi(m)
		meta.NormalCookingTime = pluralMinutes(mins)
	}
	for _, line := range sections[sectionEssentials] {
		meta.OtherEssentials = append(meta.OtherEssentials, parseEssential(line))
	}
	return meta
}

// matchMarker reports whether line opens a section and returns the text that
// follows the keyword.
func matchMarker(line string) (descriptionSection, string, bool) {
	for _, m := range descriptionMarkers {
		if len(line) < len(m.marker) || !strings.EqualFold(line[:len(m.marker)], m.marker) {
			continue
		}
		rest := line[len(m.marker):]
		if rest != "" && isWordByte(rest[0]) {
			continue
		}
		return m.section, strings.TrimSpace(strings.TrimLeft(rest, ":- \t")), true
	}
	return sectionNone, "", false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func parseEssential(line string) EssentialLine {
	m := essentialRe.FindStringSubmatch(line)
	if m == nil {
		return EssentialLine{Item: titleCase(line)}
	}
	unit := strings.ToLower(m[2])
	if unit == "gm" {
		unit = "g"
	}
	return EssentialLine{Qty: m[1] + " " + unit, Item: titleCase(m[3])}
}

func pluralMinutes(mins int) string {
	if mins == 1 {
		return "1 min"
	}
	return fmt.Sprintf("%d mins", mins)
}

// cookingMinutes is M:SS in minutes even below one minute ("0:45 mins"),
// unlike step durations.
func cookingMinutes(sec int) string {
	sec = nonNegative(sec)
	if sec == 60 {
		return "1:00 min"
	}
	return fmt.Sprintf("%d:%02d mins", sec/60, sec%60)
}

// cookingTimeLine is the single "Cooking Time" line of the card. Without a
// normal cooking time in the description it shows three times the on2cook time.
func cookingTimeLine(meta RecipeMeta, totalSec int) string {
	normal := meta.NormalCookingTime
	if normal == "" {
		normal = cookingMinutes(3 * totalSec)
	}
	return fmt.Sprintf("On2Cook: %s    Normal Cooking: %s", cookingMinutes(totalSec), normal)
}

// --- Ingredient Rows ---

// ingredientRow is one row of the printed ingredient list. Sub rows carry
// the packed sub-ingredient pairs in Name and leave Qty empty.
type ingredientRow struct {
	Qty  string
	Name string
	Sub  bool
}

// accessoryTitles are ingredient entries that describe equipment.
var accessoryTitles = []string{"grill mesh", "cake mold", "stirrer", "pan", "tray", "rack", "stand"}

const subLineCharLimit = 35

var (
	qtyTokenRe   = regexp.MustCompile(`(?i)^\d+(gm|g|kg|ml|l|number|nos)$`)
	unitTokenRe  = regexp.MustCompile(`(?i)^(gm|g|kg|ml|l|number|nos)$`)
	digitsRe     = regexp.MustCompile(`^\d+$`)
	parenGroupRe = regexp.MustCompile(`\([^)]*\)`)
	qtySplitRe   = regexp.MustCompile(`(\d)([A-Za-z])`)
)

// ingredientRows builds the ingredient list: a main row per ingredient and
// packed sub rows for its text.
func ingredientRows(ingredients []Ingredient) []ingredientRow {
	var rows []ingredientRow
	for _, ing := range ingredients {
		if isAccessoryTitle(ing.Title) {
			continue
		}
		if ing.Title != "" {
			rows = append(rows, ingredientRow{Qty: ing.Weight, Name: ing.Title})
		}
		for _, line := range packPairs(subIngredientPairs(ing.Text), subLineCharLimit) {
			rows = append(rows, ingredientRow{Name: line, Sub: true})
		}
	}
	return rows
}

func isAccessoryTitle(title string) bool {
	padded := " " + strings.Join(strings.Fields(strings.ToLower(title)), " ") + " "
	for _, a := range accessoryTitles {
		if strings.Contains(padded, " "+a+" ") {
			return true
		}
	}
	return false
}

// subIngredientPairs reads "salt 5 g, chilli flakes 2g" as
// ["5 g salt", "2 g chilli flakes"]. Words after the last quantity are kept
// as a final pair.
func subIngredientPairs(text string) []string {
	text = parenGroupRe.ReplaceAllString(strings.ReplaceAll(text, ",", " "), "")
	tokens := squashQty(strings.Fields(text))

	var pairs []string
	prev := -1
	for i, tok := range tokens {
		if !qtyTokenRe.MatchString(tok) {
			continue
		}
		if name := tokens[prev+1 : i]; len(name) > 0 {
			qty := gmUnitRe.ReplaceAllString(qtySplitRe.ReplaceAllString(tok, "$1 $2"), "g")
			pairs = append(pairs, qty+" "+strings.Join(name, " "))
		}
		prev = i
	}
	if tail := tokens[prev+1:]; len(tail) > 0 {
		pairs = append(pairs, strings.Join(tail, " "))
	}
	return pairs
}

// squashQty joins "5" "g" into "5g".
func squashQty(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) && digitsRe.MatchString(tokens[i]) && unitTokenRe.MatchString(tokens[i+1]) {
			out = append(out, tokens[i]+tokens[i+1])
			i++
			continue
		}
		out = append(out, tokens[i])
	}
	return out
}

// packPairs joins pairs with ", " into lines of at most limit characters.
// A single pair longer than limit gets a line of its own.
func packPairs(pairs []string, limit int) []string {
	var lines []string
	line := ""
	for _, p := range pairs {
		switch {
		case line == "":
			line = p
		case len(line)+len(p)+2 <= limit:
			line += ", " + p
		default:
			lines = append(lines, line)
			line = p
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
