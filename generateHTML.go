// generateHTML.go
package main

import (
	"fmt"
	"strings"
)

// generateHTML wraps the SVG card in a printable page with a plain-text step
// list under it.
func generateHTML(card *CardLayout) (string, error) {
	svgContent, err := GenerateSVG(card)
	if err != nil {
		return "", fmt.Errorf("SVG generation failed: %w", err)
	}
	// inline svg takes no xml prolog
	if i := strings.Index(svgContent, "<svg"); i > 0 {
		svgContent = svgContent[i:]
	}

	var htmlBuilder strings.Builder

	// --- Basic HTML Structure ---
	htmlBuilder.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	htmlBuilder.WriteString(fmt.Sprintf("<title>%s</title>\n", escapeXML(card.Name)))
	htmlBuilder.WriteString("<style>\n")
	htmlBuilder.WriteString(fmt.Sprintf("body { margin: 0; padding: 20px; font-family: %s; }\n", svgFontFamily))
	htmlBuilder.WriteString(fmt.Sprintf(".card { width: %.0fmm; margin: 0 auto; box-shadow: 0 0 4px #ccc; }\n", card.Width))
	htmlBuilder.WriteString(".card svg { display: block; }\n")
	htmlBuilder.WriteString(".steps { width: 210mm; margin: 20px auto; font-size: 11pt; }\n")
	htmlBuilder.WriteString(".steps .duration { color: #666; margin-left: 0.5em; }\n")
	htmlBuilder.WriteString("@media print { body { padding: 0; } .card { box-shadow: none; } .steps { display: none; } }\n")
	htmlBuilder.WriteString("</style>\n</head>\n<body>\n")

	// --- Card ---
	htmlBuilder.WriteString("<div class=\"card\">\n")
	htmlBuilder.WriteString(svgContent)
	htmlBuilder.WriteString("</div>\n")

	// --- Step List ---
	if len(card.Blocks.Blocks) > 0 {
		htmlBuilder.WriteString("<ol class=\"steps\">\n")
		for _, b := range card.Blocks.Blocks {
			htmlBuilder.WriteString("  <li>")
			htmlBuilder.WriteString(escapeXML(strings.Join(b.Lines, " ")))
			htmlBuilder.WriteString(fmt.Sprintf("<span class=\"duration\">%s</span>", escapeXML(b.Duration)))
			htmlBuilder.WriteString("</li>\n")
		}
		htmlBuilder.WriteString("</ol>\n")
	}

	htmlBuilder.WriteString("</body>\n</html>\n")
	return htmlBuilder.String(), nil
}
