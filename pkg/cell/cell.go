// Package cell splits one menu table cell into per-item text chunks.
//
// Chunks use two control characters: '\n' marks a single <br> inside an
// item and '\r' marks a line break that was present in the page text
// (combo entries list their sub-items on separate source lines). Every
// other whitespace run is collapsed to one space.
package cell

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/campuseats/menuscraper/pkg/menu"
)

var (
	openTagRe   = regexp.MustCompile(`(?i)^\s*<td[^>]*>`)
	closeTagRe  = regexp.MustCompile(`(?i)</td>\s*$`)
	doubleBrRe  = regexp.MustCompile(`(?i)<br\s*/?>\s*(?:\r?\n)?\s*<br\s*/?>`)
	whitespace  = regexp.MustCompile(`[\s\x{00A0}]+`)
	mealColumns = []menu.Meal{menu.Breakfast, menu.Lunch, menu.Dinner}
)

// Split returns the non-empty item chunks of a cell in page order.
// cellMarkup may include the enclosing <td> tag.
func Split(cellMarkup string) []string {
	inner := openTagRe.ReplaceAllString(cellMarkup, "")
	inner = closeTagRe.ReplaceAllString(inner, "")

	var chunks []string
	for _, fragment := range doubleBrRe.Split(inner, -1) {
		if text := Text(fragment); text != "" {
			chunks = append(chunks, text)
		}
	}
	return chunks
}

// MealFor labels the index-th cell of a table row.
func MealFor(index int) menu.Meal {
	if index >= 0 && index < len(mealColumns) {
		return mealColumns[index]
	}
	return menu.PositionalMeal(index)
}

// Text renders an HTML fragment to chunk text.
func Text(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.TextToken:
			// The tokenizer has already folded CR and CRLF into LF.
			b.WriteString(strings.ReplaceAll(string(z.Text()), "\n", "\r"))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			b.WriteByte(' ')
		}
	}
	return normalize(b.String())
}

func normalize(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = whitespace.ReplaceAllStringFunc(line, func(run string) string {
			if strings.Contains(run, "\r") {
				return "\r"
			}
			return " "
		})
		line = strings.Trim(line, " \r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
