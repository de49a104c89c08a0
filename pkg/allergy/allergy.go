// Package allergy turns the allergen legend printed under a cafeteria menu
// into a code → allergen lookup table.
package allergy

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/campuseats/menuscraper/pkg/menu"
)

// minDenseEntries is how many "N. name" tokens a run needs before it is
// trusted as the mapping when no bracketed block exists.
const minDenseEntries = 5

var (
	bracketRe = regexp.MustCompile(`\[(.*?)\]`)
	denseRe   = regexp.MustCompile(`((?:\d+\.?\s*[^\d]+[/,]?\s*){` + strconv.Itoa(minDenseEntries) + `,})`)

	// entryRe matches "<code>. <name> (optional note)" followed by its delimiter.
	// RE2 has no lookahead, so the delimiter is consumed and Extract steps
	// back when it ends on the next code's first digit.
	entryRe = regexp.MustCompile(`(\d+)\.?\s*([A-Za-z\x{AC00}-\x{D7A3}][A-Za-z\x{AC00}-\x{D7A3}\s\-]*?)(?:\s*\([^)]*\))?(\s*[/,]|\s+\d|$)`)

	fallbackRe = regexp.MustCompile(`(\d+).\s*([^/]+)`)
)

// Extract parses a legend block. It never fails: an unrecognizable
// legend yields an empty map. When a code appears twice the later entry wins.
func Extract(legend string) menu.AllergyMap {
	text := strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(legend))
	out := menu.AllergyMap{}
	if text == "" {
		return out
	}

	for code, name := range scanEntries(mappingSubstring(text)) {
		out[code] = name
	}
	if len(out) > 0 {
		return out
	}

	// Secondary pass: everything after the last "allergy", split on slashes.
	tail := strings.ToLower(text)
	if idx := strings.LastIndex(tail, "allergy"); idx >= 0 {
		tail = tail[idx+len("allergy"):]
	}
	tail = strings.TrimSpace(tail)
	for _, m := range fallbackRe.FindAllStringSubmatch(tail, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out[strconv.Itoa(n)] = normalizeName(m[2])
	}
	return out
}

func mappingSubstring(text string) string {
	if m := bracketRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := denseRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

func scanEntries(s string) map[string]string {
	found := make(map[string]string)
	pos := 0
	for pos < len(s) {
		loc := entryRe.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		code := s[pos+loc[2] : pos+loc[3]]
		found[code] = normalizeName(s[pos+loc[4] : pos+loc[5]])

		next := pos + loc[1]
		if delim := s[pos+loc[6] : pos+loc[7]]; delim != "" && unicode.IsDigit(rune(delim[len(delim)-1])) {
			next--
		}
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
	return found
}

func normalizeName(name string) string {
	name = strings.Trim(strings.TrimSpace(name), " -")
	name = strings.ReplaceAll(name, "  ", " ")
	return strings.ToLower(name)
}
