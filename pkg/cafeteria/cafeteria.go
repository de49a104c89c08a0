// Package cafeteria expands "<Cafeteria>" combo entries, which pack several
// priced dishes and their unpriced sides into a single scraped item.
package cafeteria

import (
	"regexp"
	"strings"

	"github.com/campuseats/menuscraper/pkg/menu"
	"github.com/campuseats/menuscraper/pkg/parser"
)

var (
	parenRe       = regexp.MustCompile(`\([^)]*\)`)
	amountRe      = regexp.MustCompile(`(?i)(₩|원|KRW|Won)?\s*[\d,]+(₩|원|KRW|Won)?`)
	leadingPlusRe = regexp.MustCompile(`^\+\s*`)
	trailPlusRe   = regexp.MustCompile(`\s*\+$`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// Expand replaces every combo item with one item per priced part. Unpriced
// parts are joined onto the priced part before them with " + "; a leading
// unpriced part has nothing to join and is dropped. Other items pass
// through in place. Expanding an already expanded list is a no-op.
func Expand(items []menu.Item, allergies menu.AllergyMap) []menu.Item {
	out := make([]menu.Item, 0, len(items))
	for _, item := range items {
		if !strings.Contains(item.Name, parser.CafeteriaMarker) {
			out = append(out, item)
			continue
		}
		out = append(out, split(item, allergies)...)
	}
	return out
}

func split(combo menu.Item, allergies menu.AllergyMap) []menu.Item {
	base := strings.TrimSpace(strings.ReplaceAll(combo.Name, parser.CafeteriaMarker, ""))

	var expanded []menu.Item
	target := -1
	for _, part := range strings.Split(base, "\r") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		price := parser.ExtractPrice(part)
		codes := parser.AllergyCodes(part)
		ingredients := parser.Ingredients(codes, allergies)
		name := cleanPart(part)

		if price != nil {
			expanded = append(expanded, menu.Item{
				Meal:            combo.Meal,
				Name:            name,
				Description:     combo.Description,
				MainIngredients: ingredients,
				Price:           price,
				AllergyCodes:    codes,
			})
			target = len(expanded) - 1
			continue
		}
		if target < 0 {
			continue
		}
		t := &expanded[target]
		t.Name += " + " + name
		t.MainIngredients = menu.MergeIngredients(t.MainIngredients, ingredients)
		t.AllergyCodes = menu.UnionCodes(t.AllergyCodes, codes)
	}
	return expanded
}

func cleanPart(part string) string {
	name := strings.TrimSpace(parenRe.ReplaceAllString(part, ""))
	name = strings.TrimSpace(amountRe.ReplaceAllString(name, ""))
	name = leadingPlusRe.ReplaceAllString(name, "")
	name = trailPlusRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(spaceRe.ReplaceAllString(name, " "))
	return strings.TrimSpace(strings.ReplaceAll(name, " KRW", " "))
}
