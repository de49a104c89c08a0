package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/campuseats/menuscraper/pkg/menu"
)

const currencyTokens = `₩|원|KRW|Won`

var (
	priceRe       = regexp.MustCompile(`(?i)(?:(\d[\d,]*)[\s\-]*(?:` + currencyTokens + `)|(?:` + currencyTokens + `)[\s\-]*(\d[\d,]*))`)
	parentheticRe = regexp.MustCompile(`\(([^)]*)\)`)
	containsRe    = regexp.MustCompile(`(?i)^contains:\s*`)
	numericCodeRe = regexp.MustCompile(`^[\d,\s]+$`)
	spaceRunRe    = regexp.MustCompile(`\s+`)
)

// ExtractPrice returns the first currency-tagged amount in text, or nil.
// Thousands separators are dropped before conversion.
func ExtractPrice(text string) *float64 {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return nil
	}
	return menu.Float(v)
}

// StripPrices removes every currency-tagged amount from text.
func StripPrices(text string) string {
	return priceRe.ReplaceAllString(text, " ")
}

// AllergyCodes collects the legend codes from purely numeric parentheticals
// such as "(Contains: 1, 2)". Textual parentheticals are ignored.
func AllergyCodes(text string) []string {
	var codes []string
	seen := make(map[string]bool)
	for _, m := range parentheticRe.FindAllStringSubmatch(text, -1) {
		content, ok := numericContent(m[1])
		if !ok {
			continue
		}
		for _, code := range strings.Split(content, ",") {
			code = strings.TrimSpace(code)
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

func numericContent(paren string) (string, bool) {
	content := strings.TrimSpace(containsRe.ReplaceAllString(strings.TrimSpace(paren), ""))
	if !numericCodeRe.MatchString(content) {
		return "", false
	}
	return content, true
}

// Ingredients maps codes through the legend. Unknown codes are skipped and
// the result is unique by allergen name.
func Ingredients(codes []string, allergies menu.AllergyMap) []menu.Ingredient {
	out := []menu.Ingredient{}
	seen := make(map[string]bool)
	for _, code := range codes {
		name, ok := allergies[code]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, menu.Ingredient{Name: name, Description: ""})
	}
	return out
}

// CleanName drops allergy annotations and price tokens from a visible name.
func CleanName(name string) string {
	name = parentheticRe.ReplaceAllStringFunc(name, func(paren string) string {
		if _, ok := numericContent(paren[1 : len(paren)-1]); ok {
			return " "
		}
		return paren
	})
	name = StripPrices(name)
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(name, " "))
}

// defaultPrices are the flat prices of the two set-menu cafeterias, used
// when an item carries no price of its own. Names must match exactly.
var defaultPrices = map[string]map[menu.Meal]float64{
	"Undergraduate Cafeteria": {
		menu.Breakfast: 3500,
		menu.Lunch:     5500,
		menu.Dinner:    5500,
	},
	"West-Campus Student Cafeteria": {
		menu.Breakfast: 3700,
		menu.Lunch:     5000,
		menu.Dinner:    5000,
	},
}

// DefaultPrice returns the fallback price for a restaurant's meal, or nil.
func DefaultPrice(restaurant string, meal menu.Meal) *float64 {
	prices, ok := defaultPrices[restaurant]
	if !ok {
		return nil
	}
	v, ok := prices[meal]
	if !ok {
		return nil
	}
	return &v
}
