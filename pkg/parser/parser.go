// Package parser turns the text chunks of one meal cell into menu items.
package parser

import (
	"strings"

	"github.com/campuseats/menuscraper/pkg/cell"
	"github.com/campuseats/menuscraper/pkg/menu"
)

const (
	// CafeteriaMarker tags combo entries that the cafeteria package expands.
	CafeteriaMarker = "<Cafeteria>"

	saladKey     = "vegetable salad & dressing"
	promotionKey = "global leadership"
)

// side is an unpriced salad waiting to be attached to a main dish.
type side struct {
	name        string
	ingredients []menu.Ingredient
	codes       []string
}

// ParseCell splits a table cell and parses its chunks.
func ParseCell(cellMarkup string, meal menu.Meal, allergies menu.AllergyMap, restaurant string) []menu.Item {
	return ParseMeal(cell.Split(cellMarkup), meal, allergies, restaurant)
}

// ParseMeal parses every chunk of one meal slot.
//
// Salads without a price are pulled out first and appended to the first
// following item whose name does not already mention them. Promotional
// "global leadership" entries are skipped.
func ParseMeal(chunks []string, meal menu.Meal, allergies menu.AllergyMap, restaurant string) []menu.Item {
	var pending *side
	mains := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.Contains(strings.ToLower(chunk), saladKey) {
			salad, ok := ParseItem(chunk, meal, allergies, "")
			if ok && salad.Price == nil {
				pending = &side{name: salad.Name, ingredients: salad.MainIngredients, codes: salad.AllergyCodes}
				continue
			}
		}
		mains = append(mains, chunk)
	}

	var items []menu.Item
	for _, chunk := range mains {
		if strings.Contains(strings.ToLower(chunk), promotionKey) {
			continue
		}
		item, ok := ParseItem(chunk, meal, allergies, restaurant)
		if !ok {
			continue
		}
		if pending != nil && !strings.Contains(item.Name, pending.name) {
			item.Name = item.Name + " + " + pending.name
			item.MainIngredients = menu.MergeIngredients(item.MainIngredients, pending.ingredients)
			item.AllergyCodes = menu.UnionCodes(item.AllergyCodes, pending.codes)
			pending = nil
		}
		items = append(items, item)
	}
	return items
}

// ParseItem extracts a single item from one chunk. The first line is the
// name and the remaining lines form the description. When no price is
// printed the restaurant's default for the meal applies; pass an empty
// restaurant to disable defaults. ok is false for chunks without text.
func ParseItem(chunk string, meal menu.Meal, allergies menu.AllergyMap, restaurant string) (menu.Item, bool) {
	var parts []string
	for _, p := range strings.Split(chunk, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return menu.Item{}, false
	}

	name := parts[0]
	description := strings.Join(parts[1:], " ")
	description = strings.Join(strings.Fields(strings.ReplaceAll(description, "\r", " ")), " ")

	codes := AllergyCodes(chunk)
	price := ExtractPrice(chunk)
	if price == nil {
		price = ExtractPrice(name + " " + description)
	}
	if price == nil && restaurant != "" {
		price = DefaultPrice(restaurant, meal)
	}

	if !strings.Contains(name, CafeteriaMarker) {
		name = strings.ReplaceAll(name, "\r", " ")
		if cleaned := CleanName(name); cleaned != "" {
			name = cleaned
		} else {
			name = strings.Join(strings.Fields(name), " ")
		}
	}

	return menu.Item{
		Meal:            meal,
		Name:            name,
		Description:     description,
		MainIngredients: Ingredients(codes, allergies),
		Price:           price,
		AllergyCodes:    codes,
	}, true
}
