package menu

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRestaurant is returned when a restaurant name has no id in the
// downstream store.
var ErrUnknownRestaurant = errors.New("unknown restaurant")

// Meal identifies the slot a menu item is served in.
type Meal string

const (
	Breakfast Meal = "breakfast"
	Lunch     Meal = "lunch"
	Dinner    Meal = "dinner"
)

// PositionalMeal returns the label for a meal column past the first three.
func PositionalMeal(index int) Meal {
	return Meal(fmt.Sprintf("meal_%d", index))
}

// AllergyMap maps the numeric codes printed on a menu page legend
// ("1", "2", ...) to lowercase allergen names.
type AllergyMap map[string]string

// Ingredient is an allergen annotation attached to a menu item.
// Description is always empty for scraped items.
type Ingredient struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Item is a single parsed menu entry.
type Item struct {
	Meal            Meal         `json:"meal"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	MainIngredients []Ingredient `json:"main_ingredients"`
	Price           *float64     `json:"price"`

	// AllergyCodes are the raw legend codes that produced MainIngredients.
	AllergyCodes []string `json:"-"`
}

// IngredientNames returns the names of the item's ingredients in order.
func (it Item) IngredientNames() []string {
	names := make([]string, 0, len(it.MainIngredients))
	for _, ing := range it.MainIngredients {
		names = append(names, ing.Name)
	}
	return names
}

// MergeIngredients appends every ingredient of extra whose name is not
// already present in base.
func MergeIngredients(base, extra []Ingredient) []Ingredient {
	seen := make(map[string]bool, len(base))
	for _, ing := range base {
		seen[ing.Name] = true
	}
	for _, ing := range extra {
		if seen[ing.Name] {
			continue
		}
		seen[ing.Name] = true
		base = append(base, ing)
	}
	return base
}

// UnionCodes appends the codes from extra that are missing from base.
func UnionCodes(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, c := range base {
		seen[c] = true
	}
	for _, c := range extra {
		if seen[c] {
			continue
		}
		seen[c] = true
		base = append(base, c)
	}
	return base
}

// Restaurant is everything scraped from one restaurant page.
// Name is nil when the page heading was missing or malformed.
type Restaurant struct {
	Name  *string `json:"restaurant_name"`
	Menus []Item  `json:"menus"`
}

// DisplayName returns the restaurant name or a placeholder.
func (r Restaurant) DisplayName() string {
	if r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		return "<unnamed>"
	}
	return *r.Name
}

// Target is one entry of the scraper configuration.
type Target struct {
	URL            string `json:"url"`
	RestaurantName string `json:"restaurant_name"`
	RestaurantID   string `json:"restaurant_id"`
}

// Float returns a pointer to v, handy for literal prices.
func Float(v float64) *float64 {
	return &v
}
