package storage

import "github.com/campuseats/menuscraper/pkg/menu"

// Restaurant is a row of the restaurants table.
type Restaurant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StoredMenu is a persisted menu row.
type StoredMenu struct {
	ID              int64             `json:"id"`
	Restaurant      string            `json:"restaurant"`
	Meal            string            `json:"meal"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	MainIngredients []menu.Ingredient `json:"main_ingredients"`
	Price           *float64          `json:"price"`
}

// RestaurantStats summarizes the stored menus of one restaurant.
type RestaurantStats struct {
	RestaurantID  string
	Name          string
	MenuCount     int
	UnpricedCount int
	LastSyncedAt  string
}
