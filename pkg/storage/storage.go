package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/campuseats/menuscraper/pkg/menu"
)

// ErrRestaurantNotFound is returned by lookups for an unknown restaurant.
var ErrRestaurantNotFound = fmt.Errorf("sqlite: %w", menu.ErrUnknownRestaurant)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS restaurants (
  id          TEXT PRIMARY KEY,
  name        TEXT NOT NULL UNIQUE,
  created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS menus (
  id               INTEGER PRIMARY KEY,
  restaurant       TEXT NOT NULL REFERENCES restaurants(id) ON DELETE CASCADE,
  meal             TEXT NOT NULL,
  name             TEXT NOT NULL,
  description      TEXT,
  main_ingredients TEXT NOT NULL DEFAULT '[]',
  price            REAL,
  created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_menus_restaurant ON menus(restaurant);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// UpsertRestaurant registers a restaurant or renames an existing id.
func (d *DB) UpsertRestaurant(ctx context.Context, id, name string) error {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return errors.New("restaurant id and name are required")
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO restaurants(id, name) VALUES(?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name`, id, name)
	return err
}

// ResolveRestaurantID looks a restaurant up by exact name.
func (d *DB) ResolveRestaurantID(ctx context.Context, name string) (string, error) {
	var id string
	err := d.sql.QueryRowContext(ctx, "SELECT id FROM restaurants WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRestaurantNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SeedTargets registers every target that carries both a restaurant name
// and id, so that configured ids satisfy the menus foreign key. A target
// that cannot be registered does not stop the others; their errors are
// joined into the returned error. The count is the number registered.
func (d *DB) SeedTargets(ctx context.Context, targets []menu.Target) (int, error) {
	var (
		seeded int
		errs   []error
	)
	for _, t := range targets {
		if t.RestaurantName == "" || t.RestaurantID == "" {
			continue
		}
		if err := d.UpsertRestaurant(ctx, t.RestaurantID, t.RestaurantName); err != nil {
			errs = append(errs, fmt.Errorf("seed %s: %w", t.RestaurantName, err))
			continue
		}
		seeded++
	}
	return seeded, errors.Join(errs...)
}

// ListRestaurants returns all registered restaurants ordered by name.
func (d *DB) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name FROM restaurants ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Restaurant
	for rows.Next() {
		var r Restaurant
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListMenus returns the stored menus of a restaurant in insertion order.
func (d *DB) ListMenus(ctx context.Context, restaurantID string) ([]StoredMenu, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, restaurant, meal, name, description, main_ingredients, price FROM menus WHERE restaurant = ? ORDER BY id", restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMenu
	for rows.Next() {
		var (
			m       StoredMenu
			descNS  sql.NullString
			ingJSON string
			priceNF sql.NullFloat64
		)
		if err := rows.Scan(&m.ID, &m.Restaurant, &m.Meal, &m.Name, &descNS, &ingJSON, &priceNF); err != nil {
			return nil, err
		}
		m.Description = descNS.String
		if err := json.Unmarshal([]byte(ingJSON), &m.MainIngredients); err != nil {
			return nil, fmt.Errorf("menu %d: decode main_ingredients: %w", m.ID, err)
		}
		if priceNF.Valid {
			m.Price = menu.Float(priceNF.Float64)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MenuNames lists the names of a restaurant's stored menus.
func (d *DB) MenuNames(ctx context.Context, restaurantID string) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT name FROM menus WHERE restaurant = ? ORDER BY id", restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// DeleteMenus removes every stored menu of a restaurant and reports how
// many rows went away.
func (d *DB) DeleteMenus(ctx context.Context, restaurantID string) (int64, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM menus WHERE restaurant = ?", restaurantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertMenus bulk-inserts items for a restaurant in one transaction.
func (d *DB) InsertMenus(ctx context.Context, restaurantID string, items []menu.Item) (err error) {
	if len(items) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO menus(restaurant, meal, name, description, main_ingredients, price) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		ingredients := it.MainIngredients
		if ingredients == nil {
			ingredients = []menu.Ingredient{}
		}
		ingJSON, jerr := json.Marshal(ingredients)
		if jerr != nil {
			return jerr
		}
		if _, err = stmt.ExecContext(ctx, restaurantID, string(it.Meal), it.Name, nullIfEmpty(it.Description), string(ingJSON), nullIfNil(it.Price)); err != nil {
			return fmt.Errorf("insert %q: %w", it.Name, err)
		}
	}
	return tx.Commit()
}

func (d *DB) GetStats(ctx context.Context) ([]RestaurantStats, error) {
	query := `
		SELECT
			r.id,
			r.name,
			COUNT(m.id),
			COUNT(m.id) - COUNT(m.price),
			MAX(m.created_at)
		FROM
			restaurants r
			LEFT JOIN menus m ON m.restaurant = r.id
		GROUP BY
			r.id, r.name
		ORDER BY
			r.name;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []RestaurantStats
	for rows.Next() {
		var s RestaurantStats
		var last sql.NullString
		if err := rows.Scan(&s.RestaurantID, &s.Name, &s.MenuCount, &s.UnpricedCount, &last); err != nil {
			return nil, err
		}
		s.LastSyncedAt = last.String
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNil(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
