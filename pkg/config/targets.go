// Package config loads the list of restaurant pages to scrape.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"github.com/campuseats/menuscraper/pkg/menu"
)

// DefaultTargetsFile is read when no path is given.
const DefaultTargetsFile = "scraper_config.json"

var (
	// ErrConfigNotFound is returned when the targets file does not exist.
	ErrConfigNotFound = errors.New("targets file not found")
	// ErrInvalidConfig is returned when the targets payload is malformed.
	ErrInvalidConfig = errors.New("targets file is invalid")
)

// rawTarget accepts restaurant ids written as strings or numbers.
type rawTarget struct {
	URL            string      `json:"url"`
	RestaurantName string      `json:"restaurant_name"`
	RestaurantID   interface{} `json:"restaurant_id"`
}

// LoadTargets reads a JSON (or JSON5) array of targets.
func LoadTargets(path string) ([]menu.Target, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultTargetsFile
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return ParseTargets(payload)
}

// ParseTargets decodes and validates a targets payload.
func ParseTargets(payload []byte) ([]menu.Target, error) {
	var raw []rawTarget
	if err := json5.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	targets := make([]menu.Target, 0, len(raw))
	for i, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			return nil, fmt.Errorf("%w: entry %d has no url", ErrInvalidConfig, i)
		}
		id, err := idString(r.RestaurantID)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidConfig, i, err)
		}
		targets = append(targets, menu.Target{
			URL:            url,
			RestaurantName: strings.TrimSpace(r.RestaurantName),
			RestaurantID:   id,
		})
	}
	return targets, nil
}

func idString(v interface{}) (string, error) {
	switch id := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(id), nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("restaurant_id must be a string or number, got %T", v)
	}
}

// StaticIDs returns the name→id mapping of targets that carry both.
func StaticIDs(targets []menu.Target) map[string]string {
	ids := make(map[string]string)
	for _, t := range targets {
		if t.RestaurantName != "" && t.RestaurantID != "" {
			ids[t.RestaurantName] = t.RestaurantID
		}
	}
	return ids
}
