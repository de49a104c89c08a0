package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuseats/menuscraper/pkg/menu"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scraper_config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTargets(t *testing.T) {
	path := writeFile(t, `[
  // main campus
  {url: "https://dining.example.edu/menu?c=1", restaurant_name: "Undergraduate Cafeteria", restaurant_id: 3},
  {"url": " https://dining.example.edu/menu?c=2 ", "restaurant_name": "Faculty Club", "restaurant_id": "fc-1"},
  {"url": "https://dining.example.edu/menu?c=3"},
]`)

	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Equal(t, []menu.Target{
		{URL: "https://dining.example.edu/menu?c=1", RestaurantName: "Undergraduate Cafeteria", RestaurantID: "3"},
		{URL: "https://dining.example.edu/menu?c=2", RestaurantName: "Faculty Club", RestaurantID: "fc-1"},
		{URL: "https://dining.example.edu/menu?c=3"},
	}, targets)

	require.Equal(t, map[string]string{"Undergraduate Cafeteria": "3", "Faculty Club": "fc-1"}, StaticIDs(targets))
}

func TestLoadTargetsErrors(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, ErrConfigNotFound)

	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{{`},
		{"object instead of array", `{"url": "x"}`},
		{"missing url", `[{"restaurant_name": "A"}]`},
		{"bad id type", `[{"url": "x", "restaurant_id": [1]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTargets(writeFile(t, tt.content))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseTargetsEmpty(t *testing.T) {
	targets, err := ParseTargets([]byte(`[]`))
	require.NoError(t, err)
	require.Empty(t, targets)
}
