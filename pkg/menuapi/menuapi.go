// Package menuapi talks to the menu REST service as an alternative to the
// local SQLite store.
package menuapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/campuseats/menuscraper/pkg/menu"
)

const defaultTimeout = 30 * time.Second

// ErrNotFound is returned when the service answers 404.
var ErrNotFound = errors.New("menu service: not found")

// Options configures a Client.
type Options struct {
	// UserUUID is sent as X-User-UUID; the restaurant menu listing requires it.
	UserUUID   string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
}

// Client implements restaurant lookup and menu replacement over HTTP.
type Client struct {
	r *resty.Client
}

// New builds a client for the service rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("menu service base URL is required (set api.base_url)")
	}

	var r *resty.Client
	if opts.HTTPClient != nil {
		r = resty.NewWithClient(opts.HTTPClient)
	} else {
		r = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	r.SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(opts.Retries).
		SetHeader("Accept", "application/json")
	if opts.UserUUID != "" {
		r.SetHeader("X-User-UUID", opts.UserUUID)
	}
	return &Client{r: r}, nil
}

// ResolveRestaurantID finds a restaurant id by exact name via GET /restaurant.
func (c *Client) ResolveRestaurantID(ctx context.Context, name string) (string, error) {
	resp, err := c.r.R().SetContext(ctx).Get("/restaurant")
	if err := check(resp, err); err != nil {
		return "", err
	}
	for _, r := range gjson.ParseBytes(resp.Body()).Array() {
		if r.Get("name").String() == name {
			return r.Get("id").String(), nil
		}
	}
	return "", fmt.Errorf("menu service: %q: %w", name, menu.ErrUnknownRestaurant)
}

func (c *Client) listMenus(ctx context.Context, restaurantID string) (gjson.Result, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetPathParam("id", restaurantID).
		Get("/restaurant/{id}/menu")
	if err := check(resp, err); err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(resp.Body(), "menus"), nil
}

// MenuNames lists the names of the restaurant's current menus.
func (c *Client) MenuNames(ctx context.Context, restaurantID string) ([]string, error) {
	menus, err := c.listMenus(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, n := range menus.Get("#.name").Array() {
		names = append(names, n.String())
	}
	return names, nil
}

// DeleteMenus lists the restaurant's menus and deletes them one by one.
// It stops at the first failed delete and reports how many succeeded.
func (c *Client) DeleteMenus(ctx context.Context, restaurantID string) (int64, error) {
	menus, err := c.listMenus(ctx, restaurantID)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, id := range menus.Get("#.id").Array() {
		resp, err := c.r.R().
			SetContext(ctx).
			SetPathParam("id", id.String()).
			Delete("/menu/{id}")
		if err := check(resp, err); err != nil {
			return deleted, fmt.Errorf("delete menu %s: %w", id.String(), err)
		}
		deleted++
	}
	return deleted, nil
}

type createMenuRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	MainIngredients []string `json:"main_ingredients"`
	Price           *float64 `json:"price"`
}

// InsertMenus creates each item with POST /restaurant/{id}/menu.
func (c *Client) InsertMenus(ctx context.Context, restaurantID string, items []menu.Item) error {
	for _, it := range items {
		body := createMenuRequest{
			Name:            it.Name,
			Description:     it.Description,
			MainIngredients: it.IngredientNames(),
			Price:           it.Price,
		}
		resp, err := c.r.R().
			SetContext(ctx).
			SetPathParam("id", restaurantID).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post("/restaurant/{id}/menu")
		if err := check(resp, err); err != nil {
			return fmt.Errorf("create menu %q: %w", it.Name, err)
		}
	}
	return nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", resp.Request.Method, resp.Request.URL, ErrNotFound)
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: HTTP %d: %s", resp.Request.Method, resp.Request.URL, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
