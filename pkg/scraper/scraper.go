// Package scraper fetches cafeteria menu pages and turns them into
// restaurants with parsed menus.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/campuseats/menuscraper/pkg/allergy"
	"github.com/campuseats/menuscraper/pkg/cafeteria"
	"github.com/campuseats/menuscraper/pkg/cell"
	"github.com/campuseats/menuscraper/pkg/menu"
	"github.com/campuseats/menuscraper/pkg/parser"
	"github.com/campuseats/menuscraper/pkg/whttp"
)

const (
	nameSelector   = "div#tab_item_1 h3"
	legendSelector = "div#tab_item_1 p"
	tableSelector  = "div#tab_item_1 table"
)

var (
	bracketRe = regexp.MustCompile(`\[(.*?)\]`)
	parenRe   = regexp.MustCompile(`\([^)]*\)`)
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Fetcher retrieves a page body. *whttp.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*whttp.WHTTPRes, error)
}

// Scraper fetches and parses restaurant menu pages.
type Scraper struct {
	fetcher Fetcher
	log     Logger
}

func New(fetcher Fetcher, log Logger) *Scraper {
	if log == nil {
		log = nopLogger{}
	}
	return &Scraper{fetcher: fetcher, log: log}
}

// Page is the outcome of scraping one target.
type Page struct {
	Target     menu.Target
	Restaurant menu.Restaurant
	Err        error
}

// Scrape fetches and parses one target. A non-empty configured restaurant
// name replaces the scraped one; default prices still follow the page.
func (s *Scraper) Scrape(ctx context.Context, t menu.Target) (menu.Restaurant, error) {
	if strings.TrimSpace(t.URL) == "" {
		return menu.Restaurant{}, errors.New("target has no url")
	}
	res, err := s.fetcher.Get(ctx, t.URL)
	if err != nil {
		return menu.Restaurant{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return menu.Restaurant{}, fmt.Errorf("parse %s: %w", t.URL, err)
	}

	r := ParseDocument(doc)
	if name := strings.TrimSpace(t.RestaurantName); name != "" {
		r.Name = &name
	}
	return r, nil
}

// ScrapeAll scrapes targets with up to concurrency pages in flight. Pages
// come back in target order; a failed page carries its error and an empty
// restaurant.
func (s *Scraper) ScrapeAll(ctx context.Context, targets []menu.Target, concurrency int) []Page {
	if concurrency <= 0 {
		concurrency = 1
	}
	pages := make([]Page, len(targets))
	idxChan := make(chan int, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxChan {
				t := targets[idx]
				s.log.Infof("Scraping %s...", t.URL)
				r, err := s.Scrape(ctx, t)
				if err != nil {
					s.log.Errorf("Error scraping %s: %v", t.URL, err)
				} else {
					s.log.Debugf("Scraped %d menus for %s", len(r.Menus), r.DisplayName())
				}
				pages[idx] = Page{Target: t, Restaurant: r, Err: err}
			}
		}()
	}

	for i := range targets {
		idxChan <- i
	}
	close(idxChan)
	wg.Wait()

	return pages
}

// Restaurants returns the restaurants of every page that scraped cleanly.
func Restaurants(pages []Page) []menu.Restaurant {
	out := make([]menu.Restaurant, 0, len(pages))
	for _, p := range pages {
		if p.Err == nil {
			out = append(out, p.Restaurant)
		}
	}
	return out
}

// ParseDocument extracts the restaurant name, allergy legend and meal cells
// of a menu page.
func ParseDocument(doc *goquery.Document) menu.Restaurant {
	name := restaurantName(doc)
	allergies := allergy.Extract(legendText(doc))

	var scraped string
	if name != nil {
		scraped = *name
	}

	items := []menu.Item{}
	doc.Find(tableSelector).First().Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		row.Find("td").Each(func(idx int, td *goquery.Selection) {
			markup, err := goquery.OuterHtml(td)
			if err != nil {
				return
			}
			items = append(items, parser.ParseCell(markup, cell.MealFor(idx), allergies, scraped)...)
		})
	})

	return menu.Restaurant{Name: name, Menus: cafeteria.Expand(items, allergies)}
}

func restaurantName(doc *goquery.Document) *string {
	h3 := doc.Find(nameSelector).First()
	if h3.Length() == 0 {
		return nil
	}
	m := bracketRe.FindStringSubmatch(h3.Text())
	if m == nil {
		return nil
	}
	name := strings.TrimSpace(parenRe.ReplaceAllString(m[1], ""))
	return &name
}

// legendText joins the text nodes of the legend paragraph with spaces.
func legendText(doc *goquery.Document) string {
	p := doc.Find(legendSelector).First()
	if p.Length() == 0 {
		return ""
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range p.Nodes {
		walk(n)
	}
	text := strings.Join(parts, " ")
	text = strings.NewReplacer("\n", " ", "\r", " ").Replace(text)
	return strings.TrimSpace(text)
}
