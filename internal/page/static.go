package page

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mpatch/unitscout/helpers"
	scrapeerr "mpatch/unitscout/pkg/errors"
)

// Fetcher retrieves the HTML body for a URL.
type Fetcher func(url string) (io.Reader, error)

// StaticPage is a Page over a parsed HTML snapshot. It serves server-rendered
// property sites without paying for a browser, and doubles as the test
// harness page. Click and scroll are inert: the extraction layer treats the
// resulting error like any other swallowed interaction failure.
type StaticPage struct {
	doc   *goquery.Document
	url   string
	fetch Fetcher
}

var _ Page = (*StaticPage)(nil)

// NewStaticPage returns a page that fetches snapshots over plain HTTP with
// browser-like headers.
func NewStaticPage() *StaticPage {
	return &StaticPage{fetch: helpers.FetchWithRandomHeaders}
}

// NewStaticPageWithFetcher overrides the HTTP layer.
func NewStaticPageWithFetcher(fetch Fetcher) *StaticPage {
	return &StaticPage{fetch: fetch}
}

// NewStaticPageFromHTML parses an in-memory document, mainly for tests.
func NewStaticPageFromHTML(url, html string) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &StaticPage{doc: doc, url: url}, nil
}

// Navigate fetches and parses the URL.
func (p *StaticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.fetch == nil {
		// Pre-parsed snapshot; navigation is a no-op beyond recording the URL.
		p.url = url
		return nil
	}
	body, err := p.fetch(url)
	if err != nil {
		return scrapeerr.NewNetwork(url, "snapshot fetch failed", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return err
	}
	p.doc = doc
	p.url = url
	return nil
}

// URL returns the snapshot's URL.
func (p *StaticPage) URL() string {
	return p.url
}

// QueryAll returns an element per match. Zero matches is an empty slice.
func (p *StaticPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, nil
	}
	var elems []Element
	p.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elems = append(elems, staticElement{sel: sel})
	})
	return elems, nil
}

// WaitVisible resolves immediately: a static snapshot either has the selector
// or it never will.
func (p *StaticPage) WaitVisible(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.doc != nil && p.doc.Find(selector).Length() > 0 {
		return nil
	}
	return scrapeerr.NewSelectorNotFound(p.url, selector)
}

// Close releases nothing; snapshots hold no external resources.
func (p *StaticPage) Close() error {
	return nil
}

type staticElement struct {
	sel *goquery.Selection
}

var _ Element = staticElement{}

func (e staticElement) Text(_ context.Context) (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e staticElement) Click(_ context.Context) error {
	return ErrNotInteractive
}

func (e staticElement) ScrollIntoView(_ context.Context) error {
	return ErrNotInteractive
}

func (e staticElement) QueryAll(_ context.Context, selector string) ([]Element, error) {
	var elems []Element
	e.sel.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elems = append(elems, staticElement{sel: sel})
	})
	return elems, nil
}
