package page

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"mpatch/unitscout/logger"
)

// Browser owns a headless Chrome process shared by all tabs.
type Browser struct {
	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	browserCtx   context.Context
	cancelTab    context.CancelFunc
	settleDelay  time.Duration
	log          *logger.Logger
}

// BrowserOption configures a Browser.
type BrowserOption func(*Browser)

// WithSettleDelay sets how long each navigation sleeps to let dynamic content
// render before the page is considered loaded.
func WithSettleDelay(d time.Duration) BrowserOption {
	return func(b *Browser) { b.settleDelay = d }
}

// NewBrowser starts a Chrome allocator. The flags mirror what property sites
// tolerate: headless toggleable, no GPU, automation banner suppressed.
func NewBrowser(parent context.Context, headless bool, opts ...BrowserOption) *Browser {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	b := &Browser{
		settleDelay: 3 * time.Second,
		log:         logger.ForPage(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.allocCtx, b.cancelAlloc = chromedp.NewExecAllocator(parent, execOpts...)
	b.browserCtx, b.cancelTab = chromedp.NewContext(b.allocCtx)
	return b
}

// NewPage opens a fresh tab.
func (b *Browser) NewPage() *TabPage {
	ctx, cancel := chromedp.NewContext(b.browserCtx)
	return &TabPage{
		ctx:    ctx,
		cancel: cancel,
		settle: b.settleDelay,
		log:    b.log,
	}
}

// Close shuts the browser down.
func (b *Browser) Close() {
	if b.cancelTab != nil {
		b.cancelTab()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
}

// TabPage is a Page backed by one chromedp tab. Operations run on the tab's
// own context; the caller context is consulted for early cancellation.
type TabPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	settle time.Duration
	url    string
	log    *logger.Logger
}

var _ Page = (*TabPage)(nil)

// Navigate loads the URL and sleeps the settle delay so late-rendering unit
// grids have a chance to appear.
func (p *TabPage) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := p.opCtx(ctx)
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(p.settle),
		chromedp.Location(&p.url),
	)
	if err != nil {
		return err
	}
	return nil
}

// URL returns the tab's current location after redirects.
func (p *TabPage) URL() string {
	return p.url
}

// QueryAll returns handles for every node matching the CSS selector. Zero
// matches is an empty slice.
func (p *TabPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tctx, cancel := p.opCtx(ctx)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(tctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, err
	}

	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, &tabElement{page: p, node: n})
	}
	return elems, nil
}

// WaitVisible blocks until the selector is visible or the timeout expires.
func (p *TabPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	return chromedp.Run(tctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Close closes the tab.
func (p *TabPage) Close() error {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return nil
}

func (p *TabPage) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	return context.WithTimeout(p.ctx, timeout)
}

// tabElement addresses its node by full XPath, which stays valid as long as
// the node is attached. A detached node surfaces as an error on the next
// operation, which the extraction layer swallows.
type tabElement struct {
	page *TabPage
	node *cdp.Node
}

var _ Element = (*tabElement)(nil)

func (e *tabElement) Text(ctx context.Context) (string, error) {
	tctx, cancel := e.page.opCtx(ctx)
	defer cancel()

	var out string
	err := chromedp.Run(tctx, chromedp.Text(e.node.FullXPath(), &out))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *tabElement) Click(ctx context.Context) error {
	tctx, cancel := e.page.opCtx(ctx)
	defer cancel()

	return chromedp.Run(tctx, chromedp.MouseClickNode(e.node))
}

func (e *tabElement) ScrollIntoView(ctx context.Context) error {
	tctx, cancel := e.page.opCtx(ctx)
	defer cancel()

	return chromedp.Run(tctx, chromedp.ScrollIntoView(e.node.FullXPath()))
}

func (e *tabElement) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	tctx, cancel := e.page.opCtx(ctx)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(tctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(e.node)),
	)
	if err != nil {
		return nil, err
	}
	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, &tabElement{page: e.page, node: n})
	}
	return elems, nil
}
