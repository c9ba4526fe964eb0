package extract

import (
	"context"
	"strings"
	"time"

	"mpatch/unitscout/internal/page"
	"mpatch/unitscout/internal/template"
	"mpatch/unitscout/logger"
)

const (
	// DefaultContainerCap bounds how many unit containers a single run reads.
	DefaultContainerCap = 10

	defaultTimeout  = 30 * time.Second
	modalWait       = 1500 * time.Millisecond
	postClickSettle = 500 * time.Millisecond
	networkIdlePoll = 250 * time.Millisecond
	networkIdleMax  = 5 * time.Second
)

// probe pairs a CSS selector with an optional keyword the element's visible
// text must contain. Keyword probes are coarse on purpose: they find the
// "Accept cookies" button whatever class the site gave it.
type probe struct {
	selector string
	keyword  string
}

var cookieProbes = []probe{
	{selector: "#onetrust-accept-btn-handler"},
	{selector: "button[id*='accept']"},
	{selector: "button[class*='accept']"},
	{selector: "button[class*='consent']"},
	{selector: "button[class*='agree']"},
	{selector: "button", keyword: "accept"},
	{selector: "button", keyword: "agree"},
	{selector: "button", keyword: "got it"},
	{selector: "button", keyword: "consent"},
	{selector: "button", keyword: "cookie"},
	{selector: "a", keyword: "accept"},
	{selector: "[role='button']", keyword: "gdpr"},
	{selector: "[role='button']", keyword: "privacy"},
}

var navProbes = []probe{
	{selector: "a[href*='floorplan']"},
	{selector: "a[href*='floor-plan']"},
	{selector: "a[href*='availability']"},
	{selector: "a[href*='pricing']"},
	{selector: "a", keyword: "floor plan"},
	{selector: "a", keyword: "floorplan"},
	{selector: "a", keyword: "availability"},
	{selector: "a", keyword: "pricing"},
	{selector: "a", keyword: "units"},
	{selector: "a", keyword: "apartments"},
	{selector: "button", keyword: "floor plan"},
	{selector: "button", keyword: "availability"},
}

// genericContainerSelectors are tried in order when a template carries no
// container selector, or when its selector matches nothing on the page.
var genericContainerSelectors = []string{
	".unit",
	".apartment",
	".unit-card",
	".listing",
	"[data-unit]",
}

// modalSelectors locate the pricing modal some sites open on container click.
var modalSelectors = []string{
	".modal",
	"[role='dialog']",
	".lightbox",
	".popup",
}

// containerState tracks the click-to-reveal fallback for one container.
type containerState int

const (
	containerCollapsed containerState = iota
	containerClicked
	containerModalOpen
	containerModalAbsent
)

// Extractor pulls unit records out of a rendered page. Every page interaction
// failure inside a run is swallowed and logged; Extract never returns an
// error, only however many records it managed to read.
type Extractor struct {
	containerCap int
	timeout      time.Duration
	log          *logger.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithContainerCap overrides the per-run container limit.
func WithContainerCap(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.containerCap = n
		}
	}
}

// WithDefaultTimeout overrides the per-run deadline used when a template
// carries no timeout of its own.
func WithDefaultTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExtractor builds an Extractor with the default container cap.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		containerCap: DefaultContainerCap,
		timeout:      defaultTimeout,
		log:          logger.ForExtractor(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractOutcome reports what one run did, beyond the records themselves.
// Discovery reads the exercised selectors back out of it to learn them.
type ExtractOutcome struct {
	Units             []UnitRecord
	CookieSelector    string
	NavSelector       string
	ContainerSelector string
}

// Extract runs the full pipeline against an already-navigated page: dismiss
// cookie banners, follow floorplan navigation, locate unit containers and
// read one record per container up to the cap.
func (e *Extractor) Extract(ctx context.Context, p page.Page, tpl template.Template) ExtractOutcome {
	timeout := e.timeout
	if tpl.Behavior.Timeout > 0 {
		timeout = tpl.Behavior.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := ExtractOutcome{}
	out.CookieSelector = e.dismissCookies(ctx, p, tpl)
	out.NavSelector = e.followNav(ctx, p, tpl)

	containers, containerSel := e.locateContainers(ctx, p, tpl.Selectors.UnitContainer)
	out.ContainerSelector = containerSel
	if len(containers) == 0 {
		e.log.Debug().Str("url", p.URL()).Msg("no unit containers found")
		return out
	}
	if len(containers) > e.containerCap {
		containers = containers[:e.containerCap]
	}

	for i, c := range containers {
		rec, ok := e.extractUnit(ctx, p, c, tpl)
		if !ok {
			e.log.Debug().Str("url", p.URL()).Int("container", i).Msg("container yielded no fields")
			continue
		}
		out.Units = append(out.Units, rec)
	}
	return out
}

// dismissCookies clicks the first cookie consent control it can find. Returns
// the selector that worked, "" when none did. A page without a banner is the
// common case, so misses are debug noise only.
func (e *Extractor) dismissCookies(ctx context.Context, p page.Page, tpl template.Template) string {
	if sel := tpl.Selectors.CookieDismiss; sel != "" {
		if e.clickFirst(ctx, p, probe{selector: sel}, false) {
			return sel
		}
	}
	for _, pr := range cookieProbes {
		if e.clickFirst(ctx, p, pr, false) {
			return pr.selector
		}
	}
	return ""
}

// followNav clicks through to the floorplans/availability section when the
// landing page is not already there. Returns the selector that worked.
func (e *Extractor) followNav(ctx context.Context, p page.Page, tpl template.Template) string {
	scroll := tpl.Behavior.ScrollBeforeClick
	if sel := tpl.Selectors.FloorplanNav; sel != "" {
		if e.clickFirst(ctx, p, probe{selector: sel}, scroll) {
			e.settleAfterNav(ctx, p, tpl)
			return sel
		}
	}
	for _, pr := range navProbes {
		if e.clickFirst(ctx, p, pr, scroll) {
			e.settleAfterNav(ctx, p, tpl)
			return pr.selector
		}
	}
	return ""
}

// settleAfterNav waits for the post-click render. The fixed delay is the
// default; templates flagged WaitNetworkIdle instead poll the DOM until two
// consecutive element counts agree, bounded by networkIdleMax, so slow
// XHR-rendered unit grids get their full load without padding fast sites.
func (e *Extractor) settleAfterNav(ctx context.Context, p page.Page, tpl template.Template) {
	if !tpl.Behavior.WaitNetworkIdle {
		sleepCtx(ctx, postClickSettle)
		return
	}
	deadline := time.Now().Add(networkIdleMax)
	prev := e.domSize(ctx, p)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		sleepCtx(ctx, networkIdlePoll)
		cur := e.domSize(ctx, p)
		if cur == prev {
			return
		}
		prev = cur
	}
}

func (e *Extractor) domSize(ctx context.Context, p page.Page) int {
	elems, err := p.QueryAll(ctx, "body *")
	if err != nil {
		return -1
	}
	return len(elems)
}

// clickFirst clicks the first element matching the probe, filtered by keyword
// when the probe has one. All failures are swallowed.
func (e *Extractor) clickFirst(ctx context.Context, p page.Page, pr probe, scroll bool) bool {
	elems, err := p.QueryAll(ctx, pr.selector)
	if err != nil || len(elems) == 0 {
		return false
	}
	for _, el := range elems {
		if pr.keyword != "" {
			text, terr := el.Text(ctx)
			if terr != nil || !strings.Contains(strings.ToLower(text), pr.keyword) {
				continue
			}
		}
		if scroll {
			if serr := el.ScrollIntoView(ctx); serr != nil {
				e.log.Debug().Err(serr).Str("selector", pr.selector).Msg("scroll failed")
			}
		}
		if cerr := el.Click(ctx); cerr != nil {
			e.log.Debug().Err(cerr).Str("selector", pr.selector).Msg("click failed")
			continue
		}
		return true
	}
	return false
}

// locateContainers resolves the unit container list: the template's selector
// first, then the generic fallbacks in order. Returns the elements and the
// selector that produced them.
func (e *Extractor) locateContainers(ctx context.Context, p page.Page, tplSelector string) ([]page.Element, string) {
	if tplSelector != "" {
		elems, err := p.QueryAll(ctx, tplSelector)
		if err == nil && len(elems) > 0 {
			return elems, tplSelector
		}
	}
	for _, sel := range genericContainerSelectors {
		elems, err := p.QueryAll(ctx, sel)
		if err == nil && len(elems) > 0 {
			return elems, sel
		}
	}
	return nil, ""
}

// extractUnit reads one record out of a container. Field precedence is the
// template selector, then a regex over the container's text, then a click to
// reveal a pricing modal. ok is false when not a single field was readable.
func (e *Extractor) extractUnit(ctx context.Context, p page.Page, c page.Element, tpl template.Template) (UnitRecord, bool) {
	rawText, err := c.Text(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("container text unreadable")
		rawText = ""
	}

	rec := UnitRecord{RawText: rawText}
	rec.UnitName = e.fieldText(ctx, c, tpl.Selectors.UnitName)

	rec.Price = NormalizePrice(e.fieldText(ctx, c, tpl.Selectors.Price))
	if rec.Price == "" {
		rec.Price = PriceFromText(rawText)
	}

	bedBathText := e.fieldText(ctx, c, tpl.Selectors.BedBath)
	if bedBathText == "" {
		bedBathText = rawText
	}
	rec.Bedrooms = ParseBedrooms(bedBathText)
	rec.Bathrooms = ParseBathrooms(bedBathText)

	sqftText := e.fieldText(ctx, c, tpl.Selectors.SquareFeet)
	if sqftText == "" {
		sqftText = rawText
	}
	rec.SquareFeet = ParseSquareFeet(sqftText)

	if rec.Price == "" || (rec.Bedrooms == nil && rec.Bathrooms == nil) {
		e.revealAndMerge(ctx, p, c, tpl, &rec)
	}

	if rec.Price == "" && rec.Bedrooms == nil && rec.Bathrooms == nil &&
		rec.SquareFeet == nil && rec.UnitName == "" {
		return UnitRecord{}, false
	}
	rec.Availability = "available"
	return rec, true
}

// revealAndMerge is the last-resort fallback: click the container, wait for a
// pricing modal and regex its text for whatever fields are still missing. A
// container that ignores clicks, or a click that opens nothing, leaves the
// record as it was.
func (e *Extractor) revealAndMerge(ctx context.Context, p page.Page, c page.Element, tpl template.Template, rec *UnitRecord) {
	state := containerCollapsed

	if tpl.Behavior.ScrollBeforeClick {
		if err := c.ScrollIntoView(ctx); err != nil {
			e.log.Debug().Err(err).Msg("container scroll failed")
		}
	}
	if err := c.Click(ctx); err != nil {
		e.log.Debug().Err(err).Msg("container click failed")
		return
	}
	state = containerClicked

	var modalText string
	for _, sel := range modalSelectors {
		if werr := p.WaitVisible(ctx, sel, modalWait); werr != nil {
			continue
		}
		elems, qerr := p.QueryAll(ctx, sel)
		if qerr != nil || len(elems) == 0 {
			continue
		}
		text, terr := elems[0].Text(ctx)
		if terr != nil {
			continue
		}
		modalText = text
		state = containerModalOpen
		break
	}
	if state == containerClicked {
		state = containerModalAbsent
	}
	if state != containerModalOpen || modalText == "" {
		return
	}

	if rec.Price == "" {
		rec.Price = PriceFromText(modalText)
	}
	if rec.Bedrooms == nil {
		rec.Bedrooms = ParseBedrooms(modalText)
	}
	if rec.Bathrooms == nil {
		rec.Bathrooms = ParseBathrooms(modalText)
	}
	if rec.SquareFeet == nil {
		rec.SquareFeet = ParseSquareFeet(modalText)
	}
}

// fieldText reads the first non-empty text among the container's descendants
// matching the selector. Empty selector or no match yields "".
func (e *Extractor) fieldText(ctx context.Context, c page.Element, selector string) string {
	if selector == "" {
		return ""
	}
	elems, err := c.QueryAll(ctx, selector)
	if err != nil {
		return ""
	}
	for _, el := range elems {
		text, terr := el.Text(ctx)
		if terr != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
