package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mpatch/unitscout/internal/breaker"
	"mpatch/unitscout/internal/extract"
	"mpatch/unitscout/internal/page"
	"mpatch/unitscout/internal/template"
	"mpatch/unitscout/logger"
	scrapeerr "mpatch/unitscout/pkg/errors"
	"mpatch/unitscout/services/publisher"
)

// PageFactory opens a fresh page per property URL. The worker closes every
// page it opens, success or not.
type PageFactory func() page.Page

// Worker drives the scrape pipeline over the configured property URLs:
// resolve template, extract (or discover), record the outcome, publish the
// envelope. URLs run sequentially with an interval between them; property
// sites are small and hammering them in parallel gets the worker blocked.
type Worker struct {
	urls      []string
	matcher   *template.Matcher
	store     *template.Store
	extractor *extract.Extractor
	discovery *extract.Discovery
	breaker   *breaker.Breaker
	publisher publisher.Publisher
	pages     PageFactory
	interval  time.Duration
	log       *logger.Logger
}

// NewWorker creates a new worker.
func NewWorker(
	urls []string,
	matcher *template.Matcher,
	store *template.Store,
	extractor *extract.Extractor,
	discovery *extract.Discovery,
	brk *breaker.Breaker,
	pub publisher.Publisher,
	pages PageFactory,
	interval time.Duration,
) *Worker {
	return &Worker{
		urls:      urls,
		matcher:   matcher,
		store:     store,
		extractor: extractor,
		discovery: discovery,
		breaker:   brk,
		publisher: pub,
		pages:     pages,
		interval:  interval,
		log:       logger.ForWorker(),
	}
}

// Start loops over the URL list until the context is cancelled. Streams are
// trimmed after each full round.
func (w *Worker) Start(ctx context.Context) error {
	for {
		start := time.Now()
		w.runRound(ctx)
		w.log.Info().Dur("elapsed", time.Since(start)).Msg("Scrape round complete")

		if w.publisher != nil {
			if err := w.publisher.TrimStreams(); err != nil {
				w.log.Error().Err(err).Msg("Stream trimming failed")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.interval):
		}
	}
}

func (w *Worker) runRound(ctx context.Context) {
	for i, url := range w.urls {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.interval):
			}
		}
		result := w.RunOnce(ctx, url)
		w.publish(result)
	}
}

// RunOnce scrapes a single property URL end to end and returns the result
// envelope. A domain on cooldown is skipped without touching the network.
func (w *Worker) RunOnce(ctx context.Context, rawURL string) *extract.Result {
	domain := template.NormalizeDomain(rawURL)
	start := time.Now()

	result := &extract.Result{
		URL:    rawURL,
		Domain: domain,
	}

	if allowed, cat := w.breaker.Allow(domain); !allowed {
		w.log.Warn().
			Str("domain", domain).
			Str("category", string(cat)).
			Msg("Skipping domain on cooldown")
		result.FailureCategory = "circuit_open"
		result.Duration = time.Since(start)
		return result
	}

	p := w.pages()
	defer func() {
		if err := p.Close(); err != nil {
			w.log.Debug().Err(err).Str("domain", domain).Msg("Page close failed")
		}
	}()

	if err := p.Navigate(ctx, rawURL); err != nil {
		cat := navigationCategory(err)
		w.log.Error().Err(err).Str("domain", domain).Msg("Navigation failed")
		w.breaker.Record(domain, cat)
		w.store.RecordOutcome(domain, false)
		result.FailureCategory = string(cat)
		result.Duration = time.Since(start)
		return result
	}

	// vanity domains redirect to their platform; key the learned record,
	// outcomes and breaker state by where the page actually landed
	if final := template.NormalizeDomain(p.URL()); final != "" && final != domain {
		domain = final
		result.Domain = domain
		if allowed, cat := w.breaker.Allow(domain); !allowed {
			w.log.Warn().
				Str("domain", domain).
				Str("category", string(cat)).
				Msg("Skipping domain on cooldown after redirect")
			result.FailureCategory = "circuit_open"
			result.Duration = time.Since(start)
			return result
		}
	}

	resolved, kind := w.matcher.Resolve(p.URL(), w.contentSnapshot(ctx, p))
	result.TemplateKind = kind

	var units []extract.UnitRecord
	if resolved == nil {
		selectors, discovered := w.discovery.Discover(ctx, p)
		units = discovered
		result.TemplateName = "discovered"
		result.TemplateKind = template.KindLearned
		w.log.Info().
			Str("domain", domain).
			Str("container", selectors.UnitContainer).
			Msg("Unknown domain handled by discovery")
	} else {
		result.TemplateName = resolved.Template.Name
		out := w.extractor.Extract(ctx, p, resolved.Template)
		units = out.Units
	}

	result.Units = units
	result.UnitCount = len(units)
	result.Success = len(units) > 0
	result.Duration = time.Since(start)

	w.store.RecordOutcome(domain, result.Success)
	if result.Success {
		w.breaker.Reset(domain)
	} else {
		w.breaker.Record(domain, breaker.CategoryEmptyResult)
		result.FailureCategory = string(breaker.CategoryEmptyResult)
	}

	w.log.Info().
		Str("domain", domain).
		Str("template", result.TemplateName).
		Int("units", result.UnitCount).
		Bool("success", result.Success).
		Dur("duration", result.Duration).
		Msg("Scrape finished")

	return result
}

// contentSnapshot reads the page body text for catalog keyword matching. A
// page with no readable body resolves on domain hints alone.
func (w *Worker) contentSnapshot(ctx context.Context, p page.Page) string {
	elems, err := p.QueryAll(ctx, "body")
	if err != nil || len(elems) == 0 {
		return ""
	}
	text, err := elems[0].Text(ctx)
	if err != nil {
		return ""
	}
	return text
}

func (w *Worker) publish(result *extract.Result) {
	if w.publisher == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		w.log.Error().Err(err).Str("domain", result.Domain).Msg("Failed to encode result envelope")
		return
	}
	if err := w.publisher.Publish(result.Domain, data); err != nil {
		perr := scrapeerr.NewPublisher(result.Domain, "failed to publish result envelope", err)
		w.log.Error().Err(perr).Msg("Publish failed")
	}
}

func navigationCategory(err error) breaker.Category {
	if errors.Is(err, context.DeadlineExceeded) ||
		scrapeerr.TypeOf(err) == scrapeerr.ErrorTypeNavigationTimeout {
		return breaker.CategoryTimeout
	}
	return breaker.CategoryExtractionError
}
