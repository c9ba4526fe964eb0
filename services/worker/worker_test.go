package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mpatch/unitscout/internal/breaker"
	"mpatch/unitscout/internal/extract"
	"mpatch/unitscout/internal/page"
	"mpatch/unitscout/internal/template"
	"mpatch/unitscout/services/cache"
	"mpatch/unitscout/services/publisher"
)

// capturePublisher records published envelopes instead of talking to Redis
type capturePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	trims    int
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{messages: make(map[string][][]byte)}
}

func (p *capturePublisher) Publish(key string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[key] = append(p.messages[key], message)
	return nil
}

func (p *capturePublisher) TrimStreams() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trims++
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// failingPage errors on navigation, for breaker category tests
type failingPage struct {
	err error
}

func (f *failingPage) Navigate(_ context.Context, _ string) error { return f.err }
func (f *failingPage) URL() string                                { return "" }
func (f *failingPage) QueryAll(_ context.Context, _ string) ([]page.Element, error) {
	return nil, nil
}
func (f *failingPage) WaitVisible(_ context.Context, _ string, _ time.Duration) error {
	return f.err
}
func (f *failingPage) Close() error { return nil }

// redirectPage lands on a different URL than the one requested, the way a
// vanity domain forwards to its property-management platform
type redirectPage struct {
	*page.StaticPage
	finalURL string
}

func (r *redirectPage) Navigate(ctx context.Context, _ string) error {
	return r.StaticPage.Navigate(ctx, r.finalURL)
}

func redirectFactory(html, finalURL string) PageFactory {
	return func() page.Page {
		sp, err := page.NewStaticPageFromHTML("", html)
		if err != nil {
			panic(err)
		}
		return &redirectPage{StaticPage: sp, finalURL: finalURL}
	}
}

func newTestWorker(urls []string, pages PageFactory, pub *capturePublisher) (*Worker, *template.Store, *breaker.Breaker) {
	store := template.NewStore(&template.MemoryBackend{})
	matcher := template.NewMatcher(nil, store, template.NewEmptyCatalog())
	extractor := extract.NewExtractor()
	discovery := extract.NewDiscovery(store, extractor)
	brk := breaker.New(cache.NewMemoryService())

	var pubIface publisher.Publisher
	if pub != nil {
		pubIface = pub
	}

	w := NewWorker(urls, matcher, store, extractor, discovery, brk, pubIface, pages, time.Millisecond)
	return w, store, brk
}

func staticFactory(html string) PageFactory {
	return func() page.Page {
		p, err := page.NewStaticPageFromHTML("", html)
		if err != nil {
			panic(err)
		}
		return p
	}
}

func TestRunOnceUnknownDomainDiscovers(t *testing.T) {
	html := `<html><body>
		<div class="unit">A1 - 1 bed 1 bath $1,200</div>
		<div class="unit">B2 - 2 bed 2 bath $1,550</div>
	</body></html>`
	w, store, brk := newTestWorker(nil, staticFactory(html), nil)

	result := w.RunOnce(context.Background(), "https://www.fresh-property.com/apartments")

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.UnitCount)
	assert.Equal(t, "fresh-property.com", result.Domain)
	assert.Equal(t, "discovered", result.TemplateName)
	assert.Equal(t, template.KindLearned, result.TemplateKind)

	// discovery seeded the record at 1.0, the success outcome keeps it there
	rec, ok := store.Get("fresh-property.com")
	assert.True(t, ok)
	assert.Equal(t, 1.0, rec.SuccessRate)

	allowed, _ := brk.Allow("fresh-property.com")
	assert.True(t, allowed)
}

func TestRunOnceLearnedDomainUsesStore(t *testing.T) {
	html := `<html><body>
		<div class="my-unit">C3 - 2 bed 1 bath $1,400</div>
	</body></html>`
	w, store, _ := newTestWorker(nil, staticFactory(html), nil)

	store.Learn("known.com", template.SelectorSet{UnitContainer: ".my-unit"}, true)

	result := w.RunOnce(context.Background(), "https://known.com/floorplans")

	assert.True(t, result.Success)
	assert.Equal(t, template.KindLearned, result.TemplateKind)
	assert.Equal(t, "learned:known.com", result.TemplateName)
	assert.Equal(t, 1, result.UnitCount)
	assert.Equal(t, "1400.00", result.Units[0].Price)
}

// TestRunOnceEmptyResultTripsBreaker hammers an empty page until the
// circuit opens, then expects the domain to be skipped
func TestRunOnceEmptyResultTripsBreaker(t *testing.T) {
	html := `<html><body><p>Nothing to see</p></body></html>`
	w, _, _ := newTestWorker(nil, staticFactory(html), nil)

	for i := 0; i < 3; i++ {
		result := w.RunOnce(context.Background(), "https://empty.com")
		assert.False(t, result.Success)
		assert.Equal(t, "empty_result", result.FailureCategory)
	}

	result := w.RunOnce(context.Background(), "https://empty.com")
	assert.False(t, result.Success)
	assert.Equal(t, "circuit_open", result.FailureCategory)
	assert.Empty(t, result.TemplateName)
}

func TestRunOnceNavigationTimeout(t *testing.T) {
	pages := func() page.Page { return &failingPage{err: context.DeadlineExceeded} }
	w, store, brk := newTestWorker(nil, pages, nil)
	store.Learn("slow.com", template.SelectorSet{UnitContainer: ".unit"}, true)

	result := w.RunOnce(context.Background(), "https://slow.com")
	assert.False(t, result.Success)
	assert.Equal(t, "timeout", result.FailureCategory)

	// the failed attempt halves the rolling rate
	rec, _ := store.Get("slow.com")
	assert.Equal(t, 0.5, rec.SuccessRate)

	w.RunOnce(context.Background(), "https://slow.com")
	w.RunOnce(context.Background(), "https://slow.com")
	allowed, cat := brk.Allow("slow.com")
	assert.False(t, allowed)
	assert.Equal(t, breaker.CategoryTimeout, cat)
}

// TestRunOnceRedirectKeysByFinalDomain verifies the learned record and the
// breaker state live under the domain the page landed on, not the vanity
// domain that was requested
func TestRunOnceRedirectKeysByFinalDomain(t *testing.T) {
	html := `<html><body><div class="unit">1 bed 1 bath $1,050</div></body></html>`
	pages := redirectFactory(html, "https://resident.platform-site.com/p/42")
	w, store, _ := newTestWorker(nil, pages, nil)

	result := w.RunOnce(context.Background(), "https://www.old-oaks.com")

	assert.True(t, result.Success)
	assert.Equal(t, "resident.platform-site.com", result.Domain)

	// discovery and the outcome agree on the key
	rec, ok := store.Get("resident.platform-site.com")
	assert.True(t, ok)
	assert.Equal(t, 1.0, rec.SuccessRate)
	_, ok = store.Get("old-oaks.com")
	assert.False(t, ok)
}

// TestRunOnceRedirectHonorsCooldown trips the breaker through the redirect
// target and expects later runs against the vanity URL to be skipped
func TestRunOnceRedirectHonorsCooldown(t *testing.T) {
	html := `<html><body><p>Nothing here</p></body></html>`
	pages := redirectFactory(html, "https://resident.platform-site.com/p/42")
	w, _, brk := newTestWorker(nil, pages, nil)

	for i := 0; i < 3; i++ {
		result := w.RunOnce(context.Background(), "https://www.old-oaks.com")
		assert.False(t, result.Success)
		assert.Equal(t, "empty_result", result.FailureCategory)
		assert.Equal(t, "resident.platform-site.com", result.Domain)
	}

	allowed, _ := brk.Allow("resident.platform-site.com")
	assert.False(t, allowed)

	// the pre-navigation check cannot see through the redirect, but the
	// post-navigation one does
	result := w.RunOnce(context.Background(), "https://www.old-oaks.com")
	assert.Equal(t, "circuit_open", result.FailureCategory)
	assert.Empty(t, result.TemplateName)
}

func TestRunRoundPublishesEnvelopes(t *testing.T) {
	html := `<html><body><div class="unit">1 bed 1 bath $1,000</div></body></html>`
	pub := newCapturePublisher()
	w, _, _ := newTestWorker([]string{"https://www.pub-test.com"}, staticFactory(html), pub)

	w.runRound(context.Background())

	msgs := pub.messages["pub-test.com"]
	assert.Len(t, msgs, 1)

	var envelope extract.Result
	assert.NoError(t, json.Unmarshal(msgs[0], &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, 1, envelope.UnitCount)
	assert.Equal(t, "https://www.pub-test.com", envelope.URL)
	assert.Equal(t, "1000.00", envelope.Units[0].Price)
}

func TestStartStopsOnCancel(t *testing.T) {
	html := `<html><body><div class="unit">1 bed $900</div></body></html>`
	pub := newCapturePublisher()
	w, _, _ := newTestWorker([]string{"https://loop.com"}, staticFactory(html), pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Greater(t, pub.trims, 0, "streams are trimmed after each round")
}
