package template

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"mpatch/unitscout/logger"
	scrapeerr "mpatch/unitscout/pkg/errors"
)

// LearnedRecord is the persisted knowledge for one domain.
type LearnedRecord struct {
	Selectors   SelectorSet `json:"selectors"`
	SuccessRate float64     `json:"success_rate"`
	UsageCount  int         `json:"usage_count"`
	LastUsed    time.Time   `json:"last_used"`
	LearnedAt   time.Time   `json:"learned_at"`
}

// DomainStats is the companion per-domain aggregate, kept independent of the
// main store so it can be wiped without losing learned selectors.
type DomainStats struct {
	Attempts    int       `json:"attempts"`
	Successes   int       `json:"successes"`
	LastAttempt time.Time `json:"last_attempt"`
}

// Backend loads and saves the raw store document. Injectable so tests can use
// an in-memory map instead of the JSON file.
type Backend interface {
	Load(v interface{}) error
	Save(v interface{}) error
}

// FileBackend stores the document as indented UTF-8 JSON, safe to hand-edit.
type FileBackend struct {
	Path string
}

func (f FileBackend) Load(v interface{}) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return scrapeerr.NewStoreCorruption(f.Path, "failed to read store file", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return scrapeerr.NewStoreCorruption(f.Path, "malformed JSON in store file", err)
	}
	return nil
}

func (f FileBackend) Save(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0644)
}

// MemoryBackend keeps the document in process memory.
type MemoryBackend struct {
	data []byte
}

func (m *MemoryBackend) Load(v interface{}) error {
	if len(m.data) == 0 {
		return nil
	}
	return json.Unmarshal(m.data, v)
}

func (m *MemoryBackend) Save(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// Store holds learned templates keyed by normalized domain. All mutation goes
// through the mutex; the backing file is rewritten after every update so a
// crash never loses more than the in-flight record.
type Store struct {
	mu      sync.Mutex
	backend Backend
	stats   Backend
	records map[string]LearnedRecord
	usage   map[string]DomainStats
	log     *logger.Logger
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStatsBackend enables the companion statistics document.
func WithStatsBackend(b Backend) StoreOption {
	return func(s *Store) { s.stats = b }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore loads the store from the backend. A corrupt document is treated as
// empty with a warning, never as a fatal error.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		records: make(map[string]LearnedRecord),
		usage:   make(map[string]DomainStats),
		log:     logger.ForStore(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := backend.Load(&s.records); err != nil {
		s.log.Warn().Err(err).Msg("Template store unreadable, starting empty")
		s.records = make(map[string]LearnedRecord)
	}
	if s.stats != nil {
		if err := s.stats.Load(&s.usage); err != nil {
			s.log.Warn().Err(err).Msg("Stats document unreadable, starting empty")
			s.usage = make(map[string]DomainStats)
		}
	}
	return s
}

// Get returns the learned record for a normalized domain.
func (s *Store) Get(domain string) (LearnedRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[domain]
	return rec, ok
}

// Len returns the number of learned domains.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Learn writes a freshly discovered selector set for a domain. A new domain
// gets a record seeded at 1.0 when the discovery pass produced records, else
// 0.0. An existing domain is updated in place: selectors merged, usage
// bumped, timestamps refreshed. The record count never grows for a re-learn.
func (s *Store) Learn(domain string, selectors SelectorSet, yieldedRecords bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[domain]; ok {
		rec.Selectors = selectors.Merge(rec.Selectors)
		rec.UsageCount++
		rec.LastUsed = now
		s.records[domain] = rec
		s.log.Debug().Str("domain", domain).Msg("Re-learned existing domain")
	} else {
		seed := 0.0
		if yieldedRecords {
			seed = 1.0
		}
		s.records[domain] = LearnedRecord{
			Selectors:   selectors,
			SuccessRate: seed,
			UsageCount:  1,
			LastUsed:    now,
			LearnedAt:   now,
		}
		s.log.Info().Str("domain", domain).Float64("seed", seed).Msg("Learned new domain")
	}
	s.persistLocked()
}

// RecordOutcome applies the rolling success-rate update for a domain:
// rate = (rate + outcome) / 2. The most recent outcome intentionally carries
// half the total weight, so the rate adapts fast to site redesigns. No-op for
// domains without a learned record; the aggregate stats are updated either
// way.
func (s *Store) RecordOutcome(domain string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := s.usage[domain]
	st.Attempts++
	if success {
		st.Successes++
	}
	st.LastAttempt = now
	s.usage[domain] = st

	rec, ok := s.records[domain]
	if !ok {
		s.persistStatsLocked()
		return
	}
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	rec.SuccessRate = (rec.SuccessRate + outcome) / 2
	rec.UsageCount++
	rec.LastUsed = now
	s.records[domain] = rec
	s.persistLocked()
}

// Prune removes records unused for longer than maxAge and returns how many
// were dropped.
func (s *Store) Prune(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for domain, rec := range s.records {
		if rec.LastUsed.Before(cutoff) {
			delete(s.records, domain)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("Pruned stale learned templates")
		s.persistLocked()
	}
	return removed
}

func (s *Store) persistLocked() {
	if err := s.backend.Save(s.records); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist template store")
	}
	s.persistStatsLocked()
}

func (s *Store) persistStatsLocked() {
	if s.stats == nil {
		return
	}
	if err := s.stats.Save(s.usage); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist domain stats")
	}
}
