package dictionary

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// Lookup-path confidences.
const (
	ConfidenceExact      = 1.0
	ConfidenceFuzzyDist1 = 0.95
	ConfidenceFuzzyDist2 = 0.85
	ConfidenceSignature  = 0.70
)

const (
	// fuzzyLengthWindow bounds the candidate keys fetched for fuzzy lookup;
	// keys whose length differs by more than this cannot be within edit
	// distance 2 anyway, so the window just keeps the fetch small.
	fuzzyLengthWindow = 3
	// signaturePixelTolerance is the relative pixel-count window for
	// signature lookup.
	signaturePixelTolerance = 0.05
)

// Stats summarizes the dictionary contents.
type Stats struct {
	Entries       int64            `json:"entries"`
	Confirmations int64            `json:"confirmations"`
	BySource      map[string]int64 `json:"by_source"`
}

// Store is the persistence surface the dictionary service runs against.
type Store interface {
	FindByKey(ctx context.Context, sourceKey string) ([]*mappingtypes.Entry, error)
	FindByLengthWindow(ctx context.Context, minLen, maxLen int) ([]*mappingtypes.Entry, error)
	FindBySignature(ctx context.Context, sourceKind string, minPixels, maxPixels int) ([]*mappingtypes.Entry, error)
	UpsertConfirmation(ctx context.Context, entry *mappingtypes.Entry) error
	Stats(ctx context.Context) (*Stats, error)
}

// Query names one source element to resolve through the dictionary.
type Query struct {
	RawName    string
	Kind       string
	PixelCount int
	// Vendor, when set, scopes candidates to that vendor plus vendor-less
	// entries.
	Vendor string
}

// Options configures a Service.
type Options struct {
	// FuzzyMaxDist is the largest accepted edit distance on the fuzzy rung.
	FuzzyMaxDist int
	// SignatureMatch enables the pixel+kind signature rung.
	SignatureMatch bool
	// CacheTTL bounds how long lookup results (hits and misses) are served
	// from memory before the store is consulted again.
	CacheTTL time.Duration
}

// DefaultOptions returns production dictionary options.
func DefaultOptions() Options {
	return Options{FuzzyMaxDist: 2, SignatureMatch: true, CacheTTL: 5 * time.Minute}
}

type cacheEntry struct {
	hit     *mappingtypes.Hit
	expires time.Time
}

// Service answers dictionary lookups through the exact → fuzzy → signature
// ladder and records confirmed session events.  Lookups are cached in memory
// for a short TTL; writes invalidate the affected key.
type Service struct {
	store  Store
	opts   Options
	logger logging.Logger
	clock  func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewService builds a dictionary Service over the given store.
func NewService(store Store, opts Options, logger logging.Logger) *Service {
	def := DefaultOptions()
	if opts.FuzzyMaxDist <= 0 {
		opts.FuzzyMaxDist = def.FuzzyMaxDist
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		store:  store,
		opts:   opts,
		logger: logger.Named("dictionary"),
		clock:  time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// Lookup resolves one source element through the ladder.  A nil Hit with a
// nil error is a clean miss.
func (s *Service) Lookup(ctx context.Context, q Query) (*mappingtypes.Hit, error) {
	key := NormalizeKey(q.RawName)
	if key == "" {
		return nil, nil
	}

	if q.Vendor == "" {
		q.Vendor = DetectVendor(q.RawName)
	}

	cacheKey := key + "|" + q.Vendor
	if hit, ok := s.cached(cacheKey); ok {
		return hit, nil
	}

	hit, err := s.lookupStore(ctx, key, q)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDictionaryLookupFailed, "dictionary lookup failed")
	}
	s.remember(cacheKey, hit)
	return hit, nil
}

// vendorScope filters candidates down to the hinted vendor plus vendor-less
// entries.  No hint keeps everything.
func vendorScope(entries []*mappingtypes.Entry, vendor string) []*mappingtypes.Entry {
	if vendor == "" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Vendor == "" || e.Vendor == vendor {
			out = append(out, e)
		}
	}
	return out
}

func (s *Service) lookupStore(ctx context.Context, key string, q Query) (*mappingtypes.Hit, error) {
	// Exact.
	entries, err := s.store.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if best := pickBest(vendorScope(entries, q.Vendor)); best != nil {
		return &mappingtypes.Hit{Entry: best, Confidence: ConfidenceExact, Method: "exact"}, nil
	}

	// Fuzzy: candidates within the length window, accepted at edit distance
	// ≤ FuzzyMaxDist, nearest first.
	minLen, maxLen := len(key)-fuzzyLengthWindow, len(key)+fuzzyLengthWindow
	if minLen < 1 {
		minLen = 1
	}
	candidates, err := s.store.FindByLengthWindow(ctx, minLen, maxLen)
	if err != nil {
		return nil, err
	}
	if entry, dist := nearestByKey(key, vendorScope(candidates, q.Vendor), s.opts.FuzzyMaxDist); entry != nil {
		conf := ConfidenceFuzzyDist2
		if dist <= 1 {
			conf = ConfidenceFuzzyDist1
		}
		return &mappingtypes.Hit{Entry: entry, Confidence: conf, Method: "fuzzy"}, nil
	}

	// Signature: same kind, pixel count within tolerance.
	if s.opts.SignatureMatch && q.PixelCount > 0 && q.Kind != "" {
		window := int(float64(q.PixelCount) * signaturePixelTolerance)
		sigs, err := s.store.FindBySignature(ctx, q.Kind, q.PixelCount-window, q.PixelCount+window)
		if err != nil {
			return nil, err
		}
		if best := pickBest(vendorScope(sigs, q.Vendor)); best != nil {
			return &mappingtypes.Hit{Entry: best, Confidence: ConfidenceSignature, Method: "signature"}, nil
		}
	}
	return nil, nil
}

// Record persists one confirmed session event.  Events without a destination
// are dropped; the dictionary never stores "maps to nothing".
func (s *Service) Record(ctx context.Context, ev *mappingtypes.SessionEvent) error {
	if ev == nil || ev.DestName == "" {
		return nil
	}
	now := ev.OccurredAt
	if now.IsZero() {
		now = s.clock()
	}
	vendor := ev.Vendor
	if vendor == "" {
		vendor = DetectVendor(ev.SourceName)
	}
	entry := &mappingtypes.Entry{
		SourceKey:       NormalizeKey(ev.SourceName),
		DestKey:         NormalizeKey(ev.DestName),
		SourceRaw:       ev.SourceName,
		DestRaw:         ev.DestName,
		SourceKind:      ev.SourceKind,
		DestKind:        ev.DestKind,
		SourcePixels:    ev.SourcePixels,
		DestPixels:      ev.DestPixels,
		Vendor:          vendor,
		Source:          ev.Source,
		Confirmations:   1,
		FirstSeenAt:     now,
		LastConfirmedAt: now,
	}
	if entry.SourceKey == "" {
		return nil
	}
	if err := s.store.UpsertConfirmation(ctx, entry); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDictionaryStoreFailed, "dictionary store failed")
	}
	s.invalidate(entry.SourceKey)
	s.logger.Debug("dictionary confirmation recorded",
		logging.String("source_key", entry.SourceKey),
		logging.String("dest_key", entry.DestKey),
		logging.String("event_source", string(ev.Source)),
	)
	return nil
}

// Stats returns aggregate dictionary statistics.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDictionaryLookupFailed, "dictionary stats failed")
	}
	return st, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) cached(key string) (*mappingtypes.Hit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ce, ok := s.cache[key]
	if !ok || s.clock().After(ce.expires) {
		return nil, false
	}
	return ce.hit, true
}

func (s *Service) remember(key string, hit *mappingtypes.Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cacheEntry{hit: hit, expires: s.clock().Add(s.opts.CacheTTL)}
}

// invalidate drops every cached lookup for a source key, across all vendor
// scopes.
func (s *Service) invalidate(key string) {
	prefix := key + "|"
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Selection helpers
// ─────────────────────────────────────────────────────────────────────────────

// pickBest prefers the most-confirmed entry, breaking ties by provenance
// rank and then recency.
func pickBest(entries []*mappingtypes.Entry) *mappingtypes.Entry {
	var best *mappingtypes.Entry
	for _, e := range entries {
		if e == nil {
			continue
		}
		if best == nil || betterEntry(e, best) {
			best = e
		}
	}
	return best
}

func betterEntry(a, b *mappingtypes.Entry) bool {
	if a.Confirmations != b.Confirmations {
		return a.Confirmations > b.Confirmations
	}
	if ar, br := a.Source.Rank(), b.Source.Rank(); ar != br {
		return ar > br
	}
	return a.LastConfirmedAt.After(b.LastConfirmedAt)
}

// nearestByKey returns the candidate with the smallest edit distance ≤ max,
// breaking distance ties with betterEntry.
func nearestByKey(key string, candidates []*mappingtypes.Entry, max int) (*mappingtypes.Entry, int) {
	var best *mappingtypes.Entry
	bestDist := max + 1
	for _, e := range candidates {
		if e == nil || e.SourceKey == key {
			continue
		}
		d := levenshtein(key, e.SourceKey, max)
		if d > max {
			continue
		}
		if d < bestDist || (d == bestDist && best != nil && betterEntry(e, best)) {
			best = e
			bestDist = d
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestDist
}
