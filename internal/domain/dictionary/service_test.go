package dictionary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// fakeStore is an in-memory Store keyed the way the SQL repository keys
// entries: (source_key, dest_key).
type fakeStore struct {
	entries   map[string]*mappingtypes.Entry
	findCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*mappingtypes.Entry)}
}

func (f *fakeStore) put(e *mappingtypes.Entry) {
	f.entries[e.SourceKey+"|"+e.DestKey] = e
}

func (f *fakeStore) FindByKey(_ context.Context, sourceKey string) ([]*mappingtypes.Entry, error) {
	f.findCalls++
	var out []*mappingtypes.Entry
	for _, e := range f.entries {
		if e.SourceKey == sourceKey {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByLengthWindow(_ context.Context, minLen, maxLen int) ([]*mappingtypes.Entry, error) {
	var out []*mappingtypes.Entry
	for _, e := range f.entries {
		if len(e.SourceKey) >= minLen && len(e.SourceKey) <= maxLen {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) FindBySignature(_ context.Context, sourceKind string, minPixels, maxPixels int) ([]*mappingtypes.Entry, error) {
	var out []*mappingtypes.Entry
	for _, e := range f.entries {
		if e.SourceKind == sourceKind && e.SourcePixels >= minPixels && e.SourcePixels <= maxPixels {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertConfirmation(_ context.Context, entry *mappingtypes.Entry) error {
	key := entry.SourceKey + "|" + entry.DestKey
	if existing, ok := f.entries[key]; ok {
		existing.Confirmations++
		existing.LastConfirmedAt = entry.LastConfirmedAt
		if entry.Source.Rank() > existing.Source.Rank() {
			existing.Source = entry.Source
		}
		return nil
	}
	cp := *entry
	f.entries[key] = &cp
	return nil
}

func (f *fakeStore) Stats(_ context.Context) (*Stats, error) {
	st := &Stats{BySource: make(map[string]int64)}
	for _, e := range f.entries {
		st.Entries++
		st.Confirmations += int64(e.Confirmations)
		st.BySource[string(e.Source)]++
	}
	return st, nil
}

func newTestService(store Store) *Service {
	return NewService(store, DefaultOptions(), nil)
}

func entry(sourceKey, destRaw string, confirmations int, source mappingtypes.EventSource) *mappingtypes.Entry {
	return &mappingtypes.Entry{
		SourceKey:     sourceKey,
		DestKey:       NormalizeKey(destRaw),
		DestRaw:       destRaw,
		Confirmations: confirmations,
		Source:        source,
	}
}

func TestLookup_ExactHit(t *testing.T) {
	store := newFakeStore()
	store.put(entry(NormalizeKey("Mega Tree"), "MT 350", 4, mappingtypes.SourceUserManual))

	hit, err := newTestService(store).Lookup(context.Background(), Query{RawName: "mega_tree"})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "exact", hit.Method)
	assert.InDelta(t, ConfidenceExact, hit.Confidence, 0.001)
	assert.Equal(t, "MT 350", hit.Entry.DestRaw)
}

func TestLookup_ExactPrefersMostConfirmed(t *testing.T) {
	store := newFakeStore()
	key := NormalizeKey("Arch 1")
	store.put(entry(key, "Left Arch", 2, mappingtypes.SourceAutoConfirmed))
	store.put(entry(key, "Arch One", 9, mappingtypes.SourceAutoConfirmed))

	hit, err := newTestService(store).Lookup(context.Background(), Query{RawName: "Arch 1"})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Arch One", hit.Entry.DestRaw)
}

func TestLookup_FuzzyDistanceOneAndTwo(t *testing.T) {
	store := newFakeStore()
	store.put(entry("16_cw_spinner", "Spinner CW 16", 3, mappingtypes.SourceUserCorrection))

	svc := newTestService(store)

	// One edit away.
	hit, err := svc.Lookup(context.Background(), Query{RawName: "16 cw spinnr"})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "fuzzy", hit.Method)
	assert.InDelta(t, ConfidenceFuzzyDist1, hit.Confidence, 0.001)

	// Two edits away.
	hit, err = svc.Lookup(context.Background(), Query{RawName: "16 cw spinnerxy"})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.InDelta(t, ConfidenceFuzzyDist2, hit.Confidence, 0.001)
}

func TestLookup_FuzzyRejectsDistantKeys(t *testing.T) {
	store := newFakeStore()
	store.put(entry("candy_cane", "CC Left", 5, mappingtypes.SourceUserManual))

	hit, err := newTestService(store).Lookup(context.Background(), Query{RawName: "candelabra"})
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestLookup_SignatureFallback(t *testing.T) {
	store := newFakeStore()
	e := entry("some_unrelated_key", "Showstopper", 2, mappingtypes.SourceAutoConfirmed)
	e.SourceKind = "model"
	e.SourcePixels = 500
	store.put(e)

	hit, err := newTestService(store).Lookup(context.Background(), Query{
		RawName:    "Totally Different Name",
		Kind:       "model",
		PixelCount: 510,
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "signature", hit.Method)
	assert.InDelta(t, ConfidenceSignature, hit.Confidence, 0.001)
}

func TestLookup_SignatureRespectsPixelWindow(t *testing.T) {
	store := newFakeStore()
	e := entry("some_unrelated_key", "Showstopper", 2, mappingtypes.SourceAutoConfirmed)
	e.SourceKind = "model"
	e.SourcePixels = 500
	store.put(e)

	hit, err := newTestService(store).Lookup(context.Background(), Query{
		RawName:    "Totally Different Name",
		Kind:       "model",
		PixelCount: 600,
	})
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestLookup_VendorHintScopesCandidates(t *testing.T) {
	store := newFakeStore()
	key := NormalizeKey("ChromaSpinner")
	boscoyo := entry(key, "Spinner A", 9, mappingtypes.SourceAutoConfirmed)
	boscoyo.Vendor = "Boscoyo Studio"
	store.put(boscoyo)
	gilbert := entry(key, "Spinner B", 1, mappingtypes.SourceAutoConfirmed)
	gilbert.Vendor = "Gilbert Engineering"
	store.put(gilbert)

	hit, err := newTestService(store).Lookup(context.Background(), Query{
		RawName: "ChromaSpinner",
		Vendor:  "Gilbert Engineering",
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Spinner B", hit.Entry.DestRaw)
}

func TestLookup_CachesHitsAndMisses(t *testing.T) {
	store := newFakeStore()
	store.put(entry(NormalizeKey("Mega Tree"), "MT 350", 1, mappingtypes.SourceAutoConfirmed))
	svc := newTestService(store)

	for i := 0; i < 3; i++ {
		_, err := svc.Lookup(context.Background(), Query{RawName: "Mega Tree"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.findCalls)

	// Expire the cache and look up again.
	base := time.Now()
	svc.clock = func() time.Time { return base.Add(10 * time.Minute) }
	_, err := svc.Lookup(context.Background(), Query{RawName: "Mega Tree"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.findCalls)
}

func TestRecord_SkipsEmptyDestination(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	err := svc.Record(context.Background(), &mappingtypes.SessionEvent{
		SourceName: "Arch 1",
		Source:     mappingtypes.SourceUserManual,
	})
	require.NoError(t, err)
	assert.Empty(t, store.entries)
}

func TestRecord_UpsertsAndInvalidatesCache(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	// Prime a cached miss.
	hit, err := svc.Lookup(ctx, Query{RawName: "Arch 1"})
	require.NoError(t, err)
	require.Nil(t, hit)

	ev := &mappingtypes.SessionEvent{
		SourceName:   "Arch 1",
		SourceKind:   "model",
		SourcePixels: 100,
		DestName:     "Left Arch",
		DestKind:     "model",
		DestPixels:   100,
		Source:       mappingtypes.SourceAutoConfirmed,
	}
	require.NoError(t, svc.Record(ctx, ev))

	// The write must punch through the cached miss.
	hit, err = svc.Lookup(ctx, Query{RawName: "Arch 1"})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Left Arch", hit.Entry.DestRaw)
	assert.Equal(t, 1, hit.Entry.Confirmations)

	// A stronger repeat confirmation increments and upgrades provenance.
	ev2 := *ev
	ev2.Source = mappingtypes.SourceUserManual
	require.NoError(t, svc.Record(ctx, &ev2))

	stored := store.entries[NormalizeKey("Arch 1")+"|"+NormalizeKey("Left Arch")]
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.Confirmations)
	assert.Equal(t, mappingtypes.SourceUserManual, stored.Source)
}

func TestRecord_DetectsVendorFromSourceName(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	require.NoError(t, svc.Record(context.Background(), &mappingtypes.SessionEvent{
		SourceName: "Boscoyo ChromaSpinner",
		DestName:   "Spinner 1",
		Source:     mappingtypes.SourceUserManual,
	}))

	var stored *mappingtypes.Entry
	for _, e := range store.entries {
		stored = e
	}
	require.NotNil(t, stored)
	assert.Equal(t, "Boscoyo Studio", stored.Vendor)
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"MegaTree 150px":  "150_mega_tree",
		"mega_tree":       "mega_tree",
		"Tree Mega":       "mega_tree",
		"GE Spinner GRP":  "spinner",
		"Arch-01 RGB LED": "01_arch",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), "NormalizeKey(%q)", in)
	}
}

func TestDetectVendor(t *testing.T) {
	assert.Equal(t, "Gilbert Engineering", DetectVendor("GE Rosa Grande Spokes"))
	assert.Equal(t, "Boscoyo Studio", DetectVendor("Boscoyo MegaFlake"))
	assert.Equal(t, "Pixel Pro Displays", DetectVendor("PPD Wreath 24"))
	assert.Equal(t, "", DetectVendor("Plain Old Arch"))
}

func TestSameDest(t *testing.T) {
	assert.True(t, SameDest("Left Arch", "left_arch"))
	assert.True(t, SameDest("Left  Arch", "LEFT ARCH"))
	assert.False(t, SameDest("Left Arch", "Right Arch"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("spinner", "spinner", 2))
	assert.Equal(t, 1, levenshtein("spinner", "spinnr", 2))
	assert.Equal(t, 2, levenshtein("spinner", "spinnerxy", 2))
	assert.Equal(t, 3, levenshtein("spinner", "wreath", 2), "capped at max+1")
}
