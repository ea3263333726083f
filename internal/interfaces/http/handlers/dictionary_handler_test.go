package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

type fakeDictionaryService struct {
	hit   *mappingtypes.Hit
	stats *dictionary.Stats
	err   error
	seen  dictionary.Query
}

func (f *fakeDictionaryService) Lookup(_ context.Context, q dictionary.Query) (*mappingtypes.Hit, error) {
	f.seen = q
	if f.err != nil {
		return nil, f.err
	}
	return f.hit, nil
}

func (f *fakeDictionaryService) Stats(_ context.Context) (*dictionary.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func TestLookup_Hit(t *testing.T) {
	svc := &fakeDictionaryService{hit: &mappingtypes.Hit{
		Entry:      &mappingtypes.Entry{SourceRaw: "16 CW Spinner", DestRaw: "GE Spinner"},
		Confidence: 0.95,
		Method:     "fuzzy",
	}}
	h := NewDictionaryHandler(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?name=16+CW+Spinner&kind=model&pixels=600&vendor=Boscoyo+Studio", nil)
	rec := httptest.NewRecorder()
	h.Lookup(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "16 CW Spinner", svc.seen.RawName)
	assert.Equal(t, "model", svc.seen.Kind)
	assert.Equal(t, 600, svc.seen.PixelCount)
	assert.Equal(t, "Boscoyo Studio", svc.seen.Vendor)

	var resp LookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	require.NotNil(t, resp.Hit)
	assert.Equal(t, "fuzzy", resp.Hit.Method)
}

func TestLookup_CleanMiss(t *testing.T) {
	h := NewDictionaryHandler(&fakeDictionaryService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?name=Unknown+Prop", nil)
	rec := httptest.NewRecorder()
	h.Lookup(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Found)
	assert.Nil(t, resp.Hit)
}

func TestLookup_RequiresName(t *testing.T) {
	h := NewDictionaryHandler(&fakeDictionaryService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Lookup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookup_RejectsBadPixels(t *testing.T) {
	h := NewDictionaryHandler(&fakeDictionaryService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?name=x&pixels=lots", nil)
	rec := httptest.NewRecorder()
	h.Lookup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookup_ServiceErrorMasked(t *testing.T) {
	svc := &fakeDictionaryService{err: pkgerrors.New(pkgerrors.ErrCodeDictionaryLookupFailed, "store down")}
	h := NewDictionaryHandler(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?name=x", nil)
	rec := httptest.NewRecorder()
	h.Lookup(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DICT_001", body.Code)
	assert.Equal(t, "internal server error", body.Message)
}

func TestGetStats(t *testing.T) {
	svc := &fakeDictionaryService{stats: &dictionary.Stats{
		Entries:       42,
		Confirmations: 99,
		BySource:      map[string]int64{"auto_confirmed": 40, "user_correction": 2},
	}}
	h := NewDictionaryHandler(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats dictionary.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(42), stats.Entries)
	assert.Equal(t, int64(99), stats.Confirmations)
}
