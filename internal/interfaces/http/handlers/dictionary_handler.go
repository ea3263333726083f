package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// DictionaryService is the dictionary surface the handler exposes.
type DictionaryService interface {
	Lookup(ctx context.Context, q dictionary.Query) (*mappingtypes.Hit, error)
	Stats(ctx context.Context) (*dictionary.Stats, error)
}

// DictionaryHandler serves dictionary lookup and stats endpoints.
type DictionaryHandler struct {
	service DictionaryService
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewDictionaryHandler builds a DictionaryHandler.
func NewDictionaryHandler(service DictionaryService, metrics *prometheus.AppMetrics, logger logging.Logger) *DictionaryHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DictionaryHandler{service: service, metrics: metrics, logger: logger.Named("http.dictionary")}
}

// LookupResponse wraps a dictionary hit; Found false means a clean miss.
type LookupResponse struct {
	Found bool               `json:"found"`
	Hit   *mappingtypes.Hit  `json:"hit,omitempty"`
}

// Lookup handles GET /api/v1/dictionary/lookup.  Query parameters: name
// (required), kind, pixels, vendor.
func (h *DictionaryHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := dictionary.Query{
		RawName: r.URL.Query().Get("name"),
		Kind:    r.URL.Query().Get("kind"),
		Vendor:  r.URL.Query().Get("vendor"),
	}
	if q.RawName == "" {
		writeError(w, pkgerrors.New(pkgerrors.ErrCodeBadRequest, "name query parameter is required"))
		return
	}
	if v := r.URL.Query().Get("pixels"); v != "" {
		pixels, err := strconv.Atoi(v)
		if err != nil || pixels < 0 {
			writeError(w, pkgerrors.New(pkgerrors.ErrCodeBadRequest, "pixels must be a non-negative integer"))
			return
		}
		q.PixelCount = pixels
	}

	hit, err := h.service.Lookup(r.Context(), q)
	if err != nil {
		h.logger.Warn("dictionary lookup failed", logging.String("name", q.RawName), logging.Err(err))
		writeError(w, err)
		return
	}
	if hit == nil {
		prometheus.RecordDictionaryLookup(h.metrics, "none", false)
		writeJSON(w, http.StatusOK, LookupResponse{Found: false})
		return
	}
	prometheus.RecordDictionaryLookup(h.metrics, hit.Method, true)
	writeJSON(w, http.StatusOK, LookupResponse{Found: true, Hit: hit})
}

// GetStats handles GET /api/v1/dictionary/stats.
func (h *DictionaryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Warn("dictionary stats failed", logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
