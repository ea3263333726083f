package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/turtacn/LightMap-Intelligence/internal/application/mapping"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/effecttree"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// Resolver runs one mapping resolution session.
type Resolver interface {
	Resolve(ctx context.Context, req mapping.Request) (*mappingtypes.Result, error)
}

// SessionRecorder accepts a finalized session's events for dictionary
// storage.  The production recorder publishes to kafka; a direct recorder
// writes straight into the dictionary service when messaging is disabled.
type SessionRecorder interface {
	RecordSession(ctx context.Context, sessionID string, events []*mappingtypes.SessionEvent) error
}

// MappingHandler serves the resolution and session endpoints.
type MappingHandler struct {
	resolver Resolver
	recorder SessionRecorder
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewMappingHandler builds a MappingHandler.  recorder and metrics may be
// nil; the session endpoint then answers 503 and metrics are skipped.
func NewMappingHandler(resolver Resolver, recorder SessionRecorder, metrics *prometheus.AppMetrics, logger logging.Logger) *MappingHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MappingHandler{
		resolver: resolver,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger.Named("http.mapping"),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// POST /api/v1/mappings/resolve
// ─────────────────────────────────────────────────────────────────────────────

// EffectFactsRequest carries per-element animation presence extracted from a
// sequence by the caller.
type EffectFactsRequest struct {
	Active       map[string]bool `json:"active"`
	DirectCounts map[string]int  `json:"direct_counts,omitempty"`
}

// ResolveRequest is the resolve endpoint's body.
type ResolveRequest struct {
	SessionID   string                 `json:"session_id,omitempty"`
	Source      []*layouttypes.Element `json:"source"`
	Dest        []*layouttypes.Element `json:"dest"`
	EffectFacts *EffectFactsRequest    `json:"effect_facts,omitempty"`
	VendorHint  string                 `json:"vendor_hint,omitempty"`
}

// Resolve handles POST /api/v1/mappings/resolve.
func (h *MappingHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	mreq := mapping.Request{
		SessionID:  req.SessionID,
		Source:     layouttypes.NewInventory(req.Source),
		Dest:       layouttypes.NewInventory(req.Dest),
		VendorHint: req.VendorHint,
	}
	if req.EffectFacts != nil {
		mreq.Facts = &effecttree.Facts{
			Active:       req.EffectFacts.Active,
			DirectCounts: req.EffectFacts.DirectCounts,
		}
	}

	start := time.Now()
	result, err := h.resolver.Resolve(r.Context(), mreq)
	if err != nil {
		prometheus.RecordResolve(h.metrics, false, time.Since(start), nil)
		h.logger.Warn("resolve failed", logging.Err(err))
		writeError(w, err)
		return
	}
	prometheus.RecordResolve(h.metrics, true, time.Since(start), map[string]int{
		"high":     result.Summary.High,
		"medium":   result.Summary.Medium,
		"low":      result.Summary.Low,
		"unmapped": result.Summary.Unmapped,
	})
	writeJSON(w, http.StatusOK, result)
}

// ─────────────────────────────────────────────────────────────────────────────
// POST /api/v1/mappings/sessions
// ─────────────────────────────────────────────────────────────────────────────

// SessionRequest is the finalized-session endpoint's body: the pre-review
// result, the destinations the user settled on, and the inventories the
// session ran over.
type SessionRequest struct {
	Result    *mappingtypes.Result   `json:"result"`
	Finalized map[string]string      `json:"finalized"`
	Source    []*layouttypes.Element `json:"source,omitempty"`
	Dest      []*layouttypes.Element `json:"dest,omitempty"`
}

// SessionResponse acknowledges an accepted session.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Events    int    `json:"events"`
}

// FinalizeSession handles POST /api/v1/mappings/sessions.  The derived
// events feed the crowd-sourced dictionary asynchronously; acceptance means
// queued, not stored.
func (h *MappingHandler) FinalizeSession(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, pkgerrors.New(pkgerrors.ErrCodeServiceUnavailable, "session recording is disabled"))
		return
	}

	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Result == nil {
		writeError(w, pkgerrors.New(pkgerrors.ErrCodeBadRequest, "result is required"))
		return
	}
	if req.Result.SessionID == "" {
		writeError(w, pkgerrors.New(pkgerrors.ErrCodeBadRequest, "result.session_id is required"))
		return
	}

	events := mapping.DeriveSessionEvents(
		req.Result,
		mapping.FinalizedMapping(req.Finalized),
		layouttypes.NewInventory(req.Source),
		layouttypes.NewInventory(req.Dest),
		time.Now().UTC(),
	)
	if err := h.recorder.RecordSession(r.Context(), req.Result.SessionID, events); err != nil {
		h.logger.Error("session recording failed",
			logging.String("session_id", req.Result.SessionID),
			logging.Err(err),
		)
		writeError(w, err)
		return
	}

	h.logger.Info("session accepted",
		logging.String("session_id", req.Result.SessionID),
		logging.Int("events", len(events)),
	)
	writeJSON(w, http.StatusAccepted, SessionResponse{
		SessionID: req.Result.SessionID,
		Events:    len(events),
	})
}
