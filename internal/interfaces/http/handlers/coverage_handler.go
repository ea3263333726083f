package handlers

import (
	"net/http"

	"github.com/turtacn/LightMap-Intelligence/internal/application/coverage"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
)

// CoverageHandler serves the export-time coverage boost endpoint.
type CoverageHandler struct {
	matcher *coverage.Matcher
	logger  logging.Logger
}

// NewCoverageHandler builds a CoverageHandler.
func NewCoverageHandler(matcher *coverage.Matcher, logger logging.Logger) *CoverageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CoverageHandler{matcher: matcher, logger: logger.Named("http.coverage")}
}

// BoostRequest carries the inventories and the settled link state.
type BoostRequest struct {
	Source []*layouttypes.Element `json:"source"`
	Dest   []*layouttypes.Element `json:"dest"`
	// Links maps each source element name to the destination names it
	// currently feeds.
	Links map[string][]string `json:"links"`
}

// BoostResponse bundles current coverage with both suggestion families.
type BoostResponse struct {
	Coverage           coverage.Coverage            `json:"coverage"`
	GroupSuggestions   []coverage.Suggestion        `json:"group_suggestions,omitempty"`
	SpinnerSuggestions []coverage.SpinnerSuggestion `json:"spinner_suggestions,omitempty"`
	// ProjectedPercentage is the coverage if every suggestion were accepted.
	ProjectedPercentage float64 `json:"projected_percentage"`
}

// Boost handles GET /api/v1/coverage/boost.
func (h *CoverageHandler) Boost(w http.ResponseWriter, r *http.Request) {
	var req BoostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Dest) == 0 {
		writeError(w, pkgerrors.New(pkgerrors.ErrCodeBadRequest, "dest inventory is required"))
		return
	}

	source := layouttypes.NewInventory(req.Source)
	dest := layouttypes.NewInventory(req.Dest)
	links := coverage.Links(req.Links)

	cov := h.matcher.Compute(dest, links)
	groups := h.matcher.Suggest(source, dest, links, cov)
	spinners := h.matcher.SuggestSpinners(dest, links)

	writeJSON(w, http.StatusOK, BoostResponse{
		Coverage:            cov,
		GroupSuggestions:    groups,
		SpinnerSuggestions:  spinners,
		ProjectedPercentage: h.matcher.Project(cov, groups, spinners, dest, links),
	})
}
