// Package mapping defines the shared result and dictionary types produced by
// the resolution pipeline and consumed by the review UI, the exporter, and
// the dictionary store.
package mapping

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Confidence tiers
// ─────────────────────────────────────────────────────────────────────────────

// ConfidenceTier summarizes a candidate pair's combined score.
type ConfidenceTier string

const (
	TierHigh     ConfidenceTier = "high"
	TierMedium   ConfidenceTier = "medium"
	TierLow      ConfidenceTier = "low"
	TierUnmapped ConfidenceTier = "unmapped"
)

// Tier thresholds on the combined score.
const (
	HighThreshold   = 0.85
	MediumThreshold = 0.60
	LowThreshold    = 0.40
)

// ClassifyTier returns the ConfidenceTier for a combined score.
func ClassifyTier(score float64) ConfidenceTier {
	switch {
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	case score >= LowThreshold:
		return TierLow
	default:
		return TierUnmapped
	}
}

// String returns the string representation of the tier.
func (t ConfidenceTier) String() string { return string(t) }

// ─────────────────────────────────────────────────────────────────────────────
// Phase provenance
// ─────────────────────────────────────────────────────────────────────────────

// Provenance records which escalation phase last annotated a pair.
type Provenance string

const (
	ProvenanceAlgorithm           Provenance = "algorithm"
	ProvenanceDictionaryConfirmed Provenance = "dictionary_confirmed"
	ProvenanceEmbeddingConfirmed  Provenance = "embedding_confirmed"
	ProvenanceLLMConfirmed        Provenance = "llm_confirmed"
	ProvenanceLLMRejected         Provenance = "llm_rejected"
)

// ─────────────────────────────────────────────────────────────────────────────
// Candidate pairs and results
// ─────────────────────────────────────────────────────────────────────────────

// FactorScores holds the five per-factor scores, each in [0,1].
type FactorScores struct {
	Type      float64 `json:"type"`
	Pixels    float64 `json:"pixels"`
	Spatial   float64 `json:"spatial"`
	Name      float64 `json:"name"`
	Structure float64 `json:"structure"`
}

// SubmodelMapping pairs one source submodel with one destination submodel.
type SubmodelMapping struct {
	SourceName string  `json:"source_name"`
	DestName   string  `json:"dest_name"`
	Score      float64 `json:"score"`
}

// CandidatePair is one source element paired with zero-or-one destination
// element.  Pairs are created by the weighted engine and re-annotated in
// place by later phases; they are never deleted.
type CandidatePair struct {
	SourceName string `json:"source_name"`
	// DestName is empty when the source element is unmapped.
	DestName   string            `json:"dest_name,omitempty"`
	Factors    FactorScores      `json:"factors"`
	Score      float64           `json:"score"`
	Tier       ConfidenceTier    `json:"tier"`
	Provenance Provenance        `json:"provenance"`
	Reason     string            `json:"reason"`
	Submodels  []SubmodelMapping `json:"submodels,omitempty"`
}

// Summary aggregates per-tier counts for a result.
type Summary struct {
	Total    int `json:"total"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unmapped int `json:"unmapped"`
	// UnusedDest counts destination elements no source element claimed.
	UnusedDest int `json:"unused_dest"`
}

// PhaseStatus records the outcome of one escalation phase.  Failed optional
// phases set Success=false and explain why; they never abort the run.
type PhaseStatus struct {
	Name      string        `json:"name"`
	Enabled   bool          `json:"enabled"`
	Success   bool          `json:"success"`
	Upgraded  int           `json:"upgraded"`
	BatchSize int           `json:"batch_size"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`
}

// Result aggregates all candidate pairs for one session.
type Result struct {
	SessionID  string           `json:"session_id"`
	Pairs      []*CandidatePair `json:"pairs"`
	UnusedDest []string         `json:"unused_dest"`
	Summary    Summary          `json:"summary"`
	Phases     []PhaseStatus    `json:"phases,omitempty"`
}

// Recount rebuilds the Summary from the current pair states.  Called after
// every phase so the summary always reflects the final annotations.
func (r *Result) Recount() {
	s := Summary{Total: len(r.Pairs), UnusedDest: len(r.UnusedDest)}
	for _, p := range r.Pairs {
		switch p.Tier {
		case TierHigh:
			s.High++
		case TierMedium:
			s.Medium++
		case TierLow:
			s.Low++
		default:
			s.Unmapped++
		}
	}
	r.Summary = s
}

// ─────────────────────────────────────────────────────────────────────────────
// Dictionary types
// ─────────────────────────────────────────────────────────────────────────────

// EventSource tags how a session event's destination was decided.
type EventSource string

const (
	SourceAutoConfirmed  EventSource = "auto_confirmed"
	SourceUserCorrection EventSource = "user_correction"
	SourceUserManual     EventSource = "user_manual"
)

// Rank orders event sources so repeat confirmations only ever upgrade an
// entry's provenance, never downgrade it.
func (s EventSource) Rank() int {
	switch s {
	case SourceUserManual:
		return 3
	case SourceUserCorrection:
		return 2
	case SourceAutoConfirmed:
		return 1
	default:
		return 0
	}
}

// SessionEvent is one confirmed (or left-unmapped) source→destination decision
// from a finished mapping session.  Events with an empty DestName are never
// persisted.
type SessionEvent struct {
	SessionID       string      `json:"session_id"`
	SourceName      string      `json:"source_name"`
	SourceKind      string      `json:"source_kind"`
	SourcePixels    int         `json:"source_pixels"`
	DestName        string      `json:"dest_name,omitempty"`
	DestKind        string      `json:"dest_kind,omitempty"`
	DestPixels      int         `json:"dest_pixels"`
	Vendor          string      `json:"vendor,omitempty"`
	Source          EventSource `json:"source"`
	SuggestedDest   string      `json:"suggested_dest,omitempty"`
	OccurredAt      time.Time   `json:"occurred_at"`
}

// Entry is one persisted crowd-sourced dictionary mapping, keyed by the
// normalized source and destination name forms.  Entries are global, not
// scoped to a user.
type Entry struct {
	ID              int64       `json:"id"`
	SourceKey       string      `json:"source_key"`
	DestKey         string      `json:"dest_key"`
	SourceRaw       string      `json:"source_raw"`
	DestRaw         string      `json:"dest_raw"`
	SourceKind      string      `json:"source_kind"`
	DestKind        string      `json:"dest_kind"`
	SourcePixels    int         `json:"source_pixels"`
	DestPixels      int         `json:"dest_pixels"`
	Vendor          string      `json:"vendor,omitempty"`
	Source          EventSource `json:"source"`
	Confirmations   int         `json:"confirmations"`
	FirstSeenAt     time.Time   `json:"first_seen_at"`
	LastConfirmedAt time.Time   `json:"last_confirmed_at"`
}

// Hit is one dictionary lookup result with its lookup-path confidence.
type Hit struct {
	Entry      *Entry  `json:"entry"`
	Confidence float64 `json:"confidence"`
	// Method is "exact", "fuzzy" or "signature".
	Method string `json:"method"`
}
