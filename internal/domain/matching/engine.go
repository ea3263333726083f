package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Weights and options
// ─────────────────────────────────────────────────────────────────────────────

// Weights holds the five factor weights.  They must sum to 1.0; the config
// layer validates that before an Engine is built.
type Weights struct {
	Type      float64
	Pixels    float64
	Spatial   float64
	Name      float64
	Structure float64
}

// DefaultWeights returns the production factor weights.
func DefaultWeights() Weights {
	return Weights{Type: 0.35, Pixels: 0.25, Spatial: 0.20, Name: 0.10, Structure: 0.10}
}

// Options configures an Engine.
type Options struct {
	Weights Weights
	// AssignFloor is the minimum combined score for a pair to be considered
	// at all.
	AssignFloor float64
	// SubmodelFloor is the minimum blended score for a submodel pairing.
	SubmodelFloor float64
}

// DefaultOptions returns production engine options.
func DefaultOptions() Options {
	return Options{Weights: DefaultWeights(), AssignFloor: 0.15, SubmodelFloor: 0.2}
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

// Engine performs five-factor weighted matching between a source and a
// destination inventory.  Engines are stateless and safe for concurrent use.
type Engine struct {
	opts   Options
	logger logging.Logger
}

// NewEngine builds an Engine.  Zero-valued options fall back to defaults.
func NewEngine(opts Options, logger logging.Logger) *Engine {
	def := DefaultOptions()
	if opts.Weights == (Weights{}) {
		opts.Weights = def.Weights
	}
	if opts.AssignFloor <= 0 {
		opts.AssignFloor = def.AssignFloor
	}
	if opts.SubmodelFloor <= 0 {
		opts.SubmodelFloor = def.SubmodelFloor
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{opts: opts, logger: logger.Named("matcher")}
}

type candidate struct {
	srcIdx int
	dstIdx int
	score  float64
	f      mappingtypes.FactorScores
}

// Match scores every type-compatible (source, destination) pair and commits
// assignments greedily by descending score, one destination per source.  The
// result lists one pair per source element in inventory order; unmatched
// sources get an empty destination and the unmapped tier.
func (e *Engine) Match(source, dest *layouttypes.Inventory) (*mappingtypes.Result, error) {
	if source == nil || source.Len() == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeMatchInputInvalid, "source inventory is empty")
	}
	if dest == nil {
		dest = layouttypes.NewInventory(nil)
	}

	srcGrid := newZoneGrid(source.Elements)
	dstGrid := newZoneGrid(dest.Elements)

	var candidates []candidate
	for si, src := range source.Elements {
		for di, dst := range dest.Elements {
			typeScore := scoreType(src, dst)
			if typeScore <= 0 {
				continue
			}
			f := mappingtypes.FactorScores{
				Type:      typeScore,
				Pixels:    scorePixels(src, dst),
				Spatial:   scoreSpatial(src, dst, srcGrid, dstGrid),
				Name:      scoreName(src, dst),
				Structure: scoreStructure(src, dst),
			}
			score := e.combine(f)
			if score < e.opts.AssignFloor {
				continue
			}
			candidates = append(candidates, candidate{srcIdx: si, dstIdx: di, score: score, f: f})
		}
	}

	// Descending by score; the stable sort keeps first-seen inventory order
	// for equal scores, which makes the whole run deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	assigned := make(map[int]candidate, source.Len())
	destTaken := make(map[int]bool, dest.Len())
	for _, c := range candidates {
		if _, done := assigned[c.srcIdx]; done {
			continue
		}
		if destTaken[c.dstIdx] {
			continue
		}
		assigned[c.srcIdx] = c
		destTaken[c.dstIdx] = true
	}

	result := &mappingtypes.Result{Pairs: make([]*mappingtypes.CandidatePair, 0, source.Len())}
	for si, src := range source.Elements {
		c, ok := assigned[si]
		if !ok {
			result.Pairs = append(result.Pairs, &mappingtypes.CandidatePair{
				SourceName: src.Name,
				Tier:       mappingtypes.TierUnmapped,
				Provenance: mappingtypes.ProvenanceAlgorithm,
				Reason:     "no suitable destination candidate",
			})
			continue
		}
		dst := dest.Elements[c.dstIdx]
		pair := &mappingtypes.CandidatePair{
			SourceName: src.Name,
			DestName:   dst.Name,
			Factors:    c.f,
			Score:      c.score,
			Tier:       mappingtypes.ClassifyTier(c.score),
			Provenance: mappingtypes.ProvenanceAlgorithm,
			Reason:     buildReason(c.f, src, dst),
			Submodels:  e.pairSubmodels(src, dst),
		}
		result.Pairs = append(result.Pairs, pair)
	}

	for di, dst := range dest.Elements {
		if !destTaken[di] {
			result.UnusedDest = append(result.UnusedDest, dst.Name)
		}
	}
	result.Recount()

	e.logger.Debug("matching complete",
		logging.Int("source", source.Len()),
		logging.Int("dest", dest.Len()),
		logging.Int("high", result.Summary.High),
		logging.Int("medium", result.Summary.Medium),
		logging.Int("low", result.Summary.Low),
		logging.Int("unmapped", result.Summary.Unmapped),
	)
	return result, nil
}

func (e *Engine) combine(f mappingtypes.FactorScores) float64 {
	w := e.opts.Weights
	return w.Type*f.Type + w.Pixels*f.Pixels + w.Spatial*f.Spatial +
		w.Name*f.Name + w.Structure*f.Structure
}

// ─────────────────────────────────────────────────────────────────────────────
// Reasoning
// ─────────────────────────────────────────────────────────────────────────────

func buildReason(f mappingtypes.FactorScores, src, dst *layouttypes.Element) string {
	var parts []string

	switch {
	case f.Name >= 0.99:
		parts = append(parts, "exact name match")
	case f.Name >= 0.5:
		parts = append(parts, "strong name overlap")
	case f.Name >= 0.25:
		parts = append(parts, "partial name overlap")
	}

	switch {
	case f.Type >= 0.99:
		parts = append(parts, "same type")
	case f.Type >= 0.65:
		parts = append(parts, "related type")
	case f.Type <= 0.45:
		parts = append(parts, "type mismatch")
	}

	if !src.IsGroup() && !dst.IsGroup() && src.PixelCount > 0 && dst.PixelCount > 0 {
		if f.Pixels >= 0.9 {
			parts = append(parts, "pixel counts align")
		} else if f.Pixels < 0.5 {
			parts = append(parts, fmt.Sprintf("pixel counts differ (%d vs %d)", src.PixelCount, dst.PixelCount))
		}
	}

	if f.Spatial >= 0.99 {
		parts = append(parts, "same display zone")
	} else if f.Spatial >= 0.6 && !src.IsGroup() && !dst.IsGroup() {
		parts = append(parts, "adjacent display zone")
	}

	if f.Structure > 0.75 && len(src.Submodels) > 0 {
		parts = append(parts, "similar submodel structure")
	}

	if len(parts) == 0 {
		return "best available candidate"
	}
	return strings.Join(parts, ", ")
}
