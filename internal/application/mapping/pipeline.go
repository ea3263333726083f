// Package mapping orchestrates the four-phase resolution pipeline: the
// mapping dictionary, the weighted matching engine, semantic-embedding
// re-scoring, and LLM adjudication.  The engine phase is the only required
// one; every external phase is optional, timeout-bounded, and fails soft —
// a phase outage leaves the prior phases' result untouched.
package mapping

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/effecttree"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/layout"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/matching"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/adjudicator"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// Phase names as they appear in Result.Phases.
const (
	PhaseDictionary = "dictionary"
	PhaseEngine     = "engine"
	PhaseEmbedding  = "embedding"
	PhaseLLM        = "llm"
)

const defaultPhaseTimeout = 30 * time.Second

// Dictionary is the lookup surface the pipeline consults in phase 1.
type Dictionary interface {
	Lookup(ctx context.Context, q dictionary.Query) (*mappingtypes.Hit, error)
}

// Embedder re-scores medium-confidence pairs in phase 3.
type Embedder interface {
	PairSimilarities(ctx context.Context, pairs [][2]string) ([]float64, error)
	Threshold() float64
}

// Adjudicator batch-judges the remaining ambiguous pairs in phase 4.
type Adjudicator interface {
	Adjudicate(ctx context.Context, pairs []adjudicator.PairContext) ([]adjudicator.Verdict, error)
	MaxBatch() int
}

// Options toggles the optional phases and bounds their calls.  A nil
// dependency disables its phase regardless of the flag.
type Options struct {
	DictionaryEnabled bool
	EmbeddingEnabled  bool
	LLMEnabled        bool
	PhaseTimeout      time.Duration
}

// DefaultOptions enables every phase with the default timeout.
func DefaultOptions() Options {
	return Options{
		DictionaryEnabled: true,
		EmbeddingEnabled:  true,
		LLMEnabled:        true,
		PhaseTimeout:      defaultPhaseTimeout,
	}
}

// Request is one resolution session's input.
type Request struct {
	SessionID string
	Source    *layouttypes.Inventory
	Dest      *layouttypes.Inventory
	// Facts, when non-nil, prunes the source inventory through the effect
	// tree so only elements that actually carry animation get mapped.
	Facts *effecttree.Facts
	// VendorHint scopes dictionary candidates to one vendor plus
	// vendor-less entries.
	VendorHint string
}

// Pipeline wires the classifier, the effect tree builder, the engine, and
// the three escalation dependencies into one resolution run.
type Pipeline struct {
	classifier  *layout.Classifier
	treeBuilder *effecttree.Builder
	engine      *matching.Engine
	dict        Dictionary
	embedder    Embedder
	adjudicator Adjudicator
	opts        Options
	logger      logging.Logger
}

// NewPipeline constructs a Pipeline.  classifier, treeBuilder and engine are
// required; dict, embedder and adjudicator may be nil, which disables the
// corresponding phase.
func NewPipeline(
	classifier *layout.Classifier,
	treeBuilder *effecttree.Builder,
	engine *matching.Engine,
	dict Dictionary,
	embedder Embedder,
	adj Adjudicator,
	opts Options,
	logger logging.Logger,
) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.PhaseTimeout <= 0 {
		opts.PhaseTimeout = defaultPhaseTimeout
	}
	return &Pipeline{
		classifier:  classifier,
		treeBuilder: treeBuilder,
		engine:      engine,
		dict:        dict,
		embedder:    embedder,
		adjudicator: adj,
		opts:        opts,
		logger:      logger.Named("pipeline"),
	}
}

// Resolve runs the full four-phase resolution for one session.  Only
// malformed input aborts the run; every external phase failure is absorbed
// into the result's phase records.
func (p *Pipeline) Resolve(ctx context.Context, req Request) (*mappingtypes.Result, error) {
	source := req.Source
	dest := req.Dest
	if dest == nil {
		dest = layouttypes.NewInventory(nil)
	}
	if source != nil {
		p.classifier.ClassifyAll(source)
	}
	p.classifier.ClassifyAll(dest)

	if req.Facts != nil && source != nil {
		tree, err := p.treeBuilder.Build(source, *req.Facts)
		if err != nil {
			return nil, err
		}
		source = layouttypes.NewInventory(tree.ActiveElements(source))
	}

	// Phase 1: dictionary lookups.  Hits are collected here but overlaid
	// only after the engine runs, so the engine's global assignment still
	// sees the full candidate set.
	hits := map[string]*mappingtypes.Hit{}
	dictStatus := mappingtypes.PhaseStatus{Name: PhaseDictionary, Enabled: p.dictionaryEnabled()}
	if dictStatus.Enabled {
		started := time.Now()
		hits, dictStatus.Error = p.lookupAll(ctx, source, req.VendorHint)
		dictStatus.Elapsed = time.Since(started)
		dictStatus.BatchSize = sourceLen(source)
		dictStatus.Success = dictStatus.Error == ""
	}

	// Phase 2: the weighted engine baseline.  This is the only phase whose
	// failure aborts the run, and it only fails on malformed input.
	engineStarted := time.Now()
	result, err := p.engine.Match(source, dest)
	if err != nil {
		return nil, err
	}
	result.SessionID = req.SessionID
	engineStatus := mappingtypes.PhaseStatus{
		Name:      PhaseEngine,
		Enabled:   true,
		Success:   true,
		BatchSize: len(result.Pairs),
		Elapsed:   time.Since(engineStarted),
	}

	// Overlay dictionary hits: upgrade only where the dictionary's
	// destination agrees with the engine's choice.  On disagreement the
	// engine's choice stands — the user's current layout may legitimately
	// differ from prior sessions — and the hit is noted in the reason.
	resolved := map[string]bool{}
	if dictStatus.Enabled {
		dictStatus.Upgraded = overlayDictionary(result.Pairs, hits, resolved)
	}

	phases := []mappingtypes.PhaseStatus{dictStatus, engineStatus}

	phases = append(phases, *p.runEmbedding(ctx, result, resolved))
	phases = append(phases, *p.runLLM(ctx, result, resolved, source, dest))

	result.Phases = phases
	result.Recount()

	p.logger.Info("resolution finished",
		logging.String("session_id", req.SessionID),
		logging.Int("pairs", result.Summary.Total),
		logging.Int("high", result.Summary.High),
		logging.Int("unmapped", result.Summary.Unmapped),
	)
	return result, nil
}

func (p *Pipeline) dictionaryEnabled() bool {
	return p.opts.DictionaryEnabled && p.dict != nil
}

func (p *Pipeline) lookupAll(ctx context.Context, inv *layouttypes.Inventory, vendorHint string) (map[string]*mappingtypes.Hit, string) {
	hits := map[string]*mappingtypes.Hit{}
	if inv == nil {
		return hits, ""
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.PhaseTimeout)
	defer cancel()

	var firstErr string
	for _, el := range inv.Elements {
		hit, err := p.dict.Lookup(ctx, dictionary.Query{
			RawName:    el.Name,
			Kind:       string(el.Kind),
			PixelCount: el.PixelCount,
			Vendor:     vendorHint,
		})
		if err != nil {
			if firstErr == "" {
				firstErr = err.Error()
			}
			p.logger.Warn("dictionary lookup failed",
				logging.String("element", el.Name),
				logging.Err(err),
			)
			continue
		}
		if hit != nil {
			hits[el.Name] = hit
		}
	}
	return hits, firstErr
}

func overlayDictionary(pairs []*mappingtypes.CandidatePair, hits map[string]*mappingtypes.Hit, resolved map[string]bool) int {
	upgraded := 0
	for _, pair := range pairs {
		hit, ok := hits[pair.SourceName]
		if !ok || pair.DestName == "" {
			continue
		}
		if dictionary.SameDest(hit.Entry.DestRaw, pair.DestName) {
			if pair.Tier != mappingtypes.TierHigh {
				upgraded++
			}
			pair.Tier = mappingtypes.TierHigh
			pair.Provenance = mappingtypes.ProvenanceDictionaryConfirmed
			pair.Reason = fmt.Sprintf("dictionary confirmed (%d prior confirmations), %s", hit.Entry.Confirmations, pair.Reason)
			resolved[pair.SourceName] = true
		} else {
			pair.Reason = fmt.Sprintf("dictionary suggests %q, %s", hit.Entry.DestRaw, pair.Reason)
		}
	}
	return upgraded
}

// runEmbedding re-scores the medium-confidence pairs not already settled by
// the dictionary, upgrading those whose diagonal cosine similarity meets the
// threshold.
func (p *Pipeline) runEmbedding(ctx context.Context, result *mappingtypes.Result, resolved map[string]bool) *mappingtypes.PhaseStatus {
	status := &mappingtypes.PhaseStatus{Name: PhaseEmbedding, Enabled: p.opts.EmbeddingEnabled && p.embedder != nil}
	if !status.Enabled {
		return status
	}
	started := time.Now()
	defer func() { status.Elapsed = time.Since(started) }()

	var eligible []*mappingtypes.CandidatePair
	var names [][2]string
	for _, pair := range result.Pairs {
		if pair.Tier != mappingtypes.TierMedium || pair.DestName == "" || resolved[pair.SourceName] {
			continue
		}
		eligible = append(eligible, pair)
		names = append(names, [2]string{pair.SourceName, pair.DestName})
	}
	status.BatchSize = len(eligible)
	if len(eligible) == 0 {
		status.Success = true
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.PhaseTimeout)
	defer cancel()

	sims, err := p.embedder.PairSimilarities(ctx, names)
	if err != nil {
		status.Error = err.Error()
		p.logger.Warn("embedding phase failed",
			logging.Int("batch_size", len(eligible)),
			logging.Err(err),
		)
		return status
	}

	threshold := p.embedder.Threshold()
	for i, pair := range eligible {
		if i >= len(sims) || sims[i] < threshold {
			continue
		}
		pair.Tier = mappingtypes.TierHigh
		pair.Provenance = mappingtypes.ProvenanceEmbeddingConfirmed
		pair.Reason = fmt.Sprintf("semantically similar (%.2f), %s", sims[i], pair.Reason)
		resolved[pair.SourceName] = true
		status.Upgraded++
	}
	status.Success = true
	return status
}

// runLLM batches the remaining low/medium pairs into a single adjudication
// request and maps each verdict onto a tier.
func (p *Pipeline) runLLM(ctx context.Context, result *mappingtypes.Result, resolved map[string]bool, source, dest *layouttypes.Inventory) *mappingtypes.PhaseStatus {
	status := &mappingtypes.PhaseStatus{Name: PhaseLLM, Enabled: p.opts.LLMEnabled && p.adjudicator != nil}
	if !status.Enabled {
		return status
	}
	started := time.Now()
	defer func() { status.Elapsed = time.Since(started) }()

	var eligible []*mappingtypes.CandidatePair
	for _, pair := range result.Pairs {
		if pair.DestName == "" || resolved[pair.SourceName] {
			continue
		}
		if pair.Tier != mappingtypes.TierLow && pair.Tier != mappingtypes.TierMedium {
			continue
		}
		eligible = append(eligible, pair)
	}
	if max := p.adjudicator.MaxBatch(); max > 0 && len(eligible) > max {
		eligible = eligible[:max]
	}
	status.BatchSize = len(eligible)
	if len(eligible) == 0 {
		status.Success = true
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.PhaseTimeout)
	defer cancel()

	verdicts, err := p.adjudicator.Adjudicate(ctx, pairContexts(eligible, source, dest))
	if err != nil {
		status.Error = err.Error()
		p.logger.Warn("llm phase failed",
			logging.Int("batch_size", len(eligible)),
			logging.Err(err),
		)
		return status
	}

	for i, pair := range eligible {
		if i >= len(verdicts) {
			break
		}
		v := verdicts[i]
		// A pair the model left out of its response was never judged;
		// downgrading it would penalize the pair for the model's omission.
		if !v.Answered {
			continue
		}
		newTier := v.Tier()
		if tierRank(newTier) > tierRank(pair.Tier) {
			status.Upgraded++
		}
		pair.Tier = newTier
		if v.Match {
			pair.Provenance = mappingtypes.ProvenanceLLMConfirmed
		} else {
			pair.Provenance = mappingtypes.ProvenanceLLMRejected
		}
		if v.Reasoning != "" {
			pair.Reason = fmt.Sprintf("llm: %s, %s", v.Reasoning, pair.Reason)
		}
	}
	status.Success = true
	return status
}

func pairContexts(pairs []*mappingtypes.CandidatePair, source, dest *layouttypes.Inventory) []adjudicator.PairContext {
	contexts := make([]adjudicator.PairContext, 0, len(pairs))
	for _, pair := range pairs {
		pc := adjudicator.PairContext{
			SourceName: pair.SourceName,
			DestName:   pair.DestName,
		}
		if src := source.Get(pair.SourceName); src != nil {
			pc.SourceKind = string(src.Kind)
			pc.SourcePixels = src.PixelCount
			pc.SourceParents = src.ParentModels
		}
		if dst := dest.Get(pair.DestName); dst != nil {
			pc.DestKind = string(dst.Kind)
			pc.DestPixels = dst.PixelCount
		}
		contexts = append(contexts, pc)
	}
	return contexts
}

func tierRank(t mappingtypes.ConfidenceTier) int {
	switch t {
	case mappingtypes.TierHigh:
		return 3
	case mappingtypes.TierMedium:
		return 2
	case mappingtypes.TierLow:
		return 1
	default:
		return 0
	}
}

func sourceLen(inv *layouttypes.Inventory) int {
	if inv == nil {
		return 0
	}
	return len(inv.Elements)
}
