package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/effecttree"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/layout"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/matching"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/adjudicator"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeDict struct {
	hits  map[string]*mappingtypes.Hit
	err   error
	calls int
}

func (d *fakeDict) Lookup(_ context.Context, q dictionary.Query) (*mappingtypes.Hit, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.hits[q.RawName], nil
}

type fakeEmbedder struct {
	sims      map[string]float64
	threshold float64
	err       error
	calls     int
}

func (e *fakeEmbedder) PairSimilarities(_ context.Context, pairs [][2]string) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = e.sims[p[0]+"|"+p[1]]
	}
	return out, nil
}

func (e *fakeEmbedder) Threshold() float64 {
	if e.threshold > 0 {
		return e.threshold
	}
	return 0.75
}

type fakeAdjudicator struct {
	verdicts []adjudicator.Verdict
	maxBatch int
	err      error
	seen     []adjudicator.PairContext
}

func (a *fakeAdjudicator) Adjudicate(_ context.Context, pairs []adjudicator.PairContext) ([]adjudicator.Verdict, error) {
	a.seen = pairs
	if a.err != nil {
		return nil, a.err
	}
	return a.verdicts, nil
}

func (a *fakeAdjudicator) MaxBatch() int {
	if a.maxBatch > 0 {
		return a.maxBatch
	}
	return 20
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

// testInventories yields one exact-name pair ("Mega Tree", lands high) and
// one pixel-mismatched pair ("Alpha"→"Beta", lands medium at 0.725).
func testInventories() (*layouttypes.Inventory, *layouttypes.Inventory) {
	source := layouttypes.NewInventory([]*layouttypes.Element{
		{Name: "Mega Tree", Kind: layouttypes.KindModel, Type: "Tree", PixelCount: 1000},
		{Name: "Alpha", Kind: layouttypes.KindModel, Type: "Arch", PixelCount: 1000, Position: layouttypes.Position{X: 10, Y: 10}},
	})
	dest := layouttypes.NewInventory([]*layouttypes.Element{
		{Name: "Mega Tree", Kind: layouttypes.KindModel, Type: "Tree", PixelCount: 1000},
		{Name: "Beta", Kind: layouttypes.KindModel, Type: "Arch", PixelCount: 2000, Position: layouttypes.Position{X: 10, Y: 10}},
	})
	return source, dest
}

func newTestPipeline(dict Dictionary, emb Embedder, adj Adjudicator, opts Options) *Pipeline {
	classifier := layout.NewClassifier(layout.DefaultTables(), nil)
	builder := effecttree.NewBuilder(effecttree.DefaultConfig(), nil)
	engine := matching.NewEngine(matching.DefaultOptions(), nil)
	return NewPipeline(classifier, builder, engine, dict, emb, adj, opts, nil)
}

func pairByName(t *testing.T, result *mappingtypes.Result, source string) *mappingtypes.CandidatePair {
	t.Helper()
	for _, p := range result.Pairs {
		if p.SourceName == source {
			return p
		}
	}
	t.Fatalf("no pair for source %q", source)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestResolve_DisabledPhasesMatchEngineBaseline(t *testing.T) {
	source, dest := testInventories()
	p := newTestPipeline(nil, nil, nil, Options{})

	result, err := p.Resolve(context.Background(), Request{SessionID: "s1", Source: source, Dest: dest})
	require.NoError(t, err)

	assert.Equal(t, "s1", result.SessionID)
	require.Len(t, result.Pairs, 2)
	assert.Equal(t, mappingtypes.TierHigh, pairByName(t, result, "Mega Tree").Tier)
	assert.Equal(t, mappingtypes.TierMedium, pairByName(t, result, "Alpha").Tier)

	require.Len(t, result.Phases, 4)
	for _, phase := range result.Phases {
		if phase.Name == PhaseEngine {
			assert.True(t, phase.Enabled)
			assert.True(t, phase.Success)
		} else {
			assert.False(t, phase.Enabled, "phase %s should be disabled", phase.Name)
		}
	}
	assert.Equal(t, 1, result.Summary.High)
	assert.Equal(t, 1, result.Summary.Medium)
}

func TestResolve_DictionaryUpgradesOnDestinationAgreement(t *testing.T) {
	source, dest := testInventories()
	dict := &fakeDict{hits: map[string]*mappingtypes.Hit{
		"Alpha": {
			Entry:      &mappingtypes.Entry{DestRaw: "Beta", Confirmations: 4},
			Confidence: 1.0,
			Method:     "exact",
		},
	}}
	p := newTestPipeline(dict, nil, nil, Options{DictionaryEnabled: true})

	result, err := p.Resolve(context.Background(), Request{SessionID: "s2", Source: source, Dest: dest})
	require.NoError(t, err)

	pair := pairByName(t, result, "Alpha")
	assert.Equal(t, mappingtypes.TierHigh, pair.Tier)
	assert.Equal(t, mappingtypes.ProvenanceDictionaryConfirmed, pair.Provenance)
	assert.Contains(t, pair.Reason, "dictionary confirmed (4 prior confirmations)")
	assert.Equal(t, 2, dict.calls)

	for _, phase := range result.Phases {
		if phase.Name == PhaseDictionary {
			assert.True(t, phase.Success)
			assert.Equal(t, 1, phase.Upgraded)
			assert.Equal(t, 2, phase.BatchSize)
		}
	}
	assert.Equal(t, 2, result.Summary.High)
}

func TestResolve_DictionaryDisagreementKeepsEngineChoice(t *testing.T) {
	source, dest := testInventories()
	dict := &fakeDict{hits: map[string]*mappingtypes.Hit{
		"Alpha": {
			Entry:      &mappingtypes.Entry{DestRaw: "Gamma", Confirmations: 2},
			Confidence: 1.0,
			Method:     "exact",
		},
	}}
	p := newTestPipeline(dict, nil, nil, Options{DictionaryEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	pair := pairByName(t, result, "Alpha")
	assert.Equal(t, mappingtypes.TierMedium, pair.Tier, "disagreement must not change the tier")
	assert.Equal(t, "Beta", pair.DestName)
	assert.Contains(t, pair.Reason, `dictionary suggests "Gamma"`)
}

func TestResolve_DictionaryFailureIsSoft(t *testing.T) {
	source, dest := testInventories()
	dict := &fakeDict{err: errors.New("store unreachable")}
	p := newTestPipeline(dict, nil, nil, Options{DictionaryEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	for _, phase := range result.Phases {
		if phase.Name == PhaseDictionary {
			assert.True(t, phase.Enabled)
			assert.False(t, phase.Success)
			assert.Contains(t, phase.Error, "store unreachable")
		}
	}
	assert.Equal(t, mappingtypes.TierMedium, pairByName(t, result, "Alpha").Tier)
}

func TestResolve_EmbeddingUpgradesMediumPairs(t *testing.T) {
	source, dest := testInventories()
	emb := &fakeEmbedder{sims: map[string]float64{"Alpha|Beta": 0.91}}
	p := newTestPipeline(nil, emb, nil, Options{EmbeddingEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	pair := pairByName(t, result, "Alpha")
	assert.Equal(t, mappingtypes.TierHigh, pair.Tier)
	assert.Equal(t, mappingtypes.ProvenanceEmbeddingConfirmed, pair.Provenance)
	assert.Contains(t, pair.Reason, "semantically similar (0.91)")

	assert.Equal(t, 1, emb.calls, "one batched call per session")
	for _, phase := range result.Phases {
		if phase.Name == PhaseEmbedding {
			assert.True(t, phase.Success)
			assert.Equal(t, 1, phase.Upgraded)
			assert.Equal(t, 1, phase.BatchSize, "only the medium pair is re-scored")
		}
	}
}

func TestResolve_EmbeddingBelowThresholdLeavesTier(t *testing.T) {
	source, dest := testInventories()
	emb := &fakeEmbedder{sims: map[string]float64{"Alpha|Beta": 0.5}}
	p := newTestPipeline(nil, emb, nil, Options{EmbeddingEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	assert.Equal(t, mappingtypes.TierMedium, pairByName(t, result, "Alpha").Tier)
}

func TestResolve_EmbeddingFailureIsSoft(t *testing.T) {
	source, dest := testInventories()
	emb := &fakeEmbedder{err: errors.New("serving down")}
	p := newTestPipeline(nil, emb, nil, Options{EmbeddingEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	for _, phase := range result.Phases {
		if phase.Name == PhaseEmbedding {
			assert.False(t, phase.Success)
			assert.Contains(t, phase.Error, "serving down")
		}
	}
	assert.Equal(t, mappingtypes.TierMedium, pairByName(t, result, "Alpha").Tier)
}

func TestResolve_LLMConfirmsAndRejects(t *testing.T) {
	source, dest := testInventories()
	adj := &fakeAdjudicator{verdicts: []adjudicator.Verdict{
		{Match: true, Confidence: 0.9, Reasoning: "same prop", Answered: true},
	}}
	p := newTestPipeline(nil, nil, adj, Options{LLMEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	pair := pairByName(t, result, "Alpha")
	assert.Equal(t, mappingtypes.TierHigh, pair.Tier)
	assert.Equal(t, mappingtypes.ProvenanceLLMConfirmed, pair.Provenance)
	assert.Contains(t, pair.Reason, "llm: same prop")

	require.Len(t, adj.seen, 1)
	assert.Equal(t, "Alpha", adj.seen[0].SourceName)
	assert.Equal(t, "model", adj.seen[0].SourceKind)
	assert.Equal(t, 1000, adj.seen[0].SourcePixels)
	assert.Equal(t, 2000, adj.seen[0].DestPixels)
}

func TestResolve_LLMRejectionDowngrades(t *testing.T) {
	source, dest := testInventories()
	adj := &fakeAdjudicator{verdicts: []adjudicator.Verdict{
		{Match: false, Confidence: 0.2, Reasoning: "different props", Answered: true},
	}}
	p := newTestPipeline(nil, nil, adj, Options{LLMEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	pair := pairByName(t, result, "Alpha")
	assert.Equal(t, mappingtypes.TierLow, pair.Tier)
	assert.Equal(t, mappingtypes.ProvenanceLLMRejected, pair.Provenance)
	assert.Equal(t, "Beta", pair.DestName, "rejection downgrades but never deletes the pair")

	assert.Equal(t, 1, result.Summary.Low)
	assert.Equal(t, 0, result.Summary.Medium)
}

func TestResolve_LLMOmittedVerdictKeepsPriorTier(t *testing.T) {
	source, dest := testInventories()
	// The model returned an array without the pair's index: no judgment.
	adj := &fakeAdjudicator{verdicts: []adjudicator.Verdict{{}}}
	p := newTestPipeline(nil, nil, adj, Options{LLMEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	pair := pairByName(t, result, "Alpha")
	assert.Equal(t, mappingtypes.TierMedium, pair.Tier, "an unanswered pair keeps its engine tier")
	assert.Equal(t, mappingtypes.ProvenanceAlgorithm, pair.Provenance)
	assert.NotContains(t, pair.Reason, "llm:")
}

func TestResolve_LLMSkipsPairsSettledByEmbedding(t *testing.T) {
	source, dest := testInventories()
	emb := &fakeEmbedder{sims: map[string]float64{"Alpha|Beta": 0.95}}
	adj := &fakeAdjudicator{}
	p := newTestPipeline(nil, emb, adj, Options{EmbeddingEnabled: true, LLMEnabled: true})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest})
	require.NoError(t, err)

	assert.Nil(t, adj.seen, "nothing left for the llm batch")
	for _, phase := range result.Phases {
		if phase.Name == PhaseLLM {
			assert.True(t, phase.Success)
			assert.Equal(t, 0, phase.BatchSize)
		}
	}
}

func TestResolve_LLMBatchCappedAtMaxBatch(t *testing.T) {
	var sourceEls, destEls []*layouttypes.Element
	for i := 0; i < 5; i++ {
		name := string(rune('A' + i))
		sourceEls = append(sourceEls, &layouttypes.Element{
			Name: "Src " + name, Kind: layouttypes.KindModel, Type: "Arch", PixelCount: 1000,
		})
		destEls = append(destEls, &layouttypes.Element{
			Name: "Dst " + name, Kind: layouttypes.KindModel, Type: "Arch", PixelCount: 2000,
		})
	}
	adj := &fakeAdjudicator{maxBatch: 2}
	p := newTestPipeline(nil, nil, adj, Options{LLMEnabled: true})

	_, err := p.Resolve(context.Background(), Request{
		Source: layouttypes.NewInventory(sourceEls),
		Dest:   layouttypes.NewInventory(destEls),
	})
	require.NoError(t, err)

	assert.Len(t, adj.seen, 2)
}

func TestResolve_FactsPruneSourceInventory(t *testing.T) {
	source, dest := testInventories()
	facts := &effecttree.Facts{Active: map[string]bool{"Mega Tree": true}}
	p := newTestPipeline(nil, nil, nil, Options{})

	result, err := p.Resolve(context.Background(), Request{Source: source, Dest: dest, Facts: facts})
	require.NoError(t, err)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "Mega Tree", result.Pairs[0].SourceName)
	assert.Contains(t, result.UnusedDest, "Beta")
}

func TestResolve_EmptySourceIsHardError(t *testing.T) {
	p := newTestPipeline(nil, nil, nil, Options{})

	_, err := p.Resolve(context.Background(), Request{
		Source: layouttypes.NewInventory(nil),
		Dest:   layouttypes.NewInventory(nil),
	})
	assert.Error(t, err)
}
