package matching

import (
	"sort"

	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

const (
	submodelNameWeight  = 0.7
	submodelPixelWeight = 0.3
)

type submodelCandidate struct {
	srcIdx int
	dstIdx int
	score  float64
}

// pairSubmodels greedily pairs the source element's submodels with the
// destination element's, blending name overlap and pixel similarity.  Source
// submodels that find no pairing above the floor are emitted with an empty
// destination so callers see the full source-side picture.
func (e *Engine) pairSubmodels(src, dst *layouttypes.Element) []mappingtypes.SubmodelMapping {
	if len(src.Submodels) == 0 {
		return nil
	}
	if len(dst.Submodels) == 0 {
		out := make([]mappingtypes.SubmodelMapping, 0, len(src.Submodels))
		for _, sm := range src.Submodels {
			out = append(out, mappingtypes.SubmodelMapping{SourceName: sm.Name})
		}
		return out
	}

	srcTokens := make([]map[string]bool, len(src.Submodels))
	for i, sm := range src.Submodels {
		srcTokens[i] = tokenSet(normalizeName(sm.Name))
	}
	dstTokens := make([]map[string]bool, len(dst.Submodels))
	for i, sm := range dst.Submodels {
		dstTokens[i] = tokenSet(normalizeName(sm.Name))
	}

	var candidates []submodelCandidate
	for si, ssm := range src.Submodels {
		for di, dsm := range dst.Submodels {
			nameScore := tokenOverlap(srcTokens[si], dstTokens[di])
			pixelScore := neutralScore
			if ssm.PixelCount > 0 && dsm.PixelCount > 0 {
				pixelScore = pixelRatio(ssm.PixelCount, dsm.PixelCount)
			}
			score := submodelNameWeight*nameScore + submodelPixelWeight*pixelScore
			if score < e.opts.SubmodelFloor {
				continue
			}
			candidates = append(candidates, submodelCandidate{srcIdx: si, dstIdx: di, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	assigned := make(map[int]submodelCandidate, len(src.Submodels))
	taken := make(map[int]bool, len(dst.Submodels))
	for _, c := range candidates {
		if _, done := assigned[c.srcIdx]; done {
			continue
		}
		if taken[c.dstIdx] {
			continue
		}
		assigned[c.srcIdx] = c
		taken[c.dstIdx] = true
	}

	out := make([]mappingtypes.SubmodelMapping, 0, len(src.Submodels))
	for si, sm := range src.Submodels {
		if c, ok := assigned[si]; ok {
			out = append(out, mappingtypes.SubmodelMapping{
				SourceName: sm.Name,
				DestName:   dst.Submodels[c.dstIdx].Name,
				Score:      c.score,
			})
		} else {
			out = append(out, mappingtypes.SubmodelMapping{SourceName: sm.Name})
		}
	}
	return out
}
