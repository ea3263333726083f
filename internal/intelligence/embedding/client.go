// Package embedding provides the batch text-embedding client used to
// re-score medium-confidence pairs by semantic similarity.
package embedding

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/common"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
)

// contextPrefix anchors element names in the display-layout domain before
// embedding; bare prop names are too ambiguous on their own.
const contextPrefix = "xLights model: "

const (
	// DefaultThreshold is the cosine similarity needed to upgrade a pair.
	DefaultThreshold = 0.75
	defaultMaxBatch  = 64
)

// expansions rewrites common abbreviations before embedding, mirroring the
// matcher's table but inlined as plain rewrites since embeddings want prose.
var expansions = map[string]string{
	"sp": "spinner", "mt": "mega tree", "cc": "candy cane",
	"sf": "singing face", "ss": "showstopper", "mh": "moving head",
	"dw": "driveway", "sw": "sidewalk",
	"cw": "clockwise", "ccw": "counter clockwise",
	"lg": "large", "sm": "small", "med": "medium",
	"l": "left", "r": "right", "ct": "center",
	"vert": "vertical", "horiz": "horizontal",
	"str": "strand", "seg": "segment", "grp": "group",
}

// Preprocess produces the canonical embedding text for an element name:
// vendor markers stripped, separators spaced, abbreviations expanded, and
// the domain-context prefix applied.  Identical names always produce
// identical text, which is what the vector cache keys on.
func Preprocess(rawName string) string {
	n := dictionary.StripVendor(rawName)
	n = strings.ToLower(n)
	n = strings.NewReplacer("_", " ", "-", " ", ".", " ", "/", " ").Replace(n)

	tokens := strings.Fields(n)
	for i, t := range tokens {
		if exp, ok := expansions[t]; ok {
			tokens[i] = exp
		}
	}
	return contextPrefix + strings.Join(tokens, " ")
}

// Options configures a Client.
type Options struct {
	Model     string
	Threshold float64
	MaxBatch  int
}

// Client embeds batches of preprocessed texts through an external serving
// endpoint, caching vectors by text so repeated names within and across
// sessions never re-hit the service.
type Client struct {
	serving *common.ServingClient
	opts    Options
	logger  logging.Logger

	mu    sync.Mutex
	cache map[string][]float64
}

// NewClient builds an embedding Client over a serving client.
func NewClient(serving *common.ServingClient, opts Options, logger logging.Logger) *Client {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		serving: serving,
		opts:    opts,
		logger:  logger.Named("embedding"),
		cache:   make(map[string][]float64),
	}
}

// Threshold returns the similarity needed to upgrade a pair.
func (c *Client) Threshold() float64 { return c.opts.Threshold }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedTexts returns one vector per input text, in input order.  Cached
// texts are served from memory; the rest go to the service in MaxBatch-sized
// chunks.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	var missing []string
	missingIdx := make(map[string][]int)
	c.mu.Lock()
	for i, t := range texts {
		if vec, ok := c.cache[t]; ok {
			out[i] = vec
			continue
		}
		if _, seen := missingIdx[t]; !seen {
			missing = append(missing, t)
		}
		missingIdx[t] = append(missingIdx[t], i)
	}
	c.mu.Unlock()

	for start := 0; start < len(missing); start += c.opts.MaxBatch {
		end := start + c.opts.MaxBatch
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]

		var resp embedResponse
		err := c.serving.PostJSON(ctx, "/v1/embeddings", embedRequest{Model: c.opts.Model, Input: chunk}, &resp)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeEmbeddingUnavailable, "embedding request failed")
		}
		if len(resp.Data) != len(chunk) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeEmbeddingMalformed, "embedding count does not match input count")
		}

		c.mu.Lock()
		for i, item := range resp.Data {
			text := chunk[i]
			c.cache[text] = item.Embedding
			for _, idx := range missingIdx[text] {
				out[idx] = item.Embedding
			}
		}
		c.mu.Unlock()
	}
	return out, nil
}

// PairSimilarities embeds both sides of each (source, dest) name pair in a
// single pass and returns the diagonal cosine similarities, one per pair.
func (c *Client) PairSimilarities(ctx context.Context, pairs [][2]string) ([]float64, error) {
	texts := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		texts = append(texts, Preprocess(p[0]), Preprocess(p[1]))
	}
	vectors, err := c.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	sims := make([]float64, len(pairs))
	for i := range pairs {
		sims[i] = Cosine(vectors[2*i], vectors[2*i+1])
	}
	return sims, nil
}

// Cosine computes cosine similarity, returning 0 for empty or mismatched
// vectors.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
