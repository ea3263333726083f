// Package adjudicator provides the batched LLM client that renders a final
// match/no-match verdict on pairs the earlier phases left uncertain.
package adjudicator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/common"
	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

const defaultMaxBatch = 20

// PairContext carries the structured context the model sees for one pair.
type PairContext struct {
	SourceName    string   `json:"source_name"`
	SourceKind    string   `json:"source_kind"`
	SourcePixels  int      `json:"source_pixels"`
	SourceParents []string `json:"source_parents,omitempty"`
	DestName      string   `json:"dest_name"`
	DestKind      string   `json:"dest_kind"`
	DestPixels    int      `json:"dest_pixels"`
}

// Verdict is the model's per-pair judgment.  Confidence is clamped to [0,1]
// during parsing.  Answered is false when the model omitted the pair from
// its response; such verdicts carry no judgment and callers must not act on
// them.
type Verdict struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Answered   bool    `json:"answered"`
}

// Tier maps a verdict onto a confidence tier.
func (v Verdict) Tier() mappingtypes.ConfidenceTier {
	switch {
	case v.Match && v.Confidence >= 0.7:
		return mappingtypes.TierHigh
	case v.Match && v.Confidence >= 0.4:
		return mappingtypes.TierMedium
	default:
		return mappingtypes.TierLow
	}
}

// Options configures a Client.
type Options struct {
	Model    string
	MaxBatch int
}

// Client sends one batched adjudication request per session.
type Client struct {
	serving *common.ServingClient
	opts    Options
	logger  logging.Logger
}

// NewClient builds an adjudicator Client over a serving client.
func NewClient(serving *common.ServingClient, opts Options, logger logging.Logger) *Client {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{serving: serving, opts: opts, logger: logger.Named("adjudicator")}
}

// MaxBatch returns the largest pair batch one request may carry.
func (c *Client) MaxBatch() int { return c.opts.MaxBatch }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type verdictItem struct {
	Index      int     `json:"index"`
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

const systemPrompt = `You judge whether pairs of xLights display element names refer to the same physical prop. Respond with a JSON array only, one object per input pair: {"index": <1-based pair index>, "match": <bool>, "confidence": <0..1>, "reasoning": "<short>"}.`

// Adjudicate sends every pair in a single chat request and returns one
// verdict per pair, in input order.  Pairs the model skipped come back with
// Answered false.
func (c *Client) Adjudicate(ctx context.Context, pairs []PairContext) ([]Verdict, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	if len(pairs) > c.opts.MaxBatch {
		return nil, pkgerrors.New(pkgerrors.ErrCodeBatchTooLarge,
			fmt.Sprintf("adjudication batch %d exceeds limit %d", len(pairs), c.opts.MaxBatch))
	}

	req := chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(pairs)},
		},
	}
	var resp chatResponse
	if err := c.serving.PostJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeLLMUnavailable, "adjudication request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeLLMMalformed, "adjudication response has no choices")
	}

	verdicts, err := parseVerdicts(resp.Choices[0].Message.Content, len(pairs))
	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

func buildUserPrompt(pairs []PairContext) string {
	type promptPair struct {
		Index int `json:"index"`
		PairContext
	}
	items := make([]promptPair, len(pairs))
	for i, p := range pairs {
		items[i] = promptPair{Index: i + 1, PairContext: p}
	}
	payload, _ := json.Marshal(items)

	var b strings.Builder
	b.WriteString("Judge these candidate mappings between a source layout and a destination layout:\n")
	b.Write(payload)
	return b.String()
}

// parseVerdicts decodes the model's JSON array, tolerating a markdown fence,
// and places verdicts by their 1-based index.
func parseVerdicts(content string, n int) ([]Verdict, error) {
	var items []verdictItem
	if err := json.Unmarshal([]byte(common.StripJSONFences(content)), &items); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeLLMMalformed, "adjudication verdicts are not valid JSON")
	}

	verdicts := make([]Verdict, n)
	for _, item := range items {
		if item.Index < 1 || item.Index > n {
			continue
		}
		verdicts[item.Index-1] = Verdict{
			Match:      item.Match,
			Confidence: clamp01(item.Confidence),
			Reasoning:  item.Reasoning,
			Answered:   true,
		}
	}
	return verdicts, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
