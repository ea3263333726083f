package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/LightMap-Intelligence/internal/application/mapping"
	"github.com/turtacn/LightMap-Intelligence/internal/config"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/effecttree"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/layout"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/matching"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/adjudicator"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/common"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/LightMap-Intelligence/pkg/errors"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// resolveOptions holds flags for the resolve command.
type resolveOptions struct {
	SourceFile   string
	DestFile     string
	FactsFile    string
	SessionID    string
	Vendor       string
	NoDictionary bool
	NoEmbedding  bool
	NoLLM        bool
}

// factsFile is the on-disk shape of an effect facts export.
type factsFile struct {
	Active       map[string]bool `json:"active"`
	DirectCounts map[string]int  `json:"direct_counts"`
}

// NewResolveCmd creates the resolve command: run the full mapping pipeline
// locally over two layout files.
func NewResolveCmd() *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve model mappings between a source and a destination layout",
		Long:  "Resolve reads two layout inventories (JSON arrays of elements), runs the\nfour-phase mapping pipeline locally, and prints the resulting candidate\npairs with confidence tiers.",
		Example: `  lightmap resolve --source seq_layout.json --dest my_layout.json
  lightmap resolve --source a.json --dest b.json --facts effects.json -o json
  lightmap resolve --source a.json --dest b.json --no-llm --vendor boscoyo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.SourceFile, "source", "", "source layout file (sequence side)")
	f.StringVar(&opts.DestFile, "dest", "", "destination layout file (user's display)")
	f.StringVar(&opts.FactsFile, "facts", "", "effect facts file for source pruning (optional)")
	f.StringVar(&opts.SessionID, "session", "", "session identifier (optional)")
	f.StringVar(&opts.Vendor, "vendor", "", "vendor hint for dictionary lookups")
	f.BoolVar(&opts.NoDictionary, "no-dictionary", false, "skip the dictionary phase")
	f.BoolVar(&opts.NoEmbedding, "no-embedding", false, "skip the embedding phase")
	f.BoolVar(&opts.NoLLM, "no-llm", false, "skip the LLM adjudication phase")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("dest")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *resolveOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	source, err := loadInventory(opts.SourceFile)
	if err != nil {
		return err
	}
	dest, err := loadInventory(opts.DestFile)
	if err != nil {
		return err
	}

	var facts *effecttree.Facts
	if opts.FactsFile != "" {
		facts, err = loadFacts(opts.FactsFile)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	pipeline, cleanup := buildPipeline(ctx, cliCtx, opts)
	defer cleanup()

	result, err := pipeline.Resolve(ctx, mapping.Request{
		SessionID:  opts.SessionID,
		Source:     source,
		Dest:       dest,
		Facts:      facts,
		VendorHint: opts.Vendor,
	})
	if err != nil {
		return err
	}

	return PrintResult(cmd, &resolveReport{Result: result})
}

// buildPipeline wires the resolution pipeline from configuration.  Optional
// phase dependencies that cannot be reached are logged and left nil; the
// pipeline records them as disabled rather than failing the command.
func buildPipeline(ctx context.Context, cliCtx *CLIContext, opts *resolveOptions) (*mapping.Pipeline, func()) {
	cfg := cliCtx.Config
	logger := cliCtx.Logger

	classifier := layout.NewClassifier(layout.DefaultTables(), logger)
	builder := effecttree.NewBuilder(effecttreeConfig(cfg), logger)
	engine := matching.NewEngine(engineOptions(cfg), logger)

	cleanup := func() {}

	var dict mapping.Dictionary
	if cfg.Pipeline.Dictionary.Enabled && !opts.NoDictionary {
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Warn("dictionary store unreachable, phase disabled", logging.Err(err))
		} else {
			repo := repositories.NewDictionaryRepository(pool, logger)
			dict = dictionary.NewService(repo, dictionary.Options{
				FuzzyMaxDist:   cfg.Pipeline.Dictionary.FuzzyMaxDist,
				SignatureMatch: cfg.Pipeline.Dictionary.SignatureMatch,
			}, logger)
			cleanup = pool.Close
		}
	}

	var embedder mapping.Embedder
	if cfg.Embedding.Enabled && !opts.NoEmbedding && cfg.Embedding.Endpoint != "" {
		serving, err := common.NewServingClient(cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Timeout, logger)
		if err != nil {
			logger.Warn("embedding endpoint unavailable, phase disabled", logging.Err(err))
		} else {
			embedder = embedding.NewClient(serving, embedding.Options{
				Model:     cfg.Embedding.Model,
				Threshold: cfg.Embedding.Threshold,
				MaxBatch:  cfg.Embedding.MaxBatch,
			}, logger)
		}
	}

	var adj mapping.Adjudicator
	if cfg.LLM.Enabled && !opts.NoLLM && cfg.LLM.Endpoint != "" {
		serving, err := common.NewServingClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Timeout, logger)
		if err != nil {
			logger.Warn("LLM endpoint unavailable, phase disabled", logging.Err(err))
		} else {
			adj = adjudicator.NewClient(serving, adjudicator.Options{
				Model:    cfg.LLM.Model,
				MaxBatch: cfg.LLM.MaxBatch,
			}, logger)
		}
	}

	pipeline := mapping.NewPipeline(classifier, builder, engine, dict, embedder, adj, mapping.Options{
		DictionaryEnabled: dict != nil,
		EmbeddingEnabled:  embedder != nil,
		LLMEnabled:        adj != nil,
	}, logger)

	return pipeline, cleanup
}

// engineOptions maps configured weights onto engine options.
func engineOptions(cfg *config.Config) matching.Options {
	return matching.Options{
		Weights: matching.Weights{
			Type:      cfg.Pipeline.Weights.Type,
			Pixels:    cfg.Pipeline.Weights.Pixels,
			Spatial:   cfg.Pipeline.Weights.Spatial,
			Name:      cfg.Pipeline.Weights.Name,
			Structure: cfg.Pipeline.Weights.Structure,
		},
		AssignFloor:   cfg.Pipeline.AssignFloor,
		SubmodelFloor: cfg.Pipeline.SubmodelFloor,
	}
}

// effecttreeConfig maps configured grouping thresholds onto builder config.
func effecttreeConfig(cfg *config.Config) effecttree.Config {
	c := effecttree.DefaultConfig()
	if cfg.Pipeline.Grouping.MemberRatio > 0 {
		c.MemberRatio = cfg.Pipeline.Grouping.MemberRatio
	}
	return c
}

// loadInventory reads a JSON array of layout elements from path.
func loadInventory(path string) (*layouttypes.Inventory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, fmt.Sprintf("failed to read layout file %q", path))
	}

	var elements []*layouttypes.Element
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, fmt.Sprintf("layout file %q is not a JSON element array", path))
	}
	if len(elements) == 0 {
		return nil, errors.New(errors.ErrCodeBadRequest, fmt.Sprintf("layout file %q contains no elements", path))
	}

	return layouttypes.NewInventory(elements), nil
}

// loadFacts reads an effect facts export from path.
func loadFacts(path string) (*effecttree.Facts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, fmt.Sprintf("failed to read facts file %q", path))
	}

	var ff factsFile
	if err := json.Unmarshal(raw, &ff); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, fmt.Sprintf("facts file %q is malformed", path))
	}

	return &effecttree.Facts{Active: ff.Active, DirectCounts: ff.DirectCounts}, nil
}

// resolveReport wraps a result for the CLI output formats.
type resolveReport struct {
	*mappingtypes.Result
}

// String renders the text summary.
func (r *resolveReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Resolved %d source elements: %d high, %d medium, %d low, %d unmapped (%d destination unused)\n",
		r.Summary.Total, r.Summary.High, r.Summary.Medium, r.Summary.Low, r.Summary.Unmapped, r.Summary.UnusedDest)
	for _, p := range r.Pairs {
		dest := p.DestName
		if dest == "" {
			dest = "(unmapped)"
		}
		fmt.Fprintf(&sb, "  %-30s -> %-30s %-8s %.2f\n", p.SourceName, dest, p.Tier, p.Score)
	}
	if len(r.Phases) > 0 {
		sb.WriteString("Phases:\n")
		for _, ph := range r.Phases {
			status := "skipped"
			switch {
			case ph.Enabled && ph.Success:
				status = "ok"
			case ph.Enabled:
				status = "failed"
			}
			fmt.Fprintf(&sb, "  %-12s %-8s upgraded=%d elapsed=%s\n", ph.Name, status, ph.Upgraded, ph.Elapsed)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// TableHeaders implements the table output provider.
func (r *resolveReport) TableHeaders() []string {
	return []string{"SOURCE", "DEST", "TIER", "SCORE", "METHOD", "REASON"}
}

// TableRows implements the table output provider.
func (r *resolveReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		dest := p.DestName
		if dest == "" {
			dest = "-"
		}
		rows = append(rows, []string{
			p.SourceName,
			dest,
			string(p.Tier),
			fmt.Sprintf("%.2f", p.Score),
			string(p.Provenance),
			p.Reason,
		})
	}
	return rows
}
