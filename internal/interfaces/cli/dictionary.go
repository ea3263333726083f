package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres/repositories"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// NewDictionaryCmd creates the dictionary command group: direct queries
// against the crowd-sourced mapping dictionary.
func NewDictionaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictionary",
		Short: "Query the crowd-sourced mapping dictionary",
	}

	cmd.AddCommand(
		newDictionaryLookupCmd(),
		newDictionaryStatsCmd(),
	)

	return cmd
}

func newDictionaryLookupCmd() *cobra.Command {
	var (
		kind   string
		pixels int
		vendor string
	)

	cmd := &cobra.Command{
		Use:   "lookup NAME",
		Short: "Look up one source element name through the dictionary ladder",
		Example: `  lightmap dictionary lookup "Mega Tree"
  lightmap dictionary lookup "Arch 1" --kind model --pixels 150 --vendor boscoyo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			svc, cleanup, err := openDictionary(ctx, cliCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			hit, err := svc.Lookup(ctx, dictionary.Query{
				RawName:    args[0],
				Kind:       kind,
				PixelCount: pixels,
				Vendor:     vendor,
			})
			if err != nil {
				return err
			}

			return PrintResult(cmd, &lookupReport{Name: args[0], Hit: hit})
		},
	}

	f := cmd.Flags()
	f.StringVar(&kind, "kind", "", "element kind (model, model_group)")
	f.IntVar(&pixels, "pixels", 0, "pixel count for signature matching")
	f.StringVar(&vendor, "vendor", "", "vendor scope (detected from the name when unset)")

	return cmd
}

func newDictionaryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dictionary size and confirmation counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			svc, cleanup, err := openDictionary(ctx, cliCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := svc.Stats(ctx)
			if err != nil {
				return err
			}

			return PrintResult(cmd, &statsReport{Stats: stats})
		},
	}
}

// openDictionary connects the store-backed dictionary service.
func openDictionary(ctx context.Context, cliCtx *CLIContext) (*dictionary.Service, func(), error) {
	cfg := cliCtx.Config

	pool, err := postgres.NewPool(ctx, cfg.Database, cliCtx.Logger)
	if err != nil {
		return nil, nil, err
	}

	repo := repositories.NewDictionaryRepository(pool, cliCtx.Logger)
	svc := dictionary.NewService(repo, dictionary.Options{
		FuzzyMaxDist:   cfg.Pipeline.Dictionary.FuzzyMaxDist,
		SignatureMatch: cfg.Pipeline.Dictionary.SignatureMatch,
	}, cliCtx.Logger)

	return svc, pool.Close, nil
}

// lookupReport wraps a lookup outcome for the CLI output formats.
type lookupReport struct {
	Name string            `json:"name"`
	Hit  *mappingtypes.Hit `json:"hit,omitempty"`
}

func (r *lookupReport) String() string {
	if r.Hit == nil {
		return fmt.Sprintf("No dictionary entry for %q", r.Name)
	}
	e := r.Hit.Entry
	return fmt.Sprintf("%q -> %q (method=%s confidence=%.2f confirmations=%d vendor=%s)",
		e.SourceRaw, e.DestRaw, r.Hit.Method, r.Hit.Confidence, e.Confirmations, orDash(e.Vendor))
}

func (r *lookupReport) TableHeaders() []string {
	return []string{"SOURCE", "DEST", "METHOD", "CONFIDENCE", "CONFIRMATIONS", "VENDOR"}
}

func (r *lookupReport) TableRows() [][]string {
	if r.Hit == nil {
		return nil
	}
	e := r.Hit.Entry
	return [][]string{{
		e.SourceRaw,
		e.DestRaw,
		r.Hit.Method,
		fmt.Sprintf("%.2f", r.Hit.Confidence),
		fmt.Sprintf("%d", e.Confirmations),
		orDash(e.Vendor),
	}}
}

// statsReport wraps dictionary stats for the CLI output formats.
type statsReport struct {
	*dictionary.Stats
}

func (r *statsReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entries: %d\nConfirmations: %d\n", r.Entries, r.Confirmations)
	if len(r.BySource) > 0 {
		sources := make([]string, 0, len(r.BySource))
		for s := range r.BySource {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		sb.WriteString("By source:\n")
		for _, s := range sources {
			fmt.Fprintf(&sb, "  %-18s %d\n", s, r.BySource[s])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
