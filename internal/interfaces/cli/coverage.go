package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/LightMap-Intelligence/internal/application/coverage"
	"github.com/turtacn/LightMap-Intelligence/pkg/errors"
)

// NewCoverageCmd creates the coverage command group: display coverage
// analysis and boost suggestions.
func NewCoverageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Analyze display coverage and suggest boost mappings",
	}

	cmd.AddCommand(newCoverageBoostCmd())

	return cmd
}

func newCoverageBoostCmd() *cobra.Command {
	var (
		sourceFile string
		destFile   string
		linksFile  string
	)

	cmd := &cobra.Command{
		Use:   "boost",
		Short: "Suggest group and spinner mappings that raise display coverage",
		Example: `  lightmap coverage boost --source seq.json --dest display.json --links links.json
  lightmap coverage boost --dest display.json --links links.json -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			dest, err := loadInventory(destFile)
			if err != nil {
				return err
			}

			links, err := loadLinks(linksFile)
			if err != nil {
				return err
			}

			matcher := coverage.NewMatcher(cliCtx.Config.Pipeline.Boost, cliCtx.Logger)

			cov := matcher.Compute(dest, links)
			var groups []coverage.Suggestion
			if sourceFile != "" {
				source, err := loadInventory(sourceFile)
				if err != nil {
					return err
				}
				groups = matcher.Suggest(source, dest, links, cov)
			}
			spinners := matcher.SuggestSpinners(dest, links)
			projected := matcher.Project(cov, groups, spinners, dest, links)

			return PrintResult(cmd, &boostReport{
				Coverage:  cov,
				Groups:    groups,
				Spinners:  spinners,
				Projected: projected,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&sourceFile, "source", "", "source layout file (enables group suggestions)")
	f.StringVar(&destFile, "dest", "", "destination layout file")
	f.StringVar(&linksFile, "links", "", "existing mapping links file (JSON object: source name -> dest names)")
	_ = cmd.MarkFlagRequired("dest")
	_ = cmd.MarkFlagRequired("links")

	return cmd
}

// loadLinks reads a source→destinations mapping from path.
func loadLinks(path string) (coverage.Links, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, fmt.Sprintf("failed to read links file %q", path))
	}

	var links coverage.Links
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, fmt.Sprintf("links file %q is not a JSON mapping object", path))
	}

	return links, nil
}

// boostReport wraps coverage output for the CLI output formats.
type boostReport struct {
	Coverage  coverage.Coverage            `json:"coverage"`
	Groups    []coverage.Suggestion        `json:"group_suggestions,omitempty"`
	Spinners  []coverage.SpinnerSuggestion `json:"spinner_suggestions,omitempty"`
	Projected float64                      `json:"projected_percentage"`
}

func (r *boostReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Coverage: %.1f%% (%d of %d models)\n",
		r.Coverage.Percentage, r.Coverage.CoveredModels, r.Coverage.TotalModels)
	for _, g := range r.Groups {
		fmt.Fprintf(&sb, "  group   %-30s <- %-30s %.2f  %s\n", g.DestGroup, g.SourceGroup, g.Score, g.Reason)
	}
	for _, s := range r.Spinners {
		fmt.Fprintf(&sb, "  spinner %-30s <- %-30s %.2f  %s\n", s.DestModel, s.SourceModel, s.Score, s.Reason)
	}
	fmt.Fprintf(&sb, "Projected with all suggestions: %.1f%%", r.Projected)
	return sb.String()
}
