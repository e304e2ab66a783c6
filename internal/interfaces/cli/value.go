package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/config"
	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
)

// fileCorpus serves comparables from a JSON file, for offline valuations.
type fileCorpus struct {
	path  string
	sales []property.Comparable
}

func loadFileCorpus(path string) (*fileCorpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read comparables file: %w", err)
	}
	var sales []property.Comparable
	if err := json.Unmarshal(raw, &sales); err != nil {
		return nil, fmt.Errorf("failed to parse comparables file: %w", err)
	}
	return &fileCorpus{path: path, sales: sales}, nil
}

func (c *fileCorpus) Search(_ context.Context, criteria market.SearchCriteria, limit int) ([]property.Comparable, error) {
	out := market.FilterCandidates(c.sales, criteria)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fileCorpus) Version(context.Context) (string, error) {
	return fmt.Sprintf("file:%s#%d", c.path, len(c.sales)), nil
}

func newValueCmd(opts *RootOptions) *cobra.Command {
	var (
		subjectPath     string
		comparablesPath string
		includeComps    bool
		noAdjustments   bool
		limit           int
	)

	cmd := &cobra.Command{
		Use:   "value",
		Short: "Value a subject property offline",
		Long: "Runs a full valuation without a server: the subject comes from a JSON\n" +
			"file and comparables from a second JSON file. With no comparables the\n" +
			"engine falls back to its heuristic cascade.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(subjectPath)
			if err != nil {
				return fmt.Errorf("failed to read subject file: %w", err)
			}
			var subject property.Subject
			if err := json.Unmarshal(raw, &subject); err != nil {
				return fmt.Errorf("failed to parse subject file: %w", err)
			}

			corpus := market.CorpusProvider(&fileCorpus{path: "none"})
			if comparablesPath != "" {
				fc, err := loadFileCorpus(comparablesPath)
				if err != nil {
					return err
				}
				corpus = fc
			}

			svc, err := appvaluation.NewService(appvaluation.Dependencies{
				Corpus:   corpus,
				Tunables: cfg.Valuation,
			})
			if err != nil {
				return err
			}

			valueOpts := appvaluation.Options{
				IncludeComparables:     includeComps,
				ApplyMarketAdjustments: !noAdjustments,
				ComparableLimit:        limit,
			}
			result, err := svc.Value(cmd.Context(), subject, valueOpts)
			if err != nil {
				return err
			}

			return printResult(cmd, opts.Output, result)
		},
	}

	cmd.Flags().StringVarP(&subjectPath, "subject", "s", "", "path to the subject property JSON file (required)")
	cmd.Flags().StringVar(&comparablesPath, "comparables", "", "path to a JSON array of closed sales")
	cmd.Flags().BoolVar(&includeComps, "include-comparables", false, "attach scored comparable evidence to the output")
	cmd.Flags().BoolVar(&noAdjustments, "no-adjustments", false, "skip market, season, condition, and amenity adjustments")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap on corpus candidates considered")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func printResult(cmd *cobra.Command, format string, result *domainvaluation.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "text", "":
		var b strings.Builder
		fmt.Fprintf(&b, "Subject:    %s\n", result.SubjectAddress)
		fmt.Fprintf(&b, "Estimate:   $%.0f  (range $%.0f to $%.0f)\n",
			result.EstimatedValue, result.ValueRangeLow, result.ValueRangeHigh)
		fmt.Fprintf(&b, "Confidence: %d/100 (%s)\n", result.ConfidenceScore, result.ConfidenceLevel)
		fmt.Fprintf(&b, "Evidence:   %d comparables\n", result.ComparableCount)
		if result.FallbackSource != domainvaluation.FallbackNone {
			fmt.Fprintf(&b, "Fallback:   %s\n", result.FallbackSource)
		}
		for _, risk := range result.RiskFactors {
			fmt.Fprintf(&b, "Risk:       %s\n", risk)
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	return cfg, nil
}
