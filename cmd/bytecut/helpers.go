package main

import (
	"fmt"

	"github.com/bytecut/bytecut/internal/output"
	"github.com/bytecut/bytecut/pkg/analyzer/deadmethods"
	"github.com/bytecut/bytecut/pkg/analyzer/duplicates"
	"github.com/bytecut/bytecut/pkg/analyzer/reach"
	"github.com/bytecut/bytecut/pkg/config"
	"github.com/bytecut/bytecut/pkg/model"
	"github.com/bytecut/bytecut/pkg/platform"
	"github.com/urfave/cli/v2"
)

// loadConfig merges the config file with command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

// newFormatter builds a formatter from the effective config and the
// --output flag.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := output.ParseFormat(cfg.Output.Format)
	return output.NewFormatter(format, c.String("output"), cfg.Output.Color)
}

// buildOracle constructs the platform oracle, merging a user index
// file on top of the bundled one when configured.
func buildOracle(cfg *config.Config) (*platform.StaticIndex, error) {
	oracle := platform.NewStaticIndex()
	if cfg.Platform.Index != "" {
		if err := oracle.LoadFile(cfg.Platform.Index); err != nil {
			return nil, fmt.Errorf("failed to load platform index %s: %w", cfg.Platform.Index, err)
		}
	}
	return oracle, nil
}

// buildReachAnalyzer wires the oracle and keep rules into a
// reachability analyzer.
func buildReachAnalyzer(cfg *config.Config, oracle platform.Oracle) *reach.Analyzer {
	matcher := cfg.KeepMatcher()
	keep := func(m *model.MethodEntry) bool {
		return matcher(m.Owner, m.Name)
	}
	return reach.New(oracle, reach.WithKeepFunc(keep))
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// removedTable renders the dead-method eliminator's removals.
func removedTable(result *deadmethods.Result) *output.Table {
	rows := make([][]string, 0, len(result.Removed))
	for _, v := range result.Removed {
		rows = append(rows, []string{v.Class, v.Name, truncate(v.Desc, 60)})
	}
	return &output.Table{
		Title:   "Removed Methods",
		Headers: []string{"Class", "Method", "Descriptor"},
		Rows:    rows,
		Footer:  []string{"Total", fmt.Sprintf("%d", result.Count()), ""},
		Data:    result,
	}
}

// duplicatesTable renders the structural clusters, one row per member.
func duplicatesTable(analysis *duplicates.Analysis) *output.Table {
	var rows [][]string
	for _, cluster := range analysis.Clusters {
		for _, m := range cluster.Members {
			rows = append(rows, []string{truncate(cluster.Key, 40), m.Ref, m.ExactHash})
		}
	}
	return &output.Table{
		Title:   "Duplicate Groups",
		Headers: []string{"Group", "Method", "Exact Hash"},
		Rows:    rows,
		Footer: []string{
			fmt.Sprintf("%d groups", analysis.Summary.DuplicateGroups),
			fmt.Sprintf("%d methods", analysis.Summary.DuplicateCount),
			"",
		},
		Data: analysis,
	}
}

// reachSummaryTable renders the classification totals.
func reachSummaryTable(summary reach.Summary) *output.Table {
	return &output.Table{
		Title:   "Reachability",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Classes", fmt.Sprintf("%d", summary.TotalClasses)},
			{"Methods", fmt.Sprintf("%d", summary.TotalMethods)},
			{"Used", fmt.Sprintf("%d", summary.UsedMethods)},
			{"Unused", fmt.Sprintf("%d", summary.UnusedMethods)},
			{"Usage set size", fmt.Sprintf("%d", summary.UsageSetSize)},
		},
		Data: summary,
	}
}
