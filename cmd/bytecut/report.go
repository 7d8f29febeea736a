package main

import (
	"fmt"

	"github.com/bytecut/bytecut/internal/output"
	"github.com/bytecut/bytecut/internal/progress"
	"github.com/bytecut/bytecut/pkg/analyzer/duplicates"
	"github.com/bytecut/bytecut/pkg/analyzer/reach"
	"github.com/bytecut/bytecut/pkg/jar"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Aliases:   []string{"r"},
		Usage:     "Analyze a JAR and report without modifying it",
		ArgsUsage: "<input.jar>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "List every method verdict, not just unused methods",
			},
		},
		Action: runReportCmd,
	}
}

func runReportCmd(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("missing input JAR argument")
	}
	input := c.Args().Get(0)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	tracker := progress.New("Reading "+input, -1)
	archive, err := jar.Read(input, tracker.Tick)
	tracker.Done()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	if archive.ClassCount() == 0 {
		color.Yellow("No class files found in %s", input)
		return nil
	}

	oracle, err := buildOracle(cfg)
	if err != nil {
		return err
	}
	analysis := buildReachAnalyzer(cfg, oracle).Classify(archive.Group)
	dups := duplicates.GroupStatics(archive.Group)

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	report := &output.Report{
		Title: "Report " + input,
		Parts: []output.Renderable{
			reachSummaryTable(analysis.Summary),
			verdictTable(analysis, c.Bool("all")),
			duplicatesTable(dups),
		},
		Data: map[string]any{
			"reachability": analysis,
			"duplicates":   dups,
		},
	}
	return formatter.Output(report)
}

// verdictTable lists method verdicts. Unless all is set only unused
// methods are shown.
func verdictTable(analysis *reach.Analysis, all bool) *output.Table {
	var rows [][]string
	for _, v := range analysis.Verdicts {
		if !all && v.Used {
			continue
		}
		status := "unused"
		if v.Used {
			status = "used"
		}
		rows = append(rows, []string{v.Class, v.Name, truncate(v.Desc, 50), status, string(v.Reason)})
	}
	title := "Unused Methods"
	if all {
		title = "Method Verdicts"
	}
	return &output.Table{
		Title:   title,
		Headers: []string{"Class", "Method", "Descriptor", "Status", "Reason"},
		Rows:    rows,
		Data:    analysis.Verdicts,
	}
}
