package main

import (
	"fmt"

	"github.com/bytecut/bytecut/internal/output"
	"github.com/bytecut/bytecut/internal/progress"
	"github.com/bytecut/bytecut/pkg/analyzer/deadmethods"
	"github.com/bytecut/bytecut/pkg/analyzer/duplicates"
	"github.com/bytecut/bytecut/pkg/jar"
	"github.com/bytecut/bytecut/pkg/transform"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func shrinkCmd() *cli.Command {
	return &cli.Command{
		Name:      "shrink",
		Aliases:   []string{"s"},
		Usage:     "Remove dead methods from a JAR and write the result",
		ArgsUsage: "<input.jar> <output.jar>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Analyze and report without writing the output JAR",
			},
			&cli.StringSliceFlag{
				Name:  "keep-class",
				Usage: "Glob pattern for class internal names to pin (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "keep-method",
				Usage: "Glob pattern for method names to pin (repeatable)",
			},
		},
		Action: runShrinkCmd,
	}
}

func runShrinkCmd(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("missing input JAR argument")
	}
	dryRun := c.Bool("dry-run")
	if c.Args().Len() < 2 && !dryRun {
		return fmt.Errorf("missing output JAR argument (or use --dry-run)")
	}
	input := c.Args().Get(0)
	outPath := c.Args().Get(1)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.Keep.Classes = append(cfg.Keep.Classes, c.StringSlice("keep-class")...)
	cfg.Keep.Methods = append(cfg.Keep.Methods, c.StringSlice("keep-method")...)

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

	var passes []transform.Pass
	var elim *deadmethods.Pass
	var dup *duplicates.Pass
	if cfg.Passes.DeadMethods {
		elim = deadmethods.New(buildReachAnalyzer(cfg, oracle))
		passes = append(passes, elim)
	}
	if cfg.Passes.Duplicates {
		dup = duplicates.New()
		passes = append(passes, dup)
	}
	if len(passes) == 0 {
		return fmt.Errorf("all passes disabled; nothing to do")
	}

	pipeline := transform.New(passes...)
	if cfg.Output.Verbose {
		pipeline = pipeline.WithObserver(func(pass string) {
			fmt.Fprintf(color.Error, "running pass %s\n", pass)
		})
	}
	if err := pipeline.Run(archive.Group); err != nil {
		return err
	}

	if !dryRun {
		if err := jar.Write(outPath, archive); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		color.New(color.FgGreen).Fprintf(color.Error, "Wrote %s\n", outPath)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	report := &output.Report{Title: "Shrink " + input}
	data := map[string]any{}
	if elim != nil {
		result := elim.Result()
		report.Parts = append(report.Parts, reachSummaryTable(result.Analysis.Summary))
		if cfg.Output.Verbose || result.Count() > 0 {
			report.Parts = append(report.Parts, removedTable(result))
		}
		data["dead_methods"] = result
	}
	if dup != nil {
		analysis := dup.Result()
		report.Parts = append(report.Parts, duplicatesTable(analysis))
		data["duplicates"] = analysis
	}
	report.Data = data
	return formatter.Output(report)
}
