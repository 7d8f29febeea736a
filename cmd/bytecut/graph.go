package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytecut/bytecut/internal/output"
	"github.com/bytecut/bytecut/internal/progress"
	"github.com/bytecut/bytecut/pkg/analyzer/callgraph"
	"github.com/bytecut/bytecut/pkg/jar"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Aliases:   []string{"g"},
		Usage:     "Build the call graph and report its metrics",
		ArgsUsage: "<input.jar>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top",
				Value: 10,
				Usage: "Number of top-ranked methods to list",
			},
			&cli.BoolFlag{
				Name:  "mermaid",
				Usage: "Emit a Mermaid diagram instead of metric tables",
			},
		},
		Action: runGraphCmd,
	}
}

func runGraphCmd(c *cli.Context) error {
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

	analysis := callgraph.Build(archive.Group)

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if formatter.Format() == output.FormatJSON || formatter.Format() == output.FormatTOON {
		return formatter.Output(analysis)
	}

	if c.Bool("mermaid") {
		writeMermaid(formatter, analysis)
		return nil
	}

	top := c.Int("top")
	nodes := make([]callgraph.Node, len(analysis.Nodes))
	copy(nodes, analysis.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].PageRank > nodes[j].PageRank })
	if len(nodes) > top {
		nodes = nodes[:top]
	}

	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			truncate(n.Ref, 70),
			fmt.Sprintf("%.4f", n.PageRank),
			fmt.Sprintf("%d", n.InDegree),
			fmt.Sprintf("%d", n.OutDegree),
		})
	}

	report := &output.Report{
		Title: "Call Graph " + input,
		Parts: []output.Renderable{
			&output.Table{
				Title:   "Shape",
				Headers: []string{"Metric", "Value"},
				Rows: [][]string{
					{"Methods", fmt.Sprintf("%d", analysis.Summary.Nodes)},
					{"Calls", fmt.Sprintf("%d", analysis.Summary.Edges)},
					{"Unresolved targets", fmt.Sprintf("%d", analysis.Summary.UnresolvedTargets)},
					{"Density", fmt.Sprintf("%.4f", analysis.Summary.Density)},
					{"Strongly connected components", fmt.Sprintf("%d", analysis.Summary.StronglyConnected)},
					{"Largest cycle", fmt.Sprintf("%d", analysis.Summary.LargestCycle)},
				},
				Data: analysis.Summary,
			},
			&output.Table{
				Title:   "Top Methods by PageRank",
				Headers: []string{"Method", "PageRank", "In", "Out"},
				Rows:    rows,
				Data:    nodes,
			},
		},
		Data: analysis,
	}
	return formatter.Output(report)
}

// writeMermaid emits the graph as a Mermaid diagram.
func writeMermaid(formatter *output.Formatter, analysis *callgraph.Analysis) {
	w := formatter.Writer()
	fmt.Fprintln(w, "```mermaid")
	fmt.Fprintln(w, "graph TD")
	for _, node := range analysis.Nodes {
		fmt.Fprintf(w, "    %s[%s]\n", sanitizeID(node.Ref), node.Ref)
	}
	for _, edge := range analysis.Edges {
		fmt.Fprintf(w, "    %s --> %s\n", sanitizeID(edge.From), sanitizeID(edge.To))
	}
	fmt.Fprintln(w, "```")
}

// sanitizeID replaces non-alphanumeric characters for Mermaid node IDs.
func sanitizeID(id string) string {
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}
