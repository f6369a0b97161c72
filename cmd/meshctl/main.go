package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/interchange"
	"github.com/signalsfoundry/mesh-architect/internal/logging"
	"github.com/signalsfoundry/mesh-architect/internal/state"
)

type options struct {
	ProjectPath string
	Preset      string
	ExportPath  string
	Layout      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.ProjectPath, "project", "", "planning JSON file to import (MissionProject, Node, UxS or Mesh Architect)")
	flag.StringVar(&opts.Preset, "preset", "", "preset scenario to load when -project is not set")
	flag.StringVar(&opts.ExportPath, "export", "", "write the plan as MissionProject JSON to this path ('-' for stdout)")
	flag.BoolVar(&opts.Layout, "layout", false, "grid-place nodes that still have no coordinates before analysis")
	flag.Parse()

	log := logging.NewFromEnv()
	if err := execute(context.Background(), opts, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "meshctl: %v\n", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts options, out io.Writer, log logging.Logger) error {
	st := state.NewPlanState(log)

	var report state.ImportReport
	var err error
	switch {
	case opts.ProjectPath != "":
		data, rerr := os.ReadFile(opts.ProjectPath)
		if rerr != nil {
			return fmt.Errorf("read project: %w", rerr)
		}
		report, err = st.ImportJSON(ctx, data, interchange.ModeReplace)
	case opts.Preset != "":
		report, err = st.LoadPreset(ctx, opts.Preset)
	default:
		return errors.New("nothing to analyse: pass -project or -preset")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, report.Message)
	if report.LaidOut > 0 {
		fmt.Fprintf(out, "Auto-layout placed %d node(s) around the map centre.\n", report.LaidOut)
	}

	if opts.Layout {
		moved, err := st.LayoutUnplaced(ctx)
		if err != nil {
			return fmt.Errorf("layout: %w", err)
		}
		if moved > 0 {
			fmt.Fprintf(out, "Auto-layout placed %d node(s).\n", moved)
		}
	}

	printAnalysis(out, st.Analysis())

	if opts.ExportPath != "" {
		data, err := st.ExportJSON()
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if opts.ExportPath == "-" {
			_, err = out.Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(opts.ExportPath, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(out, "\nWrote MissionProject to %s\n", opts.ExportPath)
	}
	return nil
}

func printAnalysis(out io.Writer, a state.Analysis) {
	s := a.Summary
	fmt.Fprintf(out, "\nHealth: %s [%s]\n", s.Health, s.HealthLabel)
	fmt.Fprintf(out, "Risk: %s\n", s.Risk)
	fmt.Fprintf(out, "Recommendation: %s\n", s.Recommendation)
	fmt.Fprintf(out, "Counts: %s\n", s.Counts)
	if s.Origins != "" {
		fmt.Fprintf(out, "Origins: %s\n", s.Origins)
	}
	if s.Reliability != "" {
		fmt.Fprintf(out, "Reliability: %s\n", s.Reliability)
	}
	if len(s.CoverageHints) > 0 {
		fmt.Fprintln(out, "Coverage hints:")
		for _, h := range s.CoverageHints {
			fmt.Fprintf(out, "  - %s\n", h)
		}
	}

	if len(a.Links) > 0 {
		labels := make(map[string]string, len(a.Nodes))
		for _, n := range a.Nodes {
			labels[n.ID] = n.Label
		}
		fmt.Fprintln(out, "\nLinks:")
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  FROM\tTO\tDISTANCE\tMARGIN\tQUALITY\tLOS")
		for _, l := range core.SortForDisplay(a.Links) {
			fmt.Fprintf(tw, "  %s\t%s\t%.0f m\t%.1f dB\t%s\t%s\n",
				labelOr(labels, l.FromID), labelOr(labels, l.ToID),
				l.DistanceMeters, l.MarginDb, l.Quality, l.LOS)
		}
		_ = tw.Flush()
	}

	p := s.Panel
	fmt.Fprintln(out, "\nRobustness:")
	fmt.Fprintf(out, "  %s\n", p.Summary)
	fmt.Fprintf(out, "  %s\n", p.CriticalLine)
	fmt.Fprintln(out, "  Single points of failure:")
	for _, line := range p.SPOFLines {
		fmt.Fprintf(out, "    %s\n", line)
	}
	fmt.Fprintln(out, "  Critical links:")
	for _, line := range p.CriticalLinks {
		fmt.Fprintf(out, "    %s\n", line)
	}
}

func labelOr(labels map[string]string, id string) string {
	if l := labels[id]; l != "" {
		return l
	}
	return id
}
