package cli

import (
	"bytes"
	"floatfetch/internal/edge"
	"floatfetch/internal/login"
	"floatfetch/internal/state"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mgutz/ansi"
	"github.com/spf13/cobra"
)

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "Measure latency to Floatplane's edge servers",
	Long:  `Signs in to Floatplane, probes every download edge and prints the results. Use --save to store the closest edge.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		save, _ := cmd.Flags().GetBool("save")
		history, _ := cmd.Flags().GetBool("history")
		limit, _ := cmd.Flags().GetInt("limit")

		if history {
			records, err := state.RecentProbes(ctx, limit)
			if err != nil {
				fatal(fmt.Errorf("read probe history: %w", err))
			}
			printHistory(os.Stdout, records)
			return
		}

		a := mustStartApp()
		client, err := a.floatplaneClient()
		if err != nil {
			fatal(err)
		}
		if err := (&login.Floatplane{Prompter: a.prompter, Out: a.out}).LoginVideoService(ctx, client); err != nil {
			fatal(err)
		}

		candidates, err := client.ListEdges(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Probing %d edge servers...\n", len(candidates))

		ms, best, err := a.selector().measure(ctx, candidates)
		printMeasurements(os.Stdout, ms, best)
		if err != nil {
			fatal(err)
		}

		if !save {
			return
		}
		settings, err := a.store.Load(ctx)
		if err != nil {
			fatal(fmt.Errorf("load settings: %w", err))
		}
		settings.Floatplane.Edge = best.Candidate.Host
		if err := a.store.Save(ctx, settings); err != nil {
			fatal(fmt.Errorf("save settings: %w", err))
		}
		fmt.Printf("Saved edge %q to %s\n", best.Candidate.Host, a.store.Path)
	},
}

func printMeasurements(w io.Writer, ms []edge.Measurement, best edge.Measurement) {
	var table bytes.Buffer
	tw := tabwriter.NewWriter(&table, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tLOCATION\tLATENCY")
	for _, m := range ms {
		latency := m.Latency.Round(time.Millisecond).String()
		if m.Err != nil {
			latency = "unreachable"
		}
		host := m.Candidate.Host
		if m.Err == nil && host == best.Candidate.Host {
			host += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", host, m.Candidate.Label, latency)
	}
	tw.Flush()

	// Colour whole rows once aligned; tabwriter would count escape codes as width.
	lines := strings.Split(strings.TrimSuffix(table.String(), "\n"), "\n")
	fmt.Fprintln(w, lines[0])
	for i, line := range lines[1:] {
		m := ms[i]
		switch {
		case m.Err != nil:
			line = ansi.Color(line, "red")
		case m.Candidate.Host == best.Candidate.Host:
			line = ansi.Color(line, "green")
		}
		fmt.Fprintln(w, line)
	}
}

func printHistory(w io.Writer, records []state.ProbeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No edge probes recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tHOST\tLATENCY\tSELECTED")
	for _, r := range records {
		latency := r.Latency.String()
		if !r.Reachable() {
			latency = "unreachable"
		}
		selected := ""
		if r.Selected {
			selected = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ProbedAt.Format("2006-01-02 15:04:05"), r.Host, latency, selected)
	}
	tw.Flush()
}

func init() {
	edgesCmd.Flags().Bool("save", false, "Store the closest edge in settings")
	edgesCmd.Flags().Bool("history", false, "Print recently recorded probes instead of probing")
	edgesCmd.Flags().Int("limit", 20, "Number of history rows to print")
	rootCmd.AddCommand(edgesCmd)
}
