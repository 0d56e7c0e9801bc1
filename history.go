package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zsprackett/stockchat/internal/journal"
)

var (
	historyLimit int
	historyRun   string
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past analyses from the journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of sessions to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the tool usage records for a run id instead")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := setup(nil, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.cfg.Journal.Enabled {
		return fmt.Errorf("journal is disabled in %s", configPath)
	}
	j, err := openJournal(e.cfg.Journal.Path, e.logger)
	if err != nil {
		return err
	}
	defer j.Close()

	if historyRun != "" {
		recs, err := j.ToolUsage(historyRun)
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(recs)
		}
		for _, r := range recs {
			title := r.Title
			if title == "" {
				title = r.Content
			}
			fmt.Printf("%s  %-5s  %s\n", r.ObservedAt.Format(time.TimeOnly), r.Kind, title)
		}
		return nil
	}

	entries, err := j.RecentSessions(historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCOMPANY\tOUTCOME\tMESSAGES\tDURATION")
	for _, s := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			humanize.Time(s.StartedAt), s.Company, outcomeLabel(s), s.Fragments, duration(s))
	}
	return tw.Flush()
}

func outcomeLabel(s journal.SessionEntry) string {
	if s.Error != "" {
		return s.Outcome + ": " + s.Error
	}
	return s.Outcome
}

func duration(s journal.SessionEntry) string {
	if s.Running() || s.EndedAt.IsZero() {
		return "-"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(100 * time.Millisecond).String()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
