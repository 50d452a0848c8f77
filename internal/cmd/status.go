package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status [agent]",
	Short: "Show agent status documents",
	Long: `Status prints the published status document of every agent in the
state directory, or a single agent when named. Data comes from the
status/*.json files the supervisors maintain; this command never
mutates anything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit raw JSON documents")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	paths := layout.New(cfg.Paths.ResolveStateDir(cwd))

	docs, err := collectStatuses(paths)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		filtered := docs[:0]
		for _, d := range docs {
			if d.Agent == args[0] {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
		if len(docs) == 0 {
			return fmt.Errorf("no status document for agent %q", args[0])
		}
	}
	if len(docs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no agents found under %s\n", paths.StatusDir())
		return nil
	}

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	printStatusTable(cmd, docs)
	return nil
}

// collectStatuses reads every status document under the state directory.
// Unreadable documents are skipped; they are usually mid-rename.
func collectStatuses(paths layout.Layout) ([]*status.Document, error) {
	entries, err := os.ReadDir(paths.StatusDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var docs []*status.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		doc, err := status.ReadDocument(filepath.Join(paths.StatusDir(), entry.Name()))
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Agent < docs[j].Agent })
	return docs, nil
}

func printStatusTable(cmd *cobra.Command, docs []*status.Document) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-16s %-16s %-8s %-10s %-10s %s\n",
		"AGENT", "STATUS", "CYCLE", "PASS RATE", "HEARTBEAT", "SUMMARY")
	for _, d := range docs {
		summary := ""
		if d.WorkSummary != nil {
			summary = *d.WorkSummary
		}
		fmt.Fprintf(w, "%-16s %-16s %-8s %-10s %-10s %s\n",
			d.Agent,
			string(d.Status),
			fmt.Sprintf("%d/%d", d.RestartCycle, d.MaxRestarts),
			fmt.Sprintf("%d%%/%d%%", d.TestPassRate, d.TargetPassRate),
			heartbeatAge(d.Heartbeat),
			summary)
	}
}

// heartbeatAge renders how long ago the heartbeat fired, a quick liveness
// read for operators.
func heartbeatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := time.Since(t)
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
}
