package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/spidersync/internal/app"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <notification.json>",
	Short: "Show the groups a notification would rebuild",
	Long: `Compute the sync plan for a notification without writing anything.

The index is read but never dropped, even for full crawls, so the plan of a
"neu" notification shows what an incremental run would do.

Examples:
  spidersync plan CH_BGer.json
  spidersync plan -v CH_BGer.json   # list member files`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	n, err := readNotification(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Planning never records a run.
	planCfg := cfg
	planCfg.SurrealDB.URL = ""

	a, err := app.New(ctx, planCfg, logger)
	if err != nil {
		return err
	}

	groups, err := a.Processor.Plan(ctx, n)
	if err != nil {
		return err
	}

	printPlan(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), n, groups, verbose)
	return nil
}

func printPlan(w io.Writer, t Theme, n *models.Notification, groups []models.FileGroup, detailed bool) {
	if len(groups) == 0 {
		fmt.Fprintf(w, "%s is up to date (%d files)\n", n.Collection, len(n.Files))
		return
	}

	fmt.Fprintf(w, "Plan for %s (%d of %d files, %d groups):\n\n", n.Collection, countFiles(groups), len(n.Files), len(groups))
	for _, g := range groups {
		fmt.Fprintf(w, "- %s %s\n", g.Base, t.status("["+groupAction(g)+"]"))
		if detailed {
			for _, f := range g.Files {
				fmt.Fprintf(w, "    %s %s\n", f.Name, t.hint(string(f.Status)))
			}
		}
	}
}

func countFiles(groups []models.FileGroup) int {
	total := 0
	for _, g := range groups {
		total += len(g.Files)
	}
	return total
}

// groupAction names what the executor will do with a group.
func groupAction(g models.FileGroup) string {
	if meta, ok := g.Metadata(); ok && meta.Status == models.FileStatusDeleted {
		return "delete"
	}
	if _, ok := g.Attachment(); ok {
		return "insert"
	}
	var exts []string
	for _, f := range g.Files {
		_, ext := models.SplitName(f.Name)
		exts = append(exts, ext)
	}
	return "update " + strings.Join(exts, ",")
}
