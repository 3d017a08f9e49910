package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/raphaelgruber/spidersync/internal/app"
	"github.com/raphaelgruber/spidersync/internal/client"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/service"
	"github.com/spf13/cobra"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

var (
	runsCollection string
	runsLimit      int
	runsServer     string
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List or inspect recorded sync runs",
	Long: `List recent sync runs from the run ledger, or show one run by ID.
Requires SURREALDB_URL. With --server, lists the runs a live ingress
server tracks in memory instead.

Examples:
  spidersync runs
  spidersync runs --collection CH_BGer -n 10
  spidersync runs abc123ef
  spidersync runs --server http://ingress:8000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsCollection, "collection", "", "filter by spider")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 50, "max results")
	runsCmd.Flags().StringVar(&runsServer, "server", "", "list runs tracked by a running ingress server")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if runsServer != "" {
		return listServerRuns(cmd, client.New(runsServer))
	}
	if !cfg.LedgerEnabled() {
		return errors.New("run ledger disabled: set SURREALDB_URL")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ledger, err := app.ConnectLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ledger.Close(context.Background())

	out := cmd.OutOrStdout()
	t := themeFor(out)

	if len(args) == 1 {
		run, err := ledger.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		printRun(out, t, run)
		return nil
	}

	var collection *string
	if runsCollection != "" {
		collection = &runsCollection
	}
	runs, err := ledger.ListRuns(ctx, collection, runsLimit)
	if err != nil {
		return err
	}
	printRuns(out, t, runs)
	return nil
}

func listServerRuns(cmd *cobra.Command, c *client.Client) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := c.ListRuns(ctx)
	if err != nil {
		return err
	}
	printRunInfos(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), runs, runsCollection, runsLimit)
	return nil
}

// printRunInfos prints in-memory runs in the same layout as printRuns.
func printRunInfos(w io.Writer, t Theme, infos []service.RunInfo, collection string, limit int) {
	runs := make([]models.SyncRun, 0, len(infos))
	for _, info := range infos {
		if collection != "" && info.Collection != collection {
			continue
		}
		if limit > 0 && len(runs) == limit {
			break
		}
		run := models.SyncRun{
			ID:          surrealmodels.RecordID{Table: "sync_run", ID: info.ID},
			Collection:  info.Collection,
			Job:         info.Job,
			JobKind:     info.JobKind,
			Status:      string(info.Status),
			Groups:      info.Groups,
			Inserted:    info.Result.Inserted,
			Updated:     info.Result.Updated,
			Deleted:     info.Result.Deleted,
			StartedAt:   info.StartedAt,
			CompletedAt: info.CompletedAt,
		}
		if info.Error != "" {
			run.Error = &info.Error
		}
		runs = append(runs, run)
	}
	printRuns(w, t, runs)
}

func printRuns(w io.Writer, t Theme, runs []models.SyncRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return
	}

	fmt.Fprintf(w, "%-10s %-20s %-11s %-7s %-17s %s\n", "ID", "SPIDER", "STATUS", "GROUPS", "INS/UPD/DEL", "STARTED")
	fmt.Fprintln(w, "-------------------------------------------------------------------------------------")
	for _, r := range runs {
		id, _ := models.RecordIDString(r.ID)
		counts := fmt.Sprintf("%d/%d/%d", r.Inserted, r.Updated, r.Deleted)
		// Pad before styling so escape codes do not break alignment.
		status := t.runStatus(fmt.Sprintf("%-11s", r.Status))
		fmt.Fprintf(w, "%-10s %-20s %s %-7d %-17s %s\n", id, r.Collection, status, r.Groups, counts, r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func printRun(w io.Writer, t Theme, r *models.SyncRun) {
	id, _ := models.RecordIDString(r.ID)
	fmt.Fprintf(w, "Run: %s\n", id)
	fmt.Fprintf(w, "  Spider:   %s\n", r.Collection)
	fmt.Fprintf(w, "  Job:      %s (%s)\n", r.Job, r.JobKind)
	fmt.Fprintf(w, "  Status:   %s\n", t.runStatus(r.Status))
	fmt.Fprintf(w, "  Groups:   %d\n", r.Groups)
	fmt.Fprintf(w, "  Inserted: %d\n", r.Inserted)
	fmt.Fprintf(w, "  Updated:  %d\n", r.Updated)
	fmt.Fprintf(w, "  Deleted:  %d\n", r.Deleted)
	fmt.Fprintf(w, "  Started:  %s\n", r.StartedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s\n", r.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  Duration: %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Second))
	}
	if r.Error != nil && *r.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", t.failure(*r.Error))
	}
}
