package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/raphaelgruber/spidersync/internal/app"
	"github.com/raphaelgruber/spidersync/internal/client"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/service"
	"github.com/raphaelgruber/spidersync/internal/syncerr"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <notification.json>",
	Short: "Apply a spider notification to the index",
	Long: `Run the full pipeline for one spider notification: fetch what the index
holds, plan the groups to rebuild, then assemble and write them.

A notification with jobtyp "neu" drops the collection's index first.

Examples:
  spidersync sync CH_BGer.json
  cat CH_BGer.json | spidersync sync -
  spidersync sync --server http://ingress:8000 CH_BGer.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

var syncServer string

func init() {
	syncCmd.Flags().StringVar(&syncServer, "server", "", "upload to a running ingress server instead of syncing locally")
}

func runSync(cmd *cobra.Command, args []string) error {
	n, err := readNotification(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if syncServer != "" {
		return uploadNotification(ctx, cmd.OutOrStdout(), client.New(syncServer), n)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
	}()

	start := time.Now()
	result, err := a.Processor.Process(ctx, n)
	printSyncResult(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), result, err, time.Since(start))
	return err
}

func uploadNotification(ctx context.Context, w io.Writer, c *client.Client, n *models.Notification) error {
	t := themeFor(w)
	start := time.Now()
	if err := c.Upload(ctx, n); err != nil {
		fmt.Fprintln(w, t.failure("✗ Upload failed"))
		return err
	}
	fmt.Fprintln(w, t.success("✓ Accepted"))
	fmt.Fprintln(w, t.hint(fmt.Sprintf("  %s synced in %s", n.Collection, time.Since(start).Round(time.Millisecond))))
	return nil
}

func printSyncResult(w io.Writer, t Theme, result *service.RunResult, err error, elapsed time.Duration) {
	if err != nil {
		fmt.Fprintln(w, t.failure("✗ Sync failed"))
		if kind := syncerr.KindOf(err); kind != "" {
			fmt.Fprintf(w, "  Kind:    %s\n", kind)
			fmt.Fprintf(w, "  Subject: %s\n", syncerr.SubjectOf(err))
		}
	} else {
		fmt.Fprintln(w, t.success("✓ Completed"))
	}
	if result == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Run:      %s\n", result.RunID)
	fmt.Fprintf(w, "  Index:    %s\n", result.Index)
	fmt.Fprintf(w, "  Groups:   %d\n", result.Groups)
	fmt.Fprintf(w, "  Inserted: %d\n", result.Inserted)
	fmt.Fprintf(w, "  Updated:  %d\n", result.Updated)
	fmt.Fprintf(w, "  Deleted:  %d\n", result.Deleted)
	fmt.Fprintln(w, t.hint(fmt.Sprintf("  took %s", elapsed.Round(time.Millisecond))))
}
