package cli

import (
	"fmt"
	"io"
	"time"

	"docnest/internal/bootstrap"
	"docnest/internal/model"

	"github.com/spf13/cobra"
)

type RunOnceOptions struct {
	*RootOptions
	Now string
}

type RunOnceResult struct {
	Now          time.Time `json:"now"`
	Dispatched   int       `json:"dispatched"`
	NotifyFailed int       `json:"notify_failed"`
	Materialized int       `json:"materialized"`
	Skipped      int       `json:"skipped"`
	Error        string    `json:"error,omitempty"`
}

func NewRunOnceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOnceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run one reminder cycle: dispatch, then materialize",
		Long: `Run a single reminder cycle with the configured policy and notifier,
then exit. --now pins the clock to an RFC 3339 instant or a YYYY-MM-DD date
(midnight UTC).

Examples:
  docnestctl run-once
  docnestctl run-once --now 2026-01-15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Now, "now", "", "clock override (RFC 3339 or YYYY-MM-DD)")
	return cmd
}

func runOnce(opts *RunOnceOptions, cmd *cobra.Command) error {
	now, err := parseNow(opts.Now)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --now", err)
	}

	ctx := cmd.Context()
	stores, err := openStores(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer stores.Close()

	notifier, err := bootstrap.OpenNotifier(ctx, opts.Config, opts.Logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build notifier", err)
	}
	defer notifier.Close()

	engine := bootstrap.NewEngine(opts.Config.Reminders, stores.Reminders, notifier, opts.Logger)
	res, runErr := engine.RunOnce(ctx, now)

	out := RunOnceResult{
		Now:          now,
		Dispatched:   res.Dispatch.Dispatched,
		NotifyFailed: res.Dispatch.Failed,
		Materialized: res.Materialize.Created,
		Skipped:      res.Materialize.Skipped,
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	if err := opts.output(cmd).Result(out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "cycle at %s: dispatched=%d notify_failed=%d materialized=%d skipped=%d\n",
			now.Format(time.RFC3339), out.Dispatched, out.NotifyFailed, out.Materialized, out.Skipped)
		return err
	}); err != nil {
		return err
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "reminder cycle failed", runErr)
	}
	return nil
}

func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return model.ParseDate(s)
}
