package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"docnest/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

type RemindersOptions struct {
	*RootOptions
	Pending bool
	Limit   int
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	pendingStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("222"))
)

func NewRemindersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemindersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List the reminder ledger",
		Long: `List reminders ordered by due time, oldest first.

Examples:
  docnestctl reminders --pending
  docnestctl reminders --limit 500 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReminders(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "only reminders not yet dispatched")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum rows")
	return cmd
}

func runReminders(opts *RemindersOptions, cmd *cobra.Command) error {
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "--limit must be > 0")
	}

	ctx := cmd.Context()
	stores, err := openStores(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer stores.Close()

	reminders, err := stores.Ledger.ListReminders(ctx, opts.Pending, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list reminders", err)
	}
	if reminders == nil {
		reminders = []*model.Reminder{}
	}

	return opts.output(cmd).Result(reminders, func(w io.Writer) error {
		if len(reminders) == 0 {
			_, err := fmt.Fprintln(w, "no reminders")
			return err
		}
		_, err := fmt.Fprintln(w, reminderTable(reminders))
		return err
	})
}

func reminderTable(reminders []*model.Reminder) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "DOCUMENT", "EXPIRES", "DAYS", "DUE", "DISPATCHED")

	pendingRows := make(map[int]bool)
	for i, r := range reminders {
		dispatched := "pending"
		if r.DispatchedAt != nil {
			dispatched = r.DispatchedAt.UTC().Format(time.RFC3339)
		} else {
			pendingRows[i] = true
		}
		t.Row(
			r.ID.String(),
			r.DocumentID.String(),
			model.FormatDate(r.ExpiresOn),
			strconv.Itoa(r.DaysBefore),
			r.DueAt.UTC().Format(time.RFC3339),
			dispatched,
		)
	}

	return t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case pendingRows[row]:
			return pendingStyle
		default:
			return cellStyle
		}
	}).Render()
}
