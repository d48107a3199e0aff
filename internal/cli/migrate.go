package cli

import (
	"context"
	"fmt"
	"io"

	"docnest/internal/repository"

	"github.com/spf13/cobra"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the documents and reminders schema",
		Long: `Connect to the configured store and apply the schema. Safe to run
repeatedly: every statement is IF NOT EXISTS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openStores(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer stores.Close()

			return opts.output(cmd).Result(map[string]string{"driver": stores.Driver, "status": "ok"}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "schema ready (%s)\n", stores.Driver)
				return err
			})
		},
	}
}

// openStores opens the configured store. repository.Open applies the schema.
func openStores(ctx context.Context, opts *RootOptions) (*repository.Stores, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	stores, err := repository.Open(ctx, opts.Config.Storage, opts.Config.DB, opts.Logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return stores, nil
}
