package cli

import (
	"fmt"
	"io"

	"docnest/internal/bootstrap"
	"docnest/pkg/filestore"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type SeedDemoOptions struct {
	*RootOptions
	Reset bool
}

func NewSeedDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedDemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Insert the demo documents for the configured demo user",
		Long: `Insert the demo documents when the catalog is empty. --reset first
deletes every reminder and document plus the demo user's files.

demo.user_id and demo.subject_id must be set in the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedDemo(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "wipe the catalog before seeding")
	return cmd
}

func runSeedDemo(opts *SeedDemoOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if cfg.DemoUserID() == uuid.Nil || cfg.DemoSubjectID() == uuid.Nil {
		return NewExitError(ExitCommandError, "demo.user_id and demo.subject_id must be valid UUIDs")
	}

	ctx := cmd.Context()
	stores, err := openStores(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer stores.Close()

	files, err := filestore.NewLocalStore(cfg.FileStore.RootPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open file store", err)
	}
	seeder := bootstrap.NewSeeder(cfg, stores, files, opts.Logger)

	if opts.Reset {
		if err := seeder.Reset(ctx); err != nil {
			return WrapExitError(ExitFailure, "demo reset failed", err)
		}
		return opts.output(cmd).Result(map[string]string{"status": "reset"}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "demo data reset")
			return err
		})
	}

	n, err := seeder.SeedIfNeeded(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "demo seeding failed", err)
	}
	return opts.output(cmd).Result(map[string]int{"inserted": n}, func(w io.Writer) error {
		if n == 0 {
			_, err := fmt.Fprintln(w, "catalog not empty, nothing seeded")
			return err
		}
		_, err := fmt.Fprintf(w, "seeded %d demo documents\n", n)
		return err
	})
}
