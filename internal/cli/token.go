package cli

import (
	"fmt"
	"io"
	"time"

	"docnest/pkg/util"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type TokenOptions struct {
	*RootOptions
	User string
}

func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API bearer token for a user",
		Long: `Sign an HS256 token with jwt.secret whose subject is the given user id.
Without --user the configured demo user is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "user UUID (default demo.user_id)")
	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	if opts.Config.JWT.Secret == "" {
		return NewExitError(ExitCommandError, "jwt.secret is empty; the API runs without tokens in this environment")
	}

	userID := opts.Config.DemoUserID()
	if opts.User != "" {
		id, err := uuid.Parse(opts.User)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --user", err)
		}
		userID = id
	}
	if userID == uuid.Nil {
		return NewExitError(ExitCommandError, "--user is required")
	}

	token, err := util.GenerateUserToken(userID, opts.Config.JWT.Secret, time.Now())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to sign token", err)
	}

	return opts.output(cmd).Result(map[string]string{"user_id": userID.String(), "token": token}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, token)
		return err
	})
}
