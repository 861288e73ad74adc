package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhoisCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whois <user-id>",
		Short: "Print the relay identity a user is connected as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := e.start(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.stop()

			id, err := rt.resolve(ctx, args[0], false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
