package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/storage"
	"github.com/spf13/cobra"
)

func newHistoryCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent calls from the local call log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			calls, err := storage.Open(e.cfg.Client.CallLog)
			if err != nil {
				return err
			}
			defer calls.Close()

			entries, err := calls.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tROLE\tPEER\tMEDIA\tDURATION\tREASON")
			for _, c := range entries {
				dur := "-"
				if c.Answered() {
					dur = c.Duration().Round(time.Second).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					c.StartedAt.Format(time.DateTime), c.Role, c.Peer, c.MediaKind, dur, c.EndReason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of calls to show")
	return cmd
}
