package cli

import (
	"bufio"
	"fmt"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/spf13/cobra"
)

func newListenCmd(e *env) *cobra.Command {
	var autoAccept bool
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait for incoming calls",
		Long:  `Stays connected and reports incoming calls. Console commands: accept, reject, hangup, mute, video, quit.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := e.start(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer rt.stop()

			ringing := make(chan call.Snapshot, 4)
			unsubscribe := rt.mgr.Subscribe(func(s call.Snapshot) {
				if s.State == call.StateRingingInbound {
					select {
					case ringing <- s:
					default:
					}
				}
			})
			defer unsubscribe()

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					select {
					case lines <- sc.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case s := <-ringing:
					fmt.Fprintf(rt.out, "incoming %s call from %s\n", s.MediaKind, s.Peer)
					if autoAccept {
						_, _ = rt.command(ctx, "accept")
					}
				case line, ok := <-lines:
					if !ok {
						// stdin closed; keep serving until interrupted
						lines = nil
						continue
					}
					quit, err := rt.command(ctx, line)
					if err != nil {
						fmt.Fprintf(rt.out, "%v\n", err)
					}
					if quit {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&autoAccept, "auto-accept", false, "answer every incoming call")
	return cmd
}
