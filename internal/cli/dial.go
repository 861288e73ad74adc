package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/spf13/cobra"
)

func newDialCmd(e *env) *cobra.Command {
	var (
		video       bool
		rawIdentity bool
		hangupAfter time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dial <user-id>",
		Short: "Call a user and stay on the line until either side hangs up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := e.start(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer rt.stop()

			target, err := rt.resolve(ctx, args[0], rawIdentity)
			if err != nil {
				return err
			}
			kind := domain.MediaAudio
			if video {
				kind = domain.MediaAudioVideo
			}

			ended, unsubscribe := rt.ended()
			defer unsubscribe()

			s, err := rt.mgr.CallUser(ctx, target, kind)
			if err != nil {
				return fmt.Errorf("call %s: %w", args[0], err)
			}

			var limit <-chan time.Time
			if hangupAfter > 0 {
				limit = time.After(hangupAfter)
			}
			select {
			case <-ended:
			case <-limit:
				_ = s.EndCall()
			case <-ctx.Done():
				_ = s.EndCall()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&video, "video", false, "send camera video as well as audio")
	cmd.Flags().BoolVar(&rawIdentity, "identity", false, "treat the argument as a relay connection identity instead of a user id")
	cmd.Flags().DurationVar(&hangupAfter, "hangup-after", 0, "end the call after this long (0 waits for the other side)")
	return cmd
}

func (rt *runtime) resolve(ctx context.Context, arg string, rawIdentity bool) (domain.ConnectionID, error) {
	if rawIdentity {
		id := domain.ConnectionID(arg)
		if !id.Valid() {
			return "", fmt.Errorf("invalid identity %q", arg)
		}
		return id, nil
	}
	uid, err := domain.ParseUserID(arg)
	if err != nil {
		return "", err
	}
	lctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	id, err := rt.client.Lookup(lctx, uid)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", uid, err)
	}
	return id, nil
}
