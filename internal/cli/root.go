// Package cli implements the callclient commands.
package cli

import (
	"fmt"
	"os"

	"github.com/GKAANU/Sonox-panel/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// flags override the matching client.* config keys when set.
type flags struct {
	relayURL string
	userID   string
	token    string
	media    string
	logLevel string
}

type env struct {
	flags flags
	cfg   *config.Config
}

func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:          "callclient",
		Short:        "Headless Sonox call client",
		Long:         `Places and answers one-to-one calls through a Sonox relay. Commands: dial, listen, whois, history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.flags.relayURL, "relay", "", "relay signaling URL (ws://host/api/ws/signal)")
	pf.StringVar(&e.flags.userID, "uid", "", "stable user id to register as")
	pf.StringVar(&e.flags.token, "token", "", "bearer token for relays that require auth")
	pf.StringVar(&e.flags.media, "media", "devices", "local media source: devices or silent")
	pf.StringVar(&e.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newDialCmd(e))
	root.AddCommand(newListenCmd(e))
	root.AddCommand(newWhoisCmd(e))
	root.AddCommand(newHistoryCmd(e))
	return root
}

func (e *env) load() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	f := e.flags
	if f.relayURL != "" {
		cfg.Client.RelayURL = f.relayURL
	}
	if f.userID != "" {
		cfg.Client.UserID = f.userID
	}
	if f.token != "" {
		cfg.Client.Token = f.token
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	e.cfg = cfg
	return nil
}
