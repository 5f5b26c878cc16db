// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/pitwall/access"
	"github.com/danielhkuo/pitwall/cliparse"
	"github.com/danielhkuo/pitwall/db"
	"github.com/danielhkuo/pitwall/eligibility"
	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/provisioning"
	"github.com/danielhkuo/pitwall/store"
	"github.com/danielhkuo/pitwall/tally"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
	// ExitTempFail means the operation may succeed if repeated (EX_TEMPFAIL).
	ExitTempFail = 75
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvPath    string
	Format     string // "json" | "text"
	As         string // identity of the acting principal
}

// app is everything a command needs, built once per invocation.
type app struct {
	store        *store.Store
	provisioning *provisioning.Service
	eligibility  *eligibility.Service
	gate         *access.Gate
	tally        *tally.Aggregator
	close        func()
}

// opener builds the app from resolved options.
type opener func(ctx context.Context, opts *RootOptions) (*app, error)

func newApp(st *store.Store, client ledger.Client, cfg cliparse.Config) *app {
	return &app{
		store:        st,
		provisioning: provisioning.NewService(st, client, cfg.ConfirmTimeout),
		eligibility:  eligibility.NewService(st, client, cfg.ConfirmTimeout),
		gate:         access.NewGate(st, client),
		tally:        tally.NewAggregator(client),
		close:        func() {},
	}
}

// openFromConfig connects to the configured database and ledger.
func openFromConfig(ctx context.Context, opts *RootOptions) (*app, error) {
	if err := cliparse.LoadEnvFile(opts.EnvPath); err != nil {
		return nil, err
	}
	cfg, err := cliparse.Resolve(cliparse.Config{}, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	client, closeLedger, err := ledger.Open(ctx, cfg.LedgerMode, cfg.EVM())
	if err != nil {
		conn.Close()
		return nil, err
	}

	a := newApp(store.New(conn), client, cfg)
	a.close = func() {
		closeLedger()
		conn.Close()
	}
	return a, nil
}

// Execute runs pitwallctl and releases the database and ledger whether or
// not the command succeeded.
func Execute() error {
	cmd, cleanup := NewRootCommand()
	defer cleanup()
	return cmd.Execute()
}

// NewRootCommand creates the root command for pitwallctl. The returned func
// closes whatever the command opened and must be called after Execute.
func NewRootCommand() (*cobra.Command, func()) {
	return newRootCommand(openFromConfig)
}

func newRootCommand(open opener) (*cobra.Command, func()) {
	opts := &RootOptions{}
	var a *app
	cleanup := func() {
		if a != nil {
			a.close()
			a = nil
		}
	}

	cmd := &cobra.Command{
		Use:   "pitwallctl",
		Short: "Administer pitwall elections",
		Long: `Administer pitwall elections from the command line.

Commands act as the principal named by --as and use the same database and
ledger settings as the server (flags, environment, .env and --config).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			if opts.As == "" {
				return errors.New("--as is required")
			}
			var err error
			a, err = open(cmd.Context(), opts)
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvPath, "env", ".env", "dotenv file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "identity of the acting principal")

	appFn := func() *app { return a }
	cmd.AddCommand(newCreateCommand(opts, appFn))
	cmd.AddCommand(newWhitelistCommand(opts, appFn))
	cmd.AddCommand(newSyncCommand(opts, appFn))
	cmd.AddCommand(newResultCommand(opts, appFn))
	cmd.AddCommand(newStopCommand(opts, appFn))
	cmd.AddCommand(newListCommand(opts, appFn))

	return cmd, cleanup
}

// principal resolves the --as identity.
func (a *app) principal(ctx context.Context, identity string) (models.Principal, error) {
	found, err := a.store.ResolvePrincipals(ctx, []string{identity})
	if err != nil {
		return models.Principal{}, err
	}
	p, ok := found[identity]
	if !ok {
		return models.Principal{}, fmt.Errorf("unknown principal %q", identity)
	}
	return p, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *models.Error
	if errors.As(err, &e) && e.Retryable() {
		return ExitTempFail
	}
	return ExitFailure
}
