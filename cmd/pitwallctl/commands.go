// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/provisioning"
	"github.com/danielhkuo/pitwall/tally"
)

// owned loads an election the acting principal administers.
func (a *app) owned(ctx context.Context, p models.Principal, electionID string) (models.Election, error) {
	e, err := a.gate.Election(ctx, p, electionID)
	if err != nil {
		return models.Election{}, err
	}
	if e.AdminID != p.ID {
		return models.Election{}, models.NewError(models.KindForbidden, "not the administrator of election %s", electionID)
	}
	return e, nil
}

// admin resolves --as and requires the admin flag.
func (a *app) admin(ctx context.Context, identity string) (models.Principal, error) {
	p, err := a.principal(ctx, identity)
	if err != nil {
		return models.Principal{}, err
	}
	if !p.IsAdmin {
		return models.Principal{}, models.NewError(models.KindForbidden, "%s is not an administrator", identity)
	}
	return p, nil
}

func newCreateCommand(opts *RootOptions, getApp func() *app) *cobra.Command {
	var (
		title, description string
		candidates         []string
		start, end         string
		duration           time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Deploy a new election and record it",
		Example: `  pitwallctl create --as race-control --title "Monaco GP" \
    --candidate Verstappen --candidate Leclerc --duration 2h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()

			p, err := a.admin(ctx, opts.As)
			if err != nil {
				return err
			}

			startTime := time.Now()
			if start != "" {
				if startTime, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			}
			var endTime time.Time
			switch {
			case end != "" && duration != 0:
				return errors.New("--end and --duration are mutually exclusive")
			case end != "":
				if endTime, err = time.Parse(time.RFC3339, end); err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
			case duration != 0:
				endTime = startTime.Add(duration)
			default:
				return errors.New("one of --end or --duration is required")
			}

			created, err := a.provisioning.CreateElection(ctx, p, provisioning.ElectionSpec{
				Title:       title,
				Description: description,
				Candidates:  candidates,
				StartTime:   startTime,
				EndTime:     endTime,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, created)
			}
			e := created.Election
			fmt.Fprintf(out, "Created election %s\n", e.ID)
			fmt.Fprintf(out, "  contract: %s\n", e.ContractAddress)
			fmt.Fprintf(out, "  window:   %s to %s\n", e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
			for _, c := range created.Candidates {
				fmt.Fprintf(out, "  [%d] %s\n", c.Position, c.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "election title")
	cmd.Flags().StringVar(&description, "description", "", "election description")
	cmd.Flags().StringArrayVar(&candidates, "candidate", nil, "candidate name, in ballot order (repeatable)")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC3339, default now)")
	cmd.Flags().StringVar(&end, "end", "", "end time (RFC3339)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "election length from start")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newWhitelistCommand(opts *RootOptions, getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whitelist <election-id> <identity>...",
		Short: "Record voter identities as eligible",
		Long: `Record voter identities as eligible for an election.

This only writes to the database. Run "pitwallctl sync" afterwards to
authorize the wallets on the ledger.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()

			p, err := a.admin(ctx, opts.As)
			if err != nil {
				return err
			}
			if _, err := a.owned(ctx, p, args[0]); err != nil {
				return err
			}

			outcome, err := a.eligibility.RecordEligibility(ctx, args[0], args[1:])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, models.WhitelistResponse{
					ResolvedCount: outcome.ResolvedCount,
					AddedCount:    outcome.AddedCount,
					Unresolved:    outcome.Unresolved,
				})
			}
			fmt.Fprintf(out, "Added %d of %d voters (%d already whitelisted)\n",
				outcome.AddedCount, outcome.ResolvedCount, outcome.ResolvedCount-outcome.AddedCount)
			if len(outcome.Unresolved) > 0 {
				fmt.Fprintf(out, "Unresolved: %s\n", strings.Join(outcome.Unresolved, ", "))
			}
			return nil
		},
	}
}

func newSyncCommand(opts *RootOptions, getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <election-id>",
		Short: "Authorize whitelisted wallets on the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()

			p, err := a.admin(ctx, opts.As)
			if err != nil {
				return err
			}
			if _, err := a.owned(ctx, p, args[0]); err != nil {
				return err
			}

			res, err := a.eligibility.SyncToLedger(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, models.AuthorizeResponse{
					ContractAddress: res.ContractAddress,
					AuthorizedCount: len(res.Wallets),
					TxHash:          res.Receipt.TxHash,
				})
			}
			fmt.Fprintf(out, "Authorized %s on %s (tx %s)\n",
				pluralize(len(res.Wallets), "wallet"), res.ContractAddress, res.Receipt.TxHash)
			return nil
		},
	}
}

func newStopCommand(opts *RootOptions, getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <election-id>",
		Short: "Close voting on the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()

			p, err := a.admin(ctx, opts.As)
			if err != nil {
				return err
			}

			receipt, err := a.provisioning.StopElection(ctx, p, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, models.StopElectionResponse{
					ContractAddress: receipt.ContractAddress,
					TxHash:          receipt.TxHash,
				})
			}
			fmt.Fprintf(out, "Stopped election %s (tx %s)\n", args[0], receipt.TxHash)
			return nil
		},
	}
}

func newResultCommand(opts *RootOptions, getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "result <election-id>",
		Short: "Show the tally and winner of an election",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()

			p, err := a.principal(ctx, opts.As)
			if err != nil {
				return err
			}
			e, err := a.gate.Election(ctx, p, args[0])
			if err != nil {
				return err
			}
			res, err := a.tally.ComputeElectionResult(ctx, e)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, res)
			}

			r := res.Result
			fmt.Fprintf(out, "%s (%s, ends %s)\n", e.Title, r.Phase, humanize.Time(e.EndTime))
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tCANDIDATE\tVOTES\tSHARE")
			for _, c := range r.Candidates {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s%%\n", c.Index, c.Name, humanize.BigComma(c.Votes), tally.FormatPercentage(c.Share, 1))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Total: %s\n", humanize.BigComma(r.TotalVotes))
			if r.Winner != nil {
				fmt.Fprintf(out, "Winner: %s\n", r.Winner.Name)
			} else {
				fmt.Fprintln(out, "Winner: none")
			}
			return nil
		},
	}
}

func newListCommand(opts *RootOptions, getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List elections visible to the acting principal",
		Long: `List elections visible to the acting principal.

Administrators see the elections they created; voters see the elections
they are whitelisted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()

			p, err := a.principal(ctx, opts.As)
			if err != nil {
				return err
			}

			var elections []models.Election
			if p.IsAdmin {
				elections, err = a.gate.ListAdminElections(ctx, p)
			} else {
				elections, err = a.gate.ListVisibleElections(ctx, p)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, elections)
			}
			if len(elections) == 0 {
				fmt.Fprintln(out, "No elections")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCREATED\tCONTRACT")
			for _, e := range elections {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Title, humanize.Time(e.CreatedAt), e.ContractAddress)
			}
			return tw.Flush()
		},
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}
