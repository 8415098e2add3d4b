package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/apfuzz/internal/placeholder"
	"github.com/roach88/apfuzz/internal/store"
)

// AccountResult describes a local account.
type AccountResult struct {
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	ActorURL  string `json:"actorUrl"`
	PublicKey string `json:"publicKey"`
	Operator  bool   `json:"operator"`
}

func (r AccountResult) String() string {
	return fmt.Sprintf("%s %s", r.Handle, r.ActorURL)
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage local accounts",
	}

	cmd.AddCommand(newAccountCreateCommand(rootOpts))
	cmd.AddCommand(newAccountShowCommand(rootOpts))

	return cmd
}

func newAccountCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create an account with a fresh RSA keypair",
		Long: `Create a local account and its keypair. Without a name the operating
account from the config is created with its configured display name,
description and avatar. An existing account is left unchanged.

Example:
  apfuzz account create
  apfuzz account create alice`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(rootOpts, args, cmd, true)
		},
	}
}

func newAccountShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Print a local account's actor document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(rootOpts, args, cmd, false)
		},
	}
}

func runAccount(opts *RootOptions, args []string, cmd *cobra.Command, create bool) error {
	formatter := opts.formatter(cmd)

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd, a.logger)
	defer cancel()

	name := a.cfg.Account
	if len(args) == 1 {
		name = args[0]
	}
	operator := name == a.cfg.Account

	var acct store.Account
	switch {
	case !create:
		acct, err = a.store.GetAccount(ctx, name)
	case operator:
		acct, err = a.accounts.EnsureOperator(ctx, name, a.cfg.ActorInfo())
	default:
		acct, err = a.accounts.GetOrCreate(ctx, name)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, fmt.Sprintf("account %q", name), err)
	}

	if !create && formatter.Format != "json" {
		doc, err := placeholder.Parse([]byte(acct.Actor))
		if err != nil {
			return formatter.Fail(ExitFailure, "stored actor document", err)
		}
		pretty, err := placeholder.MarshalPretty(doc)
		if err != nil {
			return formatter.Fail(ExitFailure, "stored actor document", err)
		}
		fmt.Fprintln(formatter.Writer, string(pretty))
		return nil
	}

	return formatter.Success(AccountResult{
		Name:      acct.Name,
		Handle:    a.site.Handle(acct.Name),
		ActorURL:  a.site.AccountURL(acct.Name),
		PublicKey: acct.PublicKey,
		Operator:  operator,
	})
}
