package cli

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/totpkeeper/internal/models"
	"github.com/atinyakov/totpkeeper/internal/service"
	"github.com/atinyakov/totpkeeper/internal/totp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	getPrompt  = "Select email number (or press Enter to cancel): "
	listPrompt = "Select email number to get TOTP (or press Enter to cancel): "
)

func (a *App) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identity|search-term>",
		Short: "Print the current code for an identity or a search term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			return a.withStore(cmd.Context(), func(s *service.Store) error {
				res := s.Resolve(query)
				a.log.Log.Debug("resolved query",
					zap.String("query", query),
					zap.Stringer("status", res.Status),
					zap.Int("candidates", len(res.Candidates)))

				switch res.Status {
				case service.Found:
					return a.printCode(s, res.Record)
				case service.Ambiguous:
					return a.selectAndPrint(s, res.Candidates, getPrompt)
				default:
					return fmt.Errorf("%w: no emails found matching '%s'", service.ErrNotFound, query)
				}
			})
		},
	}
}

func (a *App) newListCommand() *cobra.Command {
	var noSelect bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored identities and optionally show a code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *service.Store) error {
				st := newStyles(a.Out)
				if len(s.ListAll()) == 0 {
					fmt.Fprintln(a.Out, st.warning.Render("No TOTP secrets stored yet."))
					return nil
				}
				records := s.Search("")
				if noSelect {
					a.prompt().ShowList(records)
					return nil
				}
				return a.selectAndPrint(s, records, listPrompt)
			})
		},
	}
	cmd.Flags().BoolVar(&noSelect, "no-select", false, "only list identities")
	return cmd
}

func (a *App) newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <identity> <secret|otpauth-uri> | add <otpauth-uri>",
		Short: "Store a new TOTP secret",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, secret, err := addArgs(args)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s *service.Store) error {
				if err := s.Add(cmd.Context(), identity, secret); err != nil {
					return err
				}
				a.success("Successfully added TOTP secret for " + identity)
				return nil
			})
		},
	}
}

// addArgs takes the identity from the URI account name when only a URI is
// given.
func addArgs(args []string) (identity, secret string, err error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	secret = args[0]
	if !strings.HasPrefix(strings.ToLower(secret), "otpauth://") {
		return "", "", errors.New("add needs <identity> <secret>, or a single otpauth:// URI")
	}
	p, err := totp.ParseSecret(secret)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", service.ErrInvalidSecret, err)
	}
	if p.AccountName == "" {
		return "", "", fmt.Errorf("%w: the URI has no account name", service.ErrInvalidIdentity)
	}
	return p.AccountName, secret, nil
}

func (a *App) newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <identity> <secret|otpauth-uri>",
		Short: "Replace the secret stored for an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, secret := args[0], args[1]
			return a.withStore(cmd.Context(), func(s *service.Store) error {
				if err := s.Update(cmd.Context(), identity, secret); err != nil {
					return err
				}
				a.success("Successfully updated TOTP secret for " + identity)
				return nil
			})
		},
	}
}

func (a *App) newDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <identity>",
		Short: "Remove the secret stored for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := args[0]
			return a.withStore(cmd.Context(), func(s *service.Store) error {
				rec, err := s.GetExact(identity)
				if err != nil {
					return err
				}
				if !yes && !a.prompt().Confirm(fmt.Sprintf("Are you sure you want to delete %s?", rec.Identity)) {
					fmt.Fprintln(a.Out, "Deletion cancelled.")
					return nil
				}
				if err := s.Delete(cmd.Context(), rec.Identity); err != nil {
					return err
				}
				a.success("Successfully deleted TOTP secret for " + rec.Identity)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build version and date",
		Args:  cobra.NoArgs,
		// version needs no store or config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.Out, "TOTP Keeper\nVersion: %s\nBuild Date: %s\n",
				cmp.Or(a.Version, "N/A"), cmp.Or(a.BuildDate, "N/A"))
		},
	}
}

// selectAndPrint asks the operator to pick one of records and prints its
// code. The choice is looked up again by its exact identity.
func (a *App) selectAndPrint(s *service.Store, records []models.SecretRecord, question string) error {
	chosen, ok, err := a.prompt().Select(records, question)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.Out, "Cancelled.")
		return nil
	}
	rec, err := s.GetExact(chosen.Identity)
	if err != nil {
		return err
	}
	return a.printCode(s, rec)
}

func (a *App) printCode(s *service.Store, rec models.SecretRecord) error {
	now := a.Now()
	code, err := s.Code(rec, now)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", service.ErrInvalidSecret, rec.Identity, err)
	}
	left := totp.Remaining(now, s.Params())

	st := newStyles(a.Out)
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, st.title.Render("TOTP code for "+rec.Identity+":"))
	fmt.Fprintf(a.Out, "  %s  %s\n",
		st.code.Render(code),
		st.muted.Render(fmt.Sprintf("(valid for %ds)", int(left.Seconds()))))
	return nil
}

func (a *App) success(msg string) {
	st := newStyles(a.Out)
	fmt.Fprintln(a.Out, st.success.Render("✓ "+msg))
}
