package cli

import (
	"errors"
	"fmt"

	"bookshelf/internal/apiclient"

	"github.com/spf13/cobra"
)

func (a *App) registerCmd() *cobra.Command {
	var email, username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := a.ReadPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			u, err := a.Accounts.Register(cmd.Context(), email, username, password)
			if err != nil {
				if errors.Is(err, apiclient.ErrConflict) {
					return fmt.Errorf("an account already uses %s", email)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Run `shelf login --email %s` to sign in.\n", u.Username, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return annotateSkipLoad(cmd)
}

func (a *App) loginCmd() *cobra.Command {
	var email string
	var remember bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge your local library with your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			password, err := a.ReadPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			creds, err := a.Accounts.Login(ctx, email, password, remember)
			if err != nil {
				if errors.Is(err, apiclient.ErrUnauthorized) {
					return errors.New("invalid email or password")
				}
				return err
			}
			if err := a.Sessions.Save(ctx, creds); err != nil {
				return err
			}
			if err := a.switchIdentity(ctx, identityOf(&creds)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s. %d books in your library.\n", creds.DisplayName, len(a.Store.Library()))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&remember, "remember", false, "keep the session for 90 days")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; the library stays on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.Store.Identity() == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			// flush pending remote writes while the tokens are still valid
			if err := a.Store.Flush(ctx); err != nil {
				return err
			}
			if err := a.Accounts.Logout(ctx); err != nil {
				a.Logger.Warn(ctx, "server logout failed, clearing local session anyway", "error", err)
			}
			if err := a.Sessions.Clear(ctx); err != nil {
				return err
			}
			if err := a.switchIdentity(ctx, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func (a *App) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			id := a.Store.Identity()
			if id == nil {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}
			u, err := a.Accounts.Me(cmd.Context())
			switch {
			case err == nil:
				fmt.Fprintf(out, "%s <%s>\n", u.Username, u.Email)
			case errors.Is(err, apiclient.ErrUnavailable):
				fmt.Fprintf(out, "%s (offline)\n", id.DisplayName)
			default:
				return err
			}
			return nil
		},
	}
}
