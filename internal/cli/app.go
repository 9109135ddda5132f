// Package cli is the shelf command line: account commands, catalog lookups
// and the library and cabinet mutations, all driven through a shelf.Store.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bookshelf/internal/apiclient"
	"bookshelf/internal/logging"
	"bookshelf/internal/shelf"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// skipLoad marks commands that never touch the library.
const skipLoad = "skip-load"

type App struct {
	Store    *shelf.Store
	Catalog  Catalog
	Accounts Accounts
	Sessions *Sessions
	Logger   logging.Logger

	// ReadPassword prompts for a password. Defaults to a terminal prompt.
	ReadPassword func(in io.Reader, out io.Writer) (string, error)
}

// NewRootCommand builds the command tree. Every command except the ones
// marked skipLoad first restores the saved session and loads the library.
func NewRootCommand(app *App) *cobra.Command {
	if app.ReadPassword == nil {
		app.ReadPassword = promptPassword
	}

	root := &cobra.Command{
		Use:           "shelf",
		Short:         "Track the books you read, offline first",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipLoad] == "true" {
				return nil
			}
			return app.restore(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return app.Store.Flush(cmd.Context())
		},
	}

	root.AddCommand(
		app.registerCmd(),
		app.loginCmd(),
		app.logoutCmd(),
		app.whoamiCmd(),
		app.searchCmd(),
		app.showCmd(),
		app.rateCmd(),
		app.listCmd(),
		app.removeCmd(),
		app.sheetCmd(),
		app.cabinetCmd(),
	)
	return root
}

// restore loads the saved session, hands its tokens to the API client and
// loads the library for that identity.
func (a *App) restore(ctx context.Context) error {
	creds, err := a.Sessions.Load(ctx)
	if err != nil {
		a.Logger.Warn(ctx, "saved session unusable, continuing signed out", "error", err)
		creds = nil
	}
	a.Accounts.SetCredentials(creds)
	return a.switchIdentity(ctx, identityOf(creds))
}

func (a *App) switchIdentity(ctx context.Context, id *shelf.Identity) error {
	if err := a.Store.SetIdentity(ctx, id); err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	return nil
}

// persistRefreshed is meant for apiclient.WithRefreshHook.
func (a *App) persistRefreshed(creds apiclient.Credentials) {
	ctx := context.Background()
	if err := a.Sessions.Save(ctx, creds); err != nil {
		a.Logger.Warn(ctx, "refreshed session not saved", "error", err)
	}
}

// RefreshHook returns the callback that saves rotated tokens.
func (a *App) RefreshHook() func(apiclient.Credentials) {
	return a.persistRefreshed
}

func promptPassword(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func annotateSkipLoad(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[skipLoad] = "true"
	return cmd
}
