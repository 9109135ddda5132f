package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *App) cabinetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cabinet",
		Short: "Group library books into cabinets",
	}
	cmd.AddCommand(a.cabinetCreateCmd(), a.cabinetListCmd(), a.cabinetMoveCmd())
	return cmd
}

func (a *App) cabinetCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty cabinet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok, err := a.Store.CreateCabinet(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("cabinet name must not be blank")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created cabinet %q (%s).\n", c.Name, c.ID)
			return nil
		},
	}
}

func (a *App) cabinetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cabinets and how many books they hold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cabinets := a.Store.Cabinets()
			if len(cabinets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cabinets yet.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBOOKS")
			for _, c := range cabinets {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", c.ID, c.Name, len(c.BookIDs))
			}
			return tw.Flush()
		},
	}
}

func (a *App) cabinetMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <book-id> [cabinet-id]",
		Short: "Move a book into a cabinet, or out of all cabinets",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID := args[0]
			if !a.Store.IsBookInLibrary(bookID) {
				return fmt.Errorf("%s is not in your library", bookID)
			}

			var target *string
			if len(args) == 2 {
				target = &args[1]
				if !a.cabinetExists(args[1]) {
					return fmt.Errorf("no cabinet with id %q", args[1])
				}
			}
			if err := a.Store.MoveBookToCabinet(bookID, target); err != nil {
				return err
			}
			if target == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer in a cabinet.\n", bookID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s.\n", bookID, *target)
			return nil
		},
	}
}

func (a *App) cabinetExists(id string) bool {
	for _, c := range a.Store.Cabinets() {
		if c.ID == id {
			return true
		}
	}
	return false
}
