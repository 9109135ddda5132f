package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"bookshelf/internal/apiclient"
	"bookshelf/internal/library"

	"github.com/spf13/cobra"
)

func (a *App) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.Catalog.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(books) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tTITLE\tAUTHORS")
			for _, b := range books {
				mark := ""
				if a.Store.IsBookInLibrary(b.ID) {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, b.ID, b.Title, strings.Join(b.Authors, ", "))
			}
			return tw.Flush()
		},
	}
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book and your rating of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			entry, tracked := a.Store.Entry(args[0])
			b := entry.Book
			if !tracked {
				var err error
				b, err = a.lookup(cmd, args[0])
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "%s\n%s\n", b.Title, strings.Join(b.Authors, ", "))
			if b.PublishedDate != "" || b.Publisher != "" {
				fmt.Fprintf(out, "%s %s\n", b.Publisher, b.PublishedDate)
			}
			if b.PageCount > 0 {
				fmt.Fprintf(out, "%d pages\n", b.PageCount)
			}
			if b.ISBN != "" {
				fmt.Fprintf(out, "ISBN %s\n", b.ISBN)
			}
			if b.Description != "" {
				fmt.Fprintf(out, "\n%s\n", b.Description)
			}
			if !tracked {
				return nil
			}

			fmt.Fprintf(out, "\nRated %d/5 on %s\n", entry.UserRating, entry.ReadDate)
			if c, ok := a.Store.CabinetOf(b.ID); ok {
				fmt.Fprintf(out, "Cabinet: %s\n", c.Name)
			}
			if entry.ReadingSheet != nil {
				printSheet(out, entry.ReadingSheet)
			}
			return nil
		},
	}
}

func (a *App) lookup(cmd *cobra.Command, id string) (library.Book, error) {
	b, err := a.Catalog.GetBook(cmd.Context(), id)
	if errors.Is(err, apiclient.ErrNotFound) {
		return library.Book{}, fmt.Errorf("no book with id %q", id)
	}
	return b, err
}

func (a *App) rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <book-id> <1-5>",
		Short: "Add a book to your library with a rating",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil || !library.ValidRating(rating) {
				return fmt.Errorf("rating must be a whole number from %d to %d", library.MinRating, library.MaxRating)
			}

			b, err := a.bookFor(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.Store.AddToLibrary(b, rating); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rated %q %d/5.\n", b.Title, rating)
			return nil
		},
	}
}

// bookFor prefers the tracked copy so re-rating works offline.
func (a *App) bookFor(cmd *cobra.Command, id string) (library.Book, error) {
	if e, ok := a.Store.Entry(id); ok {
		return e.Book, nil
	}
	return a.lookup(cmd, id)
}

func (a *App) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the books in your library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			entries := a.Store.Library()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Your library is empty.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tRATING\tCABINET\tSHEET")
			for _, e := range entries {
				cabinet := "-"
				if c, ok := a.Store.CabinetOf(e.ID); ok {
					cabinet = c.Name
				}
				sheet := "-"
				if e.ReadingSheet != nil {
					sheet = string(e.ReadingSheet.Type)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Title, stars(e.UserRating), cabinet, sheet)
			}
			return tw.Flush()
		},
	}
}

func (a *App) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book from your library and its cabinet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.Store.IsBookInLibrary(args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not in your library.\n", args[0])
				return nil
			}
			if err := a.Store.RemoveFromLibrary(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
			return nil
		},
	}
}

func stars(rating int) string {
	if !library.ValidRating(rating) {
		return "-"
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", library.MaxRating-rating)
}

func printSheet(out io.Writer, sheet *library.ReadingSheet) {
	fmt.Fprintf(out, "\nReading sheet (%s), updated %s\n", sheet.Type, sheet.UpdatedAt.Format("2006-01-02"))
	for _, f := range library.SheetTemplate(sheet.Type) {
		if v := sheet.Answers[f.ID]; v != "" {
			fmt.Fprintf(out, "  %s: %s\n", f.Label, v)
		}
	}
}
