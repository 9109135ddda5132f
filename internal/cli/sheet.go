package cli

import (
	"fmt"
	"strings"

	"bookshelf/internal/library"

	"github.com/spf13/cobra"
)

func (a *App) sheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Reading sheets attached to rated books",
	}
	cmd.AddCommand(a.sheetFieldsCmd(), a.sheetSaveCmd())
	return cmd
}

func (a *App) sheetFieldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "fields <essai|roman_histoire|libre>",
		Short:     "List the prompts of a sheet template",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(library.SheetEssai), string(library.SheetRomanHistoire), string(library.SheetLibre)},
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := library.ParseSheetType(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range library.SheetTemplate(st) {
				fmt.Fprintf(out, "%-28s %s", f.ID, f.Label)
				if f.Helper != "" {
					fmt.Fprintf(out, " (%s)", f.Helper)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	return annotateSkipLoad(cmd)
}

func (a *App) sheetSaveCmd() *cobra.Command {
	var sheetType string
	var answers []string
	cmd := &cobra.Command{
		Use:   "save <book-id>",
		Short: "Save a reading sheet for a book in your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := library.ParseSheetType(sheetType)
			if err != nil {
				return err
			}
			parsed, err := parseAnswers(st, answers)
			if err != nil {
				return err
			}
			if !a.Store.IsBookInLibrary(args[0]) {
				return fmt.Errorf("%s is not in your library; rate it first", args[0])
			}

			sheet := library.ReadingSheet{Type: st, Answers: parsed}
			if e, ok := a.Store.Entry(args[0]); ok && e.ReadingSheet != nil && e.ReadingSheet.Type == st {
				// keep answers that were not given again
				for k, v := range e.ReadingSheet.Answers {
					if _, set := parsed[k]; !set {
						parsed[k] = v
					}
				}
			}
			if err := a.Store.SaveReadingSheet(args[0], sheet); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s sheet for %s.\n", st, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetType, "type", string(library.SheetLibre), "sheet template")
	cmd.Flags().StringArrayVar(&answers, "answer", nil, "field=text, repeatable")
	return cmd
}

func parseAnswers(st library.SheetType, raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		field, value, ok := strings.Cut(kv, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("answer %q must look like field=text", kv)
		}
		if !library.HasField(st, field) {
			return nil, fmt.Errorf("%s has no field %q; see `shelf sheet fields %s`", st, field, st)
		}
		out[field] = value
	}
	return out, nil
}
