package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/sangkips/popup-pos/pkg/pagination"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled transactions, newest first",
	Example: `  posctl history
  posctl history --page 2 --per-page 50 --only pos-90`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("page", 1, "Page number")
	historyCmd.Flags().Int("per-page", 15, "Rows per page (max 100)")
	historyCmd.Flags().String("only", "", "Show one terminal only")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, true)
	if err != nil {
		return err
	}

	page, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")
	only, _ := cmd.Flags().GetString("only")
	asJSON, _ := cmd.Flags().GetBool("json")

	params := &pagination.PaginationParams{Page: page, PerPage: perPage}
	params.Validate()

	result, err := e.transactions().ListTransactions(cmd.Context(), only, params)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), result)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tTERMINAL\tSTATUS\tTOTAL\tCONFIRMED\tKEY")
	for _, r := range result.Items {
		confirmed := "-"
		if r.ConfirmedTotal != nil {
			confirmed = fmt.Sprint(*r.ConfirmedTotal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.TerminalID, r.Status, r.TotalAmount, confirmed, r.IdempotencyKey)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	p := result.Pagination
	fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d total\n", p.CurrentPage, p.TotalPages, p.Total)
	return nil
}
