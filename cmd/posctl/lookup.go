package main

import (
	"fmt"

	"github.com/sangkips/popup-pos/pkg/apperror"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <barcode>...",
	Short: "Look products up by barcode",
	Example: `  posctl lookup 4901777300446
  posctl lookup 4901777300446 4902102072618 --backend http://localhost:8000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, false)
	if err != nil {
		return err
	}
	products := e.products()

	var failed int
	for _, code := range args {
		p, err := products.LookupProduct(cmd.Context(), code)
		switch {
		case err == nil:
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t(productId %d)\n", p.Code, p.Name, p.Price, p.ProductID)
		case apperror.IsNotFound(err):
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tnot found\n", code)
		default:
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d codes not found", failed, len(args))
	}
	return nil
}
