package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/infrastructure/repository/memory"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit [barcode]...",
	Short: "Submit a purchase to the backend",
	Long: `Submit rings the given barcodes up on an in-process register exactly as
the purchase page would (lookup, add, purchase) and prints the backend's
confirmed totals. Repeat a barcode to buy it more than once.

With --file, a ready-made transaction request (JSON) is sent unchanged.`,
	Example: `  posctl submit 4901777300446 4901777300446
  posctl submit --file txn.json --key txn-1234`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringP("file", "f", "", "Transaction request JSON file")
	submitCmd.Flags().String("key", "", "Idempotency key sent with --file")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	if file == "" && len(args) == 0 {
		return fmt.Errorf("give at least one barcode or --file")
	}

	e, err := newEnv(cmd, false)
	if err != nil {
		return err
	}

	if file != "" {
		key, _ := cmd.Flags().GetString("key")
		return submitFile(cmd, e, file, key)
	}
	return submitBarcodes(cmd, e, args)
}

func submitFile(cmd *cobra.Command, e *env, path, key string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var req entity.TransactionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	result, err := e.transactions().SubmitTransaction(cmd.Context(), e.terminal, key, &req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func submitBarcodes(cmd *cobra.Command, e *env, codes []string) error {
	ctx := cmd.Context()

	// Scanning and printing stay with the page and the API server.
	scanCfg := e.cfg.Scanner
	scanCfg.SessionTTL = 0
	scanners, err := service.NewScannerService(&scanCfg, e.logger)
	if err != nil {
		return err
	}
	defer scanners.Shutdown()

	pos := e.cfg.POS
	pos.SessionTTL = 0
	registers := service.NewRegisterService(
		memory.NewRegisterSessionRepository(), e.products(), e.transactions(), scanners, nil, pos, e.logger)
	defer registers.Shutdown()

	reg, err := registers.Create(ctx, e.terminal)
	if err != nil {
		return err
	}

	for _, code := range codes {
		snap, err := registers.Lookup(ctx, reg.ID, code)
		if err != nil {
			return err
		}
		if snap.Notice != nil {
			return fmt.Errorf("%s: %s", code, snap.Notice.Message)
		}
		if _, err := registers.AddItem(ctx, reg.ID, nil); err != nil {
			return fmt.Errorf("%s: %w", code, err)
		}
	}

	snap, err := registers.Purchase(ctx, reg.ID)
	if err != nil {
		return err
	}
	if snap.LastResult == nil {
		if snap.Notice != nil {
			return fmt.Errorf("%s", snap.Notice.Message)
		}
		return fmt.Errorf("purchase was not confirmed")
	}
	return printJSON(cmd.OutOrStdout(), snap.LastResult)
}
