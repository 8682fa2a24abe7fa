package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/config"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/internal/infrastructure/backend"
	"github.com/sangkips/popup-pos/internal/infrastructure/database"
	"github.com/sangkips/popup-pos/internal/infrastructure/repository"
	"github.com/sangkips/popup-pos/internal/infrastructure/repository/memory"
	"github.com/sangkips/popup-pos/pkg/logging"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "posctl",
	Short: "posctl - operator tools for the PopUp POS register",
	Long: `posctl looks products up, submits purchases and reads the transaction
journal using the same configuration (.env and environment) as the API server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("backend", "", "Backend base URL (overrides BACKEND_URL)")
	rootCmd.PersistentFlags().String("terminal", "posctl", "Terminal id recorded in the journal")
}

// env is what every subcommand needs, built from config and flags
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	terminal string
	gateway  domainRepo.InventoryGateway
	journal  domainRepo.TransactionRepository
}

func newEnv(cmd *cobra.Command, needDB bool) (*env, error) {
	cfg := config.Load()
	if u, _ := cmd.Flags().GetString("backend"); u != "" {
		cfg.Backend.URL = u
	}
	terminal, _ := cmd.Flags().GetString("terminal")
	logger := logging.Setup(cfg.App.Env, cfg.App.LogLevel)

	e := &env{
		cfg:      cfg,
		logger:   logger,
		terminal: terminal,
		gateway:  backend.NewInventoryClient(&cfg.Backend),
	}

	switch {
	case cfg.Database.Enabled():
		db, err := database.NewPostgresDB(&cfg.Database, false)
		if err != nil {
			return nil, err
		}
		e.journal = repository.NewTransactionRepository(db)
	case needDB:
		return nil, fmt.Errorf("this command needs the journal database (set DB_DRIVER=postgres)")
	default:
		e.journal = memory.NewTransactionRepository()
	}
	return e, nil
}

func (e *env) products() *service.ProductService {
	return service.NewProductService(e.gateway, e.logger)
}

func (e *env) transactions() *service.TransactionService {
	return service.NewTransactionService(e.gateway, e.journal, e.logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
