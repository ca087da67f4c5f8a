package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xela07ax/reqview/internal/infra"
	"github.com/xela07ax/reqview/internal/report"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose bool
	envFile string
	source  string

	cfg    *infra.Config
	logger *zap.Logger
)

// rootCmd: без подкоманды выполняет выборку заявок
var rootCmd = &cobra.Command{
	Use:   "reqview",
	Short: "Print staff requests with their approver and state log from Supabase",
	Long: `reqview reads SUPABASE_URL and SUPABASE_KEY (environment or .env file),
queries the Request table with the approving Employee embedded through
Request_Approver_ID_fkey and every related RequestLog row, and prints
each record as one JSON line on stdout.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = infra.LoadConfig(infra.WithEnvFile(envFile))
		if err != nil {
			return err
		}
		if source != "" {
			cfg.Source = source
		}
		if verbose {
			cfg.Logger.Level = "debug"
		}
		logger, err = infra.NewLogger(cfg.Logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd.Context(), cfg, logger, cmd.OutOrStdout())
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch requests once and print them (default command)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd.Context(), cfg, logger, cmd.OutOrStdout())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve GET /v1/requests and /metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with SUPABASE_URL / SUPABASE_KEY")
	rootCmd.PersistentFlags().StringVar(&source, "source", "", "data source: rest or postgres (overrides REQVIEW_SOURCE)")

	rootCmd.AddCommand(fetchCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Строка об ошибке выборки уже напечатана в stdout
		if !errors.Is(err, report.ErrFetchFailed) {
			if logger != nil {
				logger.Error("reqview failed", zap.Error(err))
				_ = logger.Sync()
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
		stop()
		os.Exit(1)
	}
}
