package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RetroHazard/ibkr-mf-sync/internal/config"
	"github.com/RetroHazard/ibkr-mf-sync/internal/flexquery"
	"github.com/RetroHazard/ibkr-mf-sync/internal/fxrate"
	"github.com/RetroHazard/ibkr-mf-sync/internal/moneyforward"
	"github.com/RetroHazard/ibkr-mf-sync/internal/sync"
	"github.com/RetroHazard/ibkr-mf-sync/pkg/logger"
)

// Set by ldflags at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	envFile    string
	cashOnly   bool
	posOnly    bool
	dryRun     bool
	headful    bool
	settleWait time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "ibkr-mf-sync",
		Short:         "One-way sync of IBKR balances and positions into MoneyForward ME manual assets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with credentials and settings")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch broker state and reconcile the MoneyForward ledger against it",
		RunE:  runSync,
	}
	syncCmd.Flags().BoolVar(&cashOnly, "cash-only", false, "sync cash balances only")
	syncCmd.Flags().BoolVar(&posOnly, "positions-only", false, "sync open positions only")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify and log planned actions without mutating the ledger")
	syncCmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	syncCmd.Flags().DurationVar(&settleWait, "settle-wait", 3*time.Second, "wait after each mutating page action")

	deleteCashCmd := &cobra.Command{
		Use:   "delete-cash",
		Short: "Delete every row in the cash deposit table",
		Long:  "Deletes every manual cash deposit row. Reconciliation never deletes; this exists for starting over.",
		RunE:  runDeleteCash,
	}
	deleteCashCmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	deleteCashCmd.Flags().DurationVar(&settleWait, "settle-wait", 3*time.Second, "wait after each mutating page action")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ibkr-mf-sync %s (built %s)\n", Version, BuildTime)
		},
	}

	root.AddCommand(syncCmd, deleteCashCmd, versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(envFile, cmd.Flags().Changed("env-file"))
}

func runSync(cmd *cobra.Command, args []string) error {
	if cashOnly && posOnly {
		return fmt.Errorf("--cash-only and --positions-only are mutually exclusive")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := moneyforward.NewSession(ctx, moneyforward.SessionConfig{
		Headful:    headful,
		SettleWait: settleWait,
	}, log)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Login(cfg.InstitutionURL, cfg.MoneyForwardEmail, cfg.MoneyForwardPassword); err != nil {
		return err
	}

	orch := sync.New(
		flexquery.New(cfg.FlexToken, cfg.FlexQueryID, log),
		fxrate.New(log),
		session,
		sync.Options{CashOnly: cashOnly, PositionsOnly: posOnly, DryRun: dryRun},
		log,
	)
	sum, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Int("cash_modified", sum.Cash.Modified).Int("cash_zeroed", sum.Cash.Zeroed).Int("cash_added", sum.Cash.Added).
		Int("equity_modified", sum.Equity.Modified).Int("equity_zeroed", sum.Equity.Zeroed).Int("equity_added", sum.Equity.Added).
		Msg("sync complete")
	return nil
}

func runDeleteCash(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := moneyforward.NewSession(ctx, moneyforward.SessionConfig{
		Headful:    headful,
		SettleWait: settleWait,
	}, log)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Login(cfg.InstitutionURL, cfg.MoneyForwardEmail, cfg.MoneyForwardPassword); err != nil {
		return err
	}
	return session.DeleteAllCashDeposits()
}
