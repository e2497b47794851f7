package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/maybehotcarl/nftbot/internal/bot"
	"github.com/maybehotcarl/nftbot/internal/server"
	"github.com/maybehotcarl/nftbot/pkg/config"
	"github.com/maybehotcarl/nftbot/pkg/ledger"
	"github.com/maybehotcarl/nftbot/pkg/nftcheck"
	"github.com/maybehotcarl/nftbot/pkg/verify"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by the subcommands.
type app struct {
	verbose bool
	logger  *zap.Logger
}

// newRootCmd builds the command tree. A non-nil logger is used as is;
// otherwise a production logger is built before each command runs.
func newRootCmd(logger *zap.Logger) *cobra.Command {
	a := &app{logger: logger}

	root := &cobra.Command{
		Use:   "nftbot",
		Short: "Telegram bot that checks Solana wallets for an NFT collection",
		Long: `nftbot checks whether a Solana wallet holds an asset from one collection,
using the Helius getAssetsByOwner API, and records the answer per wallet in
a local SQLite database.

Configuration comes from the environment: TELEGRAM_BOT_TOKEN, HELIUS_API_KEY,
COLLECTION_ID (required) and HELIUS_RPC_URL, HELIUS_TIMEOUT, DATA_DIR,
STATUS_LISTEN_ADDR, MAX_CONCURRENT_CHECKS (optional).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			cfg := zap.NewProductionConfig()
			if a.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			l, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the Telegram bot",
			Args:  cobra.NoArgs,
			RunE:  a.runBot,
		},
		&cobra.Command{
			Use:   "check [address]",
			Short: "Verify one wallet and record the result",
			Args:  cobra.ExactArgs(1),
			RunE:  a.checkWallet,
		},
		&cobra.Command{
			Use:   "wallets",
			Short: "List recorded wallets",
			Args:  cobra.NoArgs,
			RunE:  a.listWallets,
		},
	)
	return root
}

func loadConfig(validate func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (a *app) newService(cfg *config.Config, store *ledger.Store) *verify.Service {
	client := nftcheck.NewClient(nftcheck.Config{
		BaseURL: cfg.HeliusRPCURL,
		APIKey:  cfg.HeliusAPIKey,
		Timeout: cfg.HeliusTimeout,
		Logger:  a.logger,
	})
	return verify.New(client, store, cfg.CollectionID, a.logger)
}

func (a *app) runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig((*config.Config).ValidateBot)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.Open(ctx, cfg.DataDir, a.logger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	b, err := bot.New(bot.Config{
		Token:         cfg.TelegramToken,
		MaxConcurrent: cfg.MaxConcurrentChecks,
	}, a.newService(cfg, store), a.logger)
	if err != nil {
		return err
	}

	a.logger.Info("nftbot starting",
		zap.String("collection", cfg.CollectionID),
		zap.String("helius_url", cfg.HeliusRPCURL),
		zap.String("data_dir", cfg.DataDir),
		zap.Int("max_concurrent", cfg.MaxConcurrentChecks),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	if cfg.StatusListenAddr != "" {
		srv := server.New(cfg.StatusListenAddr, store, a.logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("nftbot stopped")
	return nil
}

func (a *app) checkWallet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig((*config.Config).Validate)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := ledger.Open(ctx, cfg.DataDir, a.logger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	report := a.newService(cfg, store).Verify(ctx, args[0])
	out := cmd.OutOrStdout()
	if report.Outcome == verify.OutcomeRejected {
		return fmt.Errorf("%q is not a valid Solana address (expected %d-%d characters)",
			args[0], verify.MinAddressLen, verify.MaxAddressLen)
	}

	fmt.Fprintf(out, "%s: %s\n", report.Address, report.Outcome)
	if report.QueryFailed {
		fmt.Fprintln(out, "warning: asset query failed, ownership could not be confirmed")
	}
	if !report.Persist.OK() {
		fmt.Fprintf(out, "warning: result not saved (%s)\n", report.Persist.Reason)
	}
	return nil
}

func (a *app) listWallets(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := ledger.Open(ctx, cfg.DataDir, a.logger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	wallets, err := store.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADDRESS\tHAS_NFT")
	for _, w := range wallets {
		fmt.Fprintf(tw, "%d\t%s\t%t\n", w.ID, w.Address, w.HasNFT)
	}
	return tw.Flush()
}
