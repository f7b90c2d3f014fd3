package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rangevault/internal/chain"
	"rangevault/internal/config"
	"rangevault/internal/pool"
	"rangevault/internal/storage"
	"rangevault/internal/storage/postgres"
	"rangevault/internal/strategy"
)

func main() {
	root := &cobra.Command{
		Use:          "strategy",
		Short:        "Single-position range liquidity strategy",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the report loop",
		RunE:  runStrategy,
	}
	addStrategyFlags(runCmd)
	runCmd.Flags().Duration("report-interval", time.Minute, "interval between report attempts")
	root.AddCommand(runCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run a single report cycle",
		RunE:  runSingleReport,
	}
	addStrategyFlags(reportCmd)
	root.AddCommand(reportCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current position snapshot",
		RunE:  runStatus,
	}
	addStrategyFlags(statusCmd)
	root.AddCommand(statusCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStrategyFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("pool", "", "pool contract address")
	cmd.Flags().String("minter", "", "mint-helper contract address (answers the pool's payment callback)")
	cmd.Flags().String("base-token", "", "base asset token address")
	cmd.Flags().String("private-key", "", "owner account private key (hex)")
	cmd.Flags().String("vault", "", "designated vault address for deposits")
	cmd.Flags().String("strategy-name", "rangevault", "strategy instance name")
	cmd.Flags().Int32("offset-spacings", 0, "tick spacings below the anchor for the lower bound")
	cmd.Flags().Duration("epoch-duration", 24*time.Hour, "maximum epoch length")
	cmd.Flags().String("deposit-ceiling", "max", "deposit ceiling in base asset units, or 'max'")
	cmd.Flags().String("out", "./data/reports.jsonl", "report journal JSONL path")
	cmd.Flags().String("state-file", "./data/state.json", "durable state file path")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for journal and state")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts for reads")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	signer  *pool.TxSigner
	pool    *pool.OnchainPool
	bank    *pool.ERC20Bank
	engine  *strategy.Engine
	limits  strategy.Limits
	pgStore *postgres.Store
	chainID uint64
}

func buildRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.PoolAddress) {
		return nil, fmt.Errorf("valid pool address is required")
	}
	if !common.IsHexAddress(cfg.BaseToken) {
		return nil, fmt.Errorf("valid base token address is required")
	}
	if cfg.Minter != "" && !common.IsHexAddress(cfg.Minter) {
		return nil, fmt.Errorf("minter must be a valid address")
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	signer, err := pool.NewTxSigner(cfg.PrivateKey, chainID)
	if err != nil {
		client.Close()
		return nil, err
	}

	onchainCfg := pool.OnchainConfig{MaxRetries: cfg.MaxRetries, RetryBackoff: cfg.RetryBackoff}
	poolAddr := common.HexToAddress(cfg.PoolAddress)
	minterAddr := common.HexToAddress(cfg.Minter)
	baseToken := common.HexToAddress(cfg.BaseToken)

	onchainPool, err := pool.NewOnchainPool(ctx, client, signer, poolAddr, minterAddr, onchainCfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	bank := pool.NewERC20Bank(client, signer, poolAddr, onchainCfg, logger)

	var journal storage.Storage
	var states storage.StateStore
	var pgStore *postgres.Store
	if cfg.PGDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN, cfg.StrategyName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		journal = pgStore
		states = pgStore
	} else {
		journal = storage.NewJsonlStorage(cfg.Out)
		states = &storage.FileStateStore{Path: cfg.StateFile}
	}

	engine, err := strategy.NewEngine(onchainPool, bank, strategy.Config{
		ChainID:        chainID.Uint64(),
		Owner:          signer.Address(),
		BaseToken:      baseToken,
		OffsetSpacings: cfg.OffsetSpacings,
		EpochDuration:  uint64(cfg.EpochDuration.Seconds()),
	}, journal, states, logger)
	if err != nil {
		client.Close()
		if pgStore != nil {
			pgStore.Close()
		}
		return nil, err
	}
	if err := engine.Restore(ctx); err != nil {
		client.Close()
		if pgStore != nil {
			pgStore.Close()
		}
		return nil, err
	}

	ceiling, err := config.ParseDepositCeiling(cfg.DepositCeiling, strategy.MaxUint256)
	if err != nil {
		client.Close()
		if pgStore != nil {
			pgStore.Close()
		}
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		client: client,
		signer: signer,
		pool:   onchainPool,
		bank:   bank,
		engine: engine,
		limits: strategy.Limits{
			Vault:          common.HexToAddress(cfg.Vault),
			DepositCeiling: ceiling,
		},
		pgStore: pgStore,
		chainID: chainID.Uint64(),
	}, nil
}

func (r *runtime) close() {
	if r.pgStore != nil {
		r.pgStore.Close()
	}
	if r.client != nil {
		r.client.Close()
	}
	if r.logger != nil {
		r.logger.Sync()
	}
}

// ensureMintAllowances grants the mint helper its pull allowance on both
// pool tokens so mints can settle through the payment callback. Run once
// before the first report; repeated runs are cheap allowance reads.
func ensureMintAllowances(ctx context.Context, rt *runtime) error {
	if rt.cfg.Minter == "" {
		return fmt.Errorf("minter contract address is required to open positions")
	}
	minter := common.HexToAddress(rt.cfg.Minter)
	meta := rt.pool.Meta()
	for _, token := range []string{meta.Token0, meta.Token1} {
		if err := rt.bank.EnsureAllowance(ctx, common.HexToAddress(token), minter); err != nil {
			return fmt.Errorf("ensure allowance for %s: %w", token, err)
		}
	}
	return nil
}

func runStrategy(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := ensureMintAllowances(ctx, rt); err != nil {
		return err
	}

	meta := rt.pool.Meta()
	rt.logger.Info("strategy start",
		zap.Uint64("chain_id", rt.chainID),
		zap.String("pool", meta.Address),
		zap.String("owner", rt.signer.Address().Hex()),
		zap.Int32("tick_spacing", meta.TickSpacing),
		zap.Int32("offset_spacings", rt.cfg.OffsetSpacings),
		zap.Duration("epoch_duration", rt.cfg.EpochDuration),
		zap.Duration("report_interval", rt.cfg.ReportInterval),
	)

	interval := rt.cfg.ReportInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := reportOnce(ctx, rt); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			rt.logger.Error("report cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runSingleReport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := ensureMintAllowances(ctx, rt); err != nil {
		return err
	}

	return reportOnce(ctx, rt)
}

// reportOnce runs one report cycle against chain time. A premature
// report is the expected mid-epoch outcome, not a failure; so is an
// idle balance that sizes to zero liquidity while the price sits inside
// the would-be range — funds stay idle until a later tick.
func reportOnce(ctx context.Context, rt *runtime) error {
	header, err := rt.client.LatestHeader(ctx)
	if err != nil {
		return fmt.Errorf("latest header: %w", err)
	}

	total, err := rt.engine.Report(ctx, header.Time)
	if err != nil {
		if errors.Is(err, strategy.ErrPrematureReport) {
			rt.logger.Debug("epoch not yet closable", zap.Uint64("now", header.Time))
			return nil
		}
		if errors.Is(err, strategy.ErrZeroLiquidity) {
			rt.logger.Info("idle balance not deployable at current tick", zap.Uint64("now", header.Time))
			return nil
		}
		return err
	}

	rt.logger.Info("report complete",
		zap.Uint64("now", header.Time),
		zap.String("total_assets", total.String()),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
