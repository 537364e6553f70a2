package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventScope/internal/backfill"
	"eventScope/internal/config"
	"eventScope/internal/decode"
	"eventScope/internal/etherscan"
	"eventScope/internal/registry"
	"eventScope/internal/storage"
	"eventScope/internal/storage/postgres"
)

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBackfill(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := backfill.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("api key is required")
	}

	strategy, err := decode.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := etherscan.NewClient(etherscan.Config{
		BaseURL:        cfg.BaseURL,
		ChainID:        cfg.ChainID,
		APIKey:         cfg.APIKey,
		CallsPerSecond: cfg.CallsPerSecond,
		ABICacheDir:    cfg.ABICacheDir,
	}, logger)

	protocols, err := registry.Load(cfg.RegistryPath, logger)
	if err != nil {
		return err
	}

	var sink storage.Storage
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
	} else {
		sink = storage.NewJsonlStorage(cfg.LogsOut, cfg.EventsOut)
	}

	runner := backfill.NewRunner(backfill.RunConfig{
		ChainID:           cfg.ChainID,
		IncludeTxns:       cfg.IncludeTxns,
		Addresses:         addresses,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		ChunkSize:         cfg.ChunkSize,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		Strategy:          strategy,
	}, client, sink, protocols, logger)

	logger.Info("backfill start",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.Int("addresses", len(addresses)),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("chunk_size", cfg.ChunkSize),
		zap.String("strategy", strategy.String()),
		zap.Bool("include_txns", cfg.IncludeTxns),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	if err := runner.Run(ctx); err != nil {
		return err
	}

	if failed := runner.FailedRanges(); len(failed) > 0 {
		for address, ranges := range failed {
			for _, r := range ranges {
				logger.Warn("failed range",
					zap.String("address", address),
					zap.Uint64("from", r.From),
					zap.Uint64("to", r.To),
				)
			}
		}
		return fmt.Errorf("backfill finished with %d contracts having failed ranges", len(failed))
	}

	return nil
}
