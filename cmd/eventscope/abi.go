package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventScope/internal/decode"
	"eventScope/internal/etherscan"
)

func runABI(cmd *cobra.Command, _ []string) error {
	chainID, _ := cmd.Flags().GetUint64("chain-id")
	apiKey, _ := cmd.Flags().GetString("api-key")
	baseURL, _ := cmd.Flags().GetString("base-url")
	address, _ := cmd.Flags().GetString("address")
	cacheDir, _ := cmd.Flags().GetString("abi-cache-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if address == "" {
		return fmt.Errorf("address is required")
	}
	if apiKey == "" {
		return fmt.Errorf("api key is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := etherscan.NewClient(etherscan.Config{
		BaseURL:        baseURL,
		ChainID:        chainID,
		APIKey:         apiKey,
		ABICacheDir:    cacheDir,
		CallsPerSecond: 5,
	}, logger)

	entries, err := client.ContractABI(ctx, address)
	if err != nil {
		return err
	}

	index, err := decode.BuildEventIndex(entries)
	if err != nil {
		return err
	}

	logger.Info("abi fetched",
		zap.String("address", address),
		zap.Int("entries", len(entries)),
		zap.Int("events", len(index)),
		zap.String("cache_dir", cacheDir),
	)

	for _, def := range sortedDefinitions(index) {
		fmt.Printf("%s  %s\n", def.Topic0, def.Signature)
	}

	return nil
}

// sortedDefinitions orders an event index by signature so the listing
// is stable across runs.
func sortedDefinitions(index map[string]decode.EventDefinition) []decode.EventDefinition {
	defs := make([]decode.EventDefinition, 0, len(index))
	for _, def := range index {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Signature < defs[j].Signature
	})
	return defs
}
