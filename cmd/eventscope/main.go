package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "eventscope",
		Short:        "EVM event log decoder and backfiller",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill raw and decoded logs for contracts",
		RunE:  runBackfill,
	}

	backfillCmd.Flags().Uint64("chain-id", 1, "chain id (Etherscan v2 chainid parameter)")
	backfillCmd.Flags().String("api-key", "", "Etherscan API key")
	backfillCmd.Flags().String("base-url", "", "explorer API base URL, empty means Etherscan v2")
	backfillCmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	backfillCmd.Flags().Uint64("from", 0, "start block (inclusive), 0 means contract creation")
	backfillCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	backfillCmd.Flags().Uint64("chunk-size", 10000, "blocks per chunk")
	backfillCmd.Flags().Float64("calls-per-second", 5, "API rate limit")
	backfillCmd.Flags().Int("max-retries", 5, "maximum retry attempts per chunk")
	backfillCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	backfillCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	backfillCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	backfillCmd.Flags().String("strategy", "basic", "decode strategy (basic, tuple_aware)")
	backfillCmd.Flags().Bool("include-txns", false, "fetch transactions to attach txn from/to to decoded events")
	backfillCmd.Flags().String("logs-out", "./data/raw_logs.jsonl", "raw logs JSONL path")
	backfillCmd.Flags().String("events-out", "./data/decoded_events.jsonl", "decoded events JSONL path")
	backfillCmd.Flags().String("pg-dsn", "", "Postgres DSN, empty means JSONL output")
	backfillCmd.Flags().String("abi-cache-dir", "./data/abis", "directory for cached contract ABIs")
	backfillCmd.Flags().String("registry", "", "protocol registry JSON path")
	backfillCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(backfillCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs offline against an ABI file",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("abi", "", "contract ABI JSON file")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/decoded_events.jsonl", "output decoded events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("strategy", "basic", "decode strategy (basic, tuple_aware)")
	decodeCmd.Flags().String("registry", "", "protocol registry JSON path")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	abiCmd := &cobra.Command{
		Use:   "abi",
		Short: "Fetch and cache the verified ABI for a contract",
		RunE:  runABI,
	}

	abiCmd.Flags().Uint64("chain-id", 1, "chain id (Etherscan v2 chainid parameter)")
	abiCmd.Flags().String("api-key", "", "Etherscan API key")
	abiCmd.Flags().String("base-url", "", "explorer API base URL, empty means Etherscan v2")
	abiCmd.Flags().String("address", "", "contract address")
	abiCmd.Flags().String("abi-cache-dir", "./data/abis", "directory for cached contract ABIs")
	abiCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(abiCmd)

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load JSONL logs and events into Postgres",
		RunE:  runLoad,
	}

	loadCmd.Flags().String("logs-in", "", "raw logs JSONL to load")
	loadCmd.Flags().String("events-in", "", "decoded events JSONL to load")
	loadCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	loadCmd.Flags().Int("batch-size", 1000, "rows per insert batch")
	loadCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(loadCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
