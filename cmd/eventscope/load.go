package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventScope/internal/config"
	"eventScope/internal/model"
	"eventScope/internal/storage/postgres"
)

func runLoad(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLoad(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.LogsIn == "" && cfg.EventsIn == "" {
		return fmt.Errorf("at least one of logs-in and events-in is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if cfg.LogsIn != "" {
		count, err := loadJSONL(ctx, cfg.LogsIn, cfg.BatchSize, func(ctx context.Context, lines [][]byte) error {
			batch := make([]model.LogRecord, 0, len(lines))
			for _, line := range lines {
				var record model.LogRecord
				if err := json.Unmarshal(line, &record); err != nil {
					return fmt.Errorf("parse log record: %w", err)
				}
				batch = append(batch, record)
			}
			return store.PutLogBatch(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("load logs: %w", err)
		}
		logger.Info("logs loaded", zap.String("in", cfg.LogsIn), zap.Int("rows", count))
	}

	if cfg.EventsIn != "" {
		count, err := loadJSONL(ctx, cfg.EventsIn, cfg.BatchSize, func(ctx context.Context, lines [][]byte) error {
			batch := make([]model.DecodedEventRecord, 0, len(lines))
			for _, line := range lines {
				var record model.DecodedEventRecord
				if err := json.Unmarshal(line, &record); err != nil {
					return fmt.Errorf("parse event record: %w", err)
				}
				batch = append(batch, record)
			}
			return store.PutEventBatch(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		logger.Info("events loaded", zap.String("in", cfg.EventsIn), zap.Int("rows", count))
	}

	return nil
}

// loadJSONL streams a JSONL file in batches through flush. Lines are
// copied because the scanner reuses its buffer.
func loadJSONL(ctx context.Context, path string, batchSize int, flush func(context.Context, [][]byte) error) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	total := 0
	batch := make([][]byte, 0, batchSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		batch = append(batch, append([]byte(nil), line...))
		if len(batch) >= batchSize {
			if err := flush(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("scan input: %w", err)
	}

	if len(batch) > 0 {
		if err := flush(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}

	return total, nil
}
