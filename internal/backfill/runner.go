package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"eventScope/internal/decode"
	"eventScope/internal/etherscan"
	"eventScope/internal/model"
	"eventScope/internal/registry"
	"eventScope/internal/storage"
)

// ExplorerClient is the block explorer surface the runner depends on.
type ExplorerClient interface {
	LatestBlock(ctx context.Context, ts time.Time) (uint64, error)
	ContractCreationBlock(ctx context.Context, address string) (uint64, error)
	ContractABI(ctx context.Context, address string) ([]decode.Entry, error)
	Logs(ctx context.Context, address string, fromBlock, toBlock uint64) ([]model.LogRecord, error)
	Transactions(ctx context.Context, address string, fromBlock, toBlock uint64) ([]etherscan.Transaction, error)
}

// StateStore is implemented by sinks that keep backfill progress
// server-side, so a restarted backfill can resume from what is
// already stored even without a local checkpoint file.
type StateStore interface {
	MaxLoadedBlock(ctx context.Context, chainID uint64, address string) (uint64, bool, error)
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, block uint64) error
}

// RunConfig holds runtime settings for a backfill.
type RunConfig struct {
	ChainID           uint64
	IncludeTxns       bool
	Addresses         []string
	FromBlock         uint64
	ToBlock           uint64
	ChunkSize         uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	CheckpointPath    string
	CheckpointEnabled bool
	Strategy          decode.Strategy
}

// Runner walks block ranges per contract, fetches logs from the block
// explorer, decodes them, and writes raw and decoded batches to
// storage. Chunk failures are recorded and skipped so one bad range
// does not abort a long backfill.
type Runner struct {
	cfg        RunConfig
	client     ExplorerClient
	storage    storage.Storage
	registry   *registry.ProtocolRegistry
	logger     *zap.Logger
	checkpoint *CheckpointStore
	failed     map[string][]BlockRange
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, client ExplorerClient, storageSink storage.Storage, protocols *registry.ProtocolRegistry, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		client:     client,
		storage:    storageSink,
		registry:   protocols,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		failed:     make(map[string][]BlockRange),
	}
}

// FailedRanges reports the chunk ranges that exhausted their retries,
// keyed by contract address.
func (r *Runner) FailedRanges() map[string][]BlockRange {
	return r.failed
}

// Run executes the backfill for every configured contract.
func (r *Runner) Run(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("explorer client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.ChunkSize == 0 {
		return fmt.Errorf("chunk size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.client.LatestBlock(ctx, time.Time{})
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	for _, address := range r.cfg.Addresses {
		address = strings.ToLower(address)
		if err := r.runAddress(ctx, address, to); err != nil {
			return fmt.Errorf("backfill %s: %w", address, err)
		}
	}

	for address, ranges := range r.failed {
		r.logger.Warn("chunks failed and were skipped",
			zap.String("address", address),
			zap.Int("ranges", len(ranges)),
		)
	}

	return nil
}

func (r *Runner) runAddress(ctx context.Context, address string, to uint64) error {
	from := r.cfg.FromBlock
	if from == 0 {
		creation, err := r.client.ContractCreationBlock(ctx, address)
		if err != nil {
			return fmt.Errorf("resolve creation block: %w", err)
		}
		from = creation
		r.logger.Info("starting from creation block",
			zap.String("address", address), zap.Uint64("from", from))
	}

	if cp, ok, err := r.checkpoint.Load(address); err != nil {
		return err
	} else if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint",
			zap.String("address", address),
			zap.Uint64("last_processed", cp.LastProcessedBlock),
			zap.Uint64("from", from),
		)
	}

	stateStore, hasState := r.storage.(StateStore)
	if hasState {
		resumed, found, err := r.storeResumeBlock(ctx, stateStore, address)
		if err != nil {
			return err
		}
		if found && resumed+1 > from {
			from = resumed + 1
			r.logger.Info("resume from store state",
				zap.String("address", address),
				zap.Uint64("last_stored", resumed),
				zap.Uint64("from", from),
			)
		}
	}

	if from > to {
		r.logger.Info("nothing to backfill",
			zap.String("address", address), zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	entries, err := r.client.ContractABI(ctx, address)
	if err != nil {
		return fmt.Errorf("fetch abi: %w", err)
	}
	decoder, err := decode.NewEventDecoder(entries, r.cfg.Strategy)
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}

	protocol := registry.DefaultProtocol
	if r.registry != nil {
		protocol = r.registry.Protocol(address)
	}

	ranges, err := SplitRange(from, to, r.cfg.ChunkSize)
	if err != nil {
		return err
	}

	r.logger.Info("backfill start",
		zap.String("address", address),
		zap.String("protocol", protocol),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("chunks", len(ranges)),
		zap.Int("events", decoder.Events()),
	)

	var totalLogs, totalUnknown int
	for _, chunk := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logs, err := r.fetchLogsWithRetry(ctx, address, chunk)
		if err != nil {
			r.logger.Error("chunk failed, skipping",
				zap.String("address", address),
				zap.Uint64("from", chunk.From),
				zap.Uint64("to", chunk.To),
				zap.Error(err),
			)
			r.failed[address] = append(r.failed[address], chunk)
			continue
		}

		senders := r.chunkSenders(ctx, address, chunk, len(logs))

		events := make([]model.DecodedEventRecord, 0, len(logs))
		unknown := 0
		for _, log := range logs {
			txn := senders[strings.ToLower(log.TxHash)]
			event := decoder.DecodeWithFallback(decode.Log{
				Address:     log.Address,
				Topics:      log.Topics,
				Data:        log.Data,
				TxHash:      log.TxHash,
				BlockNumber: log.BlockNumber,
				TxnFrom:     txn.From,
				TxnTo:       txn.To,
			})
			if event.IsUnknown {
				unknown++
			}
			record, err := buildEventRecord(log, event, protocol)
			if err != nil {
				return fmt.Errorf("build event record: %w", err)
			}
			events = append(events, record)
		}

		if err := r.storage.PutLogBatch(ctx, logs); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
		if err := r.storage.PutEventBatch(ctx, events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}

		if err := r.checkpoint.Save(address, chunk.To); err != nil {
			return err
		}
		if hasState {
			if err := stateStore.SaveState(ctx, stateName(address), chunk.To); err != nil {
				return fmt.Errorf("save backfill state: %w", err)
			}
		}

		totalLogs += len(logs)
		totalUnknown += unknown
		r.logger.Info("chunk complete",
			zap.String("address", address),
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To),
			zap.Int("logs", len(logs)),
			zap.Int("unknown", unknown),
		)
	}

	r.logger.Info("backfill complete",
		zap.String("address", address),
		zap.Int("logs", totalLogs),
		zap.Int("unknown", totalUnknown),
		zap.Int("failed_chunks", len(r.failed[address])),
	)

	return nil
}

// storeResumeBlock reports the highest block the sink already has for
// a contract, from the named backfill state and the stored raw logs.
func (r *Runner) storeResumeBlock(ctx context.Context, store StateStore, address string) (uint64, bool, error) {
	var resumed uint64
	found := false

	last, ok, err := store.LoadState(ctx, stateName(address))
	if err != nil {
		return 0, false, fmt.Errorf("load backfill state: %w", err)
	}
	if ok {
		resumed = last
		found = true
	}

	loaded, ok, err := store.MaxLoadedBlock(ctx, r.cfg.ChainID, address)
	if err != nil {
		return 0, false, fmt.Errorf("query max loaded block: %w", err)
	}
	if ok && loaded > resumed {
		resumed = loaded
		found = true
	}

	return resumed, found, nil
}

func stateName(address string) string {
	return "backfill:" + address
}

// chunkSenders fetches the contract's transactions for a chunk and
// maps tx hash to sender/recipient, used to attach txn correlation to
// decoded events. Correlation is enrichment: a fetch failure degrades
// to empty fields instead of failing the chunk.
func (r *Runner) chunkSenders(ctx context.Context, address string, chunk BlockRange, logCount int) map[string]etherscan.Transaction {
	if !r.cfg.IncludeTxns || logCount == 0 {
		return nil
	}

	txns, err := r.client.Transactions(ctx, address, chunk.From, chunk.To)
	if err != nil {
		r.logger.Warn("fetch transactions failed",
			zap.String("address", address),
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To),
			zap.Error(err),
		)
		return nil
	}

	senders := make(map[string]etherscan.Transaction, len(txns))
	for _, txn := range txns {
		senders[strings.ToLower(txn.Hash)] = txn
	}
	return senders
}

func (r *Runner) fetchLogsWithRetry(ctx context.Context, address string, chunk BlockRange) ([]model.LogRecord, error) {
	var logs []model.LogRecord
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.client.Logs(ctx, address, chunk.From, chunk.To)
		if err != nil {
			r.logger.Warn("fetch logs failed",
				zap.Error(err),
				zap.Uint64("from", chunk.From),
				zap.Uint64("to", chunk.To),
			)
		}
		return err
	})
	return logs, err
}

// buildEventRecord joins a decoded event with its log identity for
// storage.
func buildEventRecord(log model.LogRecord, event decode.DecodedEvent, protocol string) (model.DecodedEventRecord, error) {
	params, err := json.Marshal(event.Parameters)
	if err != nil {
		return model.DecodedEventRecord{}, err
	}

	return model.DecodedEventRecord{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Protocol:    protocol,
		EventName:   event.EventName,
		Topic0:      event.Topic0,
		IsUnknown:   event.IsUnknown,
		Parameters:  params,
		RawTopics:   event.RawTopics,
		RawData:     event.RawData,
		TxnFrom:     event.TxnFrom,
		TxnTo:       event.TxnTo,
		Timestamp:   log.Timestamp,
		IngestedAt:  log.IngestedAt,
	}, nil
}
