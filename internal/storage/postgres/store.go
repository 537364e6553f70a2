package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventScope/internal/model"
)

// Store provides Postgres persistence for raw logs and decoded events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutLogBatch inserts raw log records, skipping rows already present.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, log := range logs {
		batch.Queue(`
			INSERT INTO raw_logs (
				chain_id, block_number, tx_hash, tx_index, log_index, address,
				topics, data, timestamp, gas_price, gas_used, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(log.ChainID),
			int64(log.BlockNumber),
			log.TxHash,
			int64(log.TxIndex),
			int64(log.LogIndex),
			log.Address,
			log.Topics,
			log.Data,
			int64(log.Timestamp),
			int64(log.GasPrice),
			int64(log.GasUsed),
			log.IngestedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEventBatch upserts decoded events, so re-decoding a range with a
// richer ABI replaces earlier unknown rows.
func (s *Store) PutEventBatch(ctx context.Context, events []model.DecodedEventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO decoded_events (
				chain_id, block_number, tx_hash, log_index, address, protocol,
				event_name, topic0, is_unknown, parameters, raw_topics, raw_data,
				txn_from, txn_to, timestamp, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (chain_id, tx_hash, log_index)
			DO UPDATE SET
				protocol = EXCLUDED.protocol,
				event_name = EXCLUDED.event_name,
				topic0 = EXCLUDED.topic0,
				is_unknown = EXCLUDED.is_unknown,
				parameters = EXCLUDED.parameters,
				raw_topics = EXCLUDED.raw_topics,
				raw_data = EXCLUDED.raw_data,
				txn_from = EXCLUDED.txn_from,
				txn_to = EXCLUDED.txn_to,
				ingested_at = EXCLUDED.ingested_at
		`,
			int64(event.ChainID),
			int64(event.BlockNumber),
			event.TxHash,
			int64(event.LogIndex),
			event.Address,
			event.Protocol,
			event.EventName,
			event.Topic0,
			event.IsUnknown,
			[]byte(event.Parameters),
			event.RawTopics,
			event.RawData,
			event.TxnFrom,
			event.TxnTo,
			int64(event.Timestamp),
			event.IngestedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// MaxLoadedBlock returns the highest block already stored for a
// contract, used to resume interrupted backfills.
func (s *Store) MaxLoadedBlock(ctx context.Context, chainID uint64, address string) (uint64, bool, error) {
	var block *int64
	row := s.pool.QueryRow(ctx, `
		SELECT MAX(block_number) FROM raw_logs WHERE chain_id = $1 AND address = $2
	`, int64(chainID), address)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if block == nil {
		return 0, false, nil
	}
	return uint64(*block), true, nil
}

// LoadState returns the last processed block for a named backfill.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM backfill_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SaveState upserts the last processed block for a named backfill.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO backfill_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
