package storage

import (
	"context"

	"eventScope/internal/model"
)

// Storage defines a sink for raw logs and decoded events.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
	PutEventBatch(ctx context.Context, events []model.DecodedEventRecord) error
}
