package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"eventScope/internal/model"
)

// JsonlStorage appends raw logs and decoded events to JSONL files.
type JsonlStorage struct {
	logsPath   string
	eventsPath string
	mu         sync.Mutex
}

func NewJsonlStorage(logsPath, eventsPath string) *JsonlStorage {
	return &JsonlStorage{logsPath: logsPath, eventsPath: eventsPath}
}

// PutLogBatch appends a batch of raw log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 || s.logsPath == "" {
		return nil
	}
	lines := make([]interface{}, 0, len(logs))
	for _, record := range logs {
		lines = append(lines, record)
	}
	return s.appendLines(s.logsPath, lines)
}

// PutEventBatch appends a batch of decoded events as JSON lines.
func (s *JsonlStorage) PutEventBatch(_ context.Context, events []model.DecodedEventRecord) error {
	if len(events) == 0 || s.eventsPath == "" {
		return nil
	}
	lines := make([]interface{}, 0, len(events))
	for _, event := range events {
		lines = append(lines, event)
	}
	return s.appendLines(s.eventsPath, lines)
}

func (s *JsonlStorage) appendLines(path string, lines []interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range lines {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
