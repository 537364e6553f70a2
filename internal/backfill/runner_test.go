package backfill

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"eventScope/internal/decode"
	"eventScope/internal/etherscan"
	"eventScope/internal/model"
	"eventScope/internal/registry"
)

type stubClient struct {
	latest     uint64
	creation   uint64
	entries    []decode.Entry
	logCalls   []BlockRange
	txnCalls   []BlockRange
	failRanges map[BlockRange]int
	logsFor    func(from, to uint64) []model.LogRecord
	txnsFor    func(from, to uint64) []etherscan.Transaction
}

func (s *stubClient) LatestBlock(_ context.Context, _ time.Time) (uint64, error) {
	return s.latest, nil
}

func (s *stubClient) ContractCreationBlock(_ context.Context, _ string) (uint64, error) {
	return s.creation, nil
}

func (s *stubClient) ContractABI(_ context.Context, _ string) ([]decode.Entry, error) {
	return s.entries, nil
}

func (s *stubClient) Logs(_ context.Context, _ string, from, to uint64) ([]model.LogRecord, error) {
	r := BlockRange{From: from, To: to}
	s.logCalls = append(s.logCalls, r)
	if s.failRanges != nil && s.failRanges[r] > 0 {
		s.failRanges[r]--
		return nil, errors.New("explorer unavailable")
	}
	if s.logsFor == nil {
		return nil, nil
	}
	return s.logsFor(from, to), nil
}

func (s *stubClient) Transactions(_ context.Context, _ string, from, to uint64) ([]etherscan.Transaction, error) {
	s.txnCalls = append(s.txnCalls, BlockRange{From: from, To: to})
	if s.txnsFor == nil {
		return nil, nil
	}
	return s.txnsFor(from, to), nil
}

type memStorage struct {
	logs   []model.LogRecord
	events []model.DecodedEventRecord
}

// stateStorage is a memStorage that also keeps server-side backfill
// state, the way the Postgres sink does.
type stateStorage struct {
	memStorage
	maxLoaded map[string]uint64
	state     map[string]uint64
}

func newStateStorage() *stateStorage {
	return &stateStorage{
		maxLoaded: make(map[string]uint64),
		state:     make(map[string]uint64),
	}
}

func (s *stateStorage) MaxLoadedBlock(_ context.Context, _ uint64, address string) (uint64, bool, error) {
	block, ok := s.maxLoaded[address]
	return block, ok, nil
}

func (s *stateStorage) LoadState(_ context.Context, name string) (uint64, bool, error) {
	block, ok := s.state[name]
	return block, ok, nil
}

func (s *stateStorage) SaveState(_ context.Context, name string, block uint64) error {
	s.state[name] = block
	return nil
}

func (m *memStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	m.logs = append(m.logs, logs...)
	return nil
}

func (m *memStorage) PutEventBatch(_ context.Context, events []model.DecodedEventRecord) error {
	m.events = append(m.events, events...)
	return nil
}

func transferEntries() []decode.Entry {
	return []decode.Entry{
		{
			Type: "event",
			Name: "Transfer",
			Inputs: []decode.Parameter{
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "value", Type: "uint256"},
			},
		},
	}
}

const transferTopic0 = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

func transferLog(block uint64, logIndex uint64) model.LogRecord {
	return model.LogRecord{
		ChainID:     1,
		BlockNumber: block,
		TxHash:      fmt.Sprintf("0xtx%d", block),
		LogIndex:    logIndex,
		Address:     "0xtoken",
		Topics: []string{
			transferTopic0,
			"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		},
		Data: "0x0000000000000000000000000000000000000000000000000000000000000064",
	}
}

func testRunConfig(dir string) RunConfig {
	return RunConfig{
		Addresses:         []string{"0xToken"},
		FromBlock:         100,
		ToBlock:           399,
		ChunkSize:         100,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}
}

func TestRunnerDecodesAndStores(t *testing.T) {
	client := &stubClient{
		entries: transferEntries(),
		logsFor: func(from, to uint64) []model.LogRecord {
			return []model.LogRecord{transferLog(from, 0)}
		},
	}
	sink := &memStorage{}
	cfg := testRunConfig(t.TempDir())

	runner := NewRunner(cfg, client, sink, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.logCalls) != 3 {
		t.Fatalf("got %d log calls, want 3", len(client.logCalls))
	}
	if len(sink.logs) != 3 {
		t.Fatalf("stored %d logs, want 3", len(sink.logs))
	}
	if len(sink.events) != 3 {
		t.Fatalf("stored %d events, want 3", len(sink.events))
	}

	ev := sink.events[0]
	if ev.EventName != "Transfer" {
		t.Errorf("event name = %q, want Transfer", ev.EventName)
	}
	if ev.IsUnknown {
		t.Error("Transfer should decode as known")
	}
	if ev.Protocol != registry.DefaultProtocol {
		t.Errorf("protocol = %q, want %q", ev.Protocol, registry.DefaultProtocol)
	}
	if ev.BlockNumber != 100 || ev.TxHash != "0xtx100" {
		t.Errorf("event identity = block %d tx %q", ev.BlockNumber, ev.TxHash)
	}
}

func TestRunnerRetriesTransientFailures(t *testing.T) {
	failing := BlockRange{From: 200, To: 299}
	client := &stubClient{
		entries:    transferEntries(),
		failRanges: map[BlockRange]int{failing: 1},
	}
	sink := &memStorage{}
	cfg := testRunConfig(t.TempDir())

	runner := NewRunner(cfg, client, sink, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(runner.FailedRanges()) != 0 {
		t.Errorf("transient failure should recover, got failed ranges %v", runner.FailedRanges())
	}
	if len(client.logCalls) != 4 {
		t.Errorf("got %d log calls, want 4 (3 chunks + 1 retry)", len(client.logCalls))
	}
}

func TestRunnerRecordsExhaustedChunks(t *testing.T) {
	failing := BlockRange{From: 200, To: 299}
	client := &stubClient{
		entries:    transferEntries(),
		failRanges: map[BlockRange]int{failing: 10},
		logsFor: func(from, to uint64) []model.LogRecord {
			return []model.LogRecord{transferLog(from, 0)}
		},
	}
	sink := &memStorage{}
	cfg := testRunConfig(t.TempDir())

	runner := NewRunner(cfg, client, sink, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	failed := runner.FailedRanges()["0xtoken"]
	if len(failed) != 1 || failed[0] != failing {
		t.Fatalf("failed ranges = %v, want [%+v]", failed, failing)
	}
	// The chunks around the failed one still land.
	if len(sink.logs) != 2 {
		t.Errorf("stored %d logs, want 2", len(sink.logs))
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := testRunConfig(dir)

	store := NewCheckpointStore(cfg.CheckpointPath, true)
	if err := store.Save("0xtoken", 199); err != nil {
		t.Fatalf("Save: %v", err)
	}

	client := &stubClient{entries: transferEntries()}
	runner := NewRunner(cfg, client, &memStorage{}, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.logCalls) != 2 {
		t.Fatalf("got %d log calls, want 2", len(client.logCalls))
	}
	if client.logCalls[0].From != 200 {
		t.Errorf("first chunk starts at %d, want 200", client.logCalls[0].From)
	}

	cp, ok, err := store.Load("0xtoken")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if cp.LastProcessedBlock != 399 {
		t.Errorf("checkpoint = %d, want 399", cp.LastProcessedBlock)
	}
}

func TestRunnerResolvesCreationAndLatest(t *testing.T) {
	client := &stubClient{
		entries:  transferEntries(),
		creation: 500,
		latest:   749,
	}
	cfg := testRunConfig(t.TempDir())
	cfg.FromBlock = 0
	cfg.ToBlock = 0

	runner := NewRunner(cfg, client, &memStorage{}, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.logCalls) == 0 {
		t.Fatal("no log calls made")
	}
	if first := client.logCalls[0]; first.From != 500 {
		t.Errorf("first chunk from = %d, want creation block 500", first.From)
	}
	if last := client.logCalls[len(client.logCalls)-1]; last.To != 749 {
		t.Errorf("last chunk to = %d, want latest block 749", last.To)
	}
}

func TestRunnerUnknownEventsStored(t *testing.T) {
	client := &stubClient{
		// ABI has no events at all, every log is unknown.
		entries: []decode.Entry{{Type: "function", Name: "transfer"}},
		logsFor: func(from, to uint64) []model.LogRecord {
			return []model.LogRecord{transferLog(from, 0)}
		},
	}
	sink := &memStorage{}
	cfg := testRunConfig(t.TempDir())

	runner := NewRunner(cfg, client, sink, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.events) != 3 {
		t.Fatalf("stored %d events, want 3", len(sink.events))
	}
	for _, ev := range sink.events {
		if !ev.IsUnknown {
			t.Errorf("event %q should be unknown", ev.TxHash)
		}
		if ev.EventName != decode.UnknownEventName {
			t.Errorf("event name = %q, want %q", ev.EventName, decode.UnknownEventName)
		}
		if len(ev.RawTopics) == 0 || ev.RawData == "" {
			t.Error("unknown event must keep raw topics and data")
		}
	}
}

func TestRunnerResumesFromStoreState(t *testing.T) {
	client := &stubClient{entries: transferEntries()}
	sink := newStateStorage()
	sink.state["backfill:0xtoken"] = 199
	sink.maxLoaded["0xtoken"] = 250

	cfg := testRunConfig(t.TempDir())
	cfg.ChainID = 1
	cfg.CheckpointEnabled = false

	runner := NewRunner(cfg, client, sink, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// MaxLoadedBlock (250) wins over the named state (199).
	if len(client.logCalls) == 0 {
		t.Fatal("no log calls made")
	}
	if first := client.logCalls[0]; first.From != 251 {
		t.Errorf("first chunk from = %d, want 251", first.From)
	}

	if got := sink.state["backfill:0xtoken"]; got != 399 {
		t.Errorf("saved state = %d, want 399", got)
	}
}

func TestRunnerStoreStateBehindFromBlock(t *testing.T) {
	client := &stubClient{entries: transferEntries()}
	sink := newStateStorage()
	sink.maxLoaded["0xtoken"] = 50

	cfg := testRunConfig(t.TempDir())
	cfg.ChainID = 1
	cfg.CheckpointEnabled = false

	runner := NewRunner(cfg, client, sink, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Stored progress below the configured start must not move it back.
	if first := client.logCalls[0]; first.From != 100 {
		t.Errorf("first chunk from = %d, want 100", first.From)
	}
}

func TestRunnerAttachesTxnCorrelation(t *testing.T) {
	client := &stubClient{
		entries: transferEntries(),
		logsFor: func(from, to uint64) []model.LogRecord {
			return []model.LogRecord{transferLog(from, 0)}
		},
		txnsFor: func(from, to uint64) []etherscan.Transaction {
			return []etherscan.Transaction{{
				Hash: fmt.Sprintf("0xTX%d", from),
				From: "0xsender",
				To:   "0xtoken",
			}}
		},
	}
	sink := &memStorage{}
	cfg := testRunConfig(t.TempDir())
	cfg.IncludeTxns = true

	runner := NewRunner(cfg, client, sink, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.txnCalls) != 3 {
		t.Fatalf("got %d transaction calls, want 3", len(client.txnCalls))
	}
	if len(sink.events) != 3 {
		t.Fatalf("stored %d events, want 3", len(sink.events))
	}
	for _, ev := range sink.events {
		if ev.TxnFrom != "0xsender" {
			t.Errorf("event %s: txn_from = %q, want 0xsender", ev.TxHash, ev.TxnFrom)
		}
		if ev.TxnTo != "0xtoken" {
			t.Errorf("event %s: txn_to = %q, want 0xtoken", ev.TxHash, ev.TxnTo)
		}
	}
}

func TestRunnerSkipsTxnFetchByDefault(t *testing.T) {
	client := &stubClient{
		entries: transferEntries(),
		logsFor: func(from, to uint64) []model.LogRecord {
			return []model.LogRecord{transferLog(from, 0)}
		},
	}
	cfg := testRunConfig(t.TempDir())

	runner := NewRunner(cfg, client, &memStorage{}, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.txnCalls) != 0 {
		t.Errorf("got %d transaction calls, want 0", len(client.txnCalls))
	}
}

func TestRunnerValidatesConfig(t *testing.T) {
	cfg := testRunConfig(t.TempDir())
	cfg.ChunkSize = 0
	runner := NewRunner(cfg, &stubClient{entries: transferEntries()}, &memStorage{}, nil, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Error("expected error for zero chunk size")
	}

	cfg = testRunConfig(t.TempDir())
	cfg.Addresses = nil
	runner = NewRunner(cfg, &stubClient{entries: transferEntries()}, &memStorage{}, nil, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Error("expected error for empty address list")
	}
}
