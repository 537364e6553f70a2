package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"eventScope/internal/model"
)

// defaultPageSize matches the API's maximum getLogs page size.
const defaultPageSize = 1000

type rawLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	TimeStamp        string   `json:"timeStamp"`
	GasPrice         string   `json:"gasPrice"`
	GasUsed          string   `json:"gasUsed"`
	LogIndex         string   `json:"logIndex"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
}

// Logs fetches all event logs for an address in an inclusive block
// range, following page/offset pagination until a short page.
func (c *Client) Logs(ctx context.Context, address string, fromBlock, toBlock uint64) ([]model.LogRecord, error) {
	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0)

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("module", "logs")
		params.Set("action", "getLogs")
		params.Set("address", address)
		params.Set("fromBlock", strconv.FormatUint(fromBlock, 10))
		params.Set("toBlock", strconv.FormatUint(toBlock, 10))
		params.Set("page", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(defaultPageSize))

		result, err := c.call(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("get logs %s [%d,%d]: %w", address, fromBlock, toBlock, err)
		}
		if result == nil {
			break
		}

		var batch []rawLog
		if err := json.Unmarshal(result, &batch); err != nil {
			return nil, fmt.Errorf("parse logs %s: %w", address, err)
		}

		for _, raw := range batch {
			records = append(records, c.toLogRecord(raw, ingestedAt))
		}

		if len(batch) < defaultPageSize {
			break
		}
	}

	c.logger.Debug("fetched logs",
		zap.String("address", address),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func (c *Client) toLogRecord(raw rawLog, ingestedAt time.Time) model.LogRecord {
	return model.LogRecord{
		ChainID:     c.cfg.ChainID,
		BlockNumber: parseHexUint(raw.BlockNumber),
		TxHash:      raw.TransactionHash,
		TxIndex:     parseHexUint(raw.TransactionIndex),
		LogIndex:    parseHexUint(raw.LogIndex),
		Address:     raw.Address,
		Topics:      raw.Topics,
		Data:        raw.Data,
		Timestamp:   parseHexUint(raw.TimeStamp),
		GasPrice:    parseHexUint(raw.GasPrice),
		GasUsed:     parseHexUint(raw.GasUsed),
		IngestedAt:  ingestedAt.Format(time.RFC3339Nano),
	}
}

// Transaction is one row from the normal-transaction list endpoint.
type Transaction struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Gas         string `json:"gas"`
	GasPrice    string `json:"gasPrice"`
	IsError     string `json:"isError"`
	Input       string `json:"input"`
}

// Transactions fetches the normal transactions for an address in an
// inclusive block range, oldest first.
func (c *Client) Transactions(ctx context.Context, address string, fromBlock, toBlock uint64) ([]Transaction, error) {
	txns := make([]Transaction, 0)

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("module", "account")
		params.Set("action", "txlist")
		params.Set("address", address)
		params.Set("startblock", strconv.FormatUint(fromBlock, 10))
		params.Set("endblock", strconv.FormatUint(toBlock, 10))
		params.Set("page", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(defaultPageSize))
		params.Set("sort", "asc")

		result, err := c.call(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("get transactions %s: %w", address, err)
		}
		if result == nil {
			break
		}

		var batch []Transaction
		if err := json.Unmarshal(result, &batch); err != nil {
			return nil, fmt.Errorf("parse transactions %s: %w", address, err)
		}
		txns = append(txns, batch...)

		if len(batch) < defaultPageSize {
			break
		}
	}

	return txns, nil
}

// Receipt is the subset of an eth_getTransactionReceipt response used
// downstream.
type Receipt struct {
	TransactionHash string   `json:"transactionHash"`
	BlockNumber     string   `json:"blockNumber"`
	Status          string   `json:"status"`
	GasUsed         string   `json:"gasUsed"`
	ContractAddress string   `json:"contractAddress"`
	Logs            []rawLog `json:"logs"`
}

// TransactionReceipt fetches a receipt through the JSON-RPC proxy
// endpoint.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (Receipt, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionReceipt")
	params.Set("txhash", txHash)

	result, err := c.call(ctx, params)
	if err != nil {
		return Receipt{}, fmt.Errorf("get receipt %s: %w", txHash, err)
	}
	if result == nil || string(result) == "null" {
		return Receipt{}, fmt.Errorf("transaction receipt not found for %s", txHash)
	}

	var receipt Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return Receipt{}, fmt.Errorf("parse receipt %s: %w", txHash, err)
	}
	return receipt, nil
}

// parseHexUint decodes the API's quantity fields, which arrive as
// 0x-prefixed hex for proxy/log endpoints and plain decimal elsewhere.
// Empty or malformed values decode to zero rather than failing a whole
// batch.
func parseHexUint(value string) uint64 {
	if value == "" || value == "0x" {
		return 0
	}
	if len(value) > 2 && value[0] == '0' && (value[1] == 'x' || value[1] == 'X') {
		if v, err := hexutil.DecodeUint64(value); err == nil {
			return v
		}
		return 0
	}
	if v, err := strconv.ParseUint(value, 10, 64); err == nil {
		return v
	}
	return 0
}
