package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Etherscan v2 API endpoint; the chain is
// selected per request via the chainid parameter.
const DefaultBaseURL = "https://api.etherscan.io/v2/api"

// ErrRateLimited marks responses rejected by the API rate limiter.
var ErrRateLimited = errors.New("etherscan rate limit exceeded")

// Config configures the API client.
type Config struct {
	BaseURL        string
	ChainID        uint64
	APIKey         string
	CallsPerSecond float64
	Timeout        time.Duration
	// ABICacheDir, when set, caches fetched contract ABIs on disk.
	ABICacheDir string
}

// Client is a rate-limited Etherscan v2 API client.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a client with sane defaults for unset fields.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CallsPerSecond <= 0 {
		cfg.CallsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1),
		logger:  logger,
	}
}

// ChainID returns the configured chain id.
func (c *Client) ChainID() uint64 {
	return c.cfg.ChainID
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// call performs one rate-limited GET against the v2 API and unwraps
// the result payload. Empty-result responses ("No records found") are
// returned as a nil result, not an error.
func (c *Client) call(ctx context.Context, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("chainid", strconv.FormatUint(c.cfg.ChainID, 10))
	if c.cfg.APIKey != "" {
		params.Set("apikey", c.cfg.APIKey)
	}

	reqURL := c.cfg.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	c.logger.Debug("etherscan request",
		zap.String("module", params.Get("module")),
		zap.String("action", params.Get("action")),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etherscan request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etherscan http status %d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if out.Status == "0" {
		message := out.Message
		if isEmptyResultMessage(message) {
			return nil, nil
		}
		if strings.Contains(strings.ToLower(message), "rate limit") {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, message)
		}
		if message == "" {
			message = "etherscan api error"
		}
		// Some error payloads carry detail in result as a string.
		var detail string
		if json.Unmarshal(out.Result, &detail) == nil && detail != "" {
			return nil, fmt.Errorf("etherscan api error: %s: %s", message, detail)
		}
		return nil, fmt.Errorf("etherscan api error: %s", message)
	}

	return out.Result, nil
}

func isEmptyResultMessage(message string) bool {
	switch message {
	case "No records found", "No transactions found", "No logs found":
		return true
	default:
		return false
	}
}

// LatestBlock returns the block number closest before ts. A zero ts
// means now.
func (c *Client) LatestBlock(ctx context.Context, ts time.Time) (uint64, error) {
	if ts.IsZero() {
		ts = time.Now()
	}

	params := url.Values{}
	params.Set("module", "block")
	params.Set("action", "getblocknobytime")
	params.Set("timestamp", strconv.FormatInt(ts.Unix(), 10))
	params.Set("closest", "before")

	result, err := c.call(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}

	var blockStr string
	if err := json.Unmarshal(result, &blockStr); err != nil {
		return 0, fmt.Errorf("parse latest block: %w", err)
	}
	block, err := strconv.ParseUint(blockStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse latest block %q: %w", blockStr, err)
	}

	c.logger.Debug("latest block", zap.Uint64("block", block))
	return block, nil
}
