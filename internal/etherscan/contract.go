package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"eventScope/internal/decode"
)

// ContractMetadata is the subset of verified-source metadata needed to
// resolve proxy contracts.
type ContractMetadata struct {
	ContractName   string
	Proxy          bool
	Implementation string
}

type sourceEntry struct {
	ContractName   string `json:"ContractName"`
	Proxy          string `json:"Proxy"`
	Implementation string `json:"Implementation"`
}

// ContractMetadata fetches contract name, proxy flag, and
// implementation address from the verified source code endpoint.
func (c *Client) ContractMetadata(ctx context.Context, address string) (ContractMetadata, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address)

	result, err := c.call(ctx, params)
	if err != nil {
		return ContractMetadata{}, fmt.Errorf("get source code %s: %w", address, err)
	}

	var entries []sourceEntry
	if err := json.Unmarshal(result, &entries); err != nil {
		return ContractMetadata{}, fmt.Errorf("parse source code %s: %w", address, err)
	}
	if len(entries) == 0 {
		return ContractMetadata{}, fmt.Errorf("no source code found for contract %s", address)
	}

	return ContractMetadata{
		ContractName:   entries[0].ContractName,
		Proxy:          entries[0].Proxy == "1",
		Implementation: entries[0].Implementation,
	}, nil
}

// ContractABI fetches the verified ABI for a contract. When the
// contract is a proxy with a known implementation, the implementation
// ABI is fetched as well and merged proxy-first, so logs emitted
// through the proxy resolve against both event sets. Results are
// cached on disk when ABICacheDir is configured.
func (c *Client) ContractABI(ctx context.Context, address string) ([]decode.Entry, error) {
	address = strings.ToLower(address)

	if cached, ok := c.loadCachedABI(address); ok {
		c.logger.Debug("abi cache hit", zap.String("address", address))
		return cached, nil
	}

	meta, err := c.ContractMetadata(ctx, address)
	if err != nil {
		c.logger.Warn("contract metadata unavailable", zap.String("address", address), zap.Error(err))
	}

	entries, err := c.rawABI(ctx, address)
	if err != nil {
		return nil, err
	}

	if meta.Proxy && meta.Implementation != "" {
		c.logger.Info("proxy contract, merging implementation abi",
			zap.String("address", address),
			zap.String("implementation", meta.Implementation),
		)
		implEntries, err := c.rawABI(ctx, meta.Implementation)
		if err != nil {
			c.logger.Warn("implementation abi unavailable",
				zap.String("implementation", meta.Implementation), zap.Error(err))
		} else {
			entries = decode.MergeABI(entries, implEntries)
		}
	}

	c.saveCachedABI(address, entries)
	return entries, nil
}

func (c *Client) rawABI(ctx context.Context, address string) ([]decode.Entry, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getabi")
	params.Set("address", address)

	result, err := c.call(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("get abi %s: %w", address, err)
	}

	// The result is a JSON string containing the ABI document.
	var abiJSON string
	if err := json.Unmarshal(result, &abiJSON); err != nil {
		return nil, fmt.Errorf("unwrap abi %s: %w", address, err)
	}

	entries, err := decode.ParseABI([]byte(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("abi %s: %w", address, err)
	}
	return entries, nil
}

// ContractCreationBlock returns the block in which a contract was
// deployed.
func (c *Client) ContractCreationBlock(ctx context.Context, address string) (uint64, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getcontractcreation")
	params.Set("contractaddresses", address)

	result, err := c.call(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("get contract creation %s: %w", address, err)
	}

	var entries []struct {
		BlockNumber string `json:"blockNumber"`
		TxHash      string `json:"txHash"`
	}
	if err := json.Unmarshal(result, &entries); err != nil {
		return 0, fmt.Errorf("parse contract creation %s: %w", address, err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("no creation info for contract %s", address)
	}

	block, err := strconv.ParseUint(entries[0].BlockNumber, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse creation block %q: %w", entries[0].BlockNumber, err)
	}
	return block, nil
}

func (c *Client) abiCachePath(address string) string {
	return filepath.Join(c.cfg.ABICacheDir, address+".json")
}

func (c *Client) loadCachedABI(address string) ([]decode.Entry, bool) {
	if c.cfg.ABICacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.abiCachePath(address))
	if err != nil {
		return nil, false
	}
	entries, err := decode.ParseABI(data)
	if err != nil {
		c.logger.Warn("invalid cached abi", zap.String("address", address), zap.Error(err))
		return nil, false
	}
	return entries, true
}

func (c *Client) saveCachedABI(address string, entries []decode.Entry) {
	if c.cfg.ABICacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cfg.ABICacheDir, 0o755); err != nil {
		c.logger.Warn("create abi cache dir", zap.Error(err))
		return
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(c.abiCachePath(address), data, 0o644); err != nil {
		c.logger.Warn("write abi cache", zap.String("address", address), zap.Error(err))
	}
}
