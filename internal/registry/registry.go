package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// DefaultProtocol is returned for contracts with no known mapping.
const DefaultProtocol = "misc"

// ProtocolRegistry maps contract addresses to protocol names.
type ProtocolRegistry struct {
	protocols map[string]string
}

// Load reads an address-to-protocol mapping from a JSON file. A
// missing file yields an empty registry with a warning, so decoding
// can proceed without protocol attribution.
func Load(path string, logger *zap.Logger) (*ProtocolRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := &ProtocolRegistry{protocols: make(map[string]string)}
	if path == "" {
		return registry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("protocol registry file not found", zap.String("path", path))
			return registry, nil
		}
		return nil, fmt.Errorf("read protocol registry: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse protocol registry: %w", err)
	}

	for address, protocol := range raw {
		registry.protocols[strings.ToLower(address)] = protocol
	}
	logger.Info("loaded protocol registry", zap.Int("contracts", len(registry.protocols)))
	return registry, nil
}

// Protocol returns the protocol name for a contract address, or
// DefaultProtocol when unknown.
func (r *ProtocolRegistry) Protocol(address string) string {
	if protocol, ok := r.protocols[strings.ToLower(address)]; ok {
		return protocol
	}
	return DefaultProtocol
}

// Add registers one contract-to-protocol mapping.
func (r *ProtocolRegistry) Add(address, protocol string) {
	r.protocols[strings.ToLower(address)] = protocol
}

// Len returns the number of known contracts.
func (r *ProtocolRegistry) Len() int {
	return len(r.protocols)
}
