package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BackfillConfig holds configuration for the backfill command.
type BackfillConfig struct {
	ChainID           uint64
	IncludeTxns       bool
	APIKey            string
	BaseURL           string
	Addresses         []string
	FromBlock         uint64
	ToBlock           uint64
	ChunkSize         uint64
	CallsPerSecond    float64
	MaxRetries        int
	RetryBackoff      time.Duration
	Checkpoint        string
	CheckpointEnabled bool
	Strategy          string
	LogsOut           string
	EventsOut         string
	PGDSN             string
	ABICacheDir       string
	RegistryPath      string
	LogLevel          string
}

// LoadBackfill merges config file, environment variables, and flags
// into BackfillConfig.
func LoadBackfill(cfgFile string, flags *pflag.FlagSet) (BackfillConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return BackfillConfig{}, err
	}

	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("chunk-size", uint64(10000))
	v.SetDefault("calls-per-second", 5.0)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("strategy", "basic")
	v.SetDefault("logs-out", "./data/raw_logs.jsonl")
	v.SetDefault("events-out", "./data/decoded_events.jsonl")
	v.SetDefault("abi-cache-dir", "./data/abis")
	v.SetDefault("log-level", "info")

	cfg := BackfillConfig{
		ChainID:           v.GetUint64("chain-id"),
		IncludeTxns:       v.GetBool("include-txns"),
		APIKey:            v.GetString("api-key"),
		BaseURL:           v.GetString("base-url"),
		Addresses:         getStringSlice(v, "address"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		ChunkSize:         v.GetUint64("chunk-size"),
		CallsPerSecond:    v.GetFloat64("calls-per-second"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		Strategy:          v.GetString("strategy"),
		LogsOut:           v.GetString("logs-out"),
		EventsOut:         v.GetString("events-out"),
		PGDSN:             v.GetString("pg-dsn"),
		ABICacheDir:       v.GetString("abi-cache-dir"),
		RegistryPath:      v.GetString("registry"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// newViper wires the shared lookup order: flags, then environment
// (EVENTSCOPE_ prefix), then an optional config file.
func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
