package config

import (
	"github.com/spf13/pflag"
)

// DecodeConfig holds configuration for the offline decode command.
type DecodeConfig struct {
	ABIFile      string
	In           string
	Out          string
	Errors       string
	Strategy     string
	RegistryPath string
	LogLevel     string
}

// LoadDecode merges config file, environment variables, and flags into
// DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return DecodeConfig{}, err
	}

	v.SetDefault("out", "./data/decoded_events.jsonl")
	v.SetDefault("errors", "./data/decode_errors.jsonl")
	v.SetDefault("strategy", "basic")
	v.SetDefault("log-level", "info")

	cfg := DecodeConfig{
		ABIFile:      v.GetString("abi"),
		In:           v.GetString("in"),
		Out:          v.GetString("out"),
		Errors:       v.GetString("errors"),
		Strategy:     v.GetString("strategy"),
		RegistryPath: v.GetString("registry"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// LoadPGConfig holds configuration for the load command.
type LoadPGConfig struct {
	LogsIn    string
	EventsIn  string
	PGDSN     string
	BatchSize int
	LogLevel  string
}

// LoadLoad merges config file, environment variables, and flags into
// LoadPGConfig.
func LoadLoad(cfgFile string, flags *pflag.FlagSet) (LoadPGConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return LoadPGConfig{}, err
	}

	v.SetDefault("batch-size", 1000)
	v.SetDefault("log-level", "info")

	cfg := LoadPGConfig{
		LogsIn:    v.GetString("logs-in"),
		EventsIn:  v.GetString("events-in"),
		PGDSN:     v.GetString("pg-dsn"),
		BatchSize: v.GetInt("batch-size"),
		LogLevel:  v.GetString("log-level"),
	}

	return cfg, nil
}
