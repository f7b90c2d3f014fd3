package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	PoolAddress    string
	Minter         string
	BaseToken      string
	PrivateKey     string
	Vault          string
	StrategyName   string
	OffsetSpacings int32
	EpochDuration  time.Duration
	ReportInterval time.Duration
	DepositCeiling string
	Out            string
	StateFile      string
	PGDSN          string
	MaxRetries     int
	RetryBackoff   time.Duration
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STRATEGY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("strategy-name", "rangevault")
	v.SetDefault("offset-spacings", 0)
	v.SetDefault("epoch-duration", 24*time.Hour)
	v.SetDefault("report-interval", time.Minute)
	v.SetDefault("deposit-ceiling", "max")
	v.SetDefault("out", "./data/reports.jsonl")
	v.SetDefault("state-file", "./data/state.json")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		PoolAddress:    v.GetString("pool"),
		Minter:         v.GetString("minter"),
		BaseToken:      v.GetString("base-token"),
		PrivateKey:     v.GetString("private-key"),
		Vault:          v.GetString("vault"),
		StrategyName:   v.GetString("strategy-name"),
		OffsetSpacings: v.GetInt32("offset-spacings"),
		EpochDuration:  v.GetDuration("epoch-duration"),
		ReportInterval: v.GetDuration("report-interval"),
		DepositCeiling: v.GetString("deposit-ceiling"),
		Out:            v.GetString("out"),
		StateFile:      v.GetString("state-file"),
		PGDSN:          v.GetString("pg-dsn"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseDepositCeiling interprets the ceiling setting: "max" (or empty)
// means unlimited, otherwise a decimal token amount.
func ParseDepositCeiling(value string, unlimited *big.Int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "max") {
		return new(big.Int).Set(unlimited), nil
	}
	ceiling, ok := new(big.Int).SetString(value, 10)
	if !ok || ceiling.Sign() < 0 {
		return nil, fmt.Errorf("invalid deposit ceiling: %q", value)
	}
	return ceiling, nil
}
