package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := Config{AuctionHouse: DefaultHouse()}
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log          LogConfig   `toml:"log"`
	DB           DBConfig    `toml:"db"`
	AuctionHouse HouseConfig `toml:"auction_house"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

// HouseConfig carries the auction house tuning knobs. Durations are stored
// in integer units so they round-trip through TOML cleanly.
type HouseConfig struct {
	ThrottleDelayMS        int64 `toml:"throttle_delay_ms"`
	TaintedThrottleDelayMS int64 `toml:"tainted_throttle_delay_ms"`
	QuoteTTLSeconds        int64 `toml:"quote_ttl_seconds"`
	CancelFeePercent       int64 `toml:"cancel_fee_percent"`
	HouseCutPercent        int64 `toml:"house_cut_percent"`
	DepositPercent         int64 `toml:"deposit_percent"`
	MinDeposit             int64 `toml:"min_deposit"`
	SearchCacheSize        int   `toml:"search_cache_size"`
	CommitWorkers          int   `toml:"commit_workers"`
	SweepIntervalSeconds   int64 `toml:"sweep_interval_seconds"`
}

func DefaultHouse() HouseConfig {
	return HouseConfig{
		ThrottleDelayMS:        1500,
		TaintedThrottleDelayMS: 3000,
		QuoteTTLSeconds:        30,
		CancelFeePercent:       5,
		HouseCutPercent:        5,
		DepositPercent:         15,
		MinDeposit:             100,
		SearchCacheSize:        256,
		CommitWorkers:          2,
		SweepIntervalSeconds:   15,
	}
}

func (c HouseConfig) ThrottleDelay() time.Duration {
	return time.Duration(c.ThrottleDelayMS) * time.Millisecond
}

func (c HouseConfig) TaintedThrottleDelay() time.Duration {
	return time.Duration(c.TaintedThrottleDelayMS) * time.Millisecond
}

func (c HouseConfig) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSeconds) * time.Second
}

func (c HouseConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
