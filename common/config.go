package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
	"github.com/provideplatform/provide-go/api/vault"
	"github.com/provideplatform/provide-go/common/util"
)

var (
	// Log is the configured logger
	Log *logger.Logger

	// DefaultVault for this aggregator instance
	DefaultVault *vault.Vault

	// ConsumeNATSStreamingSubscriptions toggles whether this process
	// establishes its NATS notification subscriptions on init
	ConsumeNATSStreamingSubscriptions bool

	// AggregatorConfig holds the validated runtime configuration for the
	// core rollup pipeline (C6-C9)
	AggregatorConfig *RollupAggregatorConfig
)

// RollupAggregatorConfig is the fail-fast-validated configuration for the
// rollup size, the batching/timing policy (§4.7) and the world state tree
// depth; it carries no fee parameters
type RollupAggregatorConfig struct {
	RollupSize        int
	MaxRollupWaitTime time.Duration
	MinRollupInterval time.Duration
	WorldStateDepth   int
}

func init() {
	godotenv.Load()

	requireLogger()

	ConsumeNATSStreamingSubscriptions = os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS") == "true"
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("rollup-aggregator", lvl, endpoint)
}

// RequireVault resolves or creates the default vault instance used to hold
// proving keys, verifying keys and the PLONK SRS
func RequireVault() {
	util.RequireVault()

	vaults, err := vault.ListVaults(util.DefaultVaultAccessJWT, map[string]interface{}{})
	if err != nil {
		Log.Panicf("failed to fetch vaults for given aggregator vault token; %s", err.Error())
	}

	if len(vaults) > 0 {
		// HACK
		DefaultVault = vaults[0]
		Log.Debugf("resolved default aggregator vault instance: %s", DefaultVault.ID.String())
	} else {
		DefaultVault, err = vault.CreateVault(util.DefaultVaultAccessJWT, map[string]interface{}{
			"name":        fmt.Sprintf("rollup aggregator vault %d", time.Now().Unix()),
			"description": "default rollup aggregator vault",
		})
		if err != nil {
			Log.Panicf("failed to create default vault for aggregator instance; %s", err.Error())
		}
		Log.Debugf("created default aggregator vault instance: %s", DefaultVault.ID.String())
	}
}

// RequireAggregatorConfig parses and validates the batching/timing/world
// state environment configuration, failing fast (ConfigError, spec §7) on
// any invalid combination
func RequireAggregatorConfig() *RollupAggregatorConfig {
	rollupSize := envInt("ROLLUP_SIZE", 2)
	if rollupSize <= 0 || (rollupSize&(rollupSize-1)) != 0 {
		Log.Panicf("invalid ROLLUP_SIZE; must be a power of two, got %d", rollupSize)
	}

	maxWaitMS := envInt("ROLLUP_MAX_WAIT_TIME_MS", 30000)
	minIntervalMS := envInt("ROLLUP_MIN_INTERVAL_MS", 1000)

	maxWait := time.Duration(maxWaitMS) * time.Millisecond
	minInterval := time.Duration(minIntervalMS) * time.Millisecond

	if minInterval > maxWait {
		Log.Panicf("invalid rollup timing configuration; ROLLUP_MIN_INTERVAL_MS (%d) must not exceed ROLLUP_MAX_WAIT_TIME_MS (%d)", minIntervalMS, maxWaitMS)
	}

	depth := envInt("WORLD_STATE_TREE_DEPTH", 32)
	if depth <= 0 {
		Log.Panicf("invalid WORLD_STATE_TREE_DEPTH; must be positive, got %d", depth)
	}

	AggregatorConfig = &RollupAggregatorConfig{
		RollupSize:        rollupSize,
		MaxRollupWaitTime: maxWait,
		MinRollupInterval: minInterval,
		WorldStateDepth:   depth,
	}

	Log.Debugf("resolved aggregator configuration: rollup size %d; max wait %s; min interval %s", rollupSize, maxWait, minInterval)
	return AggregatorConfig
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		Log.Panicf("invalid integer value for %s: %s", key, val)
	}
	return parsed
}
