package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the history service.
type Config struct {
	Addr              string        `env:"ADDR,default=:8080"`
	DBDSN             string        `env:"DB_DSN,required"`
	NATSURL           string        `env:"NATS_URL"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS"`
	UndoDeadline      time.Duration `env:"UNDO_DEADLINE,default=30m"`
	UndoDeadlinesFile string        `env:"UNDO_DEADLINES_FILE"`
	UndoRateLimit     int           `env:"UNDO_RATE_LIMIT,default=30"`
	CacheTTLTiers     string        `env:"CACHE_TTL_TIERS,default=30s,5m,1h"`
	CacheMaxEntries   int           `env:"CACHE_MAX_ENTRIES,default=10000"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL,default=1h"`
	RetentionHorizon  time.Duration `env:"RETENTION_HORIZON,default=2160h"`
	SweepBatch        int           `env:"SWEEP_BATCH,default=500"`
	ArchiveBucket     string        `env:"ARCHIVE_BUCKET"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// TTLTiers is the short/medium/long cache expiry ladder. Short covers hot
// listings, medium covers aggregate views, long covers near-static data.
type TTLTiers struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// TTLTiersFromEnv parses the CACHE_TTL_TIERS value.
func (c Config) TTLTiersFromEnv() (TTLTiers, error) {
	return parseTTLTiers(c.CacheTTLTiers)
}

func parseTTLTiers(s string) (TTLTiers, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return TTLTiers{}, fmt.Errorf("cache ttl tiers: want 3 durations, got %d", len(parts))
	}

	var out [3]time.Duration
	for i, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return TTLTiers{}, fmt.Errorf("cache ttl tiers: %w", err)
		}
		if d <= 0 {
			return TTLTiers{}, fmt.Errorf("cache ttl tiers: %q is not positive", p)
		}
		out[i] = d
	}

	tiers := TTLTiers{Short: out[0], Medium: out[1], Long: out[2]}
	if tiers.Short > tiers.Medium || tiers.Medium > tiers.Long {
		return TTLTiers{}, fmt.Errorf("cache ttl tiers: %s must be ascending", s)
	}
	return tiers, nil
}

type deadlinesFile struct {
	Default time.Duration            `yaml:"default"`
	Kinds   map[string]time.Duration `yaml:"kinds"`
}

// DeadlineOverrides reads the optional per-kind undo deadline file. A default
// in the file overrides UNDO_DEADLINE; kind entries override the default for
// that entity kind only.
func (c Config) DeadlineOverrides() (time.Duration, map[string]time.Duration, error) {
	def := c.UndoDeadline

	if c.UndoDeadlinesFile == "" {
		return def, nil, nil
	}

	raw, err := os.ReadFile(c.UndoDeadlinesFile)
	if err != nil {
		return 0, nil, fmt.Errorf("undo deadlines file: %w", err)
	}

	var f deadlinesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, nil, fmt.Errorf("undo deadlines file: %w", err)
	}

	if f.Default > 0 {
		def = f.Default
	}
	for kind, d := range f.Kinds {
		if d <= 0 {
			return 0, nil, fmt.Errorf("undo deadlines file: kind %q has non-positive deadline", kind)
		}
	}

	return def, f.Kinds, nil
}
