package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pdabank/pdabank/internal/identity"
	"github.com/pdabank/pdabank/internal/ledger"
)

const (
	defaultAppName         = "PDABank"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultRecordSpace     = 5000
	defaultLockTTL         = 10 * time.Second
	defaultSignatureSkew   = 5 * time.Minute
	defaultFaucetMax       = 1_000_000_000
	defaultRateLimit       = 60
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// DomainTag namespaces record addresses derived from owner identities.
	DomainTag string
	// RecordSpace is the byte size allocated for every record.
	RecordSpace int
	Rent        ledger.Rent

	LockTTL          time.Duration
	SignatureMaxSkew time.Duration
	FaucetEnabled    bool
	FaucetMaxAmount  uint64
	RateLimitPerMin  int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
		DomainTag:        getEnv("RECORD_DOMAIN_TAG", identity.DefaultDomainTag),
		RecordSpace:      defaultRecordSpace,
		Rent:             ledger.DefaultRent(),
		LockTTL:          defaultLockTTL,
		SignatureMaxSkew: defaultSignatureSkew,
		FaucetMaxAmount:  defaultFaucetMax,
		RateLimitPerMin:  defaultRateLimit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = durationFromEnv("", "LOCK_TTL", cfg.LockTTL); err != nil {
		return Config{}, err
	}
	if cfg.SignatureMaxSkew, err = durationFromEnv("", "SIGNATURE_MAX_SKEW", cfg.SignatureMaxSkew); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("RECORD_SPACE"); v != "" {
		space, err := strconv.Atoi(v)
		if err != nil || space <= 0 {
			return Config{}, fmt.Errorf("invalid RECORD_SPACE: %q", v)
		}
		cfg.RecordSpace = space
	}
	if cfg.Rent.LamportsPerByteYear, err = uintFromEnv("RENT_LAMPORTS_PER_BYTE_YEAR", cfg.Rent.LamportsPerByteYear); err != nil {
		return Config{}, err
	}
	if cfg.Rent.ExemptionYears, err = uintFromEnv("RENT_EXEMPTION_YEARS", cfg.Rent.ExemptionYears); err != nil {
		return Config{}, err
	}
	if cfg.FaucetMaxAmount, err = uintFromEnv("FAUCET_MAX_AMOUNT", cfg.FaucetMaxAmount); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("FAUCET_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FAUCET_ENABLED: %w", err)
		}
		cfg.FaucetEnabled = enabled
	} else {
		cfg.FaucetEnabled = cfg.IsDev()
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMin = n
	}

	if cfg.DomainTag == "" {
		return Config{}, fmt.Errorf("RECORD_DOMAIN_TAG must not be empty")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether in-memory backends may stand in for Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationFromEnv prefers a whole-seconds variable over a Go duration string.
func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func uintFromEnv(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
