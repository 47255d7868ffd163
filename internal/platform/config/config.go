package config

import (
	"fmt"
	"os"
	"strconv"
	stdstrings "strings"
	"time"

	"certreg/pkg/platform/strings"
)

// Config is the full runtime configuration, built once in main and threaded
// by value into constructors.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Registry RegistryDefaults
	Clock    ClockConfig
	Log      LogConfig
	Audit    AuditConfig

	// IssuerAllowlist seeds the authorization allow-list at startup.
	IssuerAllowlist []string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	// AdminTokenHash is a bcrypt hash of the X-Admin-Token secret. Admin routes
	// are not mounted when it is empty.
	AdminTokenHash string
}

// DatabaseConfig selects Postgres persistence when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the allow-list cache when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig enables the Kafka payment gateway when Brokers is non-empty.
type KafkaConfig struct {
	Brokers        []string
	PaymentsTopic  string
	ProduceTimeout time.Duration
}

// RegistryDefaults seed the registry configuration on first start only.
type RegistryDefaults struct {
	MaxCerts uint64
	MintFee  uint64
	Treasury string
}

// ClockConfig selects the height source. A zero Genesis means a manual clock
// starting at StartHeight.
type ClockConfig struct {
	Genesis       time.Time
	BlockInterval time.Duration
	StartHeight   uint64
}

type LogConfig struct {
	Level  string
	Format string
}

type AuditConfig struct {
	BufferSize int
}

const (
	DefaultMaxCerts = 10000
	DefaultMintFee  = 500
	DefaultTreasury = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
)

// RegistryCacheTTL bounds how long an allow-list answer may be served from cache.
var RegistryCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}

	cfg := Config{
		Server: Server{
			Addr:           r.str("CERTREG_ADDR", ":8080"),
			JWTSigningKey:  r.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:      r.str("JWT_ISSUER", "certreg"),
			AdminTokenHash: r.str("ADMIN_TOKEN_HASH", ""),
		},
		Database: DatabaseConfig{
			URL:             r.str("DATABASE_URL", ""),
			MaxOpenConns:    r.integer("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    r.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     r.duration("ISSUER_CACHE_TTL", RegistryCacheTTL),
		},
		Kafka: KafkaConfig{
			Brokers:        strings.SplitList(r.str("KAFKA_BROKERS", "")),
			PaymentsTopic:  r.str("KAFKA_PAYMENTS_TOPIC", "certreg.payments"),
			ProduceTimeout: r.duration("KAFKA_PRODUCE_TIMEOUT", 5*time.Second),
		},
		Registry: RegistryDefaults{
			MaxCerts: r.uint("REGISTRY_MAX_CERTS", DefaultMaxCerts),
			MintFee:  r.uint("REGISTRY_MINT_FEE", DefaultMintFee),
			Treasury: r.str("REGISTRY_TREASURY", DefaultTreasury),
		},
		Clock: ClockConfig{
			Genesis:       r.timestamp("CLOCK_GENESIS"),
			BlockInterval: r.duration("CLOCK_BLOCK_INTERVAL", 10*time.Minute),
			StartHeight:   r.uint("CLOCK_START_HEIGHT", 0),
		},
		Log: LogConfig{
			Level:  r.str("LOG_LEVEL", "info"),
			Format: r.str("LOG_FORMAT", "json"),
		},
		Audit: AuditConfig{
			BufferSize: r.integer("AUDIT_BUFFER_SIZE", 1024),
		},
		IssuerAllowlist: strings.SplitList(r.str("ISSUER_ALLOWLIST", "")),
	}

	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", stdstrings.Join(r.errs, "; "))
	}
	if cfg.Clock.BlockInterval <= 0 {
		return Config{}, fmt.Errorf("invalid configuration: CLOCK_BLOCK_INTERVAL must be positive")
	}
	return cfg, nil
}

// reader collects parse failures so every malformed variable is reported at once.
type reader struct {
	getenv func(string) string
	errs   []string
}

func (r *reader) str(key, def string) string {
	if v := stdstrings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	raw := stdstrings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

func (r *reader) uint(key string, def uint64) uint64 {
	raw := stdstrings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	// 63 bits: every registry value must fit a Postgres BIGINT.
	v, err := strconv.ParseUint(raw, 10, 63)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %q is not an unsigned integer below 2^63", key, raw))
		return def
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := stdstrings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %q is not a duration", key, raw))
		return def
	}
	return v
}

func (r *reader) timestamp(key string) time.Time {
	raw := stdstrings.TrimSpace(r.getenv(key))
	if raw == "" {
		return time.Time{}
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %q is not an RFC3339 timestamp", key, raw))
		return time.Time{}
	}
	return v
}
