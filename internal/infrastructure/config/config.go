package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth     AuthConfig
	Postgres PostgresConfig
	Tenants  TenantConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Audit    AuditConfig
	Seed     SeedConfig
}

type AuthConfig struct {
	JWTSecret    string `env:"JWT_SECRET, required"`
	JWTAlgorithm string `env:"JWT_ALGORITHM, default=HS256"`
}

type PostgresConfig struct {
	URL          string `env:"DATABASE_URL"`
	User         string `env:"DB_USER,    default=postgres"`
	Password     string `env:"DB_PASS"`
	Host         string `env:"DB_HOST,    default=localhost:5432"`
	Name         string `env:"DB_NAME,    default=user_management"`
	SSLMode      string `env:"DB_SSLMODE, default=disable"`
	Migrate      bool   `env:"DB_MIGRATE, default=true"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS, default=10"`
}

// TenantConfig maps a tenant name to the table holding its users.
type TenantConfig struct {
	Tables  map[string]string `env:"USER_TABLES, default=general:users_general,freshcart:users_freshcart"`
	Default string            `env:"DEFAULT_TENANT, default=general"`
}

// MongoConfig is optional; an empty URI disables the audit trail.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=user_management"`
}

// RedisConfig is optional; an empty address disables the audit retry store.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// AuditConfig tunes the audit dispatcher. MaxParks and ReplayInterval only
// matter when Redis is configured.
type AuditConfig struct {
	Workers        int           `env:"AUDIT_WORKERS,         default=4"`
	MaxAttempts    int           `env:"AUDIT_MAX_ATTEMPTS,    default=3"`
	RetryBackoff   time.Duration `env:"AUDIT_RETRY_BACKOFF,   default=200ms"`
	MaxParks       int           `env:"AUDIT_MAX_PARKS,       default=5"`
	ReplayInterval time.Duration `env:"AUDIT_REPLAY_INTERVAL, default=30s"`
}

// SeedConfig holds the passwords used by cmd/seed. Prefixes maps a tenant to
// the prefix of its seeded emails and usernames; the default tenant has none.
type SeedConfig struct {
	AdminPassword   string            `env:"SEED_ADMIN_PASSWORD,   default=adminpassword"`
	ManagerPassword string            `env:"SEED_MANAGER_PASSWORD, default=managerpassword"`
	UserPassword    string            `env:"SEED_USER_PASSWORD,    default=userpassword"`
	Prefixes        map[string]string `env:"SEED_PREFIXES,         default=freshcart:fc"`
}

var (
	identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	tenantName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Tenants are mounted at /api/<tenant>, next to the default tenant's routes.
var reservedTenants = map[string]bool{"users": true, "audit": true}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l. Tests pass an envconfig.MapLookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Auth.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(cfg.Auth.JWTAlgorithm))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error

	if !supportedAlgorithms[c.Auth.JWTAlgorithm] {
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not one of HS256, HS384, HS512", c.Auth.JWTAlgorithm))
	}
	if len(c.Tenants.Tables) == 0 {
		errs = append(errs, errors.New("USER_TABLES must name at least one tenant"))
	}
	seen := make(map[string]string, len(c.Tenants.Tables))
	for tenant, table := range c.Tenants.Tables {
		if !tenantName.MatchString(tenant) {
			errs = append(errs, fmt.Errorf("USER_TABLES: invalid tenant name %q", tenant))
		}
		if reservedTenants[tenant] {
			errs = append(errs, fmt.Errorf("USER_TABLES: tenant name %q is reserved", tenant))
		}
		if !identifier.MatchString(table) {
			errs = append(errs, fmt.Errorf("USER_TABLES: invalid table name %q for tenant %q", table, tenant))
		}
		if other, dup := seen[table]; dup {
			errs = append(errs, fmt.Errorf("USER_TABLES: table %q used by both %q and %q", table, other, tenant))
		}
		seen[table] = tenant
	}
	if _, ok := c.Tenants.Tables[c.Tenants.Default]; !ok {
		errs = append(errs, fmt.Errorf("DEFAULT_TENANT %q is not listed in USER_TABLES", c.Tenants.Default))
	}
	if c.Audit.Workers < 0 {
		errs = append(errs, errors.New("AUDIT_WORKERS must not be negative"))
	}
	if c.Audit.MaxAttempts < 1 {
		errs = append(errs, errors.New("AUDIT_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Audit.RetryBackoff < 0 || c.Audit.MaxParks < 0 {
		errs = append(errs, errors.New("AUDIT_RETRY_BACKOFF and AUDIT_MAX_PARKS must not be negative"))
	}
	if c.Audit.ReplayInterval <= 0 {
		errs = append(errs, errors.New("AUDIT_REPLAY_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// TenantNames returns the configured tenants in a stable order.
func (c *Config) TenantNames() []string {
	names := make([]string, 0, len(c.Tenants.Tables))
	for name := range c.Tenants.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from the DB_*
// variables with the credentials escaped.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     p.Host,
		Path:     "/" + p.Name,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else {
		u.User = url.User(p.User)
	}
	return u.String()
}

// AuditEnabled reports whether an audit store is configured.
func (c *Config) AuditEnabled() bool { return c.Mongo.URI != "" }
