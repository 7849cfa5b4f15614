// Package config loads process settings from MINISTEAM_* environment
// variables. Every binary calls Load once at startup.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Checkout      CheckoutConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

// Load reads the environment, derives the database DSN when only its parts
// are set, and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) check() error {
	dsn, err := c.DB.resolveDSN()
	c.DB.DSN = dsn

	if _, perr := strconv.ParseUint(c.App.Port, 10, 16); perr != nil {
		err = multierr.Append(err, fmt.Errorf("%s must be a port number, got %q", EnvPort, c.App.Port))
	}
	if c.JWT.AccessTokenTTL() <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	}
	if c.JWT.RefreshTokenTTL() <= c.JWT.AccessTokenTTL() {
		err = multierr.Append(err, errors.New("refresh token ttl must outlive the access token"))
	}
	if c.Checkout.LockTTL <= 0 {
		err = multierr.Append(err, errors.New("checkout lock ttl must be positive"))
	}
	if c.Outbox.MaxAttempts < 1 {
		err = multierr.Append(err, errors.New("outbox max attempts must be at least 1"))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"MINISTEAM_APP_ENV" required:"true"`
	Port         string `envconfig:"MINISTEAM_APP_PORT" default:"3000"`
	LogLevel     string `envconfig:"MINISTEAM_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MINISTEAM_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MINISTEAM_LOG_WARN_STACK" default:"false"`
}

// IsDev accepts "dev" and "development" in any case.
func (a AppConfig) IsDev() bool {
	return envIs(a.Env, AppEnvDev, "development")
}

func (a AppConfig) IsProd() bool {
	return envIs(a.Env, AppEnvProd, "production")
}

func envIs(env string, names ...string) bool {
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(env), name) {
			return true
		}
	}
	return false
}

// DBConfig takes either a full DSN or its parts.
type DBConfig struct {
	DSN string `envconfig:"MINISTEAM_DB_DSN"`

	Host     string `envconfig:"MINISTEAM_DB_HOST"`
	Port     int    `envconfig:"MINISTEAM_DB_PORT" default:"5432"`
	User     string `envconfig:"MINISTEAM_DB_USER"`
	Password string `envconfig:"MINISTEAM_DB_PASSWORD"`
	Name     string `envconfig:"MINISTEAM_DB_NAME"`
	SSLMode  string `envconfig:"MINISTEAM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MINISTEAM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MINISTEAM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MINISTEAM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MINISTEAM_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the threshold above which statements are logged.
	SlowQuery time.Duration `envconfig:"MINISTEAM_DB_SLOW_QUERY" default:"200ms"`
}

func (d DBConfig) resolveDSN() (string, error) {
	if d.DSN != "" {
		return d.DSN, nil
	}
	var missing []string
	for env, value := range map[string]string{EnvDBHost: d.Host, EnvDBUser: d.User, EnvDBName: d.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(d.User),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String(), nil
}

type RedisConfig struct {
	URL          string        `envconfig:"MINISTEAM_REDIS_URL" required:"true"`
	Password     string        `envconfig:"MINISTEAM_REDIS_PASSWORD"`
	PoolSize     int           `envconfig:"MINISTEAM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MINISTEAM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MINISTEAM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MINISTEAM_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"MINISTEAM_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MINISTEAM_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MINISTEAM_JWT_ISSUER" default:"ministeam"`
	ExpirationMinutes      int    `envconfig:"MINISTEAM_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"MINISTEAM_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

func (j JWTConfig) AccessTokenTTL() time.Duration {
	return minutes(j.ExpirationMinutes)
}

func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return minutes(j.RefreshTokenTTLMinutes)
}

func minutes(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Minute
}

// PasswordConfig tunes argon2id. Out of range values are clamped by the
// security package.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MINISTEAM_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MINISTEAM_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MINISTEAM_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MINISTEAM_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MINISTEAM_ARGON_KEY_LEN" default:"32"`
}

// AuthRateLimitConfig bounds login and signup attempts per client IP and per
// submitted email. A zero limit disables that dimension.
type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"MINISTEAM_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"MINISTEAM_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"MINISTEAM_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"MINISTEAM_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"MINISTEAM_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"MINISTEAM_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type CheckoutConfig struct {
	LockTTL time.Duration `envconfig:"MINISTEAM_CHECKOUT_LOCK_TTL" default:"30s"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MINISTEAM_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MINISTEAM_AUTO_MIGRATE" default:"false"`
}

// GCPConfig authenticates the Pub/Sub client. With neither credential set the
// client falls back to application default credentials.
type GCPConfig struct {
	ProjectID              string `envconfig:"MINISTEAM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MINISTEAM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MINISTEAM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	StorefrontTopic string `envconfig:"MINISTEAM_PUBSUB_STOREFRONT_TOPIC" default:"ministeam-storefront-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MINISTEAM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MINISTEAM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MINISTEAM_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}
