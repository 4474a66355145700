package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

func (j JWT) TTL() time.Duration { return time.Duration(j.AccessTokenTTLMin) * time.Minute }

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
	SlowThresholdMs    int
}

type Cache struct {
	Enabled bool
	TTLSec  int
}

type CORS struct {
	AllowedOrigins []string
}

type Accounts struct {
	EmailCaseInsensitive bool
	BcryptCost           int
	DefaultPageSize      int
	MaxPageSize          int
}

type Limits struct {
	RPS               float64
	Burst             int
	PerIPRPS          float64
	PerIPBurst        int
	MaxConcurrent     int64
	MaxBodyBytes      int64
	RequestTimeoutSec int
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	DB       DB
	Redis    Redis `mapstructure:"redis"`
	Cache    Cache
	CORS     CORS
	Accounts Accounts
	Limits   Limits
}

const MinJWTSecretLen = 32

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "accounts")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 10)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.maxSizeMB", 100)
	v.SetDefault("log.file.maxBackups", 7)
	v.SetDefault("log.file.maxAgeDays", 30)

	v.SetDefault("jwt.issuer", "accounts")
	v.SetDefault("jwt.accessTokenTTLMin", 1440)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxOpenConns", 50)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")
	v.SetDefault("db.slowThresholdMs", 200)

	v.SetDefault("cache.ttlSec", 60)

	v.SetDefault("accounts.emailCaseInsensitive", true)
	v.SetDefault("accounts.bcryptCost", 10)
	v.SetDefault("accounts.defaultPageSize", 10)
	v.SetDefault("accounts.maxPageSize", 100)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.perIPRPS", 20)
	v.SetDefault("limits.perIPBurst", 40)
	v.SetDefault("limits.maxConcurrent", 256)
	v.SetDefault("limits.maxBodyBytes", 1<<20)
	v.SetDefault("limits.requestTimeoutSec", 10)
}

// Load reads path (or $CONFIG_PATH, or ./configs/config.local.yaml). APP_*
// environment variables override file values, e.g. APP_JWT_SECRET.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env 可选

	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.JWT.Secret) < MinJWTSecretLen {
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d characters", MinJWTSecretLen))
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not one of postgres|mysql|sqlite", c.DB.Driver))
	}
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.Accounts.DefaultPageSize < 1 || c.Accounts.MaxPageSize < c.Accounts.DefaultPageSize {
		errs = append(errs, errors.New("accounts: need 1 <= defaultPageSize <= maxPageSize"))
	}
	if c.Accounts.BcryptCost < 4 || c.Accounts.BcryptCost > 31 {
		errs = append(errs, errors.New("accounts.bcryptCost must be within 4..31"))
	}
	if c.JWT.AccessTokenTTLMin <= 0 {
		errs = append(errs, errors.New("jwt.accessTokenTTLMin must be positive"))
	}
	return errors.Join(errs...)
}
