package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config contains runtime configuration required by the service.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`

	Store   StoreConfig   `mapstructure:",squash"`
	Admin   AdminConfig   `mapstructure:",squash"`
	Email   EmailConfig   `mapstructure:",squash"`
	Contact ContactConfig `mapstructure:",squash"`
	Storage StorageConfig `mapstructure:",squash"`
	Stats   StatsConfig   `mapstructure:",squash"`
}

// StoreConfig selects and locates the threads/messages database.
type StoreConfig struct {
	Driver     string `mapstructure:"store_driver"`
	DBURL      string `mapstructure:"db_url"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// AdminConfig holds the basic-auth credentials guarding /api/admin.
// Empty credentials leave the admin surface answering 503.
//
// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is believed when
// resolving the client IP for the failed-login throttle. Empty trusts nobody.
type AdminConfig struct {
	User           string   `mapstructure:"admin_basic_user"`
	Pass           string   `mapstructure:"admin_basic_pass"`
	AuthRPS        float64  `mapstructure:"admin_auth_rps"`
	AuthBurst      int      `mapstructure:"admin_auth_burst"`
	TrustedProxies []string `mapstructure:"admin_trusted_proxies"`
}

// Configured reports whether both credentials are present.
func (a AdminConfig) Configured() bool {
	return a.User != "" && a.Pass != ""
}

// EmailConfig configures the Resend notification channel.
type EmailConfig struct {
	To           string `mapstructure:"email_to"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	ResendFrom   string `mapstructure:"resend_from"`
	ResendURL    string `mapstructure:"resend_base_url"`
}

// ContactConfig tunes the contact form gate.
type ContactConfig struct {
	SendTimeout time.Duration `mapstructure:"contact_send_timeout"`
	SweepEvery  time.Duration `mapstructure:"rate_sweep_every"`
}

// StorageConfig points at the attachment object store.
type StorageConfig struct {
	URL            string `mapstructure:"storage_url"`
	ServiceKey     string `mapstructure:"storage_service_key"`
	Bucket         string `mapstructure:"storage_bucket"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// StatsConfig enables Redis-backed contact decision stats when RedisAddr is set.
type StatsConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"stats_prefix"`
	TTL           time.Duration `mapstructure:"stats_ttl"`
}

// SetDefaults registers every known key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("db_url", "")
	v.SetDefault("sqlite_path", "inbox.db")

	v.SetDefault("admin_basic_user", "")
	v.SetDefault("admin_basic_pass", "")
	v.SetDefault("admin_auth_rps", 0.1)
	v.SetDefault("admin_auth_burst", 5)
	v.SetDefault("admin_trusted_proxies", []string{})

	v.SetDefault("email_to", "")
	v.SetDefault("resend_api_key", "")
	v.SetDefault("resend_from", "inbox@aadivya.net")
	v.SetDefault("resend_base_url", "https://api.resend.com")

	v.SetDefault("contact_send_timeout", "10s")
	v.SetDefault("rate_sweep_every", "10m")

	v.SetDefault("storage_url", "")
	v.SetDefault("storage_service_key", "")
	v.SetDefault("storage_bucket", "chat-attachments")
	v.SetDefault("max_upload_bytes", 10<<20)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("stats_prefix", "contact:stats")
	v.SetDefault("stats_ttl", "24h")
}

// Load reads configuration from environment variables and, when configFile is
// non-empty, a YAML file. Environment wins over the file.
func Load(configFile string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates an already-populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Store.DBURL = strings.TrimSpace(cfg.Store.DBURL)
	cfg.Email.To = strings.TrimSpace(cfg.Email.To)
	cfg.Email.ResendAPIKey = strings.TrimSpace(cfg.Email.ResendAPIKey)
	cfg.Storage.URL = strings.TrimRight(strings.TrimSpace(cfg.Storage.URL), "/")
	cfg.Admin.TrustedProxies = splitList(cfg.Admin.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DBURL == "" {
			return errors.New("DB_URL required")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("SQLITE_PATH required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Store.Driver)
	}

	if c.Admin.AuthRPS <= 0 {
		return errors.New("ADMIN_AUTH_RPS must be > 0")
	}
	if c.Admin.AuthBurst <= 0 {
		return errors.New("ADMIN_AUTH_BURST must be > 0")
	}
	for _, p := range c.Admin.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("ADMIN_TRUSTED_PROXIES: %q is not an IP or CIDR", p)
			}
		}
	}
	if c.Contact.SendTimeout <= 0 {
		return errors.New("CONTACT_SEND_TIMEOUT must be > 0")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	return nil
}

// splitList trims entries, splits comma-joined ones and drops blanks, so both
// "a,b" from the environment and a YAML list decode the same way.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
