package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Shufti   ShuftiConfig   `mapstructure:"shufti"`
	KYC      KYCConfig      `mapstructure:"kyc"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	Migrate         bool   `mapstructure:"migrate"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

// ShuftiConfig holds the credentials and endpoint of the verification provider.
type ShuftiConfig struct {
	ClientID  string `mapstructure:"client_id"`
	SecretKey string `mapstructure:"secret_key"`
	APIURL    string `mapstructure:"api_url"`
	Timeout   string `mapstructure:"timeout"`
}

// KYCConfig controls session creation and webhook handling behavior.
type KYCConfig struct {
	CallbackURL       string `mapstructure:"callback_url"`
	RedirectURL       string `mapstructure:"redirect_url"`
	MaxRuns           int    `mapstructure:"max_runs"`
	DefaultLocale     string `mapstructure:"default_locale"`
	SessionTTLSeconds int    `mapstructure:"session_ttl_seconds"`
	VerifySignatures  bool   `mapstructure:"verify_signatures"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CleanupConfig struct {
	Secret string `mapstructure:"secret"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional as long as env vars cover the essentials.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("shufti.api_url", "https://api.shuftipro.com/")
	v.SetDefault("shufti.timeout", "15s")
	v.SetDefault("kyc.max_runs", 10)
	v.SetDefault("kyc.default_locale", "en")
	v.SetDefault("kyc.session_ttl_seconds", 300)
	v.SetDefault("database.migrate", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// applyEnvOverrides keeps the flat env var names the deployment already uses.
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPass := os.Getenv("DB_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}
	if clientID := os.Getenv("SHUFTI_CLIENT_ID"); clientID != "" {
		cfg.Shufti.ClientID = clientID
	}
	if secretKey := os.Getenv("SHUFTI_SECRET_KEY"); secretKey != "" {
		cfg.Shufti.SecretKey = secretKey
	}
	if callbackURL := os.Getenv("KYC_WEBHOOK_URL"); callbackURL != "" {
		cfg.KYC.CallbackURL = callbackURL
	}
	if redirectURL := os.Getenv("KYC_REDIRECT_URL"); redirectURL != "" {
		cfg.KYC.RedirectURL = redirectURL
	}
	if maxRuns := os.Getenv("MAX_IFRAME_RUNS"); maxRuns != "" {
		if n, err := strconv.Atoi(maxRuns); err == nil {
			cfg.KYC.MaxRuns = n
		}
	}
	if cleanupSecret := os.Getenv("CLEANUP_SECRET"); cleanupSecret != "" {
		cfg.Cleanup.Secret = cleanupSecret
	}

	// Credentials pasted from the provider dashboard tend to carry stray
	// whitespace, which the API rejects with an opaque auth error.
	cfg.Shufti.ClientID = strings.TrimSpace(cfg.Shufti.ClientID)
	cfg.Shufti.SecretKey = strings.TrimSpace(cfg.Shufti.SecretKey)
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// GetURL returns the connection URL form used by golang-migrate.
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

func (c *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	return parseDuration(c.ConnMaxLifetime)
}

func (c *ServerConfig) GetShutdownTimeout() (time.Duration, error) {
	return parseDuration(c.ShutdownTimeout)
}

// GetTimeout returns the HTTP timeout for provider calls.
func (c *ShuftiConfig) GetTimeout() time.Duration {
	d, err := parseDuration(c.Timeout)
	if err != nil || d == 0 {
		return 15 * time.Second
	}
	return d
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// parseDuration parses duration strings like "7d", "24h", "30m"
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	// Handle days (e.g., "7d")
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		_, err := fmt.Sscanf(days, "%d", &d)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format: %s", s)
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}

	// Use standard time.ParseDuration for other formats
	return time.ParseDuration(s)
}
