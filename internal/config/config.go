// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database struct {
		Host       string `json:"host"`
		Port       string `json:"port"`
		User       string `json:"user"`
		Password   string `json:"password"`
		Name       string `json:"name"`
		SSLMode    string `json:"sslmode"`
		SearchPath string `json:"schema"`
	} `json:"database"`
	JWT struct {
		Secret       string        `json:"secret"`
		Issuer       string        `json:"issuer"`
		ExpiryPeriod time.Duration `json:"expiry_period"`
	} `json:"jwt"`
	Server struct {
		Port           string        `json:"port"`
		ReadTimeout    time.Duration `json:"read_timeout"`
		WriteTimeout   time.Duration `json:"write_timeout"`
		RequestTimeout time.Duration `json:"request_timeout"`
	} `json:"server"`
	Policy struct {
		FailureMode       string        `json:"failure_mode"`
		FailOpenGrace     time.Duration `json:"fail_open_grace"`
		LoginPath         string        `json:"login_path"`
		HomePath          string        `json:"home_path"`
		TeamSelectionPath string        `json:"team_selection_path"`
		RevocationEnabled bool          `json:"revocation_enabled"`
	} `json:"policy"`
	Cache struct {
		Backend string        `json:"backend"`
		TTL     time.Duration `json:"ttl"`
	} `json:"cache"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Sweep struct {
		Interval  time.Duration `json:"interval"`
		Mode      string        `json:"mode"`
		BatchSize int           `json:"batch_size"`
	} `json:"sweep"`
	Email struct {
		Provider string `json:"provider"`
	} `json:"email"`
	Sendgrid struct {
		APIKey string `json:"api_key"`
		From   string `json:"from"`
	} `json:"sendgrid"`
	SMTP struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Password string `json:"password"`
		From     string `json:"from"`
	} `json:"smtp"`
	BaseURL string `json:"base_url"`
}

func Load() *Config {
	cfg := &Config{}

	// Database configuration
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Name = getEnv("DB_NAME", "assessly")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.SearchPath = getEnv("DB_SCHEMA", "public")

	// Session token configuration
	cfg.JWT.Secret = getEnv("JWT_SECRET", "your-secret-key")
	cfg.JWT.Issuer = getEnv("JWT_ISSUER", "assessly")
	cfg.JWT.ExpiryPeriod = getDuration("JWT_TTL", 8*time.Hour)

	// Server configuration
	cfg.Server.Port = getEnv("SERVER_PORT", "8080")
	cfg.Server.ReadTimeout = getDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	cfg.Server.WriteTimeout = getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	cfg.Server.RequestTimeout = getDuration("REQUEST_TIMEOUT", 10*time.Second)

	// Access policy
	cfg.Policy.FailureMode = strings.ToLower(getEnv("POLICY_FAILURE_MODE", "open"))
	cfg.Policy.FailOpenGrace = getDuration("POLICY_FAIL_OPEN_GRACE", 2*time.Minute)
	cfg.Policy.LoginPath = getEnv("POLICY_LOGIN_PATH", "/login")
	cfg.Policy.HomePath = getEnv("POLICY_HOME_PATH", "/dashboard")
	cfg.Policy.TeamSelectionPath = getEnv("POLICY_TEAM_SELECTION_PATH", "/onboarding/team")
	cfg.Policy.RevocationEnabled = getBool("REVOCATION_ENABLED", false)

	// Principal cache
	cfg.Cache.Backend = strings.ToLower(getEnv("CACHE_BACKEND", "memory"))
	cfg.Cache.TTL = getDuration("CACHE_TTL", 30*time.Second)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getInt("REDIS_DB", 0)

	// Manager assignment sweep
	cfg.Sweep.Interval = getDuration("SWEEP_INTERVAL", 0)
	cfg.Sweep.Mode = strings.ToLower(getEnv("SWEEP_MODE", "report"))
	cfg.Sweep.BatchSize = getInt("SWEEP_BATCH_SIZE", 100)

	// Email
	cfg.Email.Provider = strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid"))
	cfg.Sendgrid.APIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.Sendgrid.From = getEnv("SENDGRID_FROM", "")
	cfg.SMTP.Host = getEnv("SMTP_HOST", "localhost")
	cfg.SMTP.Port = getInt("SMTP_PORT", 587)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")
	cfg.SMTP.From = getEnv("SMTP_FROM", "")

	cfg.BaseURL = strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")

	return cfg
}

// DSN returns the PostgreSQL connection string for the configured database.
func (c *Config) DSN() string {
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" sslmode=" + c.Database.SSLMode +
		" search_path=" + c.Database.SearchPath
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
