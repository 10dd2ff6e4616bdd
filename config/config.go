package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"takealot_sync/models"
)

const defaultTakealotBaseURL = "https://seller-api.takealot.com"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Takealot  TakealotConfig
	Auth      AuthConfig
	Webhook   WebhookConfig
	Scheduler SchedulerConfig
	S3        S3Config
	RabbitMQ  RabbitMQConfig
	LogPath   string
	LogLevel  string
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	AdminAPIKey    string
}

type DatabaseConfig struct {
	Driver      string // postgres | sqlite
	URL         string
	SQLitePath  string
	AutoMigrate bool
}

type TakealotConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"-"`
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
	ProxyURL string        `yaml:"proxy_url"`
}

type AuthConfig struct {
	Mode            string // jwt | supabase | static
	JWTSecret       string
	SupabaseURL     string
	SupabaseAnonKey string
	StaticUserID    uuid.UUID
}

type WebhookConfig struct {
	Secret         string
	TenantID       uuid.UUID
	ArchiveBucket  string
	ReplayInterval time.Duration
	ReplayBatch    int
	MaxAttempts    int
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
	Tenants  []uuid.UUID
}

type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	// The YAML file only supplies defaults; env always wins.
	takealot, err := loadTakealotFile(getEnv("TAKEALOT_CONFIG", "config/takealot.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("ADDR", ":8080"),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
			AdminAPIKey:    os.Getenv("ADMIN_API_KEY"),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "postgres"),
			URL:         os.Getenv("DATABASE_URL"),
			SQLitePath:  getEnv("DB_PATH", "takealot.db"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Takealot: TakealotConfig{
			BaseURL:  getEnv("TAKEALOT_BASE_URL", takealot.BaseURL),
			APIKey:   os.Getenv("TAKEALOT_API_KEY"),
			PageSize: getEnvInt("TAKEALOT_PAGE_SIZE", takealot.PageSize),
			Timeout:  getEnvDuration("TAKEALOT_TIMEOUT", takealot.Timeout),
			ProxyURL: getEnv("TAKEALOT_PROXY_URL", takealot.ProxyURL),
		},
		Auth: AuthConfig{
			Mode:            getEnv("AUTH_MODE", "jwt"),
			JWTSecret:       os.Getenv("SUPABASE_JWT_SECRET"),
			SupabaseURL:     os.Getenv("SUPABASE_URL"),
			SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		},
		Webhook: WebhookConfig{
			Secret:         os.Getenv("TAKEALOT_WEBHOOK_SECRET"),
			ArchiveBucket:  os.Getenv("WEBHOOK_ARCHIVE_BUCKET"),
			ReplayInterval: getEnvDuration("WEBHOOK_REPLAY_INTERVAL", 5*time.Minute),
			ReplayBatch:    getEnvInt("WEBHOOK_REPLAY_BATCH", 50),
			MaxAttempts:    getEnvInt("WEBHOOK_MAX_ATTEMPTS", 5),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SYNC_CRON"),
			Interval: getEnvDuration("SYNC_INTERVAL", 0),
		},
		S3: S3Config{
			Region:          getEnv("S3_REGION", "af-south-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   os.Getenv("RABBITMQ_URL"),
			Queue: getEnv("RABBITMQ_PRICE_QUEUE", "product.price_changed"),
		},
		LogPath:  getEnv("LOG_PATH", "takealot_sync.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Auth.StaticUserID, err = getEnvUUID("STATIC_USER_ID"); err != nil {
		return nil, err
	}
	if cfg.Webhook.TenantID, err = getEnvUUID("WEBHOOK_TENANT_ID"); err != nil {
		return nil, err
	}
	if cfg.Scheduler.Tenants, err = parseTenants(os.Getenv("SYNC_TENANTS")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
// A missing marketplace API key is not fatal here; the client reports it
// per call so the read endpoints keep working.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres driver", models.ErrConfiguration)
		}
	case "sqlite":
	default:
		return fmt.Errorf("%w: unknown DB_DRIVER %q", models.ErrConfiguration, c.Database.Driver)
	}

	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("%w: SUPABASE_JWT_SECRET is required for AUTH_MODE=jwt", models.ErrConfiguration)
		}
	case "supabase":
		if c.Auth.SupabaseURL == "" || c.Auth.SupabaseAnonKey == "" {
			return fmt.Errorf("%w: SUPABASE_URL and SUPABASE_ANON_KEY are required for AUTH_MODE=supabase", models.ErrConfiguration)
		}
	case "static":
		if c.Auth.StaticUserID == uuid.Nil {
			return fmt.Errorf("%w: STATIC_USER_ID is required for AUTH_MODE=static", models.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown AUTH_MODE %q", models.ErrConfiguration, c.Auth.Mode)
	}

	if c.Takealot.PageSize <= 0 {
		c.Takealot.PageSize = 100
	}
	return nil
}

// loadTakealotFile reads the optional marketplace YAML and fills built-in
// defaults for anything it leaves out. A missing file yields the defaults.
func loadTakealotFile(path string) (TakealotConfig, error) {
	tc := TakealotConfig{
		BaseURL:  defaultTakealotBaseURL,
		PageSize: 100,
		Timeout:  30 * time.Second,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tc, nil
		}
		return tc, err
	}

	var file TakealotConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return tc, fmt.Errorf("%w: parse %s: %v", models.ErrConfiguration, path, err)
	}

	if file.BaseURL != "" {
		tc.BaseURL = file.BaseURL
	}
	if file.PageSize > 0 {
		tc.PageSize = file.PageSize
	}
	if file.Timeout > 0 {
		tc.Timeout = file.Timeout
	}
	if file.ProxyURL != "" {
		tc.ProxyURL = file.ProxyURL
	}
	return tc, nil
}

func parseTenants(raw string) ([]uuid.UUID, error) {
	var tenants []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("%w: SYNC_TENANTS entry %q: %v", models.ErrConfiguration, part, err)
		}
		tenants = append(tenants, id)
	}
	return tenants, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvUUID(key string) (uuid.UUID, error) {
	val := os.Getenv(key)
	if val == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", models.ErrConfiguration, key, err)
	}
	return id, nil
}
