package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Storage       StorageConfig       `json:"storage"`
	Auth          AuthConfig          `json:"auth"`
	Logging       LoggingConfig       `json:"logging"`
	Workflow      WorkflowConfig      `json:"workflow"`
	Notifications NotificationsConfig `json:"notifications"`
	AWS           AWSConfig           `json:"aws"`
	Search        SearchConfig        `json:"search"`
	Exports       ExportsConfig       `json:"exports"`
	Scheduler     SchedulerConfig     `json:"scheduler"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Mode         string        `json:"mode"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// StorageConfig selects the backing store for projects and requests.
type StorageConfig struct {
	Driver string `json:"driver"`
}

type AuthConfig struct {
	JWTSecret      string `json:"jwt_secret"`
	Issuer         string `json:"issuer"`
	TokenTTLHours  int    `json:"token_ttl_hours"`
	AllowDevTokens bool   `json:"allow_dev_tokens"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

type WorkflowConfig struct {
	ArchiveAfterDays int `json:"archive_after_days"`
}

type NotificationsConfig struct {
	WebSocketEnabled bool   `json:"websocket_enabled"`
	SNSTopicARN      string `json:"sns_topic_arn"`
	EmailSender      string `json:"email_sender"`
	EmailDomain      string `json:"email_domain"`
}

// AWSConfig leaves credentials to the default chain unless static keys are set.
type AWSConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"`
}

type SearchConfig struct {
	Addresses []string `json:"addresses"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	Index     string   `json:"index"`
}

type ExportsConfig struct {
	Bucket           string `json:"bucket"`
	Prefix           string `json:"prefix"`
	PresignTTLMinute int    `json:"presign_ttl_minutes"`
}

type SchedulerConfig struct {
	Enabled       bool   `json:"enabled"`
	ExpirySpec    string `json:"expiry_spec"`
	ReconcileSpec string `json:"reconcile_spec"`
}

// LoadConfig loads configuration from .env, the JSON file and environment
// variables, in that order of increasing precedence.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional; real environment variables are never overwritten.
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "debug",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "simflow_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
			AutoMigrate:    true,
		},
		Storage: StorageConfig{Driver: StoragePostgres},
		Auth: AuthConfig{
			Issuer:        "simflow-portal",
			TokenTTLHours: 24,
		},
		Logging:  LoggingConfig{Level: "info"},
		Workflow: WorkflowConfig{ArchiveAfterDays: 30},
		Notifications: NotificationsConfig{
			WebSocketEnabled: true,
		},
		AWS:     AWSConfig{Region: "us-east-1"},
		Search:  SearchConfig{Index: "simulation-requests"},
		Exports: ExportsConfig{Prefix: "exports/", PresignTTLMinute: 60},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			ExpirySpec:    "0 * * * *",
			ReconcileSpec: "30 3 * * *",
		},
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")
	setString(&config.Server.Mode, "GIN_MODE")

	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")
	setBool(&config.Database.AutoMigrate, "DATABASE_AUTO_MIGRATE")

	setString(&config.Storage.Driver, "STORAGE_DRIVER")

	setString(&config.Auth.JWTSecret, "JWT_SECRET")
	setString(&config.Auth.Issuer, "JWT_ISSUER")
	setInt(&config.Auth.TokenTTLHours, "JWT_TTL_HOURS")
	setBool(&config.Auth.AllowDevTokens, "AUTH_ALLOW_DEV_TOKENS")

	setString(&config.Logging.Level, "LOG_LEVEL")
	setBool(&config.Logging.Development, "LOG_DEVELOPMENT")

	setInt(&config.Workflow.ArchiveAfterDays, "WORKFLOW_ARCHIVE_AFTER_DAYS")

	setBool(&config.Notifications.WebSocketEnabled, "NOTIFICATIONS_WEBSOCKET_ENABLED")
	setString(&config.Notifications.SNSTopicARN, "NOTIFICATIONS_SNS_TOPIC_ARN")
	setString(&config.Notifications.EmailSender, "NOTIFICATIONS_EMAIL_SENDER")
	setString(&config.Notifications.EmailDomain, "NOTIFICATIONS_EMAIL_DOMAIN")

	setString(&config.AWS.Region, "AWS_REGION")
	setString(&config.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&config.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&config.AWS.Endpoint, "AWS_ENDPOINT_URL")

	if addrs := os.Getenv("ELASTICSEARCH_ADDRESSES"); addrs != "" {
		config.Search.Addresses = strings.Split(addrs, ",")
	}
	setString(&config.Search.Username, "ELASTICSEARCH_USERNAME")
	setString(&config.Search.Password, "ELASTICSEARCH_PASSWORD")
	setString(&config.Search.Index, "ELASTICSEARCH_INDEX")

	setString(&config.Exports.Bucket, "EXPORTS_BUCKET")
	setString(&config.Exports.Prefix, "EXPORTS_PREFIX")

	setBool(&config.Scheduler.Enabled, "SCHEDULER_ENABLED")
	setString(&config.Scheduler.ExpirySpec, "SCHEDULER_EXPIRY_SPEC")
	setString(&config.Scheduler.ReconcileSpec, "SCHEDULER_RECONCILE_SPEC")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Workflow.ArchiveAfterDays < 0 {
		return fmt.Errorf("workflow.archive_after_days must not be negative")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func (c *WorkflowConfig) ArchiveAfter() time.Duration {
	return time.Duration(c.ArchiveAfterDays) * 24 * time.Hour
}

func (c *ExportsConfig) PresignTTL() time.Duration {
	return time.Duration(c.PresignTTLMinute) * time.Minute
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
