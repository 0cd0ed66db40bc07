package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Mailbox    MailboxConfig    `mapstructure:"mailbox"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	LogLevel   string           `mapstructure:"log_level"`
	LogFormat  string           `mapstructure:"log_format"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// MailboxConfig holds mailbox access configuration. IMAP is the default
// backend; the Gmail API backend is used when UseGmailAPI is set.
type MailboxConfig struct {
	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Folder       string `mapstructure:"folder"`
	SenderFilter string `mapstructure:"sender_filter"`
	UseGmailAPI  bool   `mapstructure:"use_gmail_api"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// PredictionConfig holds the assignee prediction service configuration
type PredictionConfig struct {
	APIURL         string `mapstructure:"api_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// TrackerConfig holds the GitLab API configuration
type TrackerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	PrivateToken   string `mapstructure:"private_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MonitorConfig holds the processing pipeline configuration
type MonitorConfig struct {
	CheckIntervalSeconds int     `mapstructure:"check_interval_seconds"`
	MinConfidence        float64 `mapstructure:"min_confidence"`
	DryRun               bool    `mapstructure:"dry_run"`
	MaxAttempts          int     `mapstructure:"max_attempts"`
	MessagesPerSecond    float64 `mapstructure:"messages_per_second"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	// A local .env is optional and never an error.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// No database.host default: leaving it unset selects the in-memory store.
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("mailbox.imap_port", 993)
	viper.SetDefault("mailbox.folder", "INBOX")
	viper.SetDefault("mailbox.sender_filter", "gitlab")
	viper.SetDefault("mailbox.use_gmail_api", false)

	viper.SetDefault("prediction.timeout_seconds", 30)

	viper.SetDefault("tracker.timeout_seconds", 30)

	viper.SetDefault("monitor.check_interval_seconds", 60)
	viper.SetDefault("monitor.min_confidence", 0.7)
	viper.SetDefault("monitor.dry_run", false)
	viper.SetDefault("monitor.max_attempts", 3)
	viper.SetDefault("monitor.messages_per_second", 1.0)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// Mailbox
	viper.BindEnv("mailbox.imap_host", "IMAP_SERVER")
	viper.BindEnv("mailbox.imap_port", "IMAP_PORT")
	viper.BindEnv("mailbox.username", "EMAIL_USERNAME")
	viper.BindEnv("mailbox.password", "EMAIL_PASSWORD")
	viper.BindEnv("mailbox.folder", "EMAIL_MAILBOX")
	viper.BindEnv("mailbox.sender_filter", "EMAIL_SENDER_FILTER")
	viper.BindEnv("mailbox.use_gmail_api", "USE_GMAIL_API")
	viper.BindEnv("mailbox.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("mailbox.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("mailbox.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mailbox.user_email", "GMAIL_USER_EMAIL")

	// Prediction service
	viper.BindEnv("prediction.api_url", "AI_API_URL")
	viper.BindEnv("prediction.api_key", "AI_API_KEY")
	viper.BindEnv("prediction.timeout_seconds", "AI_API_TIMEOUT")

	// Tracker
	viper.BindEnv("tracker.base_url", "GITLAB_URL")
	viper.BindEnv("tracker.private_token", "GITLAB_PRIVATE_TOKEN")
	viper.BindEnv("tracker.timeout_seconds", "GITLAB_API_TIMEOUT")

	// Monitor
	viper.BindEnv("monitor.check_interval_seconds", "CHECK_INTERVAL")
	viper.BindEnv("monitor.min_confidence", "MIN_CONFIDENCE")
	viper.BindEnv("monitor.dry_run", "DRY_RUN")
	viper.BindEnv("monitor.max_attempts", "MAX_ATTEMPTS")
	viper.BindEnv("monitor.messages_per_second", "MESSAGES_PER_SECOND")

	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("log_format", "LOG_FORMAT")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Timeout returns the prediction request timeout as a duration
func (c *PredictionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the tracker request timeout as a duration
func (c *TrackerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CheckInterval returns the poll interval as a duration
func (c *MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	// The database is optional; without it records are kept in memory.
	if c.Database.Host != "" && (c.Database.User == "" || c.Database.DBName == "") {
		return fmt.Errorf("database user and dbname are required when a database host is set")
	}

	if c.Mailbox.UseGmailAPI {
		if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" || c.Mailbox.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when using the Gmail API")
		}
	} else {
		if c.Mailbox.IMAPHost == "" {
			return fmt.Errorf("IMAP server is required")
		}
		if c.Mailbox.Username == "" || c.Mailbox.Password == "" {
			return fmt.Errorf("mailbox credentials are required")
		}
	}

	if c.Prediction.APIURL == "" {
		return fmt.Errorf("prediction API URL is required")
	}

	if c.Tracker.BaseURL == "" {
		return fmt.Errorf("tracker base URL is required")
	}
	if c.Tracker.PrivateToken == "" {
		return fmt.Errorf("tracker private token is required")
	}

	if c.Monitor.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check interval must be greater than 0")
	}
	if c.Monitor.MinConfidence < 0 || c.Monitor.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be between 0 and 1")
	}
	if c.Monitor.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.Monitor.MessagesPerSecond <= 0 {
		return fmt.Errorf("messages per second must be greater than 0")
	}

	return nil
}
