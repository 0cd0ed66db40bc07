package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			User:   "test",
			DBName: "test",
		},
		Mailbox: MailboxConfig{
			IMAPHost: "imap.example.com",
			IMAPPort: 993,
			Username: "bot@example.com",
			Password: "secret",
			Folder:   "INBOX",
		},
		Prediction: PredictionConfig{
			APIURL:         "http://localhost:5000",
			TimeoutSeconds: 30,
		},
		Tracker: TrackerConfig{
			BaseURL:        "https://gitlab.example.com",
			PrivateToken:   "glpat-test",
			TimeoutSeconds: 30,
		},
		Monitor: MonitorConfig{
			CheckIntervalSeconds: 60,
			MinConfidence:        0.7,
			MaxAttempts:          3,
			MessagesPerSecond:    1,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())

	// Missing server port
	invalid := validConfig()
	invalid.Server.Port = ""
	assert.Error(t, invalid.Validate())

	// Missing mailbox credentials
	invalid = validConfig()
	invalid.Mailbox.Password = ""
	assert.Error(t, invalid.Validate())

	// No database at all is fine, a half-configured one is not
	valid := validConfig()
	valid.Database = DatabaseConfig{}
	assert.NoError(t, valid.Validate())
	invalid = validConfig()
	invalid.Database.User = ""
	assert.Error(t, invalid.Validate())

	// Gmail backend needs OAuth2 credentials
	invalid = validConfig()
	invalid.Mailbox.UseGmailAPI = true
	assert.Error(t, invalid.Validate())
	invalid.Mailbox.ClientID = "id"
	invalid.Mailbox.ClientSecret = "secret"
	invalid.Mailbox.RefreshToken = "token"
	assert.NoError(t, invalid.Validate())

	// Missing prediction URL
	invalid = validConfig()
	invalid.Prediction.APIURL = ""
	assert.Error(t, invalid.Validate())

	// Missing tracker token
	invalid = validConfig()
	invalid.Tracker.PrivateToken = ""
	assert.Error(t, invalid.Validate())

	// Confidence outside [0, 1]
	invalid = validConfig()
	invalid.Monitor.MinConfidence = 1.5
	assert.Error(t, invalid.Validate())

	// Non-positive interval
	invalid = validConfig()
	invalid.Monitor.CheckIntervalSeconds = 0
	assert.Error(t, invalid.Validate())

	// Zero attempts would never process anything
	invalid = validConfig()
	invalid.Monitor.MaxAttempts = 0
	assert.Error(t, invalid.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 993, cfg.Mailbox.IMAPPort)
	assert.Equal(t, "INBOX", cfg.Mailbox.Folder)
	assert.Equal(t, "gitlab", cfg.Mailbox.SenderFilter)
	assert.False(t, cfg.Mailbox.UseGmailAPI)
	assert.Equal(t, 30, cfg.Prediction.TimeoutSeconds)
	assert.Equal(t, 60, cfg.Monitor.CheckIntervalSeconds)
	assert.Equal(t, 0.7, cfg.Monitor.MinConfidence)
	assert.False(t, cfg.Monitor.DryRun)
	assert.Equal(t, 3, cfg.Monitor.MaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	viper.Reset()

	t.Setenv("IMAP_SERVER", "imap.corp.example.com")
	t.Setenv("EMAIL_USERNAME", "triage@corp.example.com")
	t.Setenv("AI_API_URL", "http://predictor:5000")
	t.Setenv("GITLAB_URL", "https://gitlab.corp.example.com")
	t.Setenv("CHECK_INTERVAL", "120")
	t.Setenv("MIN_CONFIDENCE", "0.9")
	t.Setenv("DRY_RUN", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "imap.corp.example.com", cfg.Mailbox.IMAPHost)
	assert.Equal(t, "triage@corp.example.com", cfg.Mailbox.Username)
	assert.Equal(t, "http://predictor:5000", cfg.Prediction.APIURL)
	assert.Equal(t, "https://gitlab.corp.example.com", cfg.Tracker.BaseURL)
	assert.Equal(t, 120, cfg.Monitor.CheckIntervalSeconds)
	assert.Equal(t, 0.9, cfg.Monitor.MinConfidence)
	assert.True(t, cfg.Monitor.DryRun)
}

func TestDatabaseDSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	dsn := config.GetDSN()
	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, dsn)
}

func TestDurationHelpers(t *testing.T) {
	p := PredictionConfig{TimeoutSeconds: 45}
	assert.Equal(t, "45s", p.Timeout().String())

	m := MonitorConfig{CheckIntervalSeconds: 90}
	assert.Equal(t, "1m30s", m.CheckInterval().String())
}
