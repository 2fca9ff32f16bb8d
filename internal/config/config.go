package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Watcher  WatcherConfig  `json:"watcher"`
	Mail     MailConfig     `json:"mail"`
	Grants   GrantsConfig   `json:"grants"`
	Security SecurityConfig `json:"security"`
	Tasks    TasksConfig    `json:"tasks"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
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
}

// WatcherConfig points at the blockchain watcher microservice.
type WatcherConfig struct {
	URL       string        `json:"url"`
	AuthToken string        `json:"auth_token"`
	Timeout   time.Duration `json:"timeout"`
}

// MailConfig configures the outbound email channel.
type MailConfig struct {
	FromAddress  string `json:"from_address"`
	AdminAddress string `json:"admin_address"`
	SESRegion    string `json:"ses_region"`
	Disabled     bool   `json:"disabled"`
}

// GrantsConfig holds proposal workflow limits.
type GrantsConfig struct {
	ProposalTargetMax  string        `json:"proposal_target_max"`
	StakingTarget      string        `json:"staking_target"`
	MaxDeadline        time.Duration `json:"max_deadline"`
	ContributionExpiry time.Duration `json:"contribution_expiry"`
	RFPClosingDuration time.Duration `json:"rfp_closing_duration"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// TasksConfig controls the scheduled task runner.
type TasksConfig struct {
	PollInterval time.Duration `json:"poll_interval"`
	PoolSize     int           `json:"pool_size"`
	BatchSize    int           `json:"batch_size"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "grantflow_portal",
			SSLMode: "disable",
		},
		Watcher: WatcherConfig{
			URL:     "http://localhost:5001",
			Timeout: 10 * time.Second,
		},
		Mail: MailConfig{
			FromAddress:  "noreply@grantflow.local",
			AdminAddress: "admin@grantflow.local",
			SESRegion:    "us-east-1",
		},
		Grants: GrantsConfig{
			ProposalTargetMax:  "10000000",
			StakingTarget:      "10",
			MaxDeadline:        90 * 24 * time.Hour,
			ContributionExpiry: 24 * time.Hour,
			RFPClosingDuration: 90 * 24 * time.Hour,
		},
		Security: SecurityConfig{
			TokenTTL: 30 * 24 * time.Hour,
		},
		Tasks: TasksConfig{
			PollInterval: time.Minute,
			PoolSize:     4,
			BatchSize:    50,
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if url := os.Getenv("WATCHER_URL"); url != "" {
		config.Watcher.URL = url
	}
	if token := os.Getenv("WATCHER_AUTH_TOKEN"); token != "" {
		config.Watcher.AuthToken = token
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if from := os.Getenv("MAIL_FROM_ADDRESS"); from != "" {
		config.Mail.FromAddress = from
	}
	if admin := os.Getenv("MAIL_ADMIN_ADDRESS"); admin != "" {
		config.Mail.AdminAddress = admin
	}
	if target := os.Getenv("STAKING_TARGET"); target != "" {
		config.Grants.StakingTarget = target
	}
	if max := os.Getenv("PROPOSAL_TARGET_MAX"); max != "" {
		config.Grants.ProposalTargetMax = max
	}
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
