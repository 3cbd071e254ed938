package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/hypecast/kolport/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Mailer    MailerConfig    `yaml:"mailer"`
	AdminPush AdminPushConfig `yaml:"admin_push"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type AuthConfig struct {
	TOTPSecret string `yaml:"totp_secret"`
}

// PaymentConfig controls the payout workflow. MinPayout is the approved-income
// floor a KOL must exceed before requesting a payout, in minor currency units.
type PaymentConfig struct {
	MinPayout int64 `yaml:"min_payout"`
}

type MailerConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

type AdminPushConfig struct {
	RedisURL string `yaml:"redis_url"`
	Queue    string `yaml:"queue"`
}

type SchedulerConfig struct {
	DigestInterval string `yaml:"digest_interval"`
	Enabled        bool   `yaml:"enabled"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5843
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Payment.MinPayout == 0 {
		cfg.Payment.MinPayout = 100000
	}
	if cfg.Mailer.Exchange == "" {
		cfg.Mailer.Exchange = "kolport.mail"
	}
	if cfg.Mailer.RoutingKey == "" {
		cfg.Mailer.RoutingKey = "mail.dispatch"
	}
	if cfg.AdminPush.Queue == "" {
		cfg.AdminPush.Queue = "kolport:admin:notify"
	}
	if cfg.Scheduler.DigestInterval == "" {
		cfg.Scheduler.DigestInterval = "15m"
	}

	return cfg, nil
}
