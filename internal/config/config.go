package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	// Inference oracle
	OracleProvider string        `envconfig:"ORACLE_PROVIDER" default:"bedrock"`
	BedrockModelID string        `envconfig:"BEDROCK_MODEL_ID" default:"anthropic.claude-3-haiku-20240307-v1:0"`
	OracleTimeout  time.Duration `envconfig:"ORACLE_TIMEOUT" default:"5s"`

	// AWS
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Notifications
	SimulationMode        bool          `envconfig:"SIMULATION_MODE" default:"false"`
	NotifyTimeout         time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	SMSOriginationNumber  string        `envconfig:"SMS_ORIGINATION_NUMBER"`
	VoiceOriginationID    string        `envconfig:"VOICE_ORIGINATION_IDENTITY"`
	VoiceConfigurationSet string        `envconfig:"VOICE_CONFIGURATION_SET"`
	ChannelRatePerSecond  float64       `envconfig:"CHANNEL_RATE_PER_SECOND" default:"20"`
	SMTPHost              string        `envconfig:"SMTP_HOST"`
	SMTPPort              int           `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername          string        `envconfig:"SMTP_USERNAME"`
	SMTPPassword          string        `envconfig:"SMTP_PASSWORD"`
	SMTPFrom              string        `envconfig:"SMTP_FROM" default:"Guardian Alerts <alerts@guardian.local>"`

	// Tracking
	TrackingBaseURL string        `envconfig:"TRACKING_BASE_URL" default:"https://track.allsensesai.com"`
	StaticMapURL    string        `envconfig:"STATIC_MAP_URL" default:"https://maps.googleapis.com/maps/api/staticmap"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	// Emergency lifecycle
	AutoResolveAfter time.Duration `envconfig:"EVENT_AUTO_RESOLVE_AFTER" default:"24h"`
	PipelineTimeout  time.Duration `envconfig:"PIPELINE_TIMEOUT" default:"20s"`

	// Policy
	PolicyFile string `envconfig:"POLICY_FILE"`

	// Security
	ReceiptSecret      string   `envconfig:"RECEIPT_SECRET" required:"true"`
	APIKeys            []string `envconfig:"API_KEYS"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SMTPEnabled reports whether an email channel can be built.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}
