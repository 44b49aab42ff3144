package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name: "loads with all required vars",
			envVars: map[string]string{
				"PORT":              "8080",
				"ENV":               "production",
				"DATABASE_URL":      "postgres://localhost/test",
				"RECEIPT_SECRET":    "secret123",
				"SIMULATION_MODE":   "true",
				"TRACKING_BASE_URL": "https://track.example.com",
				"NOTIFY_TIMEOUT":    "3s",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 8080 &&
					c.Environment == "production" &&
					c.DatabaseURL == "postgres://localhost/test" &&
					c.ReceiptSecret == "secret123" &&
					c.SimulationMode &&
					c.TrackingBaseURL == "https://track.example.com" &&
					c.NotifyTimeout == 3*time.Second
			},
		},
		{
			name: "uses defaults when optional vars missing",
			envVars: map[string]string{
				"DATABASE_URL":   "postgres://localhost/test",
				"RECEIPT_SECRET": "secret123",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 3000 &&
					c.Environment == "development" &&
					c.OracleProvider == "bedrock" &&
					c.OracleTimeout == 5*time.Second &&
					c.NotifyTimeout == 10*time.Second &&
					!c.SimulationMode &&
					c.TrackingBaseURL == "https://track.allsensesai.com" &&
					c.AutoResolveAfter == 24*time.Hour &&
					!c.SMTPEnabled()
			},
		},
		{
			name: "fails when DATABASE_URL missing",
			envVars: map[string]string{
				"RECEIPT_SECRET": "secret123",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails when RECEIPT_SECRET missing",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "splits operator api keys",
			envVars: map[string]string{
				"DATABASE_URL":          "postgres://localhost/test",
				"RECEIPT_SECRET":        "secret123",
				"API_KEYS":              "key-one,key-two",
				"RATE_LIMIT_PER_MINUTE": "30",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return len(c.APIKeys) == 2 &&
					c.APIKeys[0] == "key-one" &&
					c.APIKeys[1] == "key-two" &&
					c.RateLimitPerMinute == 30
			},
		},
		{
			name: "fails on malformed duration",
			envVars: map[string]string{
				"DATABASE_URL":   "postgres://localhost/test",
				"RECEIPT_SECRET": "secret123",
				"ORACLE_TIMEOUT": "soon",
			},
			wantErr: true,
			check:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Load() config check failed, got: %+v", cfg)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"development", "development", true},
		{"production", "production", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"production", "production", true},
		{"development", "development", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}
