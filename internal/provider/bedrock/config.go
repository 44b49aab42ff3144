package bedrock

import "time"

const anthropicVersion = "bedrock-2023-05-31"

// Config holds configuration for the Bedrock inference oracle
type Config struct {
	// Region is the AWS region hosting the model (e.g., "us-east-1")
	Region string

	// ModelID is the Bedrock model identifier invoked for each assessment
	ModelID string

	// MaxTokens bounds the model answer
	MaxTokens int

	// Timeout bounds a single InvokeModel call
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:    "us-east-1",
		ModelID:   "anthropic.claude-3-haiku-20240307-v1:0",
		MaxTokens: 300,
		Timeout:   5 * time.Second,
	}
}
