package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/provider"
)

// RuntimeAPI is the subset of the Bedrock runtime client used by the oracle
type RuntimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Oracle implements provider.InferenceOracle on top of a Bedrock hosted model
type Oracle struct {
	api    RuntimeAPI
	config Config
}

// Ensure Oracle implements provider.InferenceOracle interface at compile time
var _ provider.InferenceOracle = (*Oracle)(nil)

// NewOracle creates an oracle using the AWS default credential chain
func NewOracle(ctx context.Context, cfg Config) (*Oracle, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewOracleWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewOracleWithAPI creates an oracle over an existing runtime client
func NewOracleWithAPI(api RuntimeAPI, cfg Config) *Oracle {
	defaults := DefaultConfig()
	if cfg.ModelID == "" {
		cfg.ModelID = defaults.ModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &Oracle{api: api, config: cfg}
}

func (o *Oracle) Name() string {
	return "bedrock"
}

type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []invokeMessage `json:"messages"`
}

type invokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// verdict is the JSON object the model is instructed to answer with
type verdict struct {
	Level      string   `json:"level"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
	Reasoning  string   `json:"reasoning"`
	Urgency    string   `json:"urgency"`
}

// Assess invokes the model once with a bounded timeout
func (o *Oracle) Assess(ctx context.Context, req provider.InferenceRequest) (*provider.InferenceResult, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        o.config.MaxTokens,
		Messages:         []invokeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invoke request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	out, err := o.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(o.config.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return parseResponse(out.Body)
}

func buildPrompt(req provider.InferenceRequest) (string, error) {
	sensors, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You assess personal safety threats from phone sensor data.\n")
	b.WriteString("Sensor context (JSON):\n")
	b.Write(sensors)
	b.WriteString("\n\nAnswer with only a JSON object of the form ")
	b.WriteString(`{"level":"NONE|LOW|MEDIUM|HIGH|CRITICAL","confidence":0.0,"keywords":[],"reasoning":"","urgency":"LOW|MEDIUM|HIGH"}`)
	b.WriteString(". Confidence is between 0 and 1.")
	return b.String(), nil
}

func parseResponse(body []byte) (*provider.InferenceResult, error) {
	var resp invokeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", provider.ErrInvalidOracleResponse, err)
	}

	var text string
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model answer", provider.ErrInvalidOracleResponse)
	}

	var v verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("%w: decode verdict: %v", provider.ErrInvalidOracleResponse, err)
	}

	result := &provider.InferenceResult{
		ThreatLevel: domain.ThreatLevel(strings.ToUpper(strings.TrimSpace(v.Level))),
		Confidence:  v.Confidence,
		Rationale:   v.Reasoning,
		Keywords:    v.Keywords,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	return result, nil
}
