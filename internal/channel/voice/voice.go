// Package voice places text-to-speech calls through AWS End User Messaging.
package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pinpointsmsvoicev2"
	"github.com/aws/aws-sdk-go-v2/service/pinpointsmsvoicev2/types"
	"github.com/aws/smithy-go"

	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const (
	errCodeValidation     = "ValidationException"
	errCodeAccessDenied   = "AccessDeniedException"
	errCodeNotFound       = "ResourceNotFoundException"
	errCodeConflict       = "ConflictException"
	errCodeThrottling     = "ThrottlingException"
	errCodeInternal       = "InternalServerException"
	errCodeQuotaExceeded  = "ServiceQuotaExceededException"
	maxVoiceMessageLength = 3000
)

// VoiceAPI is the subset of the End User Messaging client used for calls
type VoiceAPI interface {
	SendVoiceMessage(ctx context.Context, params *pinpointsmsvoicev2.SendVoiceMessageInput, optFns ...func(*pinpointsmsvoicev2.Options)) (*pinpointsmsvoicev2.SendVoiceMessageOutput, error)
}

// Config holds voice sending options
type Config struct {
	OriginationIdentity  string
	ConfigurationSetName string
}

// Adapter implements channel.Adapter for voice calls
type Adapter struct {
	api    VoiceAPI
	config Config
}

func New(api VoiceAPI, cfg Config) *Adapter {
	return &Adapter{api: api, config: cfg}
}

func NewFromConfig(awsCfg aws.Config, cfg Config) *Adapter {
	return New(pinpointsmsvoicev2.NewFromConfig(awsCfg), cfg)
}

func (a *Adapter) Channel() domain.Channel {
	return domain.ChannelVoice
}

func (a *Adapter) Send(ctx context.Context, destination string, msg channel.Message) (string, error) {
	if a.config.OriginationIdentity == "" {
		return "", channel.Permanent(errors.New("voice origination identity is not configured"))
	}

	body := msg.Body
	if len(body) > maxVoiceMessageLength {
		body = body[:maxVoiceMessageLength]
	}

	input := &pinpointsmsvoicev2.SendVoiceMessageInput{
		DestinationPhoneNumber: aws.String(destination),
		OriginationIdentity:    aws.String(a.config.OriginationIdentity),
		MessageBody:            aws.String(body),
		MessageBodyTextType:    types.VoiceMessageBodyTextTypeText,
	}
	if a.config.ConfigurationSetName != "" {
		input.ConfigurationSetName = aws.String(a.config.ConfigurationSetName)
	}

	out, err := a.api.SendVoiceMessage(ctx, input)
	if err != nil {
		return "", classify(err)
	}

	return aws.ToString(out.MessageId), nil
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeValidation, errCodeAccessDenied, errCodeNotFound, errCodeConflict:
			return channel.Permanent(fmt.Errorf("send voice message: %w", err))
		case errCodeThrottling, errCodeInternal, errCodeQuotaExceeded:
			return channel.Transient(fmt.Errorf("send voice message: %w", err))
		}
	}
	return channel.Transient(fmt.Errorf("send voice message: %w", err))
}

var _ channel.Adapter = (*Adapter)(nil)
