// Package sns sends text messages through Amazon SNS.
package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"

	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const (
	errCodeInvalidParameter      = "InvalidParameter"
	errCodeInvalidParameterValue = "InvalidParameterValue"
	errCodeAuthorization         = "AuthorizationError"
	errCodeEndpointDisabled      = "EndpointDisabled"
	errCodeOptedOut              = "OptedOut"
	errCodeThrottled             = "Throttled"
	errCodeInternal              = "InternalError"
)

// PublishAPI is the subset of the SNS client used for SMS
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config holds SMS sending options
type Config struct {
	OriginationNumber string
	SenderID          string
}

// Adapter implements channel.Adapter for SMS
type Adapter struct {
	api    PublishAPI
	config Config
}

// New creates an SMS adapter over an SNS client
func New(api PublishAPI, cfg Config) *Adapter {
	return &Adapter{api: api, config: cfg}
}

// NewFromConfig builds the SNS client from an AWS config
func NewFromConfig(awsCfg aws.Config, cfg Config) *Adapter {
	return New(sns.NewFromConfig(awsCfg), cfg)
}

func (a *Adapter) Channel() domain.Channel {
	return domain.ChannelSMS
}

func (a *Adapter) Send(ctx context.Context, destination string, msg channel.Message) (string, error) {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if a.config.OriginationNumber != "" {
		attrs["AWS.MM.SMS.OriginationNumber"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(a.config.OriginationNumber),
		}
	}
	if a.config.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(a.config.SenderID),
		}
	}

	out, err := a.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(destination),
		Message:           aws.String(msg.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", classify(err)
	}

	return aws.ToString(out.MessageId), nil
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeInvalidParameter, errCodeInvalidParameterValue, errCodeEndpointDisabled, errCodeOptedOut, errCodeAuthorization:
			return channel.Permanent(fmt.Errorf("sns publish: %w", err))
		case errCodeThrottled, errCodeInternal:
			return channel.Transient(fmt.Errorf("sns publish: %w", err))
		}
	}
	return channel.Transient(fmt.Errorf("sns publish: %w", err))
}

var _ channel.Adapter = (*Adapter)(nil)
