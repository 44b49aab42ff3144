package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/saturnino-fabrica-de-software/guardian/internal/provider"
)

const (
	errCodeThrottling         = "ThrottlingException"
	errCodeModelTimeout       = "ModelTimeoutException"
	errCodeModelNotReady      = "ModelNotReadyException"
	errCodeServiceUnavailable = "ServiceUnavailableException"
	errCodeAccessDenied       = "AccessDeniedException"
	errCodeValidation         = "ValidationException"
	errCodeResourceNotFound   = "ResourceNotFoundException"
)

// mapError converts SDK failures into the oracle error taxonomy
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", provider.ErrOracleTimeout, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeModelTimeout:
			return fmt.Errorf("%w: %s", provider.ErrOracleTimeout, apiErr.ErrorMessage())
		case errCodeThrottling, errCodeModelNotReady, errCodeServiceUnavailable:
			return fmt.Errorf("%w: %s", provider.ErrOracleUnavailable, apiErr.ErrorCode())
		case errCodeAccessDenied, errCodeResourceNotFound:
			return fmt.Errorf("%w: model not accessible: %s", provider.ErrOracleUnavailable, apiErr.ErrorMessage())
		case errCodeValidation:
			return fmt.Errorf("%w: request rejected: %s", provider.ErrOracleUnavailable, apiErr.ErrorMessage())
		}
	}

	return fmt.Errorf("%w: %v", provider.ErrOracleUnavailable, err)
}
