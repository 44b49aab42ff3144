package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

// LocalOperatorKey holds the hash prefix of the key that authenticated the request
const LocalOperatorKey = "operator_key"

// Auth guards operator endpoints with static API keys. Keys are compared by
// SHA-256 digest in constant time. With no keys configured every request passes,
// which is only meant for local development.
func Auth(keys []string) fiber.Handler {
	digests := make([][32]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(c *fiber.Ctx) error {
		if len(digests) == 0 {
			return c.Next()
		}

		apiKey := extractBearerToken(c)
		if apiKey == "" {
			return domain.ErrUnauthorized
		}

		got := sha256.Sum256([]byte(apiKey))
		for _, want := range digests {
			if subtle.ConstantTimeCompare(got[:], want[:]) == 1 {
				c.Locals(LocalOperatorKey, keyID(got))
				return c.Next()
			}
		}

		return domain.ErrUnauthorized
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// keyID is a short, loggable identifier for a key digest
func keyID(sum [32]byte) string {
	return hex.EncodeToString(sum[:4])
}

// KeyID returns the identifier logged for an operator key
func KeyID(apiKey string) string {
	return keyID(sha256.Sum256([]byte(strings.TrimSpace(apiKey))))
}
