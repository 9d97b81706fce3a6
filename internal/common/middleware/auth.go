package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"media-notary-backend/internal/common/errors"
)

// TriggerSubjectKey holds the "sub" claim of an authenticated trigger request.
const TriggerSubjectKey = "trigger_subject"

type triggerClaims struct {
	jwt.RegisteredClaims
}

// TriggerAuth accepts only bearer tokens signed with the shared HS256 secret.
// The upload pipeline uses it to enqueue mint jobs.
func TriggerAuth(secret string, logger zerolog.Logger) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			RespondError(c, logger, errors.New(errors.ErrCodeUnauthorized, "bearer token required"))
			return
		}

		claims := &triggerClaims{}
		parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			RespondError(c, logger, errors.Wrap(err, errors.ErrCodeUnauthorized, "invalid trigger token"))
			return
		}

		c.Set(TriggerSubjectKey, claims.Subject)
		c.Next()
	}
}

// SignTriggerToken issues a token accepted by TriggerAuth.
func SignTriggerToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, triggerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
