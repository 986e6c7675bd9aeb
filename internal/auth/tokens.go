// Package auth guards the admin API. Requests authenticate with either an
// admin API token or the pre-shared cron secret used by external
// schedulers; the two are treated as equivalent trust levels.
package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scenthaus/mediasweep/pkg/types"
)

// Validator handles request authentication
type Validator struct {
	apiTokens  map[string]bool
	cronSecret string
}

// NewValidator creates a validator from configured tokens, an optional
// token file (one token per line) and the scheduler secret. At least one
// credential source must be configured.
func NewValidator(tokens []string, tokenFile, cronSecret string) (*Validator, error) {
	validator := &Validator{
		apiTokens:  make(map[string]bool),
		cronSecret: cronSecret,
	}

	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			validator.apiTokens[token] = true
		}
	}

	if tokenFile != "" {
		if err := validator.loadTokenFile(tokenFile); err != nil {
			return nil, err
		}
	}

	if len(validator.apiTokens) == 0 && validator.cronSecret == "" {
		return nil, fmt.Errorf("no admin tokens or cron secret configured")
	}

	logrus.WithFields(logrus.Fields{
		"api_tokens":      len(validator.apiTokens),
		"cron_secret_set": validator.cronSecret != "",
	}).Info("Initialized auth validator")

	return validator, nil
}

// loadTokenFile reads API tokens from a file, one per line
func (v *Validator) loadTokenFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read API tokens: %w", err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		token := strings.TrimSpace(line)
		if token != "" {
			v.apiTokens[token] = true
		}
	}

	return nil
}

// Middleware returns Gin middleware for authentication. Rejected requests
// are aborted before any handler runs, so no state is ever mutated for
// unauthorized callers.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v.validateAPIToken(c) || v.validateCronSecret(c) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{
			Error:   "authentication required",
			Message: "provide a valid API token or cron secret",
			Code:    401,
		})
	}
}

// validateAPIToken checks Authorization bearer and X-API-Token headers
func (v *Validator) validateAPIToken(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return v.apiTokens[strings.TrimPrefix(authHeader, "Bearer ")]
	}

	token := c.GetHeader("X-API-Token")
	if token != "" {
		return v.apiTokens[token]
	}

	return false
}

// validateCronSecret checks the X-Cron-Secret header and the token query
// param; the query form exists for schedulers that cannot send custom
// headers.
func (v *Validator) validateCronSecret(c *gin.Context) bool {
	if v.cronSecret == "" {
		return false
	}

	secret := c.GetHeader("X-Cron-Secret")
	if secret == "" {
		secret = c.Query("token")
	}
	if secret == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(secret), []byte(v.cronSecret)) == 1
}
