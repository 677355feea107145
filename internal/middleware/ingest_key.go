package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/response"
)

// IngestKey admits source integrations presenting the bearer key whose bcrypt hash is configured.
func IngestKey(hash string) gin.HandlerFunc {
	hashed := []byte(hash)
	return func(c *gin.Context) {
		if len(hashed) == 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrConfiguration, "ingest API key is not configured"))
			c.Abort()
			return
		}

		key, ok := bearerToken(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing ingest API key"))
			c.Abort()
			return
		}
		if err := bcrypt.CompareHashAndPassword(hashed, []byte(key)); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid ingest API key"))
			c.Abort()
			return
		}
		c.Next()
	}
}
