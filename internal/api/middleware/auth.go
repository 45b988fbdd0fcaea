package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/repository"
	"github.com/gibbarosa/storefront/pkg/errors"
)

const operatorContextKey = "operator"

// OperatorAuth authenticates back-office calls with a bearer API key
func OperatorAuth(operators repository.OperatorRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		apiKey, found := strings.CutPrefix(header, "Bearer ")
		apiKey = strings.TrimSpace(apiKey)
		if !found || apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		operator, err := operators.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			if _, ok := err.(*errors.ErrUnauthorized); !ok && !errors.IsNotFound(err) {
				logger.Error("Failed to authenticate operator", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			logger.Warn("Rejected operator API key",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(operatorContextKey, operator)
		c.Next()
	}
}

// GetOperatorFromContext returns the operator set by OperatorAuth
func GetOperatorFromContext(c *gin.Context) (*domain.Operator, bool) {
	v, ok := c.Get(operatorContextKey)
	if !ok {
		return nil, false
	}
	operator, ok := v.(*domain.Operator)
	return operator, ok
}
