package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/pkg/errors"
)

// respondError maps the error taxonomy to a status code. Unknown errors are
// logged and answered with msg only.
func respondError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	var validation *errors.ValidationError
	if stderrors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Message,
			"code":  validation.Code,
			"field": validation.Field,
		})
		return
	}

	var authenticity *errors.AuthenticityError
	if stderrors.As(err, &authenticity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": authenticity.Error()})
		return
	}

	var unauthorized *errors.ErrUnauthorized
	if stderrors.As(err, &unauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var notFound *errors.ErrNotFound
	if stderrors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return
	}

	logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
