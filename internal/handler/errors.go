package handler

import (
	"errors"
	"net/http"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError renders err as {"error": ..., "request_id": ...} with the status
// code carried by a *domain.ServiceError, or 500 otherwise.
func writeError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	requestID := c.GetString(middleware.RequestIDKey)
	status := domain.StatusCode(err)

	var se *domain.ServiceError
	if !errors.As(err, &se) {
		// unclassified errors are bugs; keep their text out of the response
		logger.Error(msg, zap.String("request_id", requestID), zap.Error(err))
		c.JSON(status, gin.H{"error": msg, "request_id": requestID})
		return
	}

	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.String("request_id", requestID), zap.Int("status", status), zap.Error(err))
	} else {
		logger.Info(msg, zap.String("request_id", requestID), zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": se.Message, "request_id": requestID})
}
