package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// internalError logs the full error under a fresh correlation id and sends
// the client only the generic message and that id.
func (h *Handler) internalError(c *gin.Context, err error, message string) {
	correlationID := uuid.NewString()

	h.logger.WithError(err).WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"request_id":     c.GetString(requestIDKey),
		"method":         c.Request.Method,
		"path":           c.FullPath(),
	}).Error(message)

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":          message,
		"correlation_id": correlationID,
	})
}
