package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeUnauthorized   = "unauthorized"
	errorCodeRateLimited    = "rate_limited"
	errorCodeInternal       = "internal_error"
)

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Input   any    `json:"input,omitempty"`
}

// respondError maps a service error onto its HTTP status. Validation failures
// echo the caller's input so it can be re-displayed.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var domainErr *domainerr.Error
	if errors.As(err, &domainErr) {
		payload := errorPayload{Error: domainErr.Code, Message: domainErr.Message}
		if payload.Error == "" {
			payload.Error = string(domainErr.Kind)
		}
		switch domainErr.Kind {
		case domainerr.KindNotFound, domainerr.KindOutOfRange:
			c.AbortWithStatusJSON(http.StatusNotFound, payload)
		case domainerr.KindForbidden:
			c.AbortWithStatusJSON(http.StatusForbidden, payload)
		case domainerr.KindValidation:
			payload.Input = domainErr.Input
			c.AbortWithStatusJSON(http.StatusBadRequest, payload)
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, payload)
		}
		return
	}

	code := errorCodeInternal
	var serviceErr *domainerr.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}
	h.logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("code", code),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorPayload{Error: code})
}

func respondInvalidRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorPayload{Error: errorCodeInvalidRequest, Message: message})
}
