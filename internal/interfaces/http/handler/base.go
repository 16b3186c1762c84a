package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/sgpp/costrecovery/internal/interfaces/http/dto"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "request_id"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return ""
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response, used by the batch trigger
// endpoints whose work continues after the response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain errors to HTTP responses; unknown error
// types surface as 500 without leaking internals
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
