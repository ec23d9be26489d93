package handler

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bacopilot/internal/app"
	"bacopilot/internal/logging"
	"bacopilot/internal/transport/http/middleware"
	"bacopilot/internal/transport/http/response"
)

type errorMapping struct {
	target error
	status int
	code   int
}

// serviceErrors maps service sentinels to HTTP answers, first match wins.
var serviceErrors = []errorMapping{
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrEmailExists, http.StatusBadRequest, response.CodeEmailExists},
	{app.ErrWrongPassword, http.StatusBadRequest, response.CodeWrongPassword},
	{app.ErrInvalidDocType, http.StatusBadRequest, response.CodeInvalidDocType},
	{app.ErrInvalidStatus, http.StatusBadRequest, response.CodeInvalidStatus},
	{app.ErrFolderCycle, http.StatusBadRequest, response.CodeFolderCycle},
	{app.ErrEmailNotFound, http.StatusBadRequest, response.CodeEmailNotFound},
	{app.ErrInvalidOTP, http.StatusBadRequest, response.CodeInvalidOTP},
	{app.ErrInvalidCredential, http.StatusUnauthorized, response.CodeInvalidCredentials},
	{app.ErrInvalidToken, http.StatusUnauthorized, response.CodeUnauthorized},
	{app.ErrInvalidRefreshToken, http.StatusUnauthorized, response.CodeInvalidRefreshToken},
	{app.ErrRefreshTokenExpired, http.StatusUnauthorized, response.CodeRefreshTokenExpired},
	{app.ErrForbidden, http.StatusForbidden, response.CodeForbidden},
	{app.ErrUserNotFound, http.StatusNotFound, response.CodeUserNotFound},
	{app.ErrProjectNotFound, http.StatusNotFound, response.CodeProjectNotFound},
	{app.ErrFolderNotFound, http.StatusNotFound, response.CodeFolderNotFound},
	{app.ErrParentNotFound, http.StatusNotFound, response.CodeFolderNotFound},
	{app.ErrFileNotFound, http.StatusNotFound, response.CodeFileNotFound},
	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrFolderNameExists, http.StatusConflict, response.CodeFolderNameExists},
	{app.ErrAIService, http.StatusBadGateway, response.CodeBadGateway},
	{app.ErrAINotConfigured, http.StatusInternalServerError, response.CodeAINotConfigured},
	{app.ErrStorageUpload, http.StatusInternalServerError, response.CodeStorageUpload},
	{app.ErrOTPUnavailable, http.StatusServiceUnavailable, response.CodeUnavailable},
}

// respondError writes the envelope for err. Errors without a mapping are
// logged and answered with 500 and fallback as message.
func respondError(c *gin.Context, err error, fallback string) {
	var missing *app.MissingDependenciesError
	if errors.As(err, &missing) {
		response.ErrorWithData(c, http.StatusUnprocessableEntity, response.CodeMissingDependencies, missing.Error(), gin.H{
			"doc_type":            missing.DocType,
			"missing_required":    missing.MissingRequired,
			"missing_recommended": missing.MissingRecommended,
		})
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			message := m.target.Error()
			if m.status >= http.StatusInternalServerError {
				logging.FromContext(c.Request.Context()).Error(fallback, "error", err)
			}
			response.Error(c, m.status, m.code, message)
			return
		}
	}

	if app.IsCanceled(err) {
		// client went away, nobody reads the answer
		c.Status(499)
		return
	}
	logging.FromContext(c.Request.Context()).Error(fallback, "error", err)
	_ = c.Error(err)
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

// requireUser reads the authenticated user id, answering 401 when absent.
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// attachment sends body as a Markdown download named filename. Quotes and
// non ASCII names are encoded by mime.FormatMediaType.
func attachment(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", body)
}
