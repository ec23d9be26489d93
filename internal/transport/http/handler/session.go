package handler

import (
	"github.com/gin-gonic/gin"

	"bacopilot/internal/app"
	"bacopilot/internal/transport/http/response"
)

type SessionHandler struct {
	sessionService *app.SessionService
}

func NewSessionHandler(sessionService *app.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	contentID, ok := uuidParam(c, "content_id")
	if !ok {
		return
	}
	sessions, err := h.sessionService.List(c.Request.Context(), userID, contentID)
	if err != nil {
		respondError(c, err, "list chat sessions failed")
		return
	}
	response.OK(c, sessions)
}
