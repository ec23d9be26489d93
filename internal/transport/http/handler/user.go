package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bacopilot/internal/app"
	"bacopilot/internal/transport/http/response"
)

type UserHandler struct {
	userService *app.UserService
}

type UpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=128"`
	Email *string `json:"email" binding:"omitempty,email,max=255"`
}

func NewUserHandler(userService *app.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.userService.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "fetch user failed")
		return
	}
	response.OK(c, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	user, err := h.userService.Update(c.Request.Context(), userID, app.UpdateUserInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		respondError(c, err, "update user failed")
		return
	}
	response.OK(c, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.userService.Delete(c.Request.Context(), userID); err != nil {
		respondError(c, err, "delete user failed")
		return
	}
	response.OK(c, gin.H{"message": "user deleted"})
}
