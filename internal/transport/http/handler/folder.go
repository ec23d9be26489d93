package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bacopilot/internal/app"
	"bacopilot/internal/transport/http/response"
)

type FolderHandler struct {
	folderService *app.FolderService
}

type CreateFolderRequest struct {
	ProjectID uint   `json:"project_id" binding:"required"`
	Name      string `json:"name" binding:"required,max=255"`
	ParentID  *uint  `json:"parent_id"`
}

type UpdateFolderRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=255"`
	ParentID *uint   `json:"parent_id"`
}

func NewFolderHandler(folderService *app.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

func (h *FolderHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	folder, err := h.folderService.Create(c.Request.Context(), userID, req.ProjectID, app.CreateFolderInput{
		Name:     req.Name,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondError(c, err, "create folder failed")
		return
	}
	response.Created(c, folder)
}

func (h *FolderHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := uintParam(c, "folder_id")
	if !ok {
		return
	}
	var req UpdateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	folder, err := h.folderService.Update(c.Request.Context(), userID, folderID, app.UpdateFolderInput{
		Name:     req.Name,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondError(c, err, "update folder failed")
		return
	}
	response.OK(c, folder)
}

func (h *FolderHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := uintParam(c, "folder_id")
	if !ok {
		return
	}
	if err := h.folderService.Delete(c.Request.Context(), userID, folderID); err != nil {
		respondError(c, err, "delete folder failed")
		return
	}
	response.OK(c, gin.H{"message": "folder deleted"})
}

func (h *FolderHandler) Contents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := uintParam(c, "folder_id")
	if !ok {
		return
	}
	contents, err := h.folderService.Contents(c.Request.Context(), userID, folderID)
	if err != nil {
		respondError(c, err, "fetch folder contents failed")
		return
	}
	response.OK(c, contents)
}
