package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bacopilot/internal/app"
	"bacopilot/internal/transport/http/response"
)

type ProjectHandler struct {
	projectService *app.ProjectService
	fileService    *app.FileService
}

type CreateProjectRequest struct {
	Name        string         `json:"name" binding:"required,max=255"`
	Description string         `json:"description"`
	Settings    map[string]any `json:"settings"`
}

type UpdateProjectRequest struct {
	Name        *string        `json:"name" binding:"omitempty,max=255"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Settings    map[string]any `json:"settings"`
}

func NewProjectHandler(projectService *app.ProjectService, fileService *app.FileService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, fileService: fileService}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), userID, app.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		respondError(c, err, "create project failed")
		return
	}
	response.Created(c, project)
}

// List supports ?name=, ?sort_field=, ?sort= and the created/updated
// after/before filters, given as RFC 3339 timestamps or YYYY-MM-DD dates.
func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	input := app.ListProjectsInput{
		Name:      c.Query("name"),
		SortField: c.Query("sort_field"),
		Sort:      c.Query("sort"),
	}
	filters := []struct {
		param string
		dst   **time.Time
	}{
		{"created_after", &input.CreatedAfter},
		{"created_before", &input.CreatedBefore},
		{"updated_after", &input.UpdatedAfter},
		{"updated_before", &input.UpdatedBefore},
	}
	for _, f := range filters {
		raw := c.Query(f.param)
		if raw == "" {
			continue
		}
		t, err := parseTimeQuery(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+f.param)
			return
		}
		*f.dst = &t
	}

	projects, err := h.projectService.List(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err, "list projects failed")
		return
	}
	response.OK(c, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	project, err := h.projectService.Get(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err, "fetch project failed")
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), userID, projectID, app.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Settings:    req.Settings,
	})
	if err != nil {
		respondError(c, err, "update project failed")
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	if err := h.projectService.Delete(c.Request.Context(), userID, projectID); err != nil {
		respondError(c, err, "delete project failed")
		return
	}
	response.OK(c, gin.H{"message": "project deleted"})
}

func (h *ProjectHandler) Contents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	contents, err := h.projectService.RootContents(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err, "fetch project contents failed")
		return
	}
	response.OK(c, contents)
}

func (h *ProjectHandler) Tree(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	tree, err := h.projectService.Tree(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err, "fetch project tree failed")
		return
	}
	response.OK(c, tree)
}

func (h *ProjectHandler) StoragePaths(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	paths, err := h.fileService.StoragePaths(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err, "list storage paths failed")
		return
	}
	response.OK(c, gin.H{"storage_paths": paths})
}

func parseTimeQuery(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
