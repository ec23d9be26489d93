package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bacopilot/internal/app"
	"bacopilot/internal/documents"
	"bacopilot/internal/transport/http/response"
)

// DocumentHandler serves the generate/list/get/update/regenerate/export
// routes of one step family (srs, wireframe, diagram, planning, design,
// analysis).
type DocumentHandler struct {
	documentService *app.DocumentService
	step            documents.Step
}

type GenerateDocumentRequest struct {
	// DocType selects the document for multi type steps. Diagram routes also
	// accept the short name (usecase, class, activity) in DiagramType.
	DocType     string            `json:"doc_type"`
	DiagramType string            `json:"diagram_type"`
	Title       string            `json:"title" binding:"max=255"`
	Description string            `json:"description" binding:"required"`
	DeviceType  string            `json:"device_type"`
	Options     map[string]string `json:"options"`
}

type RegenerateDocumentRequest struct {
	Title       string            `json:"title" binding:"max=255"`
	Description string            `json:"description" binding:"required"`
	DeviceType  string            `json:"device_type"`
	Options     map[string]string `json:"options"`
}

type UpdateDocumentRequest struct {
	Content *string `json:"content"`
	Status  *string `json:"status"`
}

func NewDocumentHandler(documentService *app.DocumentService, step documents.Step) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, step: step}
}

func (h *DocumentHandler) Generate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	var req GenerateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	name := req.DocType
	if name == "" {
		name = req.DiagramType
	}
	docType, ok := h.resolveDocType(name)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidDocType, app.ErrInvalidDocType.Error())
		return
	}

	result, err := h.documentService.Generate(c.Request.Context(), userID, app.GenerateInput{
		ProjectID:   projectID,
		DocType:     docType,
		Title:       req.Title,
		Description: req.Description,
		Options:     withDevice(req.Options, req.DeviceType),
	})
	if err != nil {
		respondError(c, err, "generate document failed")
		return
	}
	response.Created(c, result)
}

func (h *DocumentHandler) Regenerate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "document_id")
	if !ok {
		return
	}
	var req RegenerateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if !h.owns(c, userID, documentID) {
		return
	}

	result, err := h.documentService.Regenerate(c.Request.Context(), userID, app.RegenerateInput{
		DocumentID:  documentID,
		Title:       req.Title,
		Description: req.Description,
		Options:     withDevice(req.Options, req.DeviceType),
	})
	if err != nil {
		respondError(c, err, "regenerate document failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "document_id")
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if !h.owns(c, userID, documentID) {
		return
	}

	view, err := h.documentService.Update(c.Request.Context(), userID, documentID, app.UpdateDocumentInput{
		Content: req.Content,
		Status:  req.Status,
	})
	if err != nil {
		respondError(c, err, "update document failed")
		return
	}
	response.OK(c, view)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}
	input := app.ListDocumentsInput{ProjectID: projectID, Step: h.step}
	if raw := c.Query("doc_type"); raw != "" {
		docType, ok := h.resolveDocType(raw)
		if !ok {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidDocType, app.ErrInvalidDocType.Error())
			return
		}
		input.DocType = docType
	}

	views, err := h.documentService.List(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err, "list documents failed")
		return
	}
	response.OK(c, views)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "document_id")
	if !ok {
		return
	}
	view, err := h.documentService.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		respondError(c, err, "fetch document failed")
		return
	}
	if view.Step != string(h.step) {
		respondError(c, app.ErrDocumentNotFound, "fetch document failed")
		return
	}
	response.OK(c, view)
}

func (h *DocumentHandler) Export(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "document_id")
	if !ok {
		return
	}
	if !h.owns(c, userID, documentID) {
		return
	}
	name, body, err := h.documentService.Export(c.Request.Context(), userID, documentID)
	if err != nil {
		respondError(c, err, "export document failed")
		return
	}
	attachment(c, name, body)
}

// owns answers 404 unless the document exists, is visible to the user and
// belongs to this handler's step.
func (h *DocumentHandler) owns(c *gin.Context, userID uint, documentID uuid.UUID) bool {
	view, err := h.documentService.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		respondError(c, err, "fetch document failed")
		return false
	}
	if view.Step != string(h.step) {
		respondError(c, app.ErrDocumentNotFound, "fetch document failed")
		return false
	}
	return true
}

func (h *DocumentHandler) resolveDocType(name string) (string, bool) {
	switch h.step {
	case documents.StepSRS, documents.StepWireframe:
		if name == "" {
			return string(h.step), true
		}
	case documents.StepDiagram:
		return documents.DiagramType(name)
	}
	kind, ok := documents.Lookup(name)
	if !ok || kind.Step != h.step {
		return "", false
	}
	return kind.Type, true
}

func withDevice(options map[string]string, device string) map[string]string {
	if device == "" {
		return options
	}
	out := make(map[string]string, len(options)+1)
	for k, v := range options {
		out[k] = v
	}
	out["device_type"] = device
	return out
}
