package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bacopilot/internal/app"
	"bacopilot/internal/transport/http/response"
)

const maxUploadBytes = 20 << 20

type FileHandler struct {
	fileService *app.FileService
}

func NewFileHandler(fileService *app.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload stores the multipart "files" parts of the request. Optional form
// fields: folder_id and path (a sub path below the user upload prefix).
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files uploaded")
		return
	}

	input := app.UploadInput{
		ProjectID: projectID,
		Path:      c.PostForm("path"),
	}
	if raw := c.PostForm("folder_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || v == 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid folder_id")
			return
		}
		folderID := uint(v)
		input.FolderID = &folderID
	}

	for _, fh := range headers {
		if fh.Size > maxUploadBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBadRequest, fh.Filename+" is too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
			return
		}
		input.Files = append(input.Files, app.UploadedFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	result, err := h.fileService.Upload(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err, "upload files failed")
		return
	}
	response.Created(c, result)
}

func (h *FileHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := uuidParam(c, "file_id")
	if !ok {
		return
	}
	file, err := h.fileService.Get(c.Request.Context(), userID, fileID)
	if err != nil {
		respondError(c, err, "fetch file failed")
		return
	}
	response.OK(c, file)
}

func (h *FileHandler) Export(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := uuidParam(c, "file_id")
	if !ok {
		return
	}
	name, body, err := h.fileService.Export(c.Request.Context(), userID, fileID)
	if err != nil {
		respondError(c, err, "export file failed")
		return
	}
	attachment(c, name, body)
}

func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID, ok := uuidParam(c, "file_id")
	if !ok {
		return
	}
	if err := h.fileService.Delete(c.Request.Context(), userID, fileID); err != nil {
		respondError(c, err, "delete file failed")
		return
	}
	response.OK(c, gin.H{"message": "file deleted"})
}
