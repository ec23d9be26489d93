package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"bacopilot/internal/documents"
	"bacopilot/internal/logging"
	"bacopilot/internal/model"
	"bacopilot/internal/pkg/pdfextract"
	"bacopilot/internal/platform/storage"
	"bacopilot/internal/repository"
)

// MetadataJobPublisher hands uploaded files to the metadata extraction worker.
type MetadataJobPublisher interface {
	PublishMetadataJob(ctx context.Context, job model.MetadataJob) error
}

type FileService struct {
	projectRepo *repository.ProjectRepository
	folderRepo  *repository.FolderRepository
	fileRepo    *repository.FileRepository
	store       storage.Store
	publisher   MetadataJobPublisher
}

type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type UploadInput struct {
	ProjectID uint
	FolderID  *uint
	Path      string
	Files     []UploadedFile
}

// UploadResult lists stored files and the names that were skipped.
type UploadResult struct {
	Files   []model.File `json:"files"`
	Skipped []string     `json:"skipped"`
}

func NewFileService(
	projectRepo *repository.ProjectRepository,
	folderRepo *repository.FolderRepository,
	fileRepo *repository.FileRepository,
	store storage.Store,
	publisher MetadataJobPublisher,
) *FileService {
	return &FileService{
		projectRepo: projectRepo,
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
		store:       store,
		publisher:   publisher,
	}
}

// Upload stores each file in the bucket together with a Markdown copy for
// text, Markdown and PDF files, records it, and queues metadata extraction.
// Files without an extension are skipped.
func (s *FileService) Upload(ctx context.Context, userID uint, input UploadInput) (*UploadResult, error) {
	project, err := s.projectRepo.GetActive(ctx, input.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	if input.FolderID != nil {
		folder, err := s.folderRepo.GetActive(ctx, *input.FolderID)
		if err != nil {
			return nil, err
		}
		if folder == nil || folder.ProjectID != project.ID {
			return nil, ErrFolderNotFound
		}
	}
	if len(input.Files) == 0 {
		return nil, ErrInvalidInput
	}

	logger := logging.FromContext(ctx).With("project_id", project.ID, "user_id", userID)
	result := &UploadResult{Files: []model.File{}, Skipped: []string{}}
	for _, upload := range input.Files {
		filename := path.Base(strings.ReplaceAll(upload.Filename, "\\", "/"))
		ext := strings.ToLower(path.Ext(filename))
		if ext == "" || ext == filename {
			result.Skipped = append(result.Skipped, upload.Filename)
			continue
		}

		file, err := s.storeUpload(ctx, userID, project.ID, input, filename, ext, upload)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, *file)
		logger.Info("file uploaded", "file_id", file.ID, "name", file.Name)
	}
	return result, nil
}

func (s *FileService) storeUpload(ctx context.Context, userID, projectID uint, input UploadInput, filename, ext string, upload UploadedFile) (*model.File, error) {
	names, err := s.fileRepo.ListNames(ctx, projectID, ext)
	if err != nil {
		return nil, err
	}
	existing := make([]string, 0, len(names))
	for _, n := range names {
		existing = append(existing, strings.TrimSuffix(n, path.Ext(n)))
	}
	name := documents.UniqueTitle(strings.TrimSuffix(filename, path.Ext(filename)), existing) + ext

	dir := fmt.Sprintf("%d/%d/user", userID, projectID)
	// cleaning against the root drops ".." segments that would leave dir
	if p := strings.Trim(path.Clean("/"+strings.ReplaceAll(strings.TrimSpace(input.Path), "\\", "/")), "/"); p != "" {
		dir += "/" + p
	}
	key := fmt.Sprintf("%s/%s_%s", dir, uuid.NewString(), name)

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Put(ctx, key, bytes.NewReader(upload.Data), contentType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUpload, err)
	}

	markdown := toMarkdown(ctx, ext, upload.Data)
	var mdKey string
	if markdown != "" {
		mdKey = key + ".md"
		if err := s.store.Put(ctx, mdKey, strings.NewReader(markdown), "text/markdown"); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUpload, err)
		}
	}

	status := documents.ExtractionSkipped
	if markdown != "" && s.publisher != nil {
		status = documents.ExtractionPending
	}

	file := &model.File{
		ProjectID:     projectID,
		FolderID:      input.FolderID,
		CreatedBy:     userID,
		UpdatedBy:     userID,
		Name:          name,
		Extension:     ext,
		StoragePath:   key,
		StorageMDPath: mdKey,
		Content:       markdown,
		FileCategory:  model.FileCategoryUpload,
		FileType:      ext,
		Status:        model.FileStatusActive,
		Metadata: map[string]any{
			"extraction_status": status,
			"source_file":       filename,
		},
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, err
	}

	if status == documents.ExtractionPending {
		job := model.MetadataJob{FileID: file.ID, ProjectID: projectID, UserID: userID}
		if err := s.publisher.PublishMetadataJob(ctx, job); err != nil {
			logging.FromContext(ctx).Warn("queue metadata extraction failed", "file_id", file.ID, "error", err)
			failed := documents.MergeMetadata(file.Metadata, documents.FailedMetadata(err))
			if err := s.fileRepo.UpdateMetadata(ctx, file.ID, failed); err == nil {
				file.Metadata = failed
			}
		}
	}
	return file, nil
}

func toMarkdown(ctx context.Context, ext string, data []byte) string {
	switch ext {
	case ".md", ".markdown", ".txt":
		return string(data)
	case ".pdf":
		text, err := pdfextract.ToMarkdown(data)
		if err != nil {
			if !errors.Is(err, pdfextract.ErrNoText) {
				logging.FromContext(ctx).Warn("extract pdf text failed", "error", err)
			}
			return ""
		}
		return text
	default:
		return ""
	}
}

func (s *FileService) Get(ctx context.Context, userID uint, fileID uuid.UUID) (*model.File, error) {
	file, err := s.fileRepo.GetActive(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// Export returns an attachment name and the Markdown body of a file.
func (s *FileService) Export(ctx context.Context, userID uint, fileID uuid.UUID) (string, []byte, error) {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return "", nil, err
	}
	return exportFile(ctx, s.store, file)
}

func (s *FileService) Delete(ctx context.Context, userID uint, fileID uuid.UUID) error {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return err
	}
	file.Status = model.FileStatusDeleted
	file.UpdatedBy = userID
	return s.fileRepo.Save(ctx, file)
}

// StoragePaths lists the object keys AI services receive as project context.
func (s *FileService) StoragePaths(ctx context.Context, userID, projectID uint) ([]string, error) {
	project, err := s.projectRepo.GetActive(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return s.fileRepo.ListStoragePaths(ctx, projectID, userID)
}

func exportFile(ctx context.Context, store storage.Store, file *model.File) (string, []byte, error) {
	name := strings.ReplaceAll(strings.TrimSuffix(file.Name, file.Extension), " ", "_") + ".md"
	if file.Content != "" {
		return name, []byte(file.Content), nil
	}

	key := file.StorageMDPath
	if key == "" {
		key = file.StoragePath
	}
	data, err := store.Get(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("read %s from storage failed: %w", key, err)
	}
	return name, data, nil
}
