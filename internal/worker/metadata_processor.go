package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bacopilot/internal/ai"
	"bacopilot/internal/documents"
	"bacopilot/internal/logging"
	"bacopilot/internal/metrics"
	"bacopilot/internal/model"
	"bacopilot/internal/platform/storage"
	"bacopilot/internal/repository"
)

var ErrFileGone = errors.New("file no longer exists")

// MetadataProcessor asks the metadata extraction service which document types
// an uploaded file contains and stores the answer on the file.
type MetadataProcessor struct {
	fileRepo *repository.FileRepository
	store    storage.Store
	client   *ai.Client
	endpoint string
}

func NewMetadataProcessor(fileRepo *repository.FileRepository, store storage.Store, client *ai.Client, endpoint string) *MetadataProcessor {
	return &MetadataProcessor{
		fileRepo: fileRepo,
		store:    store,
		client:   client,
		endpoint: endpoint,
	}
}

// Process handles one job. Extraction failures are recorded in the file
// metadata and are not returned; only failures to load or save the file are.
func (p *MetadataProcessor) Process(ctx context.Context, job model.MetadataJob) error {
	file, err := p.fileRepo.GetByID(ctx, job.FileID)
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("%w: %s", ErrFileGone, job.FileID)
	}

	logger := logging.FromContext(ctx).With("file_id", file.ID, "project_id", file.ProjectID)
	content, err := p.markdown(ctx, file)
	if err != nil {
		return p.fail(ctx, file, err)
	}

	result, err := p.client.Call(ctx, p.endpoint, map[string]any{
		"document_id": file.ID.String(),
		"content":     content,
		"filename":    sourceName(file),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("metadata extraction failed", "error", err)
		return p.fail(ctx, file, err)
	}

	meta := documents.MergeMetadata(file.Metadata, documents.UploadMetadata(result.Raw, content, sourceName(file)))
	delete(meta, "error")
	if err := p.fileRepo.UpdateMetadata(ctx, file.ID, meta); err != nil {
		return err
	}
	metrics.MetadataJobs.WithLabelValues("success").Inc()
	logger.Info("metadata extracted", "types", documents.DetectedTypes(meta))
	return nil
}

func (p *MetadataProcessor) fail(ctx context.Context, file *model.File, cause error) error {
	metrics.MetadataJobs.WithLabelValues("failed").Inc()
	meta := documents.MergeMetadata(file.Metadata, documents.FailedMetadata(cause))
	return p.fileRepo.UpdateMetadata(ctx, file.ID, meta)
}

func (p *MetadataProcessor) markdown(ctx context.Context, file *model.File) (string, error) {
	if file.Content != "" {
		return file.Content, nil
	}
	if file.StorageMDPath == "" {
		return "", errors.New("file has no markdown copy")
	}
	data, err := p.store.Get(ctx, file.StorageMDPath)
	if err != nil {
		return "", fmt.Errorf("read markdown copy failed: %w", err)
	}
	return string(data), nil
}

func sourceName(file *model.File) string {
	if name, ok := file.Metadata["source_file"].(string); ok && name != "" {
		return name
	}
	return file.Name
}

// jobKey identifies a delivery in logs.
func jobKey(id uuid.UUID) string {
	return "metadata:" + id.String()
}
