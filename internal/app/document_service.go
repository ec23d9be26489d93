package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bacopilot/internal/ai"
	"bacopilot/internal/documents"
	"bacopilot/internal/logging"
	"bacopilot/internal/metrics"
	"bacopilot/internal/model"
	"bacopilot/internal/platform/storage"
	"bacopilot/internal/repository"
)

// Generated document statuses a user may set through Update.
var documentStatuses = map[string]struct{}{
	"active":    {},
	"draft":     {},
	"published": {},
	"archived":  {},
}

type DocumentService struct {
	projectRepo *repository.ProjectRepository
	fileRepo    *repository.FileRepository
	folders     *FolderService
	store       storage.Store
	ai          *ai.Client
	endpoints   func(docType string) string
	cache       SessionCache
	now         func() time.Time
}

type DocumentOption func(*DocumentService)

func WithSessionCache(cache SessionCache) DocumentOption {
	return func(s *DocumentService) { s.cache = cache }
}

func WithDocumentClock(now func() time.Time) DocumentOption {
	return func(s *DocumentService) { s.now = now }
}

type GenerateInput struct {
	ProjectID   uint
	DocType     string
	Title       string
	Description string
	// Options carries type specific prompt parameters such as device_type
	// for wireframes.
	Options map[string]string
}

type RegenerateInput struct {
	DocumentID  uuid.UUID
	Title       string
	Description string
	Options     map[string]string
}

type UpdateDocumentInput struct {
	Content *string
	Status  *string
}

type ListDocumentsInput struct {
	ProjectID uint
	Step      documents.Step
	// DocType narrows the listing to one type of the step when set.
	DocType string
}

// DocumentResult is returned after a document was generated or regenerated.
type DocumentResult struct {
	DocumentID         string         `json:"document_id"`
	UserID             uint           `json:"user_id"`
	ProjectID          uint           `json:"project_id"`
	Title              string         `json:"title"`
	DocType            string         `json:"doc_type"`
	Step               string         `json:"step"`
	Status             string         `json:"status"`
	Document           string         `json:"document"`
	InputDescription   string         `json:"input_description"`
	StoragePath        string         `json:"storage_path"`
	Extra              map[string]any `json:"extra,omitempty"`
	RecommendDocuments []string       `json:"recommend_documents"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

type DocumentView struct {
	DocumentID  string         `json:"document_id"`
	ProjectID   uint           `json:"project_id"`
	FolderID    *uint          `json:"folder_id"`
	Title       string         `json:"title"`
	DocType     string         `json:"doc_type"`
	Step        string         `json:"step"`
	Status      string         `json:"status"`
	Content     string         `json:"content"`
	StoragePath string         `json:"storage_path"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func NewDocumentService(
	projectRepo *repository.ProjectRepository,
	fileRepo *repository.FileRepository,
	folders *FolderService,
	store storage.Store,
	client *ai.Client,
	endpoints func(docType string) string,
	opts ...DocumentOption,
) *DocumentService {
	s := &DocumentService{
		projectRepo: projectRepo,
		fileRepo:    fileRepo,
		folders:     folders,
		store:       store,
		ai:          client,
		endpoints:   endpoints,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate asks the AI service for a new document of input.DocType, stores it
// under the type's default folder and records the exchange. Gated kinds
// require their dependencies to already exist in the project; for the others
// missing dependencies only show up as recommendations.
func (s *DocumentService) Generate(ctx context.Context, userID uint, input GenerateInput) (*DocumentResult, error) {
	kind, ok := documents.Lookup(input.DocType)
	if !ok {
		return nil, ErrInvalidDocType
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, ErrInvalidInput
	}
	project, err := s.projectRepo.GetActive(ctx, input.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	existing, err := s.fileRepo.ListTypes(ctx, project.ID, userID)
	if err != nil {
		return nil, err
	}
	check := documents.CheckDependencies(kind.Type, existing)
	if kind.Gated && !check.CanProceed {
		return nil, &MissingDependenciesError{
			DocType:            kind.Type,
			MissingRequired:    check.MissingRequired,
			MissingRecommended: check.MissingRecommended,
		}
	}

	folder, err := s.folders.EnsureRoot(ctx, userID, project.ID, kind.Folder)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSpace(input.Title)
	if base == "" {
		base = defaultTitle(kind)
	}
	names, err := s.fileRepo.ListNames(ctx, project.ID, kind.Type)
	if err != nil {
		return nil, err
	}
	title := documents.UniqueTitle(base, names)

	paths, err := s.fileRepo.ListStoragePaths(ctx, project.ID, userID)
	if err != nil {
		return nil, err
	}
	prompt := kind.Prompt(documents.PromptInput{Title: title, Description: input.Description, Options: input.Options})
	payload := map[string]any{
		"message":       prompt,
		"storage_paths": paths,
	}

	logger := logging.FromContext(ctx).With("doc_type", kind.Type, "project_id", project.ID, "user_id", userID)
	result, err := s.callAI(ctx, kind.Type, payload)
	if err != nil {
		metrics.DocumentsGenerated.WithLabelValues(kind.Type, "failed").Inc()
		return nil, err
	}
	rendered := kind.Render(result.Response)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d/%d/%s/%s.md", userID, project.ID, folder.Name, objectName(title))
	if err := s.store.Put(ctx, key, strings.NewReader(rendered.Content), "text/markdown"); err != nil {
		metrics.DocumentsGenerated.WithLabelValues(kind.Type, "failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrStorageUpload, err)
	}

	aiResponse, _ := result.ResponseMap()
	meta := documents.GeneratedMetadata(kind.Type, rendered.Content, input.Description, aiResponse, kind.Step)
	for k, v := range rendered.Extra {
		meta[k] = v
	}

	file := &model.File{
		ProjectID:    project.ID,
		FolderID:     &folder.ID,
		CreatedBy:    userID,
		UpdatedBy:    userID,
		Name:         title,
		Extension:    ".md",
		StoragePath:  key,
		Content:      rendered.Content,
		FileCategory: model.FileCategoryAIGenerated,
		FileType:     kind.Type,
		Status:       model.FileStatusActive,
		Metadata:     meta,
	}
	sessions := conversation(project.ID, userID, kind.Type, input.Description, result.Response)
	if err := s.fileRepo.CreateWithSessions(ctx, file, sessions); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logger.Warn("remove orphaned object failed", "key", key, "error", delErr)
		}
		metrics.DocumentsGenerated.WithLabelValues(kind.Type, "failed").Inc()
		return nil, err
	}
	s.invalidate(ctx, file.ID)

	metrics.DocumentsGenerated.WithLabelValues(kind.Type, "success").Inc()
	logger.Info("document generated", "document_id", file.ID, "title", title)
	return &DocumentResult{
		DocumentID:         file.ID.String(),
		UserID:             userID,
		ProjectID:          project.ID,
		Title:              title,
		DocType:            kind.Type,
		Step:               string(kind.Step),
		Status:             file.Status,
		Document:           rendered.Content,
		InputDescription:   input.Description,
		StoragePath:        key,
		Extra:              rendered.Extra,
		RecommendDocuments: check.MissingRecommended,
		GeneratedAt:        s.now(),
	}, nil
}

// Regenerate replaces the content of an existing generated document with a
// fresh AI answer. Only the creator may regenerate a document.
func (s *DocumentService) Regenerate(ctx context.Context, userID uint, input RegenerateInput) (*DocumentResult, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, ErrInvalidInput
	}
	file, kind, err := s.getGenerated(ctx, input.DocumentID, userID)
	if err != nil {
		return nil, err
	}
	if file.CreatedBy != userID {
		return nil, ErrForbidden
	}

	title := file.Name
	if t := strings.TrimSpace(input.Title); t != "" {
		title = t
	}
	paths, err := s.fileRepo.ListStoragePaths(ctx, file.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"message":       kind.Prompt(documents.PromptInput{Title: title, Description: input.Description, Options: input.Options}),
		"storage_paths": paths,
		"content_id":    file.ID.String(),
	}

	result, err := s.callAI(ctx, kind.Type, payload)
	if err != nil {
		return nil, err
	}
	rendered := kind.Render(result.Response)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, file.StoragePath, strings.NewReader(rendered.Content), "text/markdown"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUpload, err)
	}

	aiResponse, _ := result.ResponseMap()
	meta := documents.GeneratedMetadata(kind.Type, rendered.Content, input.Description, aiResponse, kind.Step)
	for k, v := range rendered.Extra {
		meta[k] = v
	}
	file.Name = title
	file.Content = rendered.Content
	file.Metadata = documents.MergeMetadata(file.Metadata, meta)
	file.UpdatedBy = userID

	sessions := conversation(file.ProjectID, userID, kind.Type, input.Description, result.Response)
	if err := s.fileRepo.SaveWithSessions(ctx, file, sessions); err != nil {
		return nil, err
	}
	s.invalidate(ctx, file.ID)

	metrics.DocumentsGenerated.WithLabelValues(kind.Type, "regenerated").Inc()
	logging.FromContext(ctx).Info("document regenerated", "document_id", file.ID, "doc_type", kind.Type)
	return &DocumentResult{
		DocumentID:         file.ID.String(),
		UserID:             userID,
		ProjectID:          file.ProjectID,
		Title:              title,
		DocType:            kind.Type,
		Step:               string(kind.Step),
		Status:             file.Status,
		Document:           rendered.Content,
		InputDescription:   input.Description,
		StoragePath:        file.StoragePath,
		Extra:              rendered.Extra,
		RecommendDocuments: []string{},
		GeneratedAt:        s.now(),
	}, nil
}

// Update edits the content and/or status of a generated document and writes
// the new content back to storage.
func (s *DocumentService) Update(ctx context.Context, userID uint, documentID uuid.UUID, input UpdateDocumentInput) (*DocumentView, error) {
	file, kind, err := s.getGenerated(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if file.CreatedBy != userID {
		return nil, ErrForbidden
	}

	if input.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*input.Status))
		if _, ok := documentStatuses[status]; !ok {
			return nil, ErrInvalidStatus
		}
		file.Status = status
	}
	if input.Content != nil {
		if err := s.store.Put(ctx, file.StoragePath, strings.NewReader(*input.Content), "text/markdown"); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUpload, err)
		}
		file.Content = *input.Content
		meta := documents.GeneratedMetadata(kind.Type, file.Content, "", nil, kind.Step)
		delete(meta, "extraction_status")
		file.Metadata = documents.MergeMetadata(file.Metadata, meta)
	}
	file.UpdatedBy = userID
	if err := s.fileRepo.Save(ctx, file); err != nil {
		return nil, err
	}
	view := toView(file, kind)
	return &view, nil
}

// List returns the generated documents of a step, newest first.
func (s *DocumentService) List(ctx context.Context, userID uint, input ListDocumentsInput) ([]DocumentView, error) {
	project, err := s.projectRepo.GetActive(ctx, input.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	types := documents.TypesForStep(input.Step)
	if input.DocType != "" {
		kind, ok := documents.Lookup(input.DocType)
		if !ok || kind.Step != input.Step {
			return nil, ErrInvalidDocType
		}
		types = []string{kind.Type}
	}

	files, err := s.fileRepo.ListGenerated(ctx, project.ID, userID, types)
	if err != nil {
		return nil, err
	}
	views := make([]DocumentView, 0, len(files))
	for i := range files {
		kind, _ := documents.Lookup(files[i].FileType)
		v := toView(&files[i], kind)
		v.Metadata = nil
		views = append(views, v)
	}
	return views, nil
}

func (s *DocumentService) Get(ctx context.Context, userID uint, documentID uuid.UUID) (*DocumentView, error) {
	file, kind, err := s.getGenerated(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	view := toView(file, kind)
	return &view, nil
}

// Export returns a Markdown attachment name and body for a document.
func (s *DocumentService) Export(ctx context.Context, userID uint, documentID uuid.UUID) (string, []byte, error) {
	file, _, err := s.getGenerated(ctx, documentID, userID)
	if err != nil {
		return "", nil, err
	}
	return exportFile(ctx, s.store, file)
}

func (s *DocumentService) getGenerated(ctx context.Context, id uuid.UUID, userID uint) (*model.File, documents.Kind, error) {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, documents.Kind{}, err
	}
	if file == nil || file.Status == model.FileStatusDeleted || file.FileCategory != model.FileCategoryAIGenerated {
		return nil, documents.Kind{}, ErrDocumentNotFound
	}
	project, err := s.projectRepo.GetActive(ctx, file.ProjectID, userID)
	if err != nil {
		return nil, documents.Kind{}, err
	}
	if project == nil {
		return nil, documents.Kind{}, ErrDocumentNotFound
	}
	kind, ok := documents.Lookup(file.FileType)
	if !ok {
		return nil, documents.Kind{}, ErrDocumentNotFound
	}
	return file, kind, nil
}

func (s *DocumentService) callAI(ctx context.Context, docType string, payload map[string]any) (*ai.Result, error) {
	url := ""
	if s.endpoints != nil {
		url = s.endpoints(docType)
	}
	if strings.TrimSpace(url) == "" {
		return nil, ErrAINotConfigured
	}

	result, err := s.ai.Call(ctx, url, payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrAIService, err)
	}
	return result, nil
}

func (s *DocumentService) invalidate(ctx context.Context, contentID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, contentID.String()); err != nil {
		logging.FromContext(ctx).Warn("invalidate session cache failed", "content_id", contentID, "error", err)
	}
}

func conversation(projectID, userID uint, docType, description string, response any) []model.ChatSession {
	return []model.ChatSession{
		{ProjectID: projectID, UserID: userID, ContentType: docType, Role: model.ChatRoleUser, Message: description},
		{ProjectID: projectID, UserID: userID, ContentType: docType, Role: model.ChatRoleAI, Message: encodeResponse(response)},
	}
}

func encodeResponse(response any) string {
	if s, ok := response.(string); ok {
		return s
	}
	b, err := json.Marshal(response)
	if err != nil {
		return documents.FormatResponse(response)
	}
	return string(b)
}

// objectName turns a title into a single object key segment. Separators are
// replaced and leading dots dropped so a title cannot leave its folder prefix.
func objectName(title string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(title)
	name = strings.TrimLeft(strings.TrimSpace(name), ".")
	if name == "" {
		return "untitled"
	}
	return name
}

func defaultTitle(kind documents.Kind) string {
	switch kind.Step {
	case documents.StepWireframe:
		return "Wireframe"
	case documents.StepDiagram:
		return "Diagram"
	}
	words := strings.Split(kind.Type, "-")
	for i, w := range words {
		switch w {
		case "srs", "hld", "lld", "rtm", "uiux":
			words[i] = strings.ToUpper(w)
		default:
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
	}
	return strings.Join(words, " ")
}

func toView(file *model.File, kind documents.Kind) DocumentView {
	return DocumentView{
		DocumentID:  file.ID.String(),
		ProjectID:   file.ProjectID,
		FolderID:    file.FolderID,
		Title:       file.Name,
		DocType:     file.FileType,
		Step:        string(kind.Step),
		Status:      file.Status,
		Content:     file.Content,
		StoragePath: file.StoragePath,
		Metadata:    file.Metadata,
		CreatedAt:   file.CreatedAt,
		UpdatedAt:   file.UpdatedAt,
	}
}

// IsCanceled reports whether err means the caller gave up on the operation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
