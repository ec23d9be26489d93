package app

import (
	"context"
	"strings"
	"time"

	"bacopilot/internal/model"
	"bacopilot/internal/repository"
)

var projectSortFields = map[string]struct{}{
	"name":       {},
	"created_at": {},
	"updated_at": {},
}

type ProjectService struct {
	projectRepo *repository.ProjectRepository
	folderRepo  *repository.FolderRepository
	fileRepo    *repository.FileRepository
}

type CreateProjectInput struct {
	Name        string
	Description string
	Settings    map[string]any
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *string
	Settings    map[string]any
}

type ListProjectsInput struct {
	Name          string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
	SortField     string
	Sort          string
}

// Contents is the direct listing of a folder or the project root.
type Contents struct {
	Folders []model.Folder `json:"folders"`
	Files   []model.File   `json:"files"`
}

type FolderNode struct {
	model.Folder
	Folders []*FolderNode `json:"folders"`
	Files   []model.File  `json:"files"`
}

type ProjectTree struct {
	ProjectID uint          `json:"project_id"`
	Name      string        `json:"name"`
	Folders   []*FolderNode `json:"folders"`
	Files     []model.File  `json:"files"`
}

func NewProjectService(
	projectRepo *repository.ProjectRepository,
	folderRepo *repository.FolderRepository,
	fileRepo *repository.FileRepository,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
	}
}

func (s *ProjectService) Create(ctx context.Context, userID uint, input CreateProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	project := &model.Project{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Status:      model.ProjectStatusActive,
		Settings:    input.Settings,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, userID uint, input ListProjectsInput) ([]model.Project, error) {
	sortField := strings.ToLower(strings.TrimSpace(input.SortField))
	if sortField == "" {
		sortField = "created_at"
	}
	if _, ok := projectSortFields[sortField]; !ok {
		return nil, ErrInvalidInput
	}

	var descending bool
	switch strings.ToUpper(strings.TrimSpace(input.Sort)) {
	case "", "ASC":
	case "DESC":
		descending = true
	default:
		return nil, ErrInvalidInput
	}

	return s.projectRepo.ListByUser(ctx, userID, repository.ProjectFilter{
		Name:          input.Name,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
		UpdatedAfter:  input.UpdatedAfter,
		UpdatedBefore: input.UpdatedBefore,
		SortField:     sortField,
		Descending:    descending,
	})
}

// Get returns an active project owned by userID.
func (s *ProjectService) Get(ctx context.Context, userID, projectID uint) (*model.Project, error) {
	project, err := s.projectRepo.GetActive(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, userID, projectID uint, input UpdateProjectInput) (*model.Project, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if status != model.ProjectStatusActive && status != model.ProjectStatusDeleted {
			return nil, ErrInvalidInput
		}
		project.Status = status
	}
	if input.Settings != nil {
		project.Settings = input.Settings
	}

	if err := s.projectRepo.Save(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete marks the project deleted. Folders and files stay untouched.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID uint) error {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return err
	}
	project.Status = model.ProjectStatusDeleted
	return s.projectRepo.Save(ctx, project)
}

func (s *ProjectService) RootContents(ctx context.Context, userID, projectID uint) (*Contents, error) {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	folders, err := s.folderRepo.ListRoots(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListRoot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Contents{Folders: folders, Files: files}, nil
}

// Tree returns every active folder nested under its parent with its files
// attached. Folders whose parent is deleted are left out.
func (s *ProjectService) Tree(ctx context.Context, userID, projectID uint) (*ProjectTree, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	folders, err := s.folderRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[uint]*FolderNode, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &FolderNode{Folder: f, Folders: []*FolderNode{}, Files: []model.File{}}
	}

	tree := &ProjectTree{
		ProjectID: project.ID,
		Name:      project.Name,
		Folders:   []*FolderNode{},
		Files:     []model.File{},
	}
	for _, file := range files {
		if file.FolderID == nil {
			tree.Files = append(tree.Files, file)
			continue
		}
		if node, ok := nodes[*file.FolderID]; ok {
			node.Files = append(node.Files, file)
		}
	}
	for _, f := range folders {
		node := nodes[f.ID]
		if f.ParentID == nil {
			tree.Folders = append(tree.Folders, node)
			continue
		}
		if parent, ok := nodes[*f.ParentID]; ok {
			parent.Folders = append(parent.Folders, node)
		}
	}
	return tree, nil
}
