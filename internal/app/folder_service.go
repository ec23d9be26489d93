package app

import (
	"context"
	"strings"

	"bacopilot/internal/model"
	"bacopilot/internal/repository"
)

type FolderService struct {
	projectRepo *repository.ProjectRepository
	folderRepo  *repository.FolderRepository
	fileRepo    *repository.FileRepository
}

type CreateFolderInput struct {
	Name     string
	ParentID *uint
}

// UpdateFolderInput renames and/or moves a folder. A nil ParentID keeps the
// current parent.
type UpdateFolderInput struct {
	Name     *string
	ParentID *uint
}

func NewFolderService(
	projectRepo *repository.ProjectRepository,
	folderRepo *repository.FolderRepository,
	fileRepo *repository.FileRepository,
) *FolderService {
	return &FolderService{
		projectRepo: projectRepo,
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
	}
}

func (s *FolderService) Create(ctx context.Context, userID, projectID uint, input CreateFolderInput) (*model.Folder, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if err := s.requireProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	if input.ParentID != nil {
		parent, err := s.folderRepo.GetActive(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.ProjectID != projectID {
			return nil, ErrParentNotFound
		}
	}

	dup, err := s.folderRepo.FindSibling(ctx, projectID, input.ParentID, name, 0)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, ErrFolderNameExists
	}

	folder := &model.Folder{
		ProjectID: projectID,
		ParentID:  input.ParentID,
		Name:      name,
		CreatedBy: userID,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// EnsureRoot returns the root level folder called name, creating it when the
// project has none.
func (s *FolderService) EnsureRoot(ctx context.Context, userID, projectID uint, name string) (*model.Folder, error) {
	if err := s.requireProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	existing, err := s.folderRepo.FindSibling(ctx, projectID, nil, name, 0)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	folder := &model.Folder{ProjectID: projectID, Name: name, CreatedBy: userID}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *FolderService) Update(ctx context.Context, userID, folderID uint, input UpdateFolderInput) (*model.Folder, error) {
	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	parentID := folder.ParentID
	if input.ParentID != nil {
		parent, err := s.folderRepo.GetActive(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.ProjectID != folder.ProjectID {
			return nil, ErrParentNotFound
		}
		cycle, err := s.folderRepo.IsAncestorOrSelf(ctx, folder.ID, parent.ID)
		if err != nil {
			return nil, err
		}
		if cycle {
			return nil, ErrFolderCycle
		}
		parentID = &parent.ID
	}

	name := folder.Name
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
	}

	dup, err := s.folderRepo.FindSibling(ctx, folder.ProjectID, parentID, name, folder.ID)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, ErrFolderNameExists
	}

	folder.Name = name
	folder.ParentID = parentID
	if err := s.folderRepo.Save(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// Delete soft deletes the folder. Its children become unreachable from the tree.
func (s *FolderService) Delete(ctx context.Context, userID, folderID uint) error {
	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return err
	}
	folder.IsDeleted = true
	return s.folderRepo.Save(ctx, folder)
}

func (s *FolderService) Contents(ctx context.Context, userID, folderID uint) (*Contents, error) {
	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	folders, err := s.folderRepo.ListChildren(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListByFolder(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	return &Contents{Folders: folders, Files: files}, nil
}

func (s *FolderService) getOwned(ctx context.Context, userID, folderID uint) (*model.Folder, error) {
	folder, err := s.folderRepo.GetActive(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, ErrFolderNotFound
	}
	project, err := s.projectRepo.GetActive(ctx, folder.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrFolderNotFound
	}
	return folder, nil
}

func (s *FolderService) requireProject(ctx context.Context, userID, projectID uint) error {
	project, err := s.projectRepo.GetActive(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if project == nil {
		return ErrProjectNotFound
	}
	return nil
}
