package app

import (
	"context"
	"errors"
	"testing"

	"bacopilot/internal/testutil"
)

func TestFolderService_CreateAndMove(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, "ba@example.com")
	project := testutil.SeedProject(t, f.db, user.ID, "Shop")
	otherProject := testutil.SeedProject(t, f.db, user.ID, "Other")
	foreign := testutil.SeedFolder(t, f.db, otherProject.ID, nil, "foreign")

	docs, err := f.folders.Create(ctx, user.ID, project.ID, CreateFolderInput{Name: "Docs"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	specs, err := f.folders.Create(ctx, user.ID, project.ID, CreateFolderInput{Name: "Specs", ParentID: &docs.ID})
	if err != nil {
		t.Fatalf("Create() child error = %v", err)
	}
	if _, err := f.folders.Create(ctx, user.ID, project.ID, CreateFolderInput{Name: "Docs"}); !errors.Is(err, ErrFolderNameExists) {
		t.Fatalf("duplicate Create() error = %v, want ErrFolderNameExists", err)
	}
	if _, err := f.folders.Create(ctx, user.ID, project.ID, CreateFolderInput{Name: "x", ParentID: &foreign.ID}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("foreign parent error = %v, want ErrParentNotFound", err)
	}

	tests := []struct {
		name     string
		folderID uint
		parentID uint
		wantErr  error
	}{
		{"into itself", docs.ID, docs.ID, ErrFolderCycle},
		{"into descendant", docs.ID, specs.ID, ErrFolderCycle},
		{"into other project", specs.ID, foreign.ID, ErrParentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := tt.parentID
			_, err := f.folders.Update(ctx, user.ID, tt.folderID, UpdateFolderInput{ParentID: &parent})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	archive, err := f.folders.Create(ctx, user.ID, project.ID, CreateFolderInput{Name: "Archive"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	moved, err := f.folders.Update(ctx, user.ID, specs.ID, UpdateFolderInput{ParentID: &archive.ID})
	if err != nil {
		t.Fatalf("Update() move error = %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != archive.ID {
		t.Fatalf("ParentID = %v, want %d", moved.ParentID, archive.ID)
	}

	contents, err := f.folders.Contents(ctx, user.ID, archive.ID)
	if err != nil {
		t.Fatalf("Contents() error = %v", err)
	}
	if len(contents.Folders) != 1 || contents.Folders[0].ID != specs.ID {
		t.Fatalf("unexpected contents %+v", contents)
	}

	stranger := testutil.SeedUser(t, f.db, "x@example.com")
	if _, err := f.folders.Contents(ctx, stranger.ID, archive.ID); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("Contents() by stranger error = %v, want ErrFolderNotFound", err)
	}
}

func TestFolderService_EnsureRootAndDelete(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, "ba@example.com")
	project := testutil.SeedProject(t, f.db, user.ID, "Shop")

	first, err := f.folders.EnsureRoot(ctx, user.ID, project.ID, "srs")
	if err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}
	second, err := f.folders.EnsureRoot(ctx, user.ID, project.ID, "srs")
	if err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("EnsureRoot created a second folder: %d != %d", first.ID, second.ID)
	}

	if err := f.folders.Delete(ctx, user.ID, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.folders.Contents(ctx, user.ID, first.ID); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("Contents() of deleted folder error = %v, want ErrFolderNotFound", err)
	}
	third, err := f.folders.EnsureRoot(ctx, user.ID, project.ID, "srs")
	if err != nil {
		t.Fatalf("EnsureRoot() after delete error = %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("EnsureRoot returned a deleted folder")
	}
}
