package repository

import (
	"context"
	"testing"

	"bacopilot/internal/testutil"
)

func TestFolderRepository_IsAncestorOrSelf(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFolderRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "owner@example.com")
	project := testutil.SeedProject(t, db, user.ID, "Shop")
	root := testutil.SeedFolder(t, db, project.ID, nil, "root")
	child := testutil.SeedFolder(t, db, project.ID, &root.ID, "child")
	grandchild := testutil.SeedFolder(t, db, project.ID, &child.ID, "grandchild")
	other := testutil.SeedFolder(t, db, project.ID, nil, "other")

	tests := []struct {
		name     string
		ancestor uint
		folder   uint
		want     bool
	}{
		{"self", child.ID, child.ID, true},
		{"direct parent", root.ID, child.ID, true},
		{"grandparent", root.ID, grandchild.ID, true},
		{"descendant is not ancestor", grandchild.ID, root.ID, false},
		{"unrelated branch", other.ID, grandchild.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.IsAncestorOrSelf(ctx, tt.ancestor, tt.folder)
			if err != nil {
				t.Fatalf("IsAncestorOrSelf() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAncestorOrSelf(%d, %d) = %v, want %v", tt.ancestor, tt.folder, got, tt.want)
			}
		})
	}
}

func TestFolderRepository_FindSibling(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFolderRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "owner@example.com")
	project := testutil.SeedProject(t, db, user.ID, "Shop")
	root := testutil.SeedFolder(t, db, project.ID, nil, "Docs")
	nested := testutil.SeedFolder(t, db, project.ID, &root.ID, "Docs")

	found, err := repo.FindSibling(ctx, project.ID, nil, "Docs", 0)
	if err != nil {
		t.Fatalf("FindSibling() error = %v", err)
	}
	if found == nil || found.ID != root.ID {
		t.Fatalf("FindSibling(root) = %+v, want folder %d", found, root.ID)
	}

	found, err = repo.FindSibling(ctx, project.ID, &root.ID, "Docs", nested.ID)
	if err != nil {
		t.Fatalf("FindSibling() error = %v", err)
	}
	if found != nil {
		t.Fatalf("FindSibling() excluding self = %+v, want nil", found)
	}

	nested.IsDeleted = true
	if err := repo.Save(ctx, nested); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	found, err = repo.FindSibling(ctx, project.ID, &root.ID, "Docs", 0)
	if err != nil {
		t.Fatalf("FindSibling() error = %v", err)
	}
	if found != nil {
		t.Fatalf("deleted folder should not be returned, got %+v", found)
	}
}

func TestFolderRepository_ListChildrenSkipsDeleted(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFolderRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "owner@example.com")
	project := testutil.SeedProject(t, db, user.ID, "Shop")
	root := testutil.SeedFolder(t, db, project.ID, nil, "root")
	testutil.SeedFolder(t, db, project.ID, &root.ID, "a")
	b := testutil.SeedFolder(t, db, project.ID, &root.ID, "b")
	b.IsDeleted = true
	_ = repo.Save(ctx, b)

	children, err := repo.ListChildren(ctx, root.ID)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(children) != 1 || children[0].Name != "a" {
		t.Fatalf("ListChildren() = %+v", children)
	}

	roots, err := repo.ListRoots(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListRoots() error = %v", err)
	}
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Fatalf("ListRoots() = %+v", roots)
	}
}
