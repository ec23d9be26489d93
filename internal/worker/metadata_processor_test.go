package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"bacopilot/internal/ai"
	"bacopilot/internal/documents"
	"bacopilot/internal/model"
	"bacopilot/internal/platform/storage"
	"bacopilot/internal/repository"
	"bacopilot/internal/testutil"
)

func seedUpload(t *testing.T, repo *repository.FileRepository, store *storage.MemoryStore, projectID, userID uint) *model.File {
	t.Helper()
	ctx := context.Background()
	if err := store.Put(ctx, "1/1/user/brief.txt.md", strings.NewReader("line one\nline two\nline three"), "text/markdown"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	file := &model.File{
		ProjectID:     projectID,
		CreatedBy:     userID,
		UpdatedBy:     userID,
		Name:          "brief.txt",
		Extension:     ".txt",
		StoragePath:   "1/1/user/brief.txt",
		StorageMDPath: "1/1/user/brief.txt.md",
		FileCategory:  model.FileCategoryUpload,
		FileType:      ".txt",
		Status:        model.FileStatusActive,
		Metadata:      map[string]any{"extraction_status": documents.ExtractionPending, "source_file": "brief.txt"},
	}
	if err := repo.Create(ctx, file); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return file
}

func TestMetadataProcessor_Process(t *testing.T) {
	payloads := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		payloads <- body
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": []map[string]any{
				{"type": "business-case", "line_start": 1, "line_end": 2},
				{"type": "srs", "line_start": -1, "line_end": -1},
			},
		})
	}))
	defer server.Close()

	db := testutil.NewTestDB(t)
	repo := repository.NewFileRepository(db)
	store := storage.NewMemoryStore()
	user := testutil.SeedUser(t, db, "ba@example.com")
	project := testutil.SeedProject(t, db, user.ID, "Shop")
	file := seedUpload(t, repo, store, project.ID, user.ID)

	p := NewMetadataProcessor(repo, store, ai.NewClient(time.Second, ai.WithMaxAttempts(2)), server.URL)
	if err := p.Process(context.Background(), model.MetadataJob{FileID: file.ID, ProjectID: project.ID, UserID: user.ID}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := <-payloads
	if got["document_id"] != file.ID.String() || got["filename"] != "brief.txt" || got["content"] != "line one\nline two\nline three" {
		t.Fatalf("unexpected payload %v", got)
	}

	stored, err := repo.GetByID(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Metadata["extraction_status"] != documents.ExtractionSuccess {
		t.Fatalf("extraction_status = %v", stored.Metadata["extraction_status"])
	}
	if stored.Metadata["total_lines"] != float64(3) {
		t.Fatalf("total_lines = %v, want 3", stored.Metadata["total_lines"])
	}
	if detected := documents.DetectedTypes(stored.Metadata); len(detected) != 1 || detected[0] != "business-case" {
		t.Fatalf("DetectedTypes() = %v", detected)
	}
}

func TestMetadataProcessor_ProcessFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	db := testutil.NewTestDB(t)
	repo := repository.NewFileRepository(db)
	store := storage.NewMemoryStore()
	user := testutil.SeedUser(t, db, "ba@example.com")
	project := testutil.SeedProject(t, db, user.ID, "Shop")
	file := seedUpload(t, repo, store, project.ID, user.ID)

	client := ai.NewClient(time.Second, ai.WithMaxAttempts(2), ai.WithBackoffBase(time.Millisecond))
	p := NewMetadataProcessor(repo, store, client, server.URL)
	if err := p.Process(context.Background(), model.MetadataJob{FileID: file.ID}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}

	stored, _ := repo.GetByID(context.Background(), file.ID)
	if stored.Metadata["extraction_status"] != documents.ExtractionFailed {
		t.Fatalf("extraction_status = %v, want failed", stored.Metadata["extraction_status"])
	}
	if msg, _ := stored.Metadata["error"].(string); msg == "" {
		t.Fatal("error message missing from metadata")
	}
	if stored.Metadata["source_file"] != "brief.txt" {
		t.Fatalf("existing metadata lost: %v", stored.Metadata)
	}
}

func TestMetadataProcessor_MissingFile(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewMetadataProcessor(repository.NewFileRepository(db), storage.NewMemoryStore(), ai.NewClient(time.Second), "http://unused")
	err := p.Process(context.Background(), model.MetadataJob{FileID: uuid.New()})
	if !errors.Is(err, ErrFileGone) {
		t.Fatalf("Process() error = %v, want ErrFileGone", err)
	}
}
