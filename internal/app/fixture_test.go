package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bacopilot/internal/ai"
	"bacopilot/internal/platform/storage"
	"bacopilot/internal/repository"
	"bacopilot/internal/testutil"
)

type fixture struct {
	db        *gorm.DB
	store     *storage.MemoryStore
	projects  *ProjectService
	folders   *FolderService
	files     *FileService
	documents *DocumentService
	sessions  *SessionService
	fileRepo  *repository.FileRepository
}

func newFixture(t *testing.T, endpoints map[string]string, publisher MetadataJobPublisher) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	projectRepo := repository.NewProjectRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	fileRepo := repository.NewFileRepository(db)
	sessionRepo := repository.NewChatSessionRepository(db)
	store := storage.NewMemoryStore()

	client := ai.NewClient(5*time.Second, ai.WithMaxAttempts(2), ai.WithBackoffBase(time.Millisecond))
	folders := NewFolderService(projectRepo, folderRepo, fileRepo)
	clock := testutil.FixedClock()

	return &fixture{
		db:       db,
		store:    store,
		projects: NewProjectService(projectRepo, folderRepo, fileRepo),
		folders:  folders,
		files:    NewFileService(projectRepo, folderRepo, fileRepo, store, publisher),
		documents: NewDocumentService(projectRepo, fileRepo, folders, store, client,
			func(docType string) string { return endpoints[docType] },
			WithDocumentClock(clock.Now)),
		sessions: NewSessionService(fileRepo, sessionRepo, nil),
		fileRepo: fileRepo,
	}
}

// fakeAI answers every request with response and records the decoded bodies.
type fakeAI struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]any
	status   int
	response any
}

func newFakeAI(t *testing.T, response any) *fakeAI {
	t.Helper()
	f := &fakeAI{status: http.StatusOK, response: response}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.requests = append(f.requests, body)
		status := f.status
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"response": f.response})
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAI) setStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeAI) calls() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.requests))
	copy(out, f.requests)
	return out
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("parse uuid %q: %v", s, err)
	}
	return id
}
