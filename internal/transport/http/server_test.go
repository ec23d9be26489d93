package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bacopilot/internal/ai"
	"bacopilot/internal/bootstrap"
	"bacopilot/internal/config"
	"bacopilot/internal/logging"
	"bacopilot/internal/platform/storage"
	"bacopilot/internal/testutil"
	httptransport "bacopilot/internal/transport/http"
	"bacopilot/internal/transport/http/response"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app    *bootstrap.App
	router *gin.Engine
	ai     *aiStub
}

// aiStub answers every document type with the same Markdown. A held type
// waits until released or until the caller gives up.
type aiStub struct {
	*httptest.Server

	mu      sync.Mutex
	holds   map[string]chan struct{}
	started chan string
}

func newAIStub(t *testing.T) *aiStub {
	t.Helper()
	a := &aiStub{holds: map[string]chan struct{}{}, started: make(chan string, 64)}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		docType := strings.TrimPrefix(r.URL.Path, "/")
		a.mu.Lock()
		gate := a.holds[docType]
		a.mu.Unlock()
		select {
		case a.started <- docType:
		default:
		}
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "# Stakeholders\n\n- Sponsor\n- Store owner",
		})
	}))
	t.Cleanup(a.Close)
	t.Cleanup(a.releaseAll)
	return a
}

// hold makes calls for docType block until the returned release is called.
func (a *aiStub) hold(docType string) (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.holds[docType] = gate
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.holds[docType] == gate {
			delete(a.holds, docType)
			close(gate)
		}
	}
}

func (a *aiStub) releaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for docType, gate := range a.holds {
		close(gate)
		delete(a.holds, docType)
	}
}

func (a *aiStub) waitCall(t *testing.T, docType string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-a.started:
			if got == docType {
				return
			}
		case <-deadline:
			t.Fatalf("no ai call for %s", docType)
		}
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	stub := newAIStub(t)
	endpoints := map[string]string{}
	for _, docType := range []string{"stakeholder-register", "high-level-requirements", "srs", "wireframe", "usecase-diagram"} {
		endpoints[docType] = stub.URL + "/" + docType
	}

	cfg := &config.Config{
		App:      config.AppConfig{Name: "bacopilot", Env: "test", GinMode: gin.TestMode},
		Auth:     config.AuthConfig{JWTSecret: "test-secret", AccessTokenMinutes: 30, RefreshTokenDays: 7},
		AI:       config.AIConfig{Endpoints: endpoints},
		Pipeline: config.PipelineConfig{MaxParallel: 2},
	}

	var logs bytes.Buffer
	app, err := bootstrap.Assemble(context.Background(), bootstrap.Deps{
		Config: cfg,
		Logger: logging.New(&logs, "ERROR", "text"),
		DB:     testutil.NewTestDB(t),
		Store:  storage.NewMemoryStore(),
		AI:     ai.NewClient(2*time.Second, ai.WithMaxAttempts(1), ai.WithBackoffBase(time.Millisecond)),
	})
	if err != nil {
		t.Fatalf("assemble app: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = app.Registry.Shutdown(ctx)
	})

	return &testServer{app: app, router: httptransport.NewRouter(app), ai: stub}
}

// dial opens a websocket to path on a fresh listener serving the router.
func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(s.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

// readEvents reads step events until one of the given types arrives.
func readEvents(t *testing.T, conn *websocket.Conn, until ...string) []string {
	t.Helper()
	var types []string
	for {
		msg := readMessage(t, conn)
		typ, _ := msg["type"].(string)
		types = append(types, typ)
		for _, u := range until {
			if typ == u {
				return types
			}
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

// login registers a user and returns an access token.
func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Ann", "email": email, "password": "secret-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "secret-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(env.Data, &pair); err != nil || pair.AccessToken == "" {
		t.Fatalf("decode token pair %s: %v", env.Data, err)
	}
	return pair.AccessToken
}

func (s *testServer) createProject(t *testing.T, token, name string) uint {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/projects", token, map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d body=%s", rec.Code, rec.Body.String())
	}
	var project struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return project.ID
}

func TestRouterRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	if rec.Code != http.StatusUnauthorized || env.Code != response.CodeUnauthorized {
		t.Fatalf("got status=%d code=%d, want 401/%d", rec.Code, env.Code, response.CodeUnauthorized)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/projects", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestRouterLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "ann@example.com")

	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "ann@example.com", "password": "another-pass",
	})
	if rec.Code != http.StatusBadRequest || env.Code != response.CodeEmailExists {
		t.Fatalf("duplicate register got %d/%d", rec.Code, env.Code)
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "wrong-pass",
	})
	if rec.Code != http.StatusUnauthorized || env.Code != response.CodeInvalidCredentials {
		t.Fatalf("wrong password got %d/%d", rec.Code, env.Code)
	}
}

func TestRouterGenerateDocumentFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")

	rec, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/planning/generate/%d", projectID), token, map[string]string{
		"doc_type":    "stakeholder-register",
		"description": "An online shop for plants",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d body=%s", rec.Code, rec.Body.String())
	}
	var result struct {
		DocumentID  string `json:"document_id"`
		Title       string `json:"title"`
		Document    string `json:"document"`
		StoragePath string `json:"storage_path"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Title != "Stakeholder Register" {
		t.Fatalf("title = %q", result.Title)
	}
	if !strings.Contains(result.Document, "Store owner") {
		t.Fatalf("document = %q", result.Document)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/planning/get/"+result.DocumentID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	rec, env = s.do(t, http.MethodGet, "/api/v1/srs/get/"+result.DocumentID, token, nil)
	if rec.Code != http.StatusNotFound || env.Code != response.CodeDocumentNotFound {
		t.Fatalf("get through another step got %d/%d", rec.Code, env.Code)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/planning/export/"+result.DocumentID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=Stakeholder_Register.md" {
		t.Fatalf("Content-Disposition = %q", got)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/sessions/"+result.DocumentID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status = %d", rec.Code)
	}
	var sessions []map[string]any
	if err := json.Unmarshal(env.Data, &sessions); err != nil || len(sessions) != 2 {
		t.Fatalf("sessions = %s (%v)", env.Data, err)
	}

	other := s.login(t, "bob@example.com")
	rec, _ = s.do(t, http.MethodGet, "/api/v1/planning/get/"+result.DocumentID, other, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign user get status = %d, want 404", rec.Code)
	}
}

func TestRouterMissingDependencies(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")

	rec, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/planning/generate/%d", projectID), token, map[string]string{
		"doc_type":    "scope-statement",
		"description": "An online shop",
	})
	if rec.Code != http.StatusUnprocessableEntity || env.Code != response.CodeMissingDependencies {
		t.Fatalf("got %d/%d body=%s", rec.Code, env.Code, rec.Body.String())
	}
	var data struct {
		MissingRequired []string `json:"missing_required"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if strings.Join(data.MissingRequired, ",") != "business-case,high-level-requirements" {
		t.Fatalf("missing_required = %v", data.MissingRequired)
	}

	rec, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/planning/generate/%d", projectID), token, map[string]string{
		"doc_type":    "srs",
		"description": "An online shop",
	})
	if rec.Code != http.StatusBadRequest || env.Code != response.CodeInvalidDocType {
		t.Fatalf("foreign doc type got %d/%d", rec.Code, env.Code)
	}
}

func TestRouterHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Dependencies map[string]struct {
			OK       bool `json:"ok"`
			Disabled bool `json:"disabled"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !body.Dependencies["redis"].Disabled || !body.Dependencies["database"].OK {
		t.Fatalf("dependencies = %+v", body.Dependencies)
	}
}

func TestStepSocketRunsStep(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := fmt.Sprintf("ws%s/api/v1/ws/projects/%d/planning?token=%s",
		strings.TrimPrefix(server.URL, "http"), projectID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]any{
		"description": "An online shop",
		"documents":   []any{"stakeholder-register", map[string]string{"type": "stakeholder-register"}},
	})
	if err != nil {
		t.Fatalf("write start: %v", err)
	}

	var types []string
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev struct {
			Type      string `json:"type"`
			Completed *int   `json:"completed"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event after %v: %v", types, err)
		}
		types = append(types, ev.Type)
		if ev.Type == "step_finished" {
			if ev.Completed == nil || *ev.Completed != 1 {
				t.Fatalf("completed = %v", ev.Completed)
			}
			break
		}
	}
	want := "step_start,doc_start,doc_completed,step_finished"
	if got := strings.Join(types, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
}

func TestStepSocketRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/projects/1/planning"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["error"] != "Missing token" {
		t.Fatalf("message = %v", msg)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("close error = %v, want policy violation", err)
	}
}

func TestRouterGenerateSRSOnFreshProject(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")

	rec, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/srs/generate/%d", projectID), token, map[string]string{
		"description": "An online shop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("srs generate status = %d body=%s", rec.Code, rec.Body.String())
	}
	var result struct {
		DocType            string   `json:"doc_type"`
		RecommendDocuments []string `json:"recommend_documents"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.DocType != "srs" || strings.Join(result.RecommendDocuments, ",") != "compliance,stakeholder-register" {
		t.Fatalf("result = %+v", result)
	}
}

func TestRouterPasswordResetNeedsRedis(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "ann@example.com")

	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "ann@example.com"})
	if rec.Code != http.StatusServiceUnavailable || env.Code != response.CodeUnavailable {
		t.Fatalf("forgot-password without redis got %d/%d", rec.Code, env.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/reset-password?email=ann@example.com", "", map[string]string{"code": "123456"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reset-password without new_password status = %d", rec.Code)
	}
}

func TestStepSocketReplacedRunKeepsEventsApart(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")
	release := s.ai.hold("stakeholder-register")
	defer release()

	path := fmt.Sprintf("/api/v1/ws/projects/%d/planning?token=%s", projectID, token)
	start := map[string]any{"description": "An online shop", "documents": []string{"stakeholder-register"}}

	first := s.dial(t, path)
	if err := first.WriteJSON(start); err != nil {
		t.Fatalf("write first start: %v", err)
	}
	if got := strings.Join(readEvents(t, first, "doc_start"), ","); got != "step_start,doc_start" {
		t.Fatalf("first events = %s", got)
	}
	s.ai.waitCall(t, "stakeholder-register")

	second := s.dial(t, path)
	if err := second.WriteJSON(start); err != nil {
		t.Fatalf("write second start: %v", err)
	}
	if got := readEvents(t, first, "step_cancelled", "step_finished"); got[len(got)-1] != "step_cancelled" {
		t.Fatalf("replaced run ended with %v", got)
	}
	release()

	want := "step_start,doc_start,doc_completed,step_finished"
	if got := strings.Join(readEvents(t, second, "step_finished", "step_cancelled"), ","); got != want {
		t.Fatalf("replacement events = %s, want %s", got, want)
	}
}

func TestStepSocketDisconnectCancelsStep(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")
	s.ai.hold("stakeholder-register")

	conn := s.dial(t, fmt.Sprintf("/api/v1/ws/projects/%d/planning?token=%s", projectID, token))
	if err := conn.WriteJSON(map[string]any{"description": "An online shop", "documents": []string{"stakeholder-register"}}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readEvents(t, conn, "doc_start")
	s.ai.waitCall(t, "stakeholder-register")
	if s.app.Registry.Len() != 1 {
		t.Fatalf("active jobs = %d, want 1", s.app.Registry.Len())
	}

	_ = conn.Close()
	waitFor(t, "step to be cancelled", func() bool { return s.app.Registry.Len() == 0 })

	rec, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/planning/list/%d", projectID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var docs []map[string]any
	if err := json.Unmarshal(env.Data, &docs); err != nil || len(docs) != 0 {
		t.Fatalf("documents after cancel = %s (%v)", env.Data, err)
	}
}

func TestGenerateSocketControlActions(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")
	conn := s.dial(t, fmt.Sprintf("/api/v1/ws/generate/%d?token=%s", projectID, token))

	send := func(msg map[string]any) {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write %v: %v", msg, err)
		}
	}
	startHeld := func() {
		t.Helper()
		send(map[string]any{"action": "start", "step": "planning", "description": "shop", "documents": []string{"stakeholder-register"}})
		readEvents(t, conn, "doc_start")
		s.ai.waitCall(t, "stakeholder-register")
	}
	// the cancel answer and the step_cancelled event race, read both
	readPair := func() map[string]map[string]any {
		t.Helper()
		got := map[string]map[string]any{}
		for len(got) < 2 {
			msg := readMessage(t, conn)
			typ, _ := msg["type"].(string)
			got[typ] = msg
		}
		return got
	}

	send(map[string]any{"action": "start", "step": "planning", "description": "shop", "documents": []string{"high-level-requirements"}})
	if got := strings.Join(readEvents(t, conn, "step_finished"), ","); got != "step_start,doc_start,doc_completed,step_finished" {
		t.Fatalf("start events = %s", got)
	}

	send(map[string]any{"action": "start", "step": "design", "documents": []string{"business-case"}, "description": "x"})
	if msg := readMessage(t, conn); msg["type"] != "error" {
		t.Fatalf("foreign document answer = %v", msg)
	}

	s.ai.hold("stakeholder-register")
	startHeld()
	send(map[string]any{"action": "cancel", "step": "planning"})
	pair := readPair()
	if pair["cancel_requested"]["cancelled"] != true || pair["step_cancelled"] == nil {
		t.Fatalf("cancel one step answers = %v", pair)
	}

	startHeld()
	send(map[string]any{"action": "cancel"})
	pair = readPair()
	if pair["cancel_requested"]["cancelled"] != float64(1) || pair["step_cancelled"] == nil {
		t.Fatalf("cancel all answers = %v", pair)
	}

	startHeld()
	send(map[string]any{"action": "stop"})
	stopped := false
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg map[string]any
		err := conn.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("close error = %v, want normal closure", err)
			}
			break
		}
		if msg["type"] == "stopped" {
			stopped = true
			if msg["cancelled"] != float64(1) {
				t.Fatalf("stopped = %v", msg)
			}
		}
	}
	if !stopped {
		t.Fatal("no stopped answer before close")
	}
	waitFor(t, "jobs to end after stop", func() bool { return s.app.Registry.Len() == 0 })
}

func TestOneClickSocket(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")
	conn := s.dial(t, fmt.Sprintf("/api/v1/one-click/%d?token=%s&description=plant+shop", projectID, token))

	expectStep := func(step string) {
		t.Helper()
		msg := readMessage(t, conn)
		if msg["step"] != step || msg["status"] != "success" {
			t.Fatalf("step message = %v, want %s success", msg, step)
		}
		if msg := readMessage(t, conn); msg["action"] != "confirm_continue" {
			t.Fatalf("confirm message = %v", msg)
		}
	}

	expectStep("srs")
	if err := conn.WriteMessage(websocket.TextMessage, []byte("yes")); err != nil {
		t.Fatalf("write yes: %v", err)
	}
	expectStep("wireframe")
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not now")); err != nil {
		t.Fatalf("write no: %v", err)
	}
	if msg := readMessage(t, conn); msg["status"] != "stopped_by_user" {
		t.Fatalf("final message = %v", msg)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("close error = %v, want normal closure", err)
	}

	for _, step := range []string{"srs", "wireframe"} {
		rec, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/%s/list/%d", step, projectID), token, nil)
		var docs []map[string]any
		if rec.Code != http.StatusOK || json.Unmarshal(env.Data, &docs) != nil || len(docs) != 1 {
			t.Fatalf("%s documents = %d %s", step, rec.Code, env.Data)
		}
	}
	rec, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/diagram/list/%d", projectID), token, nil)
	var diagrams []map[string]any
	if rec.Code != http.StatusOK || json.Unmarshal(env.Data, &diagrams) != nil || len(diagrams) != 0 {
		t.Fatalf("diagram generated after stop: %s", env.Data)
	}
}

func TestOneClickDisconnectCancelsGeneration(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com")
	projectID := s.createProject(t, token, "Shop")
	s.ai.hold("srs")

	conn := s.dial(t, fmt.Sprintf("/api/v1/one-click/%d?token=%s", projectID, token))
	s.ai.waitCall(t, "srs")
	if s.app.Registry.Len() != 1 {
		t.Fatalf("active jobs = %d, want the one-click run", s.app.Registry.Len())
	}

	_ = conn.Close()
	waitFor(t, "one-click run to be cancelled", func() bool { return s.app.Registry.Len() == 0 })
}
