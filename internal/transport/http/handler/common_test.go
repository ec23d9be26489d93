package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"bacopilot/internal/app"
	"bacopilot/internal/documents"
	"bacopilot/internal/transport/http/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"not found", app.ErrProjectNotFound, http.StatusNotFound, response.CodeProjectNotFound},
		{"wrapped", fmt.Errorf("load: %w", app.ErrFolderNotFound), http.StatusNotFound, response.CodeFolderNotFound},
		{"forbidden", app.ErrForbidden, http.StatusForbidden, response.CodeForbidden},
		{"ai exhausted", fmt.Errorf("%w: %w", app.ErrAIService, errors.New("unavailable")), http.StatusBadGateway, response.CodeBadGateway},
		{"storage", app.ErrStorageUpload, http.StatusInternalServerError, response.CodeStorageUpload},
		{"duplicate folder", app.ErrFolderNameExists, http.StatusConflict, response.CodeFolderNameExists},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, response.CodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err, "request failed")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var env response.APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", env.Code, tt.wantCode)
			}
		})
	}
}

func TestRespondErrorMissingDependencies(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	respondError(c, &app.MissingDependenciesError{
		DocType:         "srs",
		MissingRequired: []string{"scope-statement"},
	}, "generate failed")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var env struct {
		Code int `json:"code"`
		Data struct {
			DocType         string   `json:"doc_type"`
			MissingRequired []string `json:"missing_required"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != response.CodeMissingDependencies || env.Data.DocType != "srs" ||
		len(env.Data.MissingRequired) != 1 || env.Data.MissingRequired[0] != "scope-statement" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestDocumentRefUnmarshal(t *testing.T) {
	var msg stepMessage
	raw := `{"documents":["business-case",{"type":"scope-statement"},{"doc_type":"product-roadmap"}]}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []documentRef{"business-case", "scope-statement", "product-roadmap"}
	if len(msg.Documents) != len(want) {
		t.Fatalf("documents = %v", msg.Documents)
	}
	for i := range want {
		if msg.Documents[i] != want[i] {
			t.Fatalf("documents[%d] = %q, want %q", i, msg.Documents[i], want[i])
		}
	}

	if err := json.Unmarshal([]byte(`{"documents":[42]}`), &msg); err == nil {
		t.Fatal("expected error for numeric document entry")
	}
}

func TestResolveDocType(t *testing.T) {
	tests := []struct {
		step   documents.Step
		name   string
		want   string
		wantOK bool
	}{
		{documents.StepSRS, "", "srs", true},
		{documents.StepWireframe, "", "wireframe", true},
		{documents.StepDiagram, "usecase", "usecase-diagram", true},
		{documents.StepDiagram, "class-diagram", "class-diagram", true},
		{documents.StepDiagram, "sequence", "", false},
		{documents.StepPlanning, "business-case", "business-case", true},
		{documents.StepPlanning, "hld-arch", "", false},
		{documents.StepDesign, "", "", false},
	}
	for _, tt := range tests {
		h := &DocumentHandler{step: tt.step}
		got, ok := h.resolveDocType(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("resolveDocType(%s, %q) = %q, %v; want %q, %v", tt.step, tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAttachmentEscapesFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"Plan.md", "attachment; filename=Plan.md"},
		{`say "hi".md`, `attachment; filename="say \"hi\".md"`},
		{"Kế hoạch.md", "attachment; filename*=utf-8''K%E1%BA%BF%20ho%E1%BA%A1ch.md"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		attachment(c, tt.filename, []byte("# x"))

		if got := rec.Header().Get("Content-Disposition"); got != tt.want {
			t.Errorf("attachment(%q) header = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
