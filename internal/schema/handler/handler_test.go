package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docextract/internal/jwttoken"
	"docextract/internal/schema/models"
	"docextract/internal/schema/service"
	"docextract/internal/schema/store"
)

const signingKey = "test-signing-key"

type fixture struct {
	router   http.Handler
	schemas  *service.Service
	tokens   *jwttoken.Service
	reviewer string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	schemas := service.New(store.NewInMemory())
	tokens := jwttoken.NewService(signingKey, "docextract-test")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := chi.NewRouter()
	New(schemas, logger, tokens).Register(router)

	return &fixture{
		router:   router,
		schemas:  schemas,
		tokens:   tokens,
		reviewer: "reviewer-1",
	}
}

func (f *fixture) generate(t *testing.T) *models.Record {
	t.Helper()
	record, err := f.schemas.Generate(context.Background(),
		models.Lineage{DocumentType: "passport", Country: "US"},
		models.Definition{
			"full_name": {Type: models.FieldTypeString, Required: true},
			"ssn":       {Type: models.FieldTypeString},
		})
	if err != nil {
		t.Fatalf("failed to seed schema: %v", err)
	}
	return record
}

func (f *fixture) authorize(t *testing.T, req *http.Request) {
	t.Helper()
	token, err := f.tokens.GenerateToken(f.reviewer, "reviewer@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func TestListSchemas(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	req := httptest.NewRequest(http.MethodGet, "/schemas", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Schemas []SchemaResponse `json:"schemas"`
		Count   int              `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Schemas) != 1 {
		t.Fatalf("expected one schema, got count=%d len=%d", resp.Count, len(resp.Schemas))
	}
	if resp.Schemas[0].Status != models.StatusInReview {
		t.Fatalf("expected in_review status, got %s", resp.Schemas[0].Status)
	}
}

func TestGetSchema(t *testing.T) {
	f := newFixture(t)
	record := f.generate(t)

	req := httptest.NewRequest(http.MethodGet, "/schemas/"+record.ID.String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/schemas/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/schemas/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestApproveRequiresAuth(t *testing.T) {
	f := newFixture(t)
	record := f.generate(t)

	req := httptest.NewRequest(http.MethodPut, "/schemas/"+record.ID.String()+"/approve", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/schemas/"+record.ID.String()+"/approve", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	record := f.generate(t)

	req := httptest.NewRequest(http.MethodPut, "/schemas/"+record.ID.String()+"/approve", nil)
	f.authorize(t, req)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ApproveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Schema.Status != models.StatusActive {
		t.Fatalf("expected active status, got %s", resp.Schema.Status)
	}
	if resp.Deprecated != nil {
		t.Fatalf("expected no deprecated schema on first approval")
	}

	// Approving the now-active record again is an invalid state transition.
	req = httptest.NewRequest(http.MethodPut, "/schemas/"+record.ID.String()+"/approve", nil)
	f.authorize(t, req)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 re-approving, got %d", rec.Code)
	}
}

func TestModify(t *testing.T) {
	f := newFixture(t)
	record := f.generate(t)

	payload := map[string]any{
		"modifications": map[string]any{
			"ssn": nil,
			"dob": map[string]any{"type": "string", "required": true},
		},
		"change_description": "swap ssn for dob",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPut, "/schemas/"+record.ID.String()+"/modify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.authorize(t, req)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ModifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.NoChanges {
		t.Fatalf("expected changes to be applied")
	}
	if resp.Schema.Version != 2 {
		t.Fatalf("expected version 2, got %d", resp.Schema.Version)
	}
	if len(resp.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(resp.Changes))
	}
	if resp.Summary != "Added 1 field(s): dob; Removed 1 field(s): ssn" {
		t.Fatalf("unexpected summary: %q", resp.Summary)
	}
	if resp.Metadata == nil || resp.Metadata.ChangeDescription != "swap ssn for dob" {
		t.Fatalf("unexpected metadata: %+v", resp.Metadata)
	}
}

func TestModifyRejections(t *testing.T) {
	f := newFixture(t)
	record := f.generate(t)

	send := func(body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/schemas/"+record.ID.String()+"/modify", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		f.authorize(t, req)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	if rec := send([]byte(`not json`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
	if rec := send([]byte(`{"modifications": {}}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty modifications, got %d", rec.Code)
	}

	badType, _ := json.Marshal(map[string]any{
		"modifications": map[string]any{
			"dob": map[string]any{"type": "date"},
		},
	})
	if rec := send(badType); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid field type, got %d", rec.Code)
	}
}
