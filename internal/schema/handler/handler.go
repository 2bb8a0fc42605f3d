// Package handler exposes the schema review workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docextract/internal/platform/middleware"
	"docextract/internal/schema/models"
	"docextract/internal/schema/service"
	"docextract/internal/transport/http/shared"
	"docextract/pkg/domerr"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	List(ctx context.Context) ([]*models.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	Approve(ctx context.Context, id uuid.UUID) (*service.ApproveResult, error)
	Modify(ctx context.Context, id uuid.UUID, mods models.ModificationRequest, changeDescription string) (*service.ModifyResult, error)
}

// Handler handles schema record endpoints.
type Handler struct {
	logger       *slog.Logger
	schemas      Service
	jwtValidator middleware.JWTValidator
}

// New creates a schema Handler.
func New(schemas Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		schemas:      schemas,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the schema routes. Listing is open; approve and modify are
// reviewer actions behind auth.
func (h *Handler) Register(r chi.Router) {
	r.Route("/schemas", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			r.Put("/{id}/approve", h.handleApprove)
			r.Put("/{id}/modify", h.handleModify)
		})
	})
}

// SchemaResponse is the wire shape of a schema record.
type SchemaResponse struct {
	ID           uuid.UUID         `json:"id"`
	DocumentType string            `json:"document_type"`
	Country      string            `json:"country"`
	Schema       models.Definition `json:"schema"`
	Status       models.Status     `json:"status"`
	Version      int               `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toSchemaResponse(record *models.Record) SchemaResponse {
	return SchemaResponse{
		ID:           record.ID,
		DocumentType: record.DocumentType,
		Country:      record.Country,
		Schema:       record.Schema,
		Status:       record.Status,
		Version:      record.Version,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.schemas.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list schemas",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	out := make([]SchemaResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toSchemaResponse(record))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"schemas": out,
		"count":   len(out),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	record, err := h.schemas.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSchemaResponse(record))
}

// ApproveResponse reports the promoted record and, when a prior active
// version was demoted, its id.
type ApproveResponse struct {
	Schema     SchemaResponse `json:"schema"`
	Deprecated *uuid.UUID     `json:"deprecated_schema_id,omitempty"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	result, err := h.schemas.Approve(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "approve rejected",
			"schema_id", id,
			"reviewer_id", middleware.GetReviewerID(ctx),
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	resp := ApproveResponse{Schema: toSchemaResponse(result.Record)}
	if result.Deprecated != nil {
		resp.Deprecated = &result.Deprecated.ID
	}
	h.logger.InfoContext(ctx, "schema approved",
		"schema_id", result.Record.ID,
		"version", result.Record.Version,
		"reviewer_id", middleware.GetReviewerID(ctx),
	)
	shared.WriteJSON(w, http.StatusOK, resp)
}

// ModifyRequest is the reviewer's modification payload. A null field value
// removes the field.
type ModifyRequest struct {
	Modifications     models.ModificationRequest `json:"modifications"`
	ChangeDescription string                     `json:"change_description"`
}

// ModifyResponse reports the new IN_REVIEW record plus the change audit.
type ModifyResponse struct {
	NoChanges bool                         `json:"no_changes"`
	Schema    SchemaResponse               `json:"schema"`
	Changes   []models.Change              `json:"changes,omitempty"`
	Summary   string                       `json:"summary"`
	Metadata  *models.ModificationMetadata `json:"metadata,omitempty"`
}

func (h *Handler) handleModify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req ModifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, domerr.New(domerr.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Modifications) == 0 {
		shared.WriteError(w, domerr.New(domerr.CodeBadRequest, "no modifications provided"))
		return
	}

	result, err := h.schemas.Modify(ctx, id, req.Modifications, req.ChangeDescription)
	if err != nil {
		h.logger.WarnContext(ctx, "modify rejected",
			"schema_id", id,
			"reviewer_id", middleware.GetReviewerID(ctx),
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	if result.NoChanges {
		shared.WriteJSON(w, http.StatusOK, ModifyResponse{
			NoChanges: true,
			Schema:    toSchemaResponse(result.Previous),
			Summary:   result.Summary,
		})
		return
	}

	h.logger.InfoContext(ctx, "schema modified",
		"schema_id", result.Record.ID,
		"previous_id", result.Previous.ID,
		"version", result.Record.Version,
		"changes", len(result.Changes),
		"reviewer_id", middleware.GetReviewerID(ctx),
	)
	shared.WriteJSON(w, http.StatusOK, ModifyResponse{
		Schema:   toSchemaResponse(result.Record),
		Changes:  result.Changes,
		Summary:  result.Summary,
		Metadata: &result.Metadata,
	})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, domerr.New(domerr.CodeBadRequest, "invalid schema id"))
		return uuid.Nil, false
	}
	return id, true
}
