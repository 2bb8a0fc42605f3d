// Package handler exposes the document upload endpoint. Uploads are multipart;
// the routing outcome decides the response status.
package handler

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docextract/internal/docai"
	"docextract/internal/extraction"
	"docextract/internal/platform/middleware"
	"docextract/internal/transport/http/shared"
	"docextract/pkg/domerr"
)

// Service routes uploaded documents.
type Service interface {
	Process(ctx context.Context, docs []docai.Document) (*extraction.Result, error)
}

// Handler handles the extraction endpoint.
type Handler struct {
	logger         *slog.Logger
	extractions    Service
	maxUploadBytes int64
}

// New creates an extraction Handler.
func New(extractions Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &Handler{
		logger:         logger,
		extractions:    extractions,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register mounts the extraction route. No JSON content-type middleware here;
// the endpoint takes multipart form data. No request timeout middleware
// either: the pipeline bounds each collaborator call itself.
func (h *Handler) Register(r chi.Router) {
	r.Post("/extract", h.handleExtract)
}

// ExtractResponse is the wire shape of a routing decision.
type ExtractResponse struct {
	Status         string                  `json:"status"`
	DocumentType   string                  `json:"document_type,omitempty"`
	Country        string                  `json:"country,omitempty"`
	Confidence     float64                 `json:"confidence,omitempty"`
	Alternatives   []docai.AlternativeType `json:"alternative_types,omitempty"`
	SchemaID       *uuid.UUID              `json:"schema_id,omitempty"`
	SchemaVersion  int                     `json:"schema_version,omitempty"`
	Schema         any                     `json:"schema,omitempty"`
	ExtractedData  map[string]any          `json:"extracted_data,omitempty"`
	Message        string                  `json:"message,omitempty"`
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	docs, err := h.readDocuments(r)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected upload", "request_id", requestID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	result, err := h.extractions.Process(ctx, docs)
	if err != nil {
		h.logger.ErrorContext(ctx, "extraction pipeline failed",
			"request_id", requestID,
			"documents", len(docs),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, statusFor(result.Outcome), toResponse(result))
}

// statusFor maps routing outcomes to HTTP statuses: a fresh schema is a
// created resource, a pending one means the request is accepted but parked,
// and an uncertain classification is an unprocessable upload.
func statusFor(outcome extraction.Outcome) int {
	switch outcome {
	case extraction.OutcomeSchemaGenerated:
		return http.StatusCreated
	case extraction.OutcomePendingReview:
		return http.StatusAccepted
	case extraction.OutcomeUncertain:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}

func toResponse(result *extraction.Result) ExtractResponse {
	resp := ExtractResponse{
		Status:       string(result.Outcome),
		DocumentType: result.Classification.DocumentType,
		Country:      result.Classification.Country,
		Confidence:   result.Classification.Confidence,
		Alternatives: result.Classification.AlternativeTypes,
	}
	switch result.Outcome {
	case extraction.OutcomeExtracted:
		resp.SchemaID = &result.Record.ID
		resp.SchemaVersion = result.Record.Version
		resp.ExtractedData = result.Extracted
	case extraction.OutcomePendingReview:
		resp.SchemaID = &result.Record.ID
		resp.SchemaVersion = result.Record.Version
		resp.Message = "a schema for this document type is awaiting review; extraction is on hold until it is approved"
	case extraction.OutcomeSchemaGenerated:
		resp.SchemaID = &result.Record.ID
		resp.SchemaVersion = result.Record.Version
		resp.Schema = result.Record.Schema
		resp.Message = "a new schema was generated and requires approval before extraction"
	case extraction.OutcomeUncertain:
		resp.Message = "classification confidence too low to route this document"
	}
	return resp
}

// readDocuments parses the multipart upload and enforces the content-type
// allowlist before anything touches the model or the store.
func (h *Handler) readDocuments(r *http.Request) ([]docai.Document, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return nil, domerr.New(domerr.CodeBadRequest, "expected multipart form upload")
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return nil, domerr.New(domerr.CodeBadRequest, "no files provided; use the 'files' form field")
	}

	docs := make([]docai.Document, 0, len(files))
	for _, header := range files {
		doc, err := readDocument(header)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func readDocument(header *multipart.FileHeader) (docai.Document, error) {
	ct := contentTypeOf(header)
	if !docai.SupportedContentType(ct) {
		return docai.Document{}, domerr.Newf(domerr.CodeBadRequest,
			"unsupported file type %q for %s; supported types are JPEG, PNG and PDF", ct, header.Filename)
	}

	file, err := header.Open()
	if err != nil {
		return docai.Document{}, domerr.Wrap(err, domerr.CodeBadRequest, "failed to read uploaded file")
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return docai.Document{}, domerr.Wrap(err, domerr.CodeBadRequest, "failed to read uploaded file")
	}
	if len(data) == 0 {
		return docai.Document{}, domerr.Newf(domerr.CodeBadRequest, "uploaded file %s is empty", header.Filename)
	}
	return docai.Document{
		Filename:    header.Filename,
		ContentType: ct,
		Data:        data,
	}, nil
}

// contentTypeOf prefers the part's declared type, falling back to the file
// extension for clients that upload everything as octet-stream.
func contentTypeOf(header *multipart.FileHeader) string {
	ct := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return docai.ContentTypeJPEG
	case ".png":
		return docai.ContentTypePNG
	case ".pdf":
		return docai.ContentTypePDF
	default:
		return ct
	}
}
