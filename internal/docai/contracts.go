// Package docai defines the contracts for the document-AI collaborators:
// classification, schema inference, and field extraction. The core treats all
// three as black boxes; internal/docai/openai is the production
// implementation against an OpenAI-compatible vision endpoint.
package docai

import (
	"context"
	"errors"

	"docextract/internal/schema/models"
)

// Collaborator failure sentinels. Callers wrap these into coded domain errors;
// a context deadline is reported separately so timeouts are never conflated
// with model failures.
var (
	ErrClassificationFailed = errors.New("classification failed")
	ErrGenerationFailed     = errors.New("schema generation failed")
	ErrExtractionFailed     = errors.New("extraction failed")
)

// Supported upload content types (the original service accepted exactly
// these).
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypeJPG  = "image/jpg"
	ContentTypePNG  = "image/png"
	ContentTypePDF  = "application/pdf"
)

// SupportedContentType reports whether ct is an accepted document format.
func SupportedContentType(ct string) bool {
	switch ct {
	case ContentTypeJPEG, ContentTypeJPG, ContentTypePNG, ContentTypePDF:
		return true
	}
	return false
}

// Document is one uploaded page or file, held in memory for the duration of
// the request.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AlternativeType is a runner-up classification candidate.
type AlternativeType struct {
	DocumentType string  `json:"type"`
	Score        float64 `json:"score"`
}

// Classification is the classifier's verdict for a set of documents.
type Classification struct {
	DocumentType     string            `json:"document_type"`
	Country          string            `json:"country"`
	Confidence       float64           `json:"confidence"`
	AlternativeTypes []AlternativeType `json:"alternative_types"`
}

// Classifier determines document type and issuing country.
type Classifier interface {
	Classify(ctx context.Context, docs []Document) (*Classification, error)
}

// SchemaGenerator infers an extraction schema from the documents themselves.
type SchemaGenerator interface {
	GenerateSchema(ctx context.Context, docs []Document, documentType, country string) (models.Definition, error)
}

// Extractor pulls field values out of documents according to a schema.
type Extractor interface {
	Extract(ctx context.Context, docs []Document, def models.Definition) (map[string]any, error)
}
