// Package openai implements the docai collaborator contracts against an
// OpenAI-compatible chat-completions endpoint with vision input.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"docextract/internal/docai"
	"docextract/internal/schema/models"
)

// Config for the vision model client.
type Config struct {
	APIKey      string        // falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout; callers usually impose a tighter context deadline
	MaxAttempts int           // per-operation retries against transient model failures
}

// Client calls the chat-completions endpoint. One client serves all three
// collaborator roles since they differ only in prompt and response shape.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient builds a client with defaulted config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Classify implements docai.Classifier.
func (c *Client) Classify(ctx context.Context, docs []docai.Document) (*docai.Classification, error) {
	raw, err := c.completeWithRetry(ctx, classificationPrompt, docs)
	if err != nil {
		return nil, wrapFailure(err, docai.ErrClassificationFailed)
	}

	obj, err := docai.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docai.ErrClassificationFailed, err)
	}
	var out docai.Classification
	if err := docai.DecodeInto(obj, &out); err != nil {
		return nil, fmt.Errorf("%w: decode classification: %v", docai.ErrClassificationFailed, err)
	}
	if out.DocumentType == "" || out.Country == "" {
		return nil, fmt.Errorf("%w: model returned empty type or country", docai.ErrClassificationFailed)
	}
	out.DocumentType = docai.NormalizeDocumentType(out.DocumentType)
	out.Country = strings.ToUpper(strings.TrimSpace(out.Country))

	c.log.Info("document classified",
		"document_type", out.DocumentType,
		"country", out.Country,
		"confidence", out.Confidence,
		"alternatives", len(out.AlternativeTypes),
	)
	return &out, nil
}

// generatedSchema is the shape the generation prompt demands.
type generatedSchema struct {
	DocumentType string                      `json:"document_type"`
	Country      string                      `json:"country"`
	Schema       map[string]models.FieldSpec `json:"document_schema"`
	Confidence   float64                     `json:"confidence"`
}

// GenerateSchema implements docai.SchemaGenerator.
func (c *Client) GenerateSchema(ctx context.Context, docs []docai.Document, documentType, country string) (models.Definition, error) {
	raw, err := c.completeWithRetry(ctx, generationPrompt(documentType, country), docs)
	if err != nil {
		return nil, wrapFailure(err, docai.ErrGenerationFailed)
	}

	obj, err := docai.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docai.ErrGenerationFailed, err)
	}
	var out generatedSchema
	if err := docai.DecodeInto(obj, &out); err != nil {
		return nil, fmt.Errorf("%w: decode generated schema: %v", docai.ErrGenerationFailed, err)
	}
	if len(out.Schema) == 0 {
		return nil, fmt.Errorf("%w: model returned an empty schema", docai.ErrGenerationFailed)
	}

	def := make(models.Definition, len(out.Schema))
	for name, spec := range out.Schema {
		def[docai.NormalizeDocumentType(name)] = spec
	}
	c.log.Info("schema generated",
		"document_type", documentType,
		"country", country,
		"fields", len(def),
		"confidence", out.Confidence,
	)
	return def, nil
}

// Extract implements docai.Extractor. The schema definition constrains the
// response; output is validated against it before being returned.
func (c *Client) Extract(ctx context.Context, docs []docai.Document, def models.Definition) (map[string]any, error) {
	raw, err := c.completeWithRetry(ctx, extractionPrompt(def), docs)
	if err != nil {
		return nil, wrapFailure(err, docai.ErrExtractionFailed)
	}

	values, err := docai.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docai.ErrExtractionFailed, err)
	}
	if err := docai.ValidateAgainstDefinition(def, values); err != nil {
		return nil, fmt.Errorf("%w: %v", docai.ErrExtractionFailed, err)
	}
	return values, nil
}

// completeWithRetry runs one chat completion, retrying transient failures
// with exponential backoff. Context cancellation and deadlines abort
// immediately and propagate unchanged so callers can distinguish timeouts.
func (c *Client) completeWithRetry(ctx context.Context, prompt string, docs []docai.Document) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
			c.log.Warn("retrying model call", "attempt", attempt+1, "error", lastErr)
		}
		content, err := c.complete(ctx, prompt, docs)
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	return "", lastErr
}

func (c *Client) complete(ctx context.Context, prompt string, docs []docai.Document) (string, error) {
	parts := []map[string]any{{"type": "text", "text": prompt}}
	for _, doc := range docs {
		parts = append(parts, contentPart(doc))
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": parts},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

// contentPart renders a document as a vision content part: images as base64
// data URLs, PDFs as file parts.
func contentPart(doc docai.Document) map[string]any {
	encoded := base64.StdEncoding.EncodeToString(doc.Data)
	if doc.ContentType == docai.ContentTypePDF {
		return map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  doc.Filename,
				"file_data": "data:application/pdf;base64," + encoded,
			},
		}
	}
	return map[string]any{
		"type": "image_url",
		"image_url": map[string]any{
			"url": "data:" + doc.ContentType + ";base64," + encoded,
		},
	}
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("response body close error", "error", err)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model status %d: %s", resp.StatusCode, payload)
	}
	return payload, nil
}

// wrapFailure tags a transport/model error with the collaborator sentinel,
// leaving context errors untouched so the service maps them to Timeout.
func wrapFailure(err error, sentinel error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
