package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"guardrail/internal/errors"
	"guardrail/internal/logging"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures the OpenAI Responses API client.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds a single HTTP call. Evaluation calls routinely take
	// minutes, so the default is 20 minutes.
	Timeout time.Duration
}

// OpenAIClient evaluates documents through the OpenAI Responses API with
// file attachments.
type OpenAIClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

var _ Evaluator = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from config.
func NewOpenAIClient(config OpenAIConfig, logger logging.Logger) *OpenAIClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	return &OpenAIClient{
		model:      config.Model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger),
	}
}

// UploadDocument uploads a local file with purpose "user_data" so later
// Evaluate calls can attach it by id.
func (c *OpenAIClient) UploadDocument(ctx context.Context, path string) (DocumentRef, error) {
	file, err := os.Open(path)
	if err != nil {
		return DocumentRef{}, errors.NewPermanentError(err, fmt.Sprintf("open document %s", path))
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("purpose", "user_data"); err != nil {
		return DocumentRef{}, fmt.Errorf("write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return DocumentRef{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return DocumentRef{}, fmt.Errorf("copy document into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return DocumentRef{}, fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return DocumentRef{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	c.logger.Debug("uploading document %s", filepath.Base(path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DocumentRef{}, wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return DocumentRef{}, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return DocumentRef{}, mapHTTPError(resp.StatusCode, respBody)
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return DocumentRef{}, fmt.Errorf("decode upload response: %w", err)
	}
	if uploaded.ID == "" {
		return DocumentRef{}, fmt.Errorf("upload response carries no file id")
	}

	c.logger.Info("uploaded document %s as %s", filepath.Base(path), uploaded.ID)
	return DocumentRef{ID: uploaded.ID, Name: filepath.Base(path)}, nil
}

// DeleteDocument removes an uploaded file from the backend.
func (c *OpenAIClient) DeleteDocument(ctx context.Context, ref DocumentRef) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/files/"+ref.ID, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return mapHTTPError(resp.StatusCode, body)
	}
	c.logger.Debug("deleted document %s", ref.ID)
	return nil
}

// Evaluate sends one prompt plus the attached documents and returns the raw
// response text.
func (c *OpenAIClient) Evaluate(ctx context.Context, refs []DocumentRef, prompt string) (string, error) {
	content := make([]map[string]any, 0, len(refs)+1)
	for _, ref := range refs {
		content = append(content, map[string]any{
			"type":    "input_file",
			"file_id": ref.ID,
		})
	}
	content = append(content, map[string]any{
		"type": "input_text",
		"text": prompt,
	})

	payload := map[string]any{
		"model": c.model,
		"input": []map[string]any{
			{"role": "user", "content": content},
		},
		"stream": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	started := time.Now()
	c.logger.Debug("POST %s/responses model=%s documents=%d prompt=%d chars",
		c.baseURL, c.model, len(refs), len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", mapHTTPError(resp.StatusCode, respBody)
	}

	var apiResp responsesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return "", mapHTTPError(resp.StatusCode, []byte(apiResp.Error.Message))
	}

	text := parseResponsesOutput(apiResp)
	c.logger.Debug("response received in %v, %d chars", time.Since(started).Round(time.Millisecond), len(text))
	return text, nil
}

func (c *OpenAIClient) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

type responsesResponse struct {
	ID         string               `json:"id"`
	Status     string               `json:"status"`
	Output     []responseOutputItem `json:"output"`
	OutputText any                  `json:"output_text"`
	Error      *responsesError      `json:"error"`
}

type responsesError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type responseOutputItem struct {
	Type    string            `json:"type"`
	Role    string            `json:"role"`
	Content []responseContent `json:"content"`
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// parseResponsesOutput walks the output items and concatenates the text parts
// of every message, falling back to the flat output_text field.
func parseResponsesOutput(resp responsesResponse) string {
	var builder strings.Builder
	for _, item := range resp.Output {
		if strings.ToLower(strings.TrimSpace(item.Type)) != "message" {
			continue
		}
		for _, part := range item.Content {
			kind := strings.ToLower(strings.TrimSpace(part.Type))
			if kind == "output_text" || kind == "text" {
				builder.WriteString(part.Text)
			}
		}
	}
	if text := builder.String(); strings.TrimSpace(text) != "" {
		return text
	}
	return flattenOutputText(resp.OutputText)
}

func flattenOutputText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		var builder strings.Builder
		for _, item := range v {
			if s, ok := item.(string); ok {
				builder.WriteString(s)
			}
		}
		return builder.String()
	default:
		return ""
	}
}

// mapHTTPError classifies backend failures so the retry layer treats rate
// limits and server errors as transient and auth or request problems as
// permanent.
func mapHTTPError(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if len(message) > 512 {
		message = message[:512]
	}
	base := fmt.Errorf("evaluator HTTP %d: %s", statusCode, message)

	switch {
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return &errors.TransientError{Err: base, StatusCode: statusCode}
	default:
		return &errors.PermanentError{Err: base, StatusCode: statusCode}
	}
}

// wrapRequestError classifies transport failures: every network-level error
// on an otherwise well-formed request is worth a retry.
func wrapRequestError(err error) error {
	if err == nil {
		return nil
	}
	return &errors.TransientError{Err: fmt.Errorf("evaluator request failed: %w", err)}
}
