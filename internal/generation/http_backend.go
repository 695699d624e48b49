package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edugenius/backend/internal/schema"
)

const httpBackendName = "sidecar"

// HTTPBackend talks to a generation sidecar over JSON/HTTP.
type HTTPBackend struct {
	url    string
	client *http.Client
}

// NewHTTPBackend creates a new HTTPBackend. A zero timeout leaves deadlines to ctx.
func NewHTTPBackend(url string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type sidecarAttachment struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type sidecarRequest struct {
	Flow         string              `json:"flow"`
	Mode         Mode                `json:"mode"`
	System       string              `json:"system,omitempty"`
	Prompt       string              `json:"prompt"`
	Attachments  []sidecarAttachment `json:"attachments,omitempty"`
	OutputSchema map[string]any      `json:"output_schema,omitempty"`
}

type sidecarResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Error string `json:"error"`
}

// Invoke posts the request to <url>/generate.
func (b *HTTPBackend) Invoke(ctx context.Context, req *Request) (*Response, error) {
	body := sidecarRequest{
		Flow:   req.Flow,
		Mode:   req.Mode(),
		System: req.System,
		Prompt: req.Prompt,
	}
	for _, a := range req.Attachments {
		body.Attachments = append(body.Attachments, sidecarAttachment{
			MIMEType: a.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(a.Data),
		})
	}
	if req.Output != nil && body.Mode == ModeJSON {
		body.OutputSchema = schema.JSONSchema(req.Output)
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, transportErr(httpBackendName, fmt.Errorf("failed to marshal request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url+"/generate", bytes.NewReader(requestBody))
	if err != nil {
		return nil, transportErr(httpBackendName, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, transportErr(httpBackendName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(httpBackendName, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var decoded sidecarResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		return nil, backendErr(httpBackendName, resp.StatusCode, fmt.Errorf("generation failed: %s", msg))
	}

	var out sidecarResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, backendErr(httpBackendName, resp.StatusCode, fmt.Errorf("failed to decode response body: %w", err))
	}
	if out.Error != "" {
		return nil, backendErr(httpBackendName, resp.StatusCode, fmt.Errorf("generation failed: %s", out.Error))
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, emptyErr(httpBackendName)
	}
	return &Response{Text: out.Text, Model: out.Model}, nil
}
