package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"edugenius/backend/internal/schema"
)

const geminiBackendName = "gemini"

// GeminiBackend generates content with Google's Gemini API.
type GeminiBackend struct {
	models      *genai.Models
	model       string
	temperature float32
}

// GeminiOptions configures NewGeminiBackend.
type GeminiOptions struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// NewGeminiBackend creates a new GeminiBackend.
func NewGeminiBackend(ctx context.Context, opts GeminiOptions) (*GeminiBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiBackend{
		models:      client.Models,
		model:       opts.Model,
		temperature: opts.Temperature,
	}, nil
}

// Invoke sends the prompt text and attachments as parts of a single user turn.
func (b *GeminiBackend) Invoke(ctx context.Context, req *Request) (*Response, error) {
	contents, config := b.buildRequest(req)

	result, err := b.models.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, backendErr(geminiBackendName, 0, fmt.Errorf("prompt blocked: %s", result.PromptFeedback.BlockReason))
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return nil, emptyErr(geminiBackendName)
	}
	return &Response{Text: text, Model: b.model}, nil
}

func (b *GeminiBackend) buildRequest(req *Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, a := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temperature := b.temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Mode() == ModeJSON && req.Output != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = GenAISchema(req.Output)
	}
	return contents, config
}

func classifyGeminiError(err error) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return backendErr(geminiBackendName, apiErr.Code, fmt.Errorf("GenAI generate failed: %s", apiErr.Message))
	}
	return transportErr(geminiBackendName, fmt.Errorf("GenAI generate failed: %w", err))
}

// GenAISchema converts an output schema into Gemini's response schema.
func GenAISchema(s *schema.Schema) *genai.Schema {
	out := genAIObject(s.Fields)
	out.Description = s.Description
	return out
}

func genAIObject(fields []schema.Field) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
	}
	for i := range fields {
		f := &fields[i]
		out.Properties[f.Name] = genAIField(f)
		out.PropertyOrdering = append(out.PropertyOrdering, f.Name)
		if f.Required() {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}

func genAIField(f *schema.Field) *genai.Schema {
	var out *genai.Schema
	switch f.Kind {
	case schema.KindInteger:
		out = &genai.Schema{Type: genai.TypeInteger}
		if f.Min != nil {
			out.Minimum = genai.Ptr(float64(*f.Min))
		}
		if f.Max != nil {
			out.Maximum = genai.Ptr(float64(*f.Max))
		}
	case schema.KindEnum:
		out = &genai.Schema{Type: genai.TypeString, Format: "enum", Enum: f.Enum}
	case schema.KindArray:
		out = &genai.Schema{Type: genai.TypeArray}
		if f.Items != nil {
			out.Items = genAIField(f.Items)
		}
		if f.MinLength != nil {
			out.MinItems = genai.Ptr(int64(*f.MinLength))
		}
		if f.MaxLength != nil {
			out.MaxItems = genai.Ptr(int64(*f.MaxLength))
		}
	case schema.KindRecord:
		out = genAIObject(f.Fields)
	default:
		out = &genai.Schema{Type: genai.TypeString}
	}
	out.Description = f.Description
	return out
}
