package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugenius/backend/internal/flow"
	"edugenius/backend/internal/schema"
)

type emptyRegistry struct{}

func (emptyRegistry) List() []flow.Info { return nil }

func (emptyRegistry) Get(name string) (flow.Flow, error) { return nil, flow.ErrUnknownFlow }

func (emptyRegistry) Run(context.Context, string, map[string]any) (schema.Record, error) {
	return nil, flow.ErrUnknownFlow
}

func TestOpenAPIDocument_DescribesEveryFlow(t *testing.T) {
	e := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		OpenAPI    string                     `json:"openapi"`
		Paths      map[string]json.RawMessage `json:"paths"`
		Components struct {
			Schemas         map[string]map[string]any `json:"schemas"`
			SecuritySchemes map[string]any            `json:"securitySchemes"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	assert.Equal(t, "3.1.0", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/api/v1/flows/extract-text-from-image")
	assert.Contains(t, doc.Paths, "/api/v1/flows/notes-to-flashcards")
	assert.Len(t, doc.Paths, 14+3)

	in, ok := doc.Components.Schemas["ExtractTextFromImageInput"]
	require.True(t, ok)
	assert.NotContains(t, in, "$schema")
	assert.Equal(t, "object", in["type"])
	assert.Empty(t, doc.Components.SecuritySchemes)
}

func TestOpenAPIDocument_SecurityWhenIssuerSet(t *testing.T) {
	h := NewHandler(emptyRegistry{}, nil, nil, nil).WithDocs(DocsConfig{Issuer: "https://example.okta.com/oauth2/default/", ClientID: "abc"})

	doc := h.OpenAPIDocument()
	schemes := doc["components"].(map[string]any)["securitySchemes"].(map[string]any)
	flows := schemes["okta"].(map[string]any)["flows"].(map[string]any)
	code := flows["authorizationCode"].(map[string]any)
	assert.Equal(t, "https://example.okta.com/oauth2/default/v1/authorize", code["authorizationUrl"])
	assert.Equal(t, "https://example.okta.com/oauth2/default/v1/token", code["tokenUrl"])
}

func TestHandleDocs(t *testing.T) {
	e := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `url: "/openapi.json"`)
	assert.Contains(t, rec.Body.String(), `clientId: "docs-client"`)
	assert.Contains(t, rec.Body.String(), "http://example.com/docs/oauth2-redirect.html")

	rec = do(e, http.MethodGet, "/docs/oauth2-redirect.html", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swaggerUIRedirectCallback")
}

func TestComponentName(t *testing.T) {
	assert.Equal(t, "ExtractTextFromImage", componentName("extract-text-from-image"))
	assert.Equal(t, "AiTutor", componentName("ai-tutor"))
}
