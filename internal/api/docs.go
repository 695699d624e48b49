package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"edugenius/backend/internal/schema"
)

// DocsConfig configures the Swagger UI OAuth settings. Both values may be empty when
// authentication is disabled.
type DocsConfig struct {
	Issuer   string
	ClientID string
}

// WithDocs sets the OAuth settings advertised by /openapi.json and /docs.
func (h *Handler) WithDocs(cfg DocsConfig) *Handler {
	h.docs = cfg
	return h
}

// OpenAPIDocument builds an OpenAPI 3.1 document describing every registered flow.
// Flow schemas are emitted as components so the document changes with the catalog.
func (h *Handler) OpenAPIDocument() map[string]any {
	schemas := map[string]any{
		"Problem": map[string]any{
			"type":     "object",
			"required": []string{"type", "title", "status"},
			"properties": map[string]any{
				"type":      map[string]any{"type": "string"},
				"title":     map[string]any{"type": "string"},
				"status":    map[string]any{"type": "integer"},
				"detail":    map[string]any{"type": "string"},
				"instance":  map[string]any{"type": "string"},
				"trace_id":  map[string]any{"type": "string"},
				"flow":      map[string]any{"type": "string"},
				"kind":      map[string]any{"type": "string"},
				"step":      map[string]any{"type": "integer"},
				"step_name": map[string]any{"type": "string"},
				"field":     map[string]any{"type": "string"},
			},
		},
	}
	paths := map[string]any{
		"/health": map[string]any{
			"get": map[string]any{
				"summary":     "Service health",
				"operationId": "getHealth",
				"security":    []any{},
				"responses":   map[string]any{"200": map[string]any{"description": "Health status"}},
			},
		},
		"/api/v1/flows": map[string]any{
			"get": map[string]any{
				"summary":     "List flows",
				"operationId": "listFlows",
				"responses":   map[string]any{"200": map[string]any{"description": "Flow summaries"}},
			},
		},
		"/api/v1/contact": map[string]any{
			"post": map[string]any{
				"summary":     "Submit a contact message",
				"operationId": "submitContact",
				"responses": map[string]any{
					"202": map[string]any{"description": "Accepted"},
					"400": problemResponse("Invalid message"),
				},
			},
		},
	}

	for _, info := range h.flows.List() {
		base := componentName(info.Name)
		schemas[base+"Input"] = stripDialect(schema.JSONSchema(info.Input))
		schemas[base+"Output"] = stripDialect(schema.JSONSchema(info.Output))

		paths["/api/v1/flows/"+info.Name] = map[string]any{
			"post": map[string]any{
				"summary":     info.Description,
				"operationId": "run" + base,
				"tags":        []string{"flows"},
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{"schema": ref(base + "Input")},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{
						"description": "Flow output",
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"flow":       map[string]any{"type": "string"},
										"request_id": map[string]any{"type": "string"},
										"output":     ref(base + "Output"),
									},
								},
							},
						},
					},
					"400": problemResponse("Invalid input"),
					"422": problemResponse("No usable content"),
					"502": problemResponse("Generation failed"),
				},
			},
		}
	}

	doc := map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "EduGenius Flow API",
			"version": Version,
		},
		"paths":      paths,
		"components": map[string]any{"schemas": schemas},
	}

	if h.docs.Issuer != "" {
		issuer := strings.TrimSuffix(h.docs.Issuer, "/")
		doc["components"].(map[string]any)["securitySchemes"] = map[string]any{
			"okta": map[string]any{
				"type": "oauth2",
				"flows": map[string]any{
					"authorizationCode": map[string]any{
						"authorizationUrl": issuer + "/v1/authorize",
						"tokenUrl":         issuer + "/v1/token",
						"scopes": map[string]any{
							"openid":  "OpenID Connect",
							"profile": "Profile",
							"email":   "Email",
						},
					},
				},
			},
		}
		doc["security"] = []any{map[string]any{"okta": []string{"openid", "profile", "email"}}}
	}
	return doc
}

// HandleOpenAPI serves the generated OpenAPI document
// (GET /openapi.json)
func (h *Handler) HandleOpenAPI(c echo.Context) error {
	return c.JSON(http.StatusOK, h.OpenAPIDocument())
}

// HandleDocs serves a Swagger UI page pointing at /openapi.json. The page uses the
// CDN-hosted assets so no static files are checked in.
// (GET /docs)
func (h *Handler) HandleDocs(c echo.Context) error {
	r := c.Request()
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	page := strings.NewReplacer(
		"${SPEC_URL}", "/openapi.json",
		"${OAUTH2_REDIRECT}", scheme+"://"+r.Host+"/docs/oauth2-redirect.html",
		"${CLIENT_ID}", h.docs.ClientID,
	).Replace(swaggerHTML)
	return c.HTML(http.StatusOK, page)
}

// HandleOAuthRedirect serves the OAuth2 redirect page used by Swagger UI
// (GET /docs/oauth2-redirect.html)
func HandleOAuthRedirect(c echo.Context) error {
	return c.HTML(http.StatusOK, oauthRedirectHTML)
}

func problemResponse(desc string) map[string]any {
	return map[string]any{
		"description": desc,
		"content": map[string]any{
			"application/problem+json": map[string]any{"schema": ref("Problem")},
		},
	}
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func stripDialect(doc map[string]any) map[string]any {
	delete(doc, "$schema")
	return doc
}

// componentName turns "extract-text-from-image" into "ExtractTextFromImage".
func componentName(flow string) string {
	var b strings.Builder
	for _, part := range strings.Split(flow, "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>EduGenius API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    const ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      oauth2RedirectUrl: "${OAUTH2_REDIRECT}",
    });
    window.ui = ui;
    if ("${CLIENT_ID}" !== "") {
      ui.initOAuth({
        clientId: "${CLIENT_ID}",
        usePkceWithAuthorizationCodeGrant: true,
      });
    }
  }
  </script>
</body>
</html>`

const oauthRedirectHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"/><title>OAuth2 Redirect</title></head>
<body>
<script>
if (window.opener && window.opener.swaggerUIRedirectCallback) {
  window.opener.swaggerUIRedirectCallback(window.location.href);
}
</script>
</body>
</html>`
