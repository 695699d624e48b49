// Package api contains the HTTP handlers for the EduGenius flow service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/trace"

	"edugenius/backend/internal/flow"
	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/schema"
	"edugenius/backend/pkg/models"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// FlowRegistry is the part of *flow.Registry the handlers use.
type FlowRegistry interface {
	List() []flow.Info
	Get(name string) (flow.Flow, error)
	Run(ctx context.Context, name string, raw map[string]any) (schema.Record, error)
}

// ContactSubmitter accepts contact form messages.
type ContactSubmitter interface {
	Submit(ctx context.Context, raw map[string]any) (*models.ContactMessage, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler contains HTTP handlers for the REST API.
type Handler struct {
	flows   FlowRegistry
	contact ContactSubmitter
	checks  map[string]Pinger
	logger  Logger
	docs    DocsConfig

	runTimeout time.Duration
}

// NewHandler creates a new Handler. checks are pinged by the health endpoint.
func NewHandler(flows FlowRegistry, contact ContactSubmitter, checks map[string]Pinger, logger Logger) *Handler {
	return &Handler{flows: flows, contact: contact, checks: checks, logger: logger}
}

// RegisterRoutes mounts the API on e. protect wraps the /api/v1 group; health and docs
// stay public.
func RegisterRoutes(e *echo.Echo, h *Handler, protect ...echo.MiddlewareFunc) {
	e.GET("/health", h.HandleHealth)
	e.GET("/openapi.json", h.HandleOpenAPI)
	e.GET("/docs", h.HandleDocs)
	e.GET("/docs/oauth2-redirect.html", HandleOAuthRedirect)

	g := e.Group("/api/v1", protect...)
	g.GET("/flows", h.ListFlows)
	g.GET("/flows/:name", h.GetFlow)
	var run []echo.MiddlewareFunc
	if h.runTimeout > 0 {
		run = append(run, middleware.ContextTimeout(h.runTimeout))
	}
	g.POST("/flows/:name", h.RunFlow, run...)
	g.POST("/contact", h.SubmitContact)
}

// HandleHealth reports service health. Failing dependency checks degrade the status
// but still answer 200 so the process is not restarted for a database outage.
// (GET /health)
func (h *Handler) HandleHealth(c echo.Context) error {
	status := models.HealthStatus{
		Status:    "ok",
		Service:   "edugenius-backend",
		Version:   Version,
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{"flows": fmt.Sprintf("%d registered", len(h.flows.List()))},
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Checks[name] = err.Error()
			continue
		}
		status.Checks[name] = "ok"
	}
	return c.JSON(http.StatusOK, status)
}

// decodeObject reads a JSON object body. Numbers stay json.Number so integer fields
// are not routed through float64.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return raw, nil
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	id := uuid.New().String()
	c.Response().Header().Set(echo.HeaderXRequestID, id)
	return id
}

// writeProblem writes an RFC 7807 Problem Details response.
func writeProblem(c echo.Context, p models.ProblemDetails) error {
	p.Instance = c.Request().URL.Path
	if sc := trace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
		p.TraceID = sc.TraceID().String()
	}
	if p.Type == "" {
		p.Type = "about:blank"
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(p.Status)
	return json.NewEncoder(c.Response()).Encode(p)
}

// problemFor maps an error from flow execution or contact submission to a problem.
func problemFor(err error) models.ProblemDetails {
	if errors.Is(err, flow.ErrUnknownFlow) {
		return models.ProblemDetails{Title: "Unknown flow", Status: http.StatusNotFound, Detail: err.Error()}
	}

	var fe *flow.Error
	if errors.As(err, &fe) {
		p := models.ProblemDetails{
			Type:  "urn:edugenius:flow:" + string(fe.Kind),
			Flow:  fe.Flow,
			Kind:  string(fe.Kind),
			Field: fe.Path,
		}
		if fe.StepName != "" {
			step := fe.Step
			p.Step = &step
			p.StepName = fe.StepName
		}
		switch fe.Kind {
		case flow.KindValidation:
			p.Title, p.Status, p.Detail = "Invalid input", http.StatusBadRequest, errors.Unwrap(fe).Error()
		case flow.KindContentPrecondition:
			p.Title, p.Status, p.Detail = "No usable content", http.StatusUnprocessableEntity, errors.Unwrap(fe).Error()
		case flow.KindInvoker:
			p.Title, p.Status = "Generation backend failed", http.StatusBadGateway
			p.Detail = fmt.Sprintf("the generation backend failed (%s)", generation.KindOf(err))
		case flow.KindCoercion:
			p.Title, p.Status = "Unusable generation result", http.StatusBadGateway
			p.Detail = "the generated answer did not match the expected shape"
		default:
			p.Title, p.Status = "Flow failed", http.StatusInternalServerError
		}
		return p
	}

	var fieldErr *schema.FieldError
	if errors.As(err, &fieldErr) {
		return models.ProblemDetails{Title: "Invalid input", Status: http.StatusBadRequest, Detail: fieldErr.Error(), Field: fieldErr.Path}
	}

	return models.ProblemDetails{Title: "Internal error", Status: http.StatusInternalServerError}
}
