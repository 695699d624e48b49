package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"edugenius/backend/internal/auth"
	"edugenius/backend/internal/flow"
	"edugenius/backend/internal/schema"
	"edugenius/backend/pkg/models"
)

// runSlack covers validation, rendering and response encoding around the backend calls.
const runSlack = 10 * time.Second

// RunDeadline bounds a flow run. The longest flow may spend callBudget on each of its
// steps.
func RunDeadline(infos []flow.Info, callBudget time.Duration) time.Duration {
	steps := 1
	for _, info := range infos {
		steps = max(steps, len(info.Steps))
	}
	return time.Duration(steps)*callBudget + runSlack
}

// WithRunTimeout cancels flow runs that outlive d. Zero leaves runs unbounded.
func (h *Handler) WithRunTimeout(d time.Duration) *Handler {
	h.runTimeout = d
	return h
}

func summarize(info flow.Info) (models.FlowSummary, error) {
	in, err := schema.MarshalJSONSchema(info.Input)
	if err != nil {
		return models.FlowSummary{}, err
	}
	out, err := schema.MarshalJSONSchema(info.Output)
	if err != nil {
		return models.FlowSummary{}, err
	}
	return models.FlowSummary{
		Name:         info.Name,
		Description:  info.Description,
		Steps:        info.Steps,
		InputSchema:  in,
		OutputSchema: out,
	}, nil
}

// ListFlows returns every flow with its schemas
// (GET /api/v1/flows)
func (h *Handler) ListFlows(c echo.Context) error {
	infos := h.flows.List()
	summaries := make([]models.FlowSummary, 0, len(infos))
	for _, info := range infos {
		s, err := summarize(info)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		summaries = append(summaries, s)
	}
	return c.JSON(http.StatusOK, summaries)
}

// GetFlow describes a single flow
// (GET /api/v1/flows/:name)
func (h *Handler) GetFlow(c echo.Context) error {
	f, err := h.flows.Get(c.Param("name"))
	if err != nil {
		return writeProblem(c, problemFor(err))
	}
	s, err := summarize(f.Info())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

// RunFlow executes a flow with the JSON object in the request body
// (POST /api/v1/flows/:name)
func (h *Handler) RunFlow(c echo.Context) error {
	name := c.Param("name")
	id := requestID(c)

	raw, err := decodeObject(c.Request().Body)
	if err != nil {
		return writeProblem(c, models.ProblemDetails{
			Title:  "Malformed request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	}

	out, err := h.flows.Run(c.Request().Context(), name, raw)
	if err != nil {
		p := problemFor(err)
		if p.Status >= http.StatusInternalServerError {
			args := []any{"request_id", id, "flow", name, "error", err}
			if s, ok := auth.SessionFromContext(c.Request().Context()); ok {
				args = append(args, "subject", s.Subject)
			}
			h.logger.Error("flow request failed", args...)
		}
		return writeProblem(c, p)
	}
	return c.JSON(http.StatusOK, models.FlowResult{Flow: name, RequestID: id, Output: out})
}

// SubmitContact accepts a contact form message
// (POST /api/v1/contact)
func (h *Handler) SubmitContact(c echo.Context) error {
	raw, err := decodeObject(c.Request().Body)
	if err != nil {
		return writeProblem(c, models.ProblemDetails{
			Title:  "Malformed request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	}

	msg, err := h.contact.Submit(c.Request().Context(), raw)
	if err != nil {
		p := problemFor(err)
		if p.Status >= http.StatusInternalServerError {
			h.logger.Error("contact submission failed", "error", err)
		}
		return writeProblem(c, p)
	}
	return c.JSON(http.StatusAccepted, models.ContactReceipt{ID: msg.ID, Status: "accepted"})
}
