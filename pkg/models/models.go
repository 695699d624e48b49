// Package models defines the wire types shared by the HTTP API, the MCP server and the CLI.
package models

import (
	"encoding/json"
	"time"
)

// FlowSummary describes a runnable flow and the JSON Schemas of its input and output.
type FlowSummary struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Steps        []string        `json:"steps,omitempty"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
}

// FlowResult is the response body of a successful flow run.
type FlowResult struct {
	Flow      string         `json:"flow"`
	RequestID string         `json:"request_id"`
	Output    map[string]any `json:"output"`
}

// ContactMessage is a message submitted through the contact form.
type ContactMessage struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Subject   string    `json:"subject" db:"subject"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ContactReceipt acknowledges an accepted contact message.
type ContactReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
	// Extensions
	Flow     string `json:"flow,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Step     *int   `json:"step,omitempty"`
	StepName string `json:"step_name,omitempty"`
	Field    string `json:"field,omitempty"`
}
