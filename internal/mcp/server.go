// Package mcp exposes every registered flow as a Model Context Protocol tool.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"edugenius/backend/internal/flow"
	"edugenius/backend/internal/schema"
)

// FlowRegistry is the part of *flow.Registry the tool handlers use.
type FlowRegistry interface {
	List() []flow.Info
	Run(ctx context.Context, name string, raw map[string]any) (schema.Record, error)
}

type Server struct {
	mcpServer *server.MCPServer
	flows     FlowRegistry
	tools     []string
}

// NewServer registers one tool per flow. The tool input schema is the flow's input
// schema, so hosts can validate arguments before calling.
func NewServer(flows FlowRegistry, version string) (*Server, error) {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"EduGenius",
			version,
			server.WithToolCapabilities(true),
		),
		flows: flows,
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// Tools returns the registered tool names in registry order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

func (s *Server) registerTools() error {
	for _, info := range s.flows.List() {
		in, err := schema.MarshalJSONSchema(info.Input)
		if err != nil {
			return fmt.Errorf("mcp: tool %q: %w", info.Name, err)
		}
		s.mcpServer.AddTool(mcp.NewToolWithRawSchema(info.Name, info.Description, in), s.handler(info.Name))
		s.tools = append(s.tools, info.Name)
	}
	return nil
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]any)
		if !ok && request.Params.Arguments != nil {
			return mcp.NewToolResultError("Invalid arguments type"), nil
		}
		if args == nil {
			args = map[string]any{}
		}

		out, err := s.flows.Run(ctx, name, args)
		if err != nil {
			// Flow failures are reported to the model, not as protocol errors.
			var fe *flow.Error
			if errors.As(err, &fe) {
				return mcp.NewToolResultError(fe.Error()), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to run %s: %v", name, err)), nil
		}

		jsonBytes, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

// MountHTTPHandlers serves the MCP server over streamable HTTP at /mcp and over SSE at
// /mcp/sse and /mcp/message.
func MountHTTPHandlers(e *echo.Echo, mcpServer *server.MCPServer, middleware ...echo.MiddlewareFunc) {
	streamable := server.NewStreamableHTTPServer(mcpServer, server.WithEndpointPath("/mcp"))
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	e.Any("/mcp", echo.WrapHandler(streamable), middleware...)
	e.GET("/mcp/sse", echo.WrapHandler(sseServer), middleware...)
	e.POST("/mcp/message", echo.WrapHandler(sseServer), middleware...)
}
