// Package mcpserver exposes the dispatch table as Model Context Protocol
// tools served over stdio.
package mcpserver

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/dispatch"
)

// Name is the server name announced during MCP initialization.
const Name = "sshmcp"

// Server wires a Dispatcher into an MCP server.
type Server struct {
	mcp      *server.MCPServer
	registry *sshmcp.Registry
	logger   zerolog.Logger
}

type options struct {
	version string
	logger  zerolog.Logger
}

// Option configures a Server.
type Option func(*options)

// WithVersion sets the version announced to clients.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New registers every dispatch tool. registry is closed when serving stops.
func New(d *dispatch.Dispatcher, registry *sshmcp.Registry, opts ...Option) *Server {
	o := options{version: "dev", logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := server.NewMCPServer(Name, o.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, t := range d.Tools() {
		s.AddTool(toolSchema(t), handler(d, t.Name))
	}

	return &Server{mcp: s, registry: registry, logger: o.logger}
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves on the process stdin and stdout until ctx is cancelled
// or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves newline-delimited JSON-RPC on in and out. All sessions are
// closed before it returns.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	defer s.registry.CloseAll()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(s.logger, "", 0))

	s.logger.Info().Msg("serving MCP on stdio")

	err := stdio.Listen(ctx, in, out)
	if err != nil && ctx.Err() != nil {
		err = nil
	}

	s.logger.Info().Int("sessions", s.registry.Len()).Msg("MCP server stopping")

	return err
}

func handler(d *dispatch.Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := d.Call(ctx, name, req.GetArguments())
		if res.IsError {
			return mcp.NewToolResultError(res.Text), nil
		}

		return mcp.NewToolResultText(res.Text), nil
	}
}

func toolSchema(t dispatch.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}

	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}

		if len(p.Enum) > 0 {
			props = append(props, mcp.Enum(p.Enum...))
		}

		switch p.Type {
		case dispatch.Integer:
			if n, ok := p.Default.(int); ok {
				props = append(props, mcp.DefaultNumber(float64(n)))
			}

			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case dispatch.Boolean:
			if b, ok := p.Default.(bool); ok {
				props = append(props, mcp.DefaultBool(b))
			}

			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		default:
			if s, ok := p.Default.(string); ok {
				props = append(props, mcp.DefaultString(s))
			}

			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}

	return mcp.NewTool(t.Name, opts...)
}
