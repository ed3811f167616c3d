package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/pario-ai/switchboard/pkg/config"
	"github.com/pario-ai/switchboard/pkg/models"
)

// QueryHandler answers a natural-language query.
type QueryHandler interface {
	Handle(ctx context.Context, req models.QueryRequest) models.QueryResponse
}

// CacheStatter provides cache statistics without coupling to a concrete cache.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// StatsFunc adapts a function to CacheStatter.
type StatsFunc func(ctx context.Context) (models.CacheStats, error)

// Stats calls f.
func (f StatsFunc) Stats(ctx context.Context) (models.CacheStats, error) { return f(ctx) }

// AuditSearcher searches the query audit log.
type AuditSearcher interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error)
}

// Deps are the collaborators exposed as tools. Cache and Auditor may be nil.
type Deps struct {
	Query   QueryHandler
	Sources []config.AdapterConfig
	Cache   CacheStatter
	Auditor AuditSearcher
	Logger  *slog.Logger
}

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	query   QueryHandler
	sources []config.AdapterConfig
	cache   CacheStatter
	auditor AuditSearcher
	logger  *slog.Logger
	version string
}

// New creates an MCP Server.
func New(d Deps, version string) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		query:   d.Query,
		sources: d.Sources,
		cache:   d.Cache,
		auditor: d.Auditor,
		logger:  logger,
		version: version,
	}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, Response{
				JSONRPC: jsonrpcVersion,
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}
		if req.JSONRPC != jsonrpcVersion {
			s.writeResponse(w, s.rpcError(&req, CodeInvalidRequest, "jsonrpc must be \"2.0\""))
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			continue
		}
		s.writeResponse(w, *resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.result(req, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "switchboard", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
			Instructions:    "Answer customer questions from billing, CRM and product data with switchboard_query.",
		})
	case "ping":
		return s.result(req, map[string]any{})
	case "tools/list":
		return s.result(req, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		if req.IsNotification() {
			return nil
		}
		resp := s.rpcError(req, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
		return &resp
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := s.rpcError(req, CodeInvalidParams, "invalid params")
		return &resp
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return s.result(req, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	s.logger.Debug("mcp tool call", "tool", params.Name)
	return s.result(req, handler(ctx, s, params.Arguments))
}

func (s *Server) result(req *Request, v any) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: v}
}

func (s *Server) rpcError(req *Request, code int, msg string) Response {
	return Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: &RPCError{Code: code, Message: msg}}
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mcp: marshal error", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("mcp: write error", "error", err)
	}
}
