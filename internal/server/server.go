package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/hough-circles/internal/config"
	"github.com/ironsheep/hough-circles/internal/imaging"
)

// ServerName is reported in the initialize handshake.
const ServerName = "hough-circles"

// maxRequestBytes bounds a single JSON-RPC line. Images travel base64
// encoded inside requests, so this is far above the usual JSON-RPC sizes.
const maxRequestBytes = 256 << 20

// Server handles MCP protocol communication
type Server struct {
	cache   *imaging.ImageCache
	cfg     *config.Config
	log     logrus.FieldLogger
	version string
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes used by the server.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// Option customizes a Server.
type Option func(*Server)

// WithConfig sets the server configuration. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) { s.log = logger }
}

// WithVersion sets the version reported in the initialize handshake.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// New creates a new MCP server instance
func New(opts ...Option) *Server {
	s := &Server{
		cache:   imaging.NewImageCache(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve processes newline-delimited JSON-RPC requests from r and writes
// responses to w until r is exhausted or ctx is done.
//
// Requests are handled one at a time, in arrival order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxRequestBytes)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			resp := s.errorResponse(nil, codeParseError, "Parse error", err.Error())
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
			continue
		}

		resp := s.handleRequestContext(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("request exceeds %d bytes: %w", maxRequestBytes, err)
		}
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	return s.handleRequestContext(context.Background(), req)
}

func (s *Server) handleRequestContext(ctx context.Context, req *MCPRequest) *MCPResponse {
	log := s.log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"method":     req.Method,
	})
	started := time.Now()
	defer func() {
		log.WithField("elapsed", time.Since(started)).Debug("request handled")
	}()

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, log, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		log.Warn("method not found")
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": s.version,
			},
		},
	}
}
