package ipc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
)

// HandlerFunc processes RPC params and returns a result or structured error.
type HandlerFunc func(context.Context, json.RawMessage) (any, *Error)

// Server listens for IPC requests over Unix sockets.
type Server struct {
	ln       net.Listener
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	closed   bool
	token    string
	logger   *slog.Logger
}

// NewServer constructs an IPC server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// RequireToken rejects requests whose token differs from token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Register installs a handler for a method.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// Methods lists the registered method names.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		out = append(out, name)
	}
	return out
}

// Start begins accepting connections on endpoint. The socket is only
// accessible to the owning user.
func (s *Server) Start(ctx context.Context, endpoint string) error {
	if s == nil {
		return errors.New("nil server")
	}
	ln, err := net.Listen("unix", endpoint)
	if err != nil {
		return err
	}
	if err := os.Chmod(endpoint, 0o600); err != nil {
		ln.Close()
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	go s.acceptLoop(ctx, ln)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return
			}
			s.logger.Warn("accept error", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			return
		}
		resp := s.Dispatch(ctx, payload)
		if err := s.writeResponse(conn, resp); err != nil {
			return
		}
	}
}

// Dispatch decodes one request frame and runs its handler.
func (s *Server) Dispatch(ctx context.Context, payload []byte) Response {
	traceID := uuid.NewString()
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorResponse("", traceID, Errorf(CodeInvalidRequest, "invalid json", nil))
	}
	if !s.authorized(req.Token) {
		return errorResponse(req.ID, traceID, Errorf(CodeUnauthorized, "unauthorized", nil))
	}
	handler := s.lookupHandler(req.Type)
	if handler == nil {
		return errorResponse(req.ID, traceID, Errorf(CodeInvalidRequest, "unknown method", map[string]any{"method": req.Type}))
	}
	result, rpcErr := handler(ctx, req.Params)
	if rpcErr != nil {
		s.logger.Debug("handler failed", "method", req.Type, "code", rpcErr.Code, "error", rpcErr.Message, "traceId", traceID)
		return errorResponse(req.ID, traceID, rpcErr)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("encode result", "method", req.Type, "error", err, "traceId", traceID)
		return errorResponse(req.ID, traceID, Errorf(CodeInternal, err.Error(), nil))
	}
	return Response{ID: req.ID, OK: true, Result: raw, TraceID: traceID}
}

func errorResponse(id, traceID string, rpcErr *Error) Response {
	if rpcErr.Details == nil {
		rpcErr.Details = map[string]any{}
	}
	rpcErr.Details["traceId"] = traceID
	return Response{ID: id, TraceID: traceID, Error: rpcErr}
}

func (s *Server) authorized(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}

func (s *Server) lookupHandler(method string) HandlerFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[method]
}

func (s *Server) writeResponse(conn net.Conn, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return WriteFrame(conn, payload)
}

// Stop shuts down the listener.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Errorf helps build protocol errors.
func Errorf(code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}
