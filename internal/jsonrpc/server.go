package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Server dispatches JSON-RPC 2.0 messages to a MethodRegistry.
type Server struct {
	registry *MethodRegistry
	logger   *slog.Logger
}

// NewServer creates a JSON-RPC server with the given method registry.
func NewServer(registry *MethodRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, logger: logger}
}

// Notifier sends a server-initiated notification to the peer of the
// current request.
type Notifier func(method string, params any)

type notifierKey struct{}

// NotifierFrom returns the notifier bound to ctx by the server. Outside a
// request it returns a no-op.
func NotifierFrom(ctx context.Context) Notifier {
	if n, ok := ctx.Value(notifierKey{}).(Notifier); ok {
		return n
	}
	return func(string, any) {}
}

// ServeTransport answers messages from t until the peer closes the stream
// or a write fails. A line that is not JSON gets a parse error reply and the
// loop moves on to the next line. Handlers receive ctx, so cancelling it
// stops a running optimization at its next generation boundary.
func (s *Server) ServeTransport(ctx context.Context, t *Transport) {
	ctx = context.WithValue(ctx, notifierKey{}, Notifier(func(method string, params any) {
		if err := t.WriteNotification(method, params); err != nil {
			s.logger.Debug("notification write error", "method", method, "error", err)
		}
	}))

	for {
		raw, err := t.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("read error", "error", err)
				if writeErr := t.WriteResponse(failure(nullID, ErrParseError(err.Error()))); writeErr != nil {
					s.logger.Debug("write error", "error", writeErr)
				}
			}
			return
		}

		resp := s.handle(ctx, raw)
		if resp == nil {
			continue
		}
		if err := t.WriteResponse(resp); err != nil {
			s.logger.Debug("write error", "error", err)
			return
		}
	}
}

// handle processes one message. It returns nil for notifications, which
// never get a reply, even when they fail.
func (s *Server) handle(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return failure(nullID, ErrParseError(err.Error()))
	}

	resp := s.dispatch(ctx, &req)
	if !hasIDField(raw) {
		return nil
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != Version {
		return failure(req.ID, ErrInvalidRequest(`jsonrpc field must be "2.0"`))
	}
	handler := s.registry.Lookup(req.Method)
	if handler == nil {
		return failure(req.ID, ErrMethodNotFound(req.Method))
	}

	start := time.Now()
	result, rpcErr := s.call(ctx, handler, req)
	s.logger.Debug("rpc call", "method", req.Method, "duration", time.Since(start), "ok", rpcErr == nil)
	if rpcErr != nil {
		return failure(req.ID, rpcErr)
	}
	return success(req.ID, result)
}

// call runs handler, turning a panic into an internal error so one bad
// request does not end the session.
func (s *Server) call(ctx context.Context, handler Handler, req *Request) (result any, rpcErr *Error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("rpc handler panicked", "method", req.Method, "panic", p)
			result, rpcErr = nil, ErrInternalError(fmt.Sprint(p))
		}
	}()
	return handler(ctx, req.Params)
}

// hasIDField reports whether the top-level object has an "id" member. An
// explicit null id still makes the message a call.
func hasIDField(raw []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	_, exists := obj["id"]
	return exists
}

// ServeStdio runs the server on stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) {
	s.ServeTransport(ctx, NewTransport(stdin, stdout))
}
