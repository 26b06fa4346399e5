package jsonrpc

import "encoding/json"

// Version is the only protocol version the server speaks.
const Version = "2.0"

// Request is a call or, when the id member is absent, a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Response answers one Request. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Notification is a server-initiated message that expects no reply, such as
// optimizer progress.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error is the error member of a Response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Protocol error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Recipe service error codes.
const (
	CodeFileNotFound       = -32000
	CodeSchemaViolation    = -32001
	CodeOptimizationFailed = -32002
	// CodeInfeasible means the request is well formed but cannot be run,
	// e.g. every binder is prohibited.
	CodeInfeasible = -32003
)

var errorMessages = map[int]string{
	CodeParseError:         "Parse error",
	CodeInvalidRequest:     "Invalid request",
	CodeMethodNotFound:     "Method not found",
	CodeInvalidParams:      "Invalid params",
	CodeInternalError:      "Internal error",
	CodeFileNotFound:       "File not found",
	CodeSchemaViolation:    "Schema violation",
	CodeOptimizationFailed: "Optimization failed",
	CodeInfeasible:         "Infeasible request",
}

func newError(code int, data any) *Error {
	return &Error{Code: code, Message: errorMessages[code], Data: data}
}

func ErrParseError(data any) *Error {
	return newError(CodeParseError, data)
}

func ErrInvalidRequest(data any) *Error {
	return newError(CodeInvalidRequest, data)
}

func ErrMethodNotFound(method string) *Error {
	return newError(CodeMethodNotFound, method)
}

func ErrInvalidParams(data any) *Error {
	return newError(CodeInvalidParams, data)
}

func ErrInternalError(data any) *Error {
	return newError(CodeInternalError, data)
}

func ErrFileNotFound(path string) *Error {
	return newError(CodeFileNotFound, path)
}

// ErrSchemaViolation carries the schema messages for a recipe or request.
func ErrSchemaViolation(violations []string) *Error {
	return newError(CodeSchemaViolation, violations)
}

func ErrOptimizationFailed(data any) *Error {
	return newError(CodeOptimizationFailed, data)
}

// ErrInfeasible reports a structural input error from the optimizer.
func ErrInfeasible(data any) *Error {
	return newError(CodeInfeasible, data)
}

// nullID is used when a reply cannot be tied to a request id.
var nullID = json.RawMessage("null")

func success(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, Result: result, ID: id}
}

func failure(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, Error: err, ID: id}
}
