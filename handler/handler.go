// Package handler exposes counters as AWS Lambda functions.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/tally/counter"
)

const (
	// OpIncrement adds to a counter.
	OpIncrement = "increment"

	// OpGet reads the last value of a counter.
	OpGet = "get"
)

var (
	// ErrUnknownOp is returned for requests with an unsupported operation.
	ErrUnknownOp = errors.New("tally: unknown operation")

	// ErrTableNotAllowed is returned when a request names a table that was
	// not allowed with AllowTables.
	ErrTableNotAllowed = errors.New("tally: table not allowed")
)

// Request is the payload of a direct Lambda invocation.
type Request struct {
	Op        string `json:"op"`
	CounterID string `json:"counterId"`

	// Amount is the increment; nil means 1. Ignored for reads.
	Amount *int64 `json:"amount,omitempty"`

	// TableName optionally targets a table other than the configured one.
	// Only tables passed to AllowTables are accepted.
	TableName string `json:"tableName,omitempty"`
}

// Response is returned from both entry points.
type Response struct {
	CounterID string `json:"counterId"`
	Value     int64  `json:"value"`
}

// Handler serves counter operations.
type Handler struct {
	counters *counter.Counters
	logger   *slog.Logger
	tables   map[string]bool
}

// New creates a handler.
func New(c *counter.Counters, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		counters: c,
		logger:   logger,
		tables:   make(map[string]bool),
	}
}

// AllowTables lets requests target the named tables in addition to the
// configured one. Call it before serving.
func (h *Handler) AllowTables(names ...string) {
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			h.tables[name] = true
		}
	}
}

func (h *Handler) tableAllowed(name string) bool {
	if h.tables[name] {
		return true
	}
	return h.counters != nil && h.counters.Config().TableName == name
}

// HandleInvoke processes a direct invocation.
func (h *Handler) HandleInvoke(ctx context.Context, req Request) (Response, error) {
	var opts []counter.Option
	if req.TableName != "" {
		if !h.tableAllowed(req.TableName) {
			h.logger.Warn("rejected request for table",
				"op", req.Op,
				"counterID", req.CounterID,
				"table", req.TableName,
			)
			return Response{}, fmt.Errorf("%w: %q", ErrTableNotAllowed, req.TableName)
		}
		opts = append(opts, counter.WithTableName(req.TableName))
	}

	var (
		value int64
		err   error
	)
	switch req.Op {
	case OpIncrement:
		if req.Amount != nil {
			opts = append(opts, counter.WithAmount(*req.Amount))
		}
		value, err = h.counters.Add(ctx, req.CounterID, opts...)
	case OpGet:
		value, err = h.counters.Get(ctx, req.CounterID, opts...)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOp, req.Op)
	}

	if err != nil {
		h.logger.Error("counter operation failed",
			"op", req.Op,
			"counterID", req.CounterID,
			"error", err,
		)
		return Response{}, err
	}

	h.logger.Info("counter operation completed",
		"op", req.Op,
		"counterID", req.CounterID,
		"value", value,
	)
	return Response{CounterID: req.CounterID, Value: value}, nil
}

// HandleHTTP serves API Gateway HTTP API (payload v2) requests:
//
//	GET  /counters/{id}          last value
//	POST /counters/{id}?by=N     increment by N (default 1)
func (h *Handler) HandleHTTP(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := event.RequestContext.HTTP.Method
	counterID := counterIDFromPath(event)
	if counterID == "" {
		return errorResponse(http.StatusNotFound, "counter id required"), nil
	}

	req := Request{CounterID: counterID}
	switch method {
	case http.MethodGet:
		req.Op = OpGet
	case http.MethodPost:
		req.Op = OpIncrement
		amount, err := queryInt(event.QueryStringParameters, "by")
		if err != nil {
			return errorResponse(http.StatusBadRequest, err.Error()), nil
		}
		req.Amount = amount
	default:
		return errorResponse(http.StatusMethodNotAllowed, "method not allowed"), nil
	}

	resp, err := h.HandleInvoke(ctx, req)
	if err != nil {
		return errorResponse(statusFor(err), err.Error()), nil
	}
	return jsonResponse(http.StatusOK, resp), nil
}

// counterIDFromPath prefers the {id} path parameter and falls back to the
// last segment of the raw path.
func counterIDFromPath(event events.APIGatewayV2HTTPRequest) string {
	if id := event.PathParameters["id"]; id != "" {
		return id
	}
	path := strings.Trim(event.RawPath, "/")
	prefix, id, ok := strings.Cut(path, "/")
	if !ok || prefix != "counters" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// queryInt parses an optional integer query parameter.
func queryInt(params map[string]string, name string) (*int64, error) {
	raw, ok := params[name]
	if !ok || raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return &n, nil
}

// statusFor maps counter errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, counter.ErrEmptyCounterID),
		errors.Is(err, counter.ErrProtectedOverride),
		errors.Is(err, ErrUnknownOp):
		return http.StatusBadRequest
	case errors.Is(err, ErrTableNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, counter.ErrMalformedResponse), counter.IsStoreError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, body any) events.APIGatewayV2HTTPResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

func errorResponse(status int, message string) events.APIGatewayV2HTTPResponse {
	return jsonResponse(status, map[string]string{"error": message})
}
