// Package router wraps chi with a route registry that validates every operation before mounting it.
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// ParameterIn is where a documented parameter is carried.
type ParameterIn string

const (
	ParameterInPath   ParameterIn = "path"
	ParameterInQuery  ParameterIn = "query"
	ParameterInHeader ParameterIn = "header"
)

// ParameterSpec documents one request parameter.
type ParameterSpec struct {
	In          ParameterIn
	Description string
	Required    bool
}

// RouteSpec describes an HTTP operation.
type RouteSpec struct {
	OperationID string // OperationID is a unique identifier for the operation (e.g., "getDevice").
	Summary     string // Summary is a short description of the operation.
	Description string // Description is a longer explanation of the operation.
	Group       string // Group is used to group related operations (e.g., "Telemetry").
	Deprecated  string // Deprecated, when set, explains what replaces the operation.
	Parameters  map[string]ParameterSpec
	Handler     http.HandlerFunc

	method   string
	fullPath string
}

// Route is a registered operation.
type Route struct {
	Method      string
	Path        string
	OperationID string
	Group       string
	Summary     string
	Deprecated  bool
}

type registry struct {
	mu     sync.Mutex
	ops    map[string]struct{}
	routes []Route
}

// RouteBuilder registers validated routes on a chi router. Builders created by Route share the
// registry of their parent.
type RouteBuilder struct {
	l      *slog.Logger
	r      chi.Router
	prefix string
	reg    *registry
}

func NewRouteBuilder(l *slog.Logger) (*RouteBuilder, error) {
	if l == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RouteBuilder{
		l:   l.With(slog.String("component", "router")),
		r:   chi.NewRouter(),
		reg: &registry{ops: make(map[string]struct{})},
	}, nil
}

// Router returns the underlying chi router.
//
//nolint:ireturn // chi.Router is the type handlers are mounted on
func (rb *RouteBuilder) Router() chi.Router {
	return rb.r
}

// Use appends middleware to the current router.
func (rb *RouteBuilder) Use(middlewares ...func(http.Handler) http.Handler) {
	rb.r.Use(middlewares...)
}

// Route creates a sub-router mounted at pattern.
func (rb *RouteBuilder) Route(pattern string, fn func(rb *RouteBuilder)) {
	rb.r.Route(pattern, func(r chi.Router) {
		fn(&RouteBuilder{
			l:      rb.l,
			r:      r,
			prefix: joinPath(rb.prefix, pattern),
			reg:    rb.reg,
		})
	})
}

// Routes returns the registered operations in registration order.
func (rb *RouteBuilder) Routes() []Route {
	rb.reg.mu.Lock()
	defer rb.reg.mu.Unlock()

	return slices.Clone(rb.reg.routes)
}

func (rb *RouteBuilder) Get(path string, spec RouteSpec) error {
	return rb.handle(http.MethodGet, path, spec)
}

func (rb *RouteBuilder) Post(path string, spec RouteSpec) error {
	return rb.handle(http.MethodPost, path, spec)
}

func (rb *RouteBuilder) Put(path string, spec RouteSpec) error {
	return rb.handle(http.MethodPut, path, spec)
}

func (rb *RouteBuilder) Delete(path string, spec RouteSpec) error {
	return rb.handle(http.MethodDelete, path, spec)
}

func (rb *RouteBuilder) MustGet(path string, spec RouteSpec) {
	must(rb.Get(path, spec))
}

func (rb *RouteBuilder) MustPost(path string, spec RouteSpec) {
	must(rb.Post(path, spec))
}

func (rb *RouteBuilder) MustPut(path string, spec RouteSpec) {
	must(rb.Put(path, spec))
}

func (rb *RouteBuilder) MustDelete(path string, spec RouteSpec) {
	must(rb.Delete(path, spec))
}

func (rb *RouteBuilder) handle(method, path string, spec RouteSpec) error {
	spec.method = method
	spec.fullPath = joinPath(rb.prefix, path)

	if err := validateRouteSpec(spec); err != nil {
		return fmt.Errorf("invalid route %s %s: %w", method, spec.fullPath, err)
	}

	if err := validateParameters(spec); err != nil {
		return err
	}

	rb.reg.mu.Lock()
	if _, exists := rb.reg.ops[spec.OperationID]; exists {
		rb.reg.mu.Unlock()
		return fmt.Errorf("duplicate operationID %s for %s %s", spec.OperationID, method, spec.fullPath)
	}

	rb.reg.ops[spec.OperationID] = struct{}{}
	rb.reg.routes = append(rb.reg.routes, Route{
		Method:      method,
		Path:        spec.fullPath,
		OperationID: spec.OperationID,
		Group:       spec.Group,
		Summary:     spec.Summary,
		Deprecated:  spec.Deprecated != "",
	})
	rb.reg.mu.Unlock()

	rb.r.Method(method, path, spec.Handler)
	rb.l.Debug("Route registered",
		slog.String("method", method),
		slog.String("path", spec.fullPath),
		slog.String("operationID", spec.OperationID),
	)

	return nil
}

func joinPath(prefix, path string) string {
	full := strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(full) > 1 {
		full = strings.TrimSuffix(full, "/")
	}

	return full
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
