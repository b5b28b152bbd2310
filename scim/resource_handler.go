package scim

import (
	"context"
	"net/http"
)

// RequestContext carries the per-request state a ResourceHandler needs
// beyond the raw HTTP request: who authenticated, and what base URL to
// stamp into Location headers. One RequestContext is built per inbound
// request and never shared across requests.
type RequestContext struct {
	AuthSubject string
	BaseURL     string
	Request     *http.Request
}

// ResourceHandler is the type-erased interface the router dispatches
// against: a polymorphic interface whose methods accept and return byte
// buffers, leaving typed (de)serialization to a thin per-type wrapper.
// The router never knows what Go type backs a handler — it only ever
// sees []byte in, []byte out. plugin.TypedHandler[T] is that wrapper.
type ResourceHandler interface {
	// EndpointName is the first path segment this handler answers to,
	// e.g. "Users". Matching is case-insensitive.
	EndpointName() string
	// SchemaURI is the schema this handler's resources declare.
	SchemaURI() string

	Create(ctx context.Context, rc *RequestContext, body []byte) ([]byte, error)
	Get(ctx context.Context, rc *RequestContext, id string) ([]byte, error)
	Replace(ctx context.Context, rc *RequestContext, id string, body []byte) ([]byte, error)
	Patch(ctx context.Context, rc *RequestContext, id string, body []byte) ([]byte, error)
	Delete(ctx context.Context, rc *RequestContext, id string) error
	Search(ctx context.Context, rc *RequestContext, q Query) ([]byte, error)
}

// Registry is the read-mostly table of registered handlers, keyed
// case-insensitively by endpoint name. Built at startup; registration
// after startup is permitted but must be serialized by the caller.
type Registry struct {
	handlers map[string]ResourceHandler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ResourceHandler)}
}

// Register adds or replaces the handler for its EndpointName.
func (r *Registry) Register(h ResourceHandler) {
	r.handlers[lowerKey(h.EndpointName())] = h
}

// Lookup finds a handler by endpoint name, case-insensitively.
func (r *Registry) Lookup(endpoint string) (ResourceHandler, bool) {
	h, ok := r.handlers[lowerKey(endpoint)]
	return h, ok
}

// Endpoints lists the registered endpoint names in registration order is
// not guaranteed; callers that need discovery output in a stable order
// should sort the result.
func (r *Registry) Endpoints() []string {
	names := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		names = append(names, h.EndpointName())
	}
	return names
}

func lowerKey(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
