// Package plugin adapts a typed storage backend (in-memory, SQL, a
// third-party directory) to the core's type-erased scim.ResourceHandler,
// and tracks which Authenticator guards which registered endpoint.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arimatsu/scimcore/auth"
	"github.com/arimatsu/scimcore/config"
	"github.com/arimatsu/scimcore/scim"
)

// TypedBackend is what a storage implementation provides for one
// resource type T (scim.User, scim.Group, or a deployment-defined type).
// A backend is written once per storage technology, not once per
// (storage type, resource type) pair.
type TypedBackend[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, resource T) (T, error)
	Get(ctx context.Context, id string) (T, bool, error)
	Replace(ctx context.Context, id string, resource T) (T, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// FilterableBackend is an optional capability a TypedBackend[T] may add:
// a storage layer that can push filtering, sorting, and pagination down
// into its own query engine instead of forcing Search to List() the
// entire table and run scim.ProcessListQuery in memory. Search type-
// asserts for this interface and falls back to List+ProcessListQuery
// when a backend doesn't implement it.
type FilterableBackend[T any] interface {
	TypedBackend[T]
	// ListFiltered returns the page of resources matching q.Filter,
	// ordered by q.SortBy/q.SortOrder, sliced to q.StartIndex/q.Count,
	// plus the total match count before pagination. Attribute
	// projection (q.Attributes/q.ExcludedAttributes) remains the
	// caller's responsibility.
	ListFiltered(ctx context.Context, q scim.Query) (resources []T, total int, err error)
}

// TypedHandler wraps a TypedBackend[T] into a scim.ResourceHandler,
// doing the typed (de)serialization so the router and the Registry only
// ever see bytes in, bytes out. Patch has a default implementation
// (get -> apply -> replace using scim.PatchApplicator).
type TypedHandler[T any] struct {
	endpoint         string
	schemaURI        string
	resourceTypeName string
	backend          TypedBackend[T]
	patcher          *scim.PatchApplicator
	logger           *slog.Logger
}

// NewTypedHandler builds a ResourceHandler for resource type T backed by
// backend. resourceTypeName feeds meta.resourceType and error messages
// (e.g. "User"); endpoint is the first path segment (e.g. "Users").
func NewTypedHandler[T any](endpoint, schemaURI, resourceTypeName string, backend TypedBackend[T], logger *slog.Logger) *TypedHandler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypedHandler[T]{
		endpoint:         endpoint,
		schemaURI:        schemaURI,
		resourceTypeName: resourceTypeName,
		backend:          backend,
		patcher:          scim.NewPatchApplicator(logger),
		logger:           logger,
	}
}

func (h *TypedHandler[T]) EndpointName() string { return h.endpoint }
func (h *TypedHandler[T]) SchemaURI() string    { return h.schemaURI }

// SetReplaceCreatesOnMissingPath toggles the PATCH applicator's lenient
// behavior for this handler (DESIGN.md Open Question 2); defaults to
// lenient on-by-default.
func (h *TypedHandler[T]) SetReplaceCreatesOnMissingPath(v bool) {
	h.patcher.ReplaceCreatesOnMissingPath = v
}

func (h *TypedHandler[T]) Create(ctx context.Context, rc *scim.RequestContext, body []byte) ([]byte, error) {
	var resource T
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, scim.ErrInvalidSyntax(fmt.Sprintf("malformed %s body: %v", h.resourceTypeName, err))
	}

	doc, err := scim.ToDocument(resource)
	if err != nil {
		return nil, scim.ErrInvalidSyntax(err.Error())
	}
	stampNewResource(doc, h.resourceTypeName, h.schemaURI)
	if err := scim.FromDocument(doc, &resource); err != nil {
		return nil, scim.ErrInternalServer(err.Error())
	}

	created, err := h.backend.Create(ctx, resource)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	return json.Marshal(created)
}

func (h *TypedHandler[T]) Get(ctx context.Context, rc *scim.RequestContext, id string) ([]byte, error) {
	resource, ok, err := h.backend.Get(ctx, id)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	if !ok {
		return nil, scim.ErrNotFound(h.resourceTypeName, id)
	}
	return json.Marshal(resource)
}

func (h *TypedHandler[T]) Replace(ctx context.Context, rc *scim.RequestContext, id string, body []byte) ([]byte, error) {
	existing, ok, err := h.backend.Get(ctx, id)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	if !ok {
		return nil, scim.ErrNotFound(h.resourceTypeName, id)
	}

	var incoming T
	if err := json.Unmarshal(body, &incoming); err != nil {
		return nil, scim.ErrInvalidSyntax(fmt.Sprintf("malformed %s body: %v", h.resourceTypeName, err))
	}

	existingDoc, err := scim.ToDocument(existing)
	if err != nil {
		return nil, scim.ErrInternalServer(err.Error())
	}
	incomingDoc, err := scim.ToDocument(incoming)
	if err != nil {
		return nil, scim.ErrInvalidSyntax(err.Error())
	}
	incomingDoc["id"] = id
	incomingDoc["meta"] = existingDoc["meta"]
	stampModified(incomingDoc)

	var resource T
	if err := scim.FromDocument(incomingDoc, &resource); err != nil {
		return nil, scim.ErrInternalServer(err.Error())
	}

	replaced, err := h.backend.Replace(ctx, id, resource)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	return json.Marshal(replaced)
}

func (h *TypedHandler[T]) Patch(ctx context.Context, rc *scim.RequestContext, id string, body []byte) ([]byte, error) {
	existing, ok, err := h.backend.Get(ctx, id)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	if !ok {
		return nil, scim.ErrNotFound(h.resourceTypeName, id)
	}

	var patchOp scim.PatchOp
	if err := json.Unmarshal(body, &patchOp); err != nil {
		return nil, scim.ErrInvalidSyntax(fmt.Sprintf("malformed PatchOp body: %v", err))
	}
	if err := scim.ValidatePatchOperations(patchOp.Operations); err != nil {
		return nil, err
	}

	doc, err := scim.ToDocument(existing)
	if err != nil {
		return nil, scim.ErrInternalServer(err.Error())
	}
	patched, err := h.patcher.Apply(doc, patchOp.Operations)
	if err != nil {
		return nil, err
	}
	stampModified(patched)

	var resource T
	if err := scim.FromDocument(patched, &resource); err != nil {
		return nil, scim.ErrInternalServer(err.Error())
	}

	replaced, err := h.backend.Replace(ctx, id, resource)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	return json.Marshal(replaced)
}

func (h *TypedHandler[T]) Delete(ctx context.Context, rc *scim.RequestContext, id string) error {
	ok, err := h.backend.Delete(ctx, id)
	if err != nil {
		return wrapBackendError(err)
	}
	if !ok {
		return scim.ErrNotFound(h.resourceTypeName, id)
	}
	return nil
}

func (h *TypedHandler[T]) Search(ctx context.Context, rc *scim.RequestContext, q scim.Query) ([]byte, error) {
	if fb, ok := h.backend.(FilterableBackend[T]); ok {
		return h.searchFiltered(ctx, fb, q)
	}

	all, err := h.backend.List(ctx)
	if err != nil {
		return nil, wrapBackendError(err)
	}

	docs := make([]scim.Document, 0, len(all))
	for _, resource := range all {
		doc, err := scim.ToDocument(resource)
		if err != nil {
			return nil, scim.ErrInternalServer(err.Error())
		}
		docs = append(docs, doc)
	}

	result, err := scim.ProcessListQuery(docs, q)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"schemas":      []string{scim.SchemaListResponse},
		"totalResults": result.TotalResults,
		"startIndex":   result.StartIndex,
		"itemsPerPage": result.ItemsPerPage,
		"Resources":    result.Resources,
	})
}

// searchFiltered is the FilterableBackend path: the backend already
// applied q.Filter/q.SortBy/q.SortOrder/q.StartIndex/q.Count, so only
// attribute projection happens here.
func (h *TypedHandler[T]) searchFiltered(ctx context.Context, fb FilterableBackend[T], q scim.Query) ([]byte, error) {
	resources, total, err := fb.ListFiltered(ctx, q)
	if err != nil {
		return nil, wrapBackendError(err)
	}

	projected := make([]scim.Document, 0, len(resources))
	for _, resource := range resources {
		doc, err := scim.ToDocument(resource)
		if err != nil {
			return nil, scim.ErrInternalServer(err.Error())
		}
		projected = append(projected, scim.Project(doc, q.Attributes, q.ExcludedAttributes))
	}

	itemsPerPage := len(projected)
	return json.Marshal(map[string]any{
		"schemas":      []string{scim.SchemaListResponse},
		"totalResults": total,
		"startIndex":   q.StartIndex,
		"itemsPerPage": itemsPerPage,
		"Resources":    projected,
	})
}

func stampNewResource(doc scim.Document, resourceType, schemaURI string) {
	if doc["id"] == nil || doc["id"] == "" {
		doc["id"] = uuid.New().String()
	}
	if _, ok := doc["schemas"]; !ok {
		doc["schemas"] = []string{schemaURI}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	doc["meta"] = map[string]any{
		"resourceType": resourceType,
		"created":      now,
		"lastModified": now,
	}
}

func stampModified(doc scim.Document) {
	meta, ok := doc["meta"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		doc["meta"] = meta
	}
	meta["lastModified"] = time.Now().UTC().Format(time.RFC3339)
}

// wrapBackendError maps a storage-layer error to a SCIM error unless it
// already is one (a backend may raise scim.SCIMError itself, e.g. a
// Postgres unique-constraint violation mapped to ErrUniqueness).
func wrapBackendError(err error) error {
	if _, ok := err.(*scim.SCIMError); ok {
		return err
	}
	return scim.ErrInternalServer(err.Error())
}

// Registry pairs the core's scim.Registry with one Authenticator per
// registered SCIM endpoint; dispatch paths are "/{Endpoint}[/{id}...]"
// with no tenant path segment.
type Registry struct {
	Handlers       *scim.Registry
	authenticators map[string]auth.Authenticator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		Handlers:       scim.NewRegistry(),
		authenticators: make(map[string]auth.Authenticator),
	}
}

// Register adds h to the handler registry and, if authenticator is
// non-nil, associates it with h's endpoint for PerEndpointAuthMiddleware.
func (r *Registry) Register(h scim.ResourceHandler, authenticator auth.Authenticator) {
	r.Handlers.Register(h)
	if authenticator != nil {
		r.authenticators[lowerKey(h.EndpointName())] = authenticator
	}
}

// Authenticator returns the Authenticator registered for endpoint, if
// any.
func (r *Registry) Authenticator(endpoint string) (auth.Authenticator, bool) {
	a, ok := r.authenticators[lowerKey(endpoint)]
	return a, ok
}

// BuildAuthenticator constructs an Authenticator from a config.AuthConfig:
// "basic" and "bearer" build the built-in authenticators, "custom" returns
// the deployment-supplied Authenticator verbatim, and "none"/nil yield no
// authentication.
func BuildAuthenticator(authCfg *config.AuthConfig) (auth.Authenticator, error) {
	if authCfg == nil {
		return nil, nil
	}
	switch authCfg.Type {
	case "basic":
		if authCfg.Basic == nil {
			return nil, fmt.Errorf("basic auth configured without Basic settings")
		}
		return auth.NewBasicAuthenticator(authCfg.Basic.Username, authCfg.Basic.Password), nil
	case "bearer":
		if authCfg.Bearer == nil {
			return nil, fmt.Errorf("bearer auth configured without Bearer settings")
		}
		return auth.NewBearerAuthenticator(authCfg.Bearer.Token), nil
	case "custom":
		if authCfg.Custom == nil || authCfg.Custom.Authenticator == nil {
			return nil, fmt.Errorf("custom auth configured without an Authenticator")
		}
		return authCfg.Custom.Authenticator, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", authCfg.Type)
	}
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
