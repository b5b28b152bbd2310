package scim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// discardLogger returns a no-op logger that discards all output
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Router is the request dispatch state machine: it owns a Registry of
// ResourceHandlers and the static service-provider metadata, and routes
// every inbound request through the same sequence regardless of which
// endpoint it targets. It builds its routes once from whatever
// ResourceHandlers are registered, so adding a resource type requires no
// change here.
type Router struct {
	baseURL      string
	registry     *Registry
	resourceCfgs []ResourceTypeConfig
	mux          *http.ServeMux
	etagGen      *ETagGenerator
	limits       Limits
	logger       *slog.Logger
}

// NewRouter builds a Router over the given registry and resource type
// configs (used to drive /ResourceTypes and /Schemas), with a nil logger
// defaulting to discardLogger.
func NewRouter(baseURL string, registry *Registry, resourceCfgs []ResourceTypeConfig, limits Limits, logger *slog.Logger) *Router {
	if logger == nil {
		logger = discardLogger()
	}
	rt := &Router{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		registry:     registry,
		resourceCfgs: resourceCfgs,
		mux:          http.NewServeMux(),
		etagGen:      NewETagGenerator(),
		limits:       limits,
		logger:       logger,
	}
	rt.setupRoutes()
	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// setupRoutes registers the static service-provider metadata endpoints,
// the literal reject-only Bulk/.search routes, and one set of CRUD+search
// routes per registered endpoint, using Go 1.22+ enhanced ServeMux
// patterns over a loop across the registry.
func (rt *Router) setupRoutes() {
	rt.mux.HandleFunc("GET /ServiceProviderConfig", rt.handleServiceProviderConfig)
	rt.mux.HandleFunc("GET /ResourceTypes", rt.handleResourceTypes)
	rt.mux.HandleFunc("GET /ResourceTypes/{id}", rt.handleResourceType)
	rt.mux.HandleFunc("GET /Schemas", rt.handleSchemas)
	rt.mux.HandleFunc("GET /Schemas/{id}", rt.handleSchema)

	// Not supported in core: a full bulk engine and a root-level
	// cross-resource search are explicitly out of scope.
	rt.mux.HandleFunc("POST /Bulk", rt.handleUnsupported)
	rt.mux.HandleFunc("POST /.search", rt.handleUnsupported)

	for _, name := range rt.registry.Endpoints() {
		endpoint := name
		rt.mux.HandleFunc("GET /"+endpoint, rt.makeSearchHandler(endpoint))
		rt.mux.HandleFunc("POST /"+endpoint+"/.search", rt.makeSearchHandler(endpoint))
		rt.mux.HandleFunc("POST /"+endpoint, rt.makeCreateHandler(endpoint))
		rt.mux.HandleFunc("GET /"+endpoint+"/{id}", rt.makeGetHandler(endpoint))
		rt.mux.HandleFunc("PUT /"+endpoint+"/{id}", rt.makeReplaceHandler(endpoint))
		rt.mux.HandleFunc("PATCH /"+endpoint+"/{id}", rt.makePatchHandler(endpoint))
		rt.mux.HandleFunc("DELETE /"+endpoint+"/{id}", rt.makeDeleteHandler(endpoint))
	}
}

func (rt *Router) handleUnsupported(w http.ResponseWriter, r *http.Request) {
	WriteSCIMError(w, ErrInvalidSyntax("not supported"))
}

// lookup implements dispatch steps 2-4: resolve the handler by endpoint
// name, writing NotFound if it has no registered handler.
func (rt *Router) lookup(w http.ResponseWriter, endpoint string) (ResourceHandler, bool) {
	h, ok := rt.registry.Lookup(endpoint)
	if !ok {
		rt.logger.Warn("no handler registered for endpoint", "endpoint", endpoint)
		WriteSCIMError(w, NewSCIMError(http.StatusNotFound, fmt.Sprintf("endpoint %q not found", endpoint), ""))
		return nil, false
	}
	return h, true
}

func (rt *Router) requestContext(r *http.Request) *RequestContext {
	return &RequestContext{BaseURL: rt.baseURL, Request: r, AuthSubject: SubjectFromContext(r.Context())}
}

func (rt *Router) makeSearchHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := rt.lookup(w, endpoint)
		if !ok {
			return
		}
		var q Query
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				WriteSCIMError(w, ErrInvalidSyntax("failed to read request body"))
				return
			}
			defer r.Body.Close()
			var err2 error
			q, err2 = DecodeSearchBody(body, rt.limits)
			if err2 != nil {
				WriteSCIMError(w, ErrInvalidSyntax(err2.Error()))
				return
			}
		} else {
			if ExceedsLimit(r.URL.Query(), rt.limits) {
				WriteSCIMError(w, ErrTooMany("requested count exceeds the configured maximum"))
				return
			}
			q = ParseQuery(r.URL.Query(), rt.limits)
		}

		out, err := h.Search(r.Context(), rt.requestContext(r), q)
		if err != nil {
			rt.writeHandlerError(w, err)
			return
		}
		rt.writeRaw(w, http.StatusOK, out)
	}
}

func (rt *Router) makeCreateHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := rt.lookup(w, endpoint)
		if !ok {
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			WriteSCIMError(w, ErrInvalidSyntax("failed to read request body"))
			return
		}
		defer r.Body.Close()

		out, err := h.Create(r.Context(), rt.requestContext(r), body)
		if err != nil {
			rt.writeHandlerError(w, err)
			return
		}
		rt.writeCreated(w, endpoint, out)
	}
}

func (rt *Router) makeGetHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := rt.lookup(w, endpoint)
		if !ok {
			return
		}
		id := r.PathValue("id")
		out, err := h.Get(r.Context(), rt.requestContext(r), id)
		if err != nil {
			rt.writeHandlerError(w, err)
			return
		}
		rt.writeWithETag(w, r, out)
	}
}

func (rt *Router) makeReplaceHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := rt.lookup(w, endpoint)
		if !ok {
			return
		}
		id := r.PathValue("id")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			WriteSCIMError(w, ErrInvalidSyntax("failed to read request body"))
			return
		}
		defer r.Body.Close()

		out, err := h.Replace(r.Context(), rt.requestContext(r), id, body)
		if err != nil {
			rt.writeHandlerError(w, err)
			return
		}
		rt.writeDocWithETag(w, http.StatusOK, out)
	}
}

func (rt *Router) makePatchHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := rt.lookup(w, endpoint)
		if !ok {
			return
		}
		id := r.PathValue("id")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			WriteSCIMError(w, ErrInvalidSyntax("failed to read request body"))
			return
		}
		defer r.Body.Close()

		out, err := h.Patch(r.Context(), rt.requestContext(r), id, body)
		if err != nil {
			rt.writeHandlerError(w, err)
			return
		}
		rt.writeDocWithETag(w, http.StatusOK, out)
	}
}

func (rt *Router) makeDeleteHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := rt.lookup(w, endpoint)
		if !ok {
			return
		}
		id := r.PathValue("id")
		if err := h.Delete(r.Context(), rt.requestContext(r), id); err != nil {
			rt.writeHandlerError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeHandlerError implements dispatch step 9: any error a handler
// raises is converted to the wire envelope here, and only here — the
// handlers themselves never write to the response.
func (rt *Router) writeHandlerError(w http.ResponseWriter, err error) {
	var scimErr *SCIMError
	if errors.As(err, &scimErr) {
		WriteSCIMError(w, scimErr)
		return
	}
	WriteSCIMError(w, ErrInternalServer(err.Error()))
}

func (rt *Router) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeCreated stamps the Location header from the created document's
// id before writing the 201 body.
func (rt *Router) writeCreated(w http.ResponseWriter, endpoint string, body []byte) {
	doc, err := decodeDoc(body)
	if err == nil {
		if id, ok := doc["id"].(string); ok {
			w.Header().Set("Location", GetResourceLocation(rt.baseURL, endpoint, id))
		}
	}
	rt.writeDocWithETag(w, http.StatusCreated, body)
}

// writeWithETag is the GET path: it supports conditional requests
// (If-None-Match -> 304) in addition to stamping the ETag header.
func (rt *Router) writeWithETag(w http.ResponseWriter, r *http.Request, body []byte) {
	doc, err := decodeDoc(body)
	if err != nil {
		rt.writeRaw(w, http.StatusOK, body)
		return
	}
	etag, err := rt.etagGen.Generate(doc)
	if err != nil {
		WriteSCIMError(w, ErrInternalServer("failed to generate ETag"))
		return
	}
	status, condErr := rt.etagGen.CheckPreconditions(r, etag)
	if condErr != nil && status == http.StatusNotModified {
		rt.etagGen.SetETag(w, etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	SetDocumentVersion(doc, etag)
	rt.etagGen.SetETag(w, etag)
	rt.writeRaw(w, http.StatusOK, mustMarshal(doc))
}

func (rt *Router) writeDocWithETag(w http.ResponseWriter, status int, body []byte) {
	doc, err := decodeDoc(body)
	if err != nil {
		rt.writeRaw(w, status, body)
		return
	}
	etag, err := rt.etagGen.Generate(doc)
	if err != nil {
		rt.writeRaw(w, status, body)
		return
	}
	SetDocumentVersion(doc, etag)
	rt.etagGen.SetETag(w, etag)
	rt.writeRaw(w, status, mustMarshal(doc))
}

func decodeDoc(body []byte) (Document, error) {
	var doc Document
	if err := jsonUnmarshal(body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (rt *Router) handleServiceProviderConfig(w http.ResponseWriter, r *http.Request) {
	rt.writeRaw(w, http.StatusOK, mustMarshal(GetServiceProviderConfig(nil)))
}

func (rt *Router) handleResourceTypes(w http.ResponseWriter, r *http.Request) {
	rt.writeRaw(w, http.StatusOK, mustMarshal(map[string]any{"Resources": BuildResourceTypes(rt.resourceCfgs)}))
}

func (rt *Router) handleResourceType(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, def := range BuildResourceTypes(rt.resourceCfgs) {
		if strings.EqualFold(def.ID, id) {
			rt.writeRaw(w, http.StatusOK, mustMarshal(def))
			return
		}
	}
	WriteSCIMError(w, NewSCIMError(http.StatusNotFound, "resource type not found", ""))
}

func (rt *Router) handleSchemas(w http.ResponseWriter, r *http.Request) {
	rt.writeRaw(w, http.StatusOK, mustMarshal(map[string]any{"Resources": defaultSchemaRegistry.All()}))
}

func (rt *Router) handleSchema(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if def, ok := defaultSchemaRegistry.Get(id); ok {
		rt.writeRaw(w, http.StatusOK, mustMarshal(def))
		return
	}
	WriteSCIMError(w, NewSCIMError(http.StatusNotFound, "schema not found", ""))
}
