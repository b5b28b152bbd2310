package plugin

import (
	"net/http"
	"strings"

	"github.com/arimatsu/scimcore/auth"
)

// PerEndpointAuthMiddleware applies authentication per SCIM endpoint
// based on the endpoint name extracted from the request path
// (/{Endpoint}/...): the first path segment is always a resource
// endpoint.
func PerEndpointAuthMiddleware(registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := strings.TrimPrefix(r.URL.Path, "/")
			parts := strings.SplitN(path, "/", 2)

			if len(parts) == 0 || parts[0] == "" {
				next.ServeHTTP(w, r)
				return
			}

			endpoint := parts[0]
			authenticator, hasAuth := registry.Authenticator(endpoint)
			if !hasAuth {
				next.ServeHTTP(w, r)
				return
			}

			auth.Middleware(authenticator)(next).ServeHTTP(w, r)
		})
	}
}
