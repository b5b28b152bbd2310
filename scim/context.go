package scim

import "context"

// contextKey namespaces values this package stores on a context.Context,
// per the standard library's own advice against using a plain string.
type contextKey int

const subjectContextKey contextKey = iota

// WithSubject attaches the authenticated subject to ctx. This is the
// entire contract between an external authenticator and the core
// dispatcher: auth middleware calls WithSubject once it has resolved an
// identity, and Router.requestContext reads it back via
// SubjectFromContext to populate RequestContext.AuthSubject. The core
// never inspects how the subject was derived.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}

// SubjectFromContext returns the subject attached by WithSubject, or ""
// if none was attached (e.g. no authentication was configured).
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey).(string)
	return subject
}
