package http

// contextKey is a typed key for request-context values.
type contextKey string

// claimsContextKey stores the verified JWT claims in the request context.
const claimsContextKey contextKey = "claims"
