package gatekit

import (
	"context"
	"net/http"
)

// Context keys for GateKit values.
type contextKey string

const (
	contextKeyTemplate contextKey = "gatekit:template"
	contextKeyCaptures contextKey = "gatekit:captures"
	contextKeyToken    contextKey = "gatekit:token"
)

// WithMatchedTemplate adds the matched pattern template to the context.
func WithMatchedTemplate(ctx context.Context, template string) context.Context {
	return context.WithValue(ctx, contextKeyTemplate, template)
}

// GetMatchedTemplate retrieves the matched pattern template from context.
// Returns empty string for requests that were not protected.
func GetMatchedTemplate(ctx context.Context) string {
	if v := ctx.Value(contextKeyTemplate); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithCaptures adds the captured path values to the context.
func WithCaptures(ctx context.Context, captures Captures) context.Context {
	return context.WithValue(ctx, contextKeyCaptures, captures)
}

// GetCaptures retrieves the captured path values from context.
// Returns nil if not set.
func GetCaptures(ctx context.Context) Captures {
	if v := ctx.Value(contextKeyCaptures); v != nil {
		if c, ok := v.(Captures); ok {
			return c
		}
	}
	return nil
}

// WithAccessToken adds the granting token to the context.
// This is set by middleware on granted requests and can be retrieved in
// handlers.
func WithAccessToken(ctx context.Context, token *AccessToken) context.Context {
	return context.WithValue(ctx, contextKeyToken, token)
}

// GetAccessToken retrieves the granting token from context.
// Returns nil for unprotected or denied requests.
func GetAccessToken(ctx context.Context) *AccessToken {
	if v := ctx.Value(contextKeyToken); v != nil {
		if t, ok := v.(*AccessToken); ok {
			return t
		}
	}
	return nil
}

// FromRequest retrieves the granting token from a request's context.
// Alias convenience for handlers.
func FromRequest(r *http.Request) *AccessToken {
	return GetAccessToken(r.Context())
}
