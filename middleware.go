package gatekit

import (
	"bytes"
	"html/template"
	"net/http"
	"time"
)

// ForbiddenHandler renders the response for a denied request. It receives
// the request and the request path; it must write a complete response.
type ForbiddenHandler func(w http.ResponseWriter, r *http.Request, path string)

// Middleware is the authorization engine: for each request it decides
// whether the path requires a token, validates any presented token, and
// establishes the path-scoped session cookie.
type Middleware struct {
	registry *Registry
	store    TokenStore
	notifier *Notifier
	monitor  *accessMonitor

	cookieSecure   bool
	cookieMaxAge   time.Duration
	cookieSameSite http.SameSite
	cookieHTTPOnly bool
	cookiePrefix   string
	tokenParam     string

	forbiddenTemplate *template.Template
	forbiddenHandler  ForbiddenHandler
}

// Option configures the Middleware.
type Option func(*Middleware)

// New creates a Middleware over a pattern registry and a token store.
//
// Example:
//
//	mw := gatekit.New(registry, service,
//	    gatekit.WithCookieMaxAge(30*24*time.Hour),
//	    gatekit.WithTokenParam("key"),
//	)
//	http.ListenAndServe(":8080", mw.Handler(mux))
func New(registry *Registry, store TokenStore, opts ...Option) *Middleware {
	m := &Middleware{
		registry:       registry,
		store:          store,
		notifier:       NewNotifier(),
		monitor:        newAccessMonitor(),
		cookieSecure:   true,
		cookieMaxAge:   365 * 24 * time.Hour,
		cookieSameSite: http.SameSiteLaxMode,
		cookieHTTPOnly: true,
		cookiePrefix:   "gatekit_",
		tokenParam:     "token",
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithCookieSecure sets the cookie Secure flag. Defaults to true; disable
// only for plain-HTTP development setups.
func WithCookieSecure(secure bool) Option {
	return func(m *Middleware) {
		m.cookieSecure = secure
	}
}

// WithCookieMaxAge sets the cookie lifetime. This bounds the browser-held
// grant independently of the token's own expiry; the token is re-validated
// on every request regardless. Defaults to one year.
func WithCookieMaxAge(maxAge time.Duration) Option {
	return func(m *Middleware) {
		m.cookieMaxAge = maxAge
	}
}

// WithCookieSameSite sets the cookie SameSite policy. Defaults to Lax.
func WithCookieSameSite(mode http.SameSite) Option {
	return func(m *Middleware) {
		m.cookieSameSite = mode
	}
}

// WithCookieHTTPOnly sets the cookie HttpOnly flag. Defaults to true.
func WithCookieHTTPOnly(httpOnly bool) Option {
	return func(m *Middleware) {
		m.cookieHTTPOnly = httpOnly
	}
}

// WithCookiePrefix sets the cookie name prefix. Defaults to "gatekit_".
func WithCookiePrefix(prefix string) Option {
	return func(m *Middleware) {
		m.cookiePrefix = prefix
	}
}

// WithTokenParam sets the query parameter carrying the token on first
// visit. Defaults to "token".
func WithTokenParam(param string) Option {
	return func(m *Middleware) {
		m.tokenParam = param
	}
}

// WithForbiddenTemplate sets an html/template rendered on denial with data
// {Path string}. Takes precedence over WithForbiddenHandler when both are
// configured.
func WithForbiddenTemplate(t *template.Template) Option {
	return func(m *Middleware) {
		m.forbiddenTemplate = t
	}
}

// WithForbiddenHandler sets a custom handler for denied requests.
func WithForbiddenHandler(fn ForbiddenHandler) Option {
	return func(m *Middleware) {
		m.forbiddenHandler = fn
	}
}

// WithNotifier sets a pre-built notifier, for sharing listeners across
// middlewares. Defaults to a fresh notifier.
func WithNotifier(n *Notifier) Option {
	return func(m *Middleware) {
		m.notifier = n
	}
}

// Notifier returns the notifier decisions are published to.
func (m *Middleware) Notifier() *Notifier {
	return m.notifier
}

// Metrics returns the decision statistics since the last reset.
func (m *Middleware) Metrics() AccessMetrics {
	return m.monitor.getMetrics()
}

// ResetMetrics resets the decision statistics.
func (m *Middleware) ResetMetrics() {
	m.monitor.reset()
}

// Handler wraps the next handler with the authorization protocol:
//
//  1. An unmatched path passes through untouched.
//  2. On a matched path, the scoped session cookie is checked first. A
//     malformed or stale cookie is treated as absent, never as an error.
//  3. Without a valid cookie, the configured query parameter is checked.
//     Absent means denial with "no_token"; present but rejected means
//     denial with "invalid_token".
//  4. A grant via query parameter sets the scoped cookie and redirects to
//     the same URL with the token parameter stripped; a grant via cookie
//     forwards directly and refreshes the cookie's max-age.
//
// Token validation and use-recording happen in one atomic store operation;
// a store failure yields 503, never a grant.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		match, ok := m.registry.Match(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ctx := r.Context()
		now := time.Now()

		// Session cookie scoped to the pattern's static prefix.
		cookieName := CookieName(m.cookiePrefix, match.StaticPrefix())
		if cookie, err := r.Cookie(cookieName); err == nil && PlausibleTokenValue(cookie.Value) {
			token, err := m.store.Consume(ctx, cookie.Value, match.Template(), now)
			switch {
			case err == nil:
				m.grant(w, r, next, match, token, false, start)
				return
			case IsStoreUnavailable(err):
				m.storeFailure(w, start)
				return
			}
			// Stale or foreign cookie value: fall through to the query token.
		}

		queryToken := r.URL.Query().Get(m.tokenParam)
		if queryToken == "" {
			m.deny(w, r, match, DenyNoToken, start)
			return
		}
		if !PlausibleTokenValue(queryToken) {
			m.deny(w, r, match, DenyInvalidToken, start)
			return
		}

		token, err := m.store.Consume(ctx, queryToken, match.Template(), now)
		if err != nil {
			if IsStoreUnavailable(err) {
				m.storeFailure(w, start)
				return
			}
			m.deny(w, r, match, DenyInvalidToken, start)
			return
		}

		m.grant(w, r, next, match, token, true, start)
	})
}

// grant finishes an allowed request: context plumbing, notification,
// cookie, and either a redirect stripping the query token or the downstream
// handler.
func (m *Middleware) grant(w http.ResponseWriter, r *http.Request, next http.Handler, match *Match, token *AccessToken, viaQuery bool, start time.Time) {
	ctx := r.Context()
	ctx = WithMatchedTemplate(ctx, match.Template())
	ctx = WithCaptures(ctx, match.Captures)
	ctx = WithAccessToken(ctx, token)
	r = r.WithContext(ctx)

	m.setCookie(w, match, token)
	m.notifier.EmitGranted(GrantedEvent{Request: r, Token: token, Path: match.Template()})
	m.monitor.recordGrant(time.Since(start))

	if viaQuery {
		// Strip the token from the URL so it is not bookmarked, logged, or
		// shared by accident. The target no longer carries the parameter, so
		// the redirected request authorizes via the cookie and cannot loop.
		query := r.URL.Query()
		query.Del(m.tokenParam)
		target := r.URL.Path
		if encoded := query.Encode(); encoded != "" {
			target += "?" + encoded
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	next.ServeHTTP(w, r)
}

// setCookie issues or refreshes the session cookie, scoped to the matched
// pattern's static prefix.
func (m *Middleware) setCookie(w http.ResponseWriter, match *Match, token *AccessToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(m.cookiePrefix, match.StaticPrefix()),
		Value:    token.Token,
		Path:     CookiePath(match.StaticPrefix()),
		MaxAge:   int(m.cookieMaxAge / time.Second),
		Secure:   m.cookieSecure,
		HttpOnly: m.cookieHTTPOnly,
		SameSite: m.cookieSameSite,
	})
}

var forbiddenMessages = map[DenyReason]string{
	DenyNoToken:      "Access denied: No token provided",
	DenyInvalidToken: "Access denied: Invalid token",
}

// deny finishes a refused request. The response body never reveals token
// existence or which liveness condition failed, only the coarse reason.
func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, match *Match, reason DenyReason, start time.Time) {
	m.notifier.EmitDenied(DeniedEvent{Request: r, Path: match.Template(), Reason: reason})
	m.monitor.recordDenial(reason, time.Since(start))

	if m.forbiddenTemplate != nil {
		var body bytes.Buffer
		data := struct{ Path string }{Path: r.URL.Path}
		if err := m.forbiddenTemplate.Execute(&body, data); err != nil {
			http.Error(w, forbiddenMessages[reason], http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = body.WriteTo(w)
		return
	}

	if m.forbiddenHandler != nil {
		m.forbiddenHandler(w, r, r.URL.Path)
		return
	}

	http.Error(w, forbiddenMessages[reason], http.StatusForbidden)
}

// storeFailure fails the request closed when the token store cannot answer.
func (m *Middleware) storeFailure(w http.ResponseWriter, start time.Time) {
	m.monitor.recordStoreFailure(time.Since(start))
	http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
}
