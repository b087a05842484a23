package gatekit

import (
	"sync"
)

// Registry holds all protected path patterns for the application.
// It is populated at startup and should be treated as immutable after
// initialization; the request hot path only reads it.
type Registry struct {
	mu     sync.RWMutex
	routes []*Route
}

// Route is a single registered protected pattern.
type Route struct {
	pattern   *Pattern
	protectFn ProtectFunc
	subtree   bool
}

// Template returns the fully-qualified template of the route.
func (r *Route) Template() string {
	return r.pattern.Template()
}

// StaticPrefix returns the route's cookie-scoping prefix.
func (r *Route) StaticPrefix() string {
	return r.pattern.StaticPrefix()
}

// IsSubtree reports whether the route protects every path beneath its
// template rather than exact matches only.
func (r *Route) IsSubtree() bool {
	return r.subtree
}

// RouteOption configures a Route at registration time.
type RouteOption func(*Route)

// ProtectWhen attaches a predicate over the captured values. When the
// predicate returns false the path is treated as unprotected even though the
// template matched; the underlying route still resolves normally downstream.
//
// Example:
//
//	registry.Register("<str:visibility>/<int:pk>/",
//	    gatekit.ProtectWhen(func(c gatekit.Captures) bool {
//	        return c["visibility"] == "private"
//	    }))
func ProtectWhen(fn ProtectFunc) RouteOption {
	return func(r *Route) {
		r.protectFn = fn
	}
}

// Match is the result of resolving a request path against the registry.
type Match struct {
	Route    *Route
	Captures Captures
}

// Template returns the matched route's template.
func (m *Match) Template() string {
	return m.Route.Template()
}

// StaticPrefix returns the matched route's cookie-scoping prefix.
func (m *Match) StaticPrefix() string {
	return m.Route.StaticPrefix()
}

// NewRegistry creates a new, empty pattern registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an exact-match protected pattern.
//
// Example:
//
//	registry.Register("blog/<int:year>/<str:slug>/")
func (r *Registry) Register(template string, opts ...RouteOption) (*Route, error) {
	return r.add(template, false, opts)
}

// Group returns a handle for registering patterns under a common prefix.
// Nested groups compose; every pattern registered through a group is
// flattened into a fully-qualified template before matching.
//
// Example:
//
//	api := registry.Group("api/")
//	v1 := api.Group("v1/")
//	v1.Register("reports/<uuid:id>")   // protects api/v1/reports/<uuid:id>
func (r *Registry) Group(prefix string) *Group {
	return &Group{registry: r, prefix: prefix}
}

// Templates returns the fully-qualified templates of all registered routes,
// in registration order.
func (r *Registry) Templates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]string, 0, len(r.routes))
	for _, route := range r.routes {
		templates = append(templates, route.Template())
	}
	return templates
}

// IsRegistered reports whether a template is a registered protected pattern.
func (r *Registry) IsRegistered(template string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if route.Template() == template {
			return true
		}
	}
	return false
}

// Match resolves a concrete request path against the registered patterns.
// Iteration follows registration order and the first match wins; two
// overlapping patterns therefore resolve deterministically, which cookie
// scoping depends on. A route whose predicate returns false for the captured
// values does not match.
func (r *Registry) Match(path string) (*Match, bool) {
	trimmed := trimLeadingSlash(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		var (
			captures Captures
			ok       bool
		)
		if route.subtree {
			captures, ok = route.pattern.MatchPrefix(trimmed)
		} else {
			captures, ok = route.pattern.Match(trimmed)
		}
		if !ok {
			continue
		}
		if route.protectFn != nil && !route.protectFn(captures) {
			continue
		}
		return &Match{Route: route, Captures: captures}, true
	}
	return nil, false
}

func (r *Registry) add(template string, subtree bool, opts []RouteOption) (*Route, error) {
	pattern, err := ParsePattern(template)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.routes {
		if existing.Template() == template {
			return nil, NewError(ErrDuplicatePattern, "").WithPath(template)
		}
	}

	route := &Route{pattern: pattern, subtree: subtree}
	for _, opt := range opts {
		opt(route)
	}
	r.routes = append(r.routes, route)
	return route, nil
}

// Group registers patterns under a shared prefix. See Registry.Group.
type Group struct {
	registry *Registry
	prefix   string
}

// Register adds an exact-match protected pattern under the group prefix.
func (g *Group) Register(template string, opts ...RouteOption) (*Route, error) {
	return g.registry.add(g.prefix+template, false, opts)
}

// Group returns a nested group handle.
func (g *Group) Group(prefix string) *Group {
	return &Group{registry: g.registry, prefix: g.prefix + prefix}
}

// Protect registers the group prefix itself as a subtree pattern: every path
// beneath it is protected and shares one token scope.
//
// Example:
//
//	registry.Group("docs/").Protect()
func (g *Group) Protect(opts ...RouteOption) (*Route, error) {
	return g.registry.add(g.prefix, true, opts)
}

func trimLeadingSlash(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}
