// Package gatekit provides path-scoped, token-based access control for HTTP
// services.
//
// GateKit protects URL patterns with anonymous bearer tokens: a request to a
// protected path must present a high-entropy token (via query parameter on
// first visit, via a path-scoped cookie afterwards). There is no user
// identity involved - knowing a token grants access to exactly one registered
// pattern, and the grant is revocable, expirable, and quota-limited.
//
// # Core Concepts
//
// Protected Pattern: a path template with typed placeholders, e.g.
// "blog/<int:year>/<str:slug>/". Registered once at startup in a Registry;
// immutable afterwards. Matching is deterministic: first registered pattern
// wins.
//
// Static prefix: the literal leading portion of a template before its first
// placeholder ("blog/" above). It scopes the session cookie, so the cookie is
// never sent to unrelated routes.
//
// Access Token: a database record binding an opaque random value to one
// pattern, with a validity flag, optional expiry, optional usage quota, and
// access statistics. A token whose quota is reached, whose expiry has passed,
// or whose validity was revoked is dead and denied on the very next request.
//
// # Basic Usage
//
//	// 1. Register protected patterns (at application startup)
//	registry := gatekit.NewRegistry()
//	registry.Register("blog/<int:year>/<str:slug>/")
//
//	docs := registry.Group("docs/")
//	docs.Protect() // every route under docs/ shares one token scope
//
//	registry.Register("<str:visibility>/<int:pk>/",
//	    gatekit.ProtectWhen(func(c gatekit.Captures) bool {
//	        return c["visibility"] == "private"
//	    }))
//
//	// 2. Create the service on your database
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := gatekit.NewService(registry, db)
//
//	// 3. Run migrations
//	db.Migrate(ctx, gatekit.NewMigrationService(service).Migrations())
//
//	// 4. Mint tokens for reviewers
//	token, _ := service.CreateToken(ctx, gatekit.CreateTokenInput{
//	    Description: "design review",
//	    Path:        "blog/<int:year>/<str:slug>/",
//	    MaxUses:     gatekit.Uses(20),
//	})
//	fmt.Println("share:", "/blog/2024/launch/?token="+token.Token)
//
//	// 5. Wrap your handler chain
//	mw := gatekit.New(registry, service,
//	    gatekit.WithCookieMaxAge(30*24*time.Hour),
//	)
//	http.ListenAndServe(":8080", mw.Handler(mux))
//
// # Authorization Protocol
//
// For each request the middleware matches the path against the registry. An
// unmatched path passes through untouched. For a matched path it checks the
// scoped cookie first, then the configured query parameter. Validation and
// use-counting are a single atomic conditional update, so a token with
// max_uses=1 cannot be granted twice under concurrent presentation. A grant
// via query parameter sets the cookie and redirects to the same URL with the
// token parameter stripped; a grant via cookie forwards directly. Denials
// carry one of two coarse reasons, "no_token" and "invalid_token", and render
// through a pluggable forbidden strategy (template, handler, or a minimal
// built-in body).
//
// # Notifications
//
// Granted and denied decisions are published synchronously to registered
// listeners. Listener panics are recovered and logged; they never affect the
// request outcome.
//
//	mw.Notifier().OnGranted(func(ev gatekit.GrantedEvent) {
//	    metrics.Inc("access_granted", ev.Path)
//	})
package gatekit
