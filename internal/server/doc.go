// Package server provides HTTP routing, middleware, and the read-only PreDB browse API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so "GET /predb/{id}" both filters the
// method and exposes the id through [http.Request.PathValue].
//
// # Endpoints
//
//	GET /predb         paginated listing; q (space separated terms, all must match), offset, limit
//	GET /predb/{id}    one entry
//	GET /healthz       store ping
//	GET /metrics       Prometheus exposition of the match metrics
//
// Errors are JSON bodies of the form {"error": "..."}; missing entries map to 404, bad parameters to 400 and
// store failures to 503.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
