// Package listing serves cached, cursor paginated record listings.
//
// # Overview
//
// Service decorates a query executor with cache-aside reads. Every listing
// request is keyed by its filter parameters and its cursor token, so a page
// is computed once per TTL and then served from the cache.
//
// # Basic Usage
//
//	exec := query.NewExecutor(store, logger)
//	cacheService := cache.NewService(cacheStore, cache.DefaultTTL)
//
//	svc := listing.New(exec, cacheService, cache.NewDefaultKeySerializer())
//
//	page, err := svc.List(ctx, catalog.FilterParams{Artist: "Nirvana"}, "")
//	next, err := svc.List(ctx, catalog.FilterParams{Artist: "Nirvana"}, page.NextCursor)
//
// # Tokens
//
// An empty token means the first page with the default limit. It is replaced
// by the encoded default cursor before the key is built, so a request without
// a token and one carrying the explicit first page token share an entry.
//
// A malformed token is reported as cursor.ErrMalformed. It is detected on the
// miss path, and since failed fetches are never cached it cannot be served
// from the cache either.
//
// # Staleness
//
// Writes do not invalidate cached pages. A page may be stale for up to the
// cache TTL.
package listing
