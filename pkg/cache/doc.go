// Package cache provides optional Redis-backed caching for idempotent
// GET requests against the Fjord API, with ETag support for conditional
// requests.
//
// The cache manager implements the following features:
//
// - Respect of Expires response headers for TTL management
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Deterministic, project-scoped cache key generation
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Project:  "prod-plant",
//		Endpoint: "/api/v1/projects/prod-plant/raw/dbs",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the API
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// the API returns 304 if the resource is unchanged
//	}
//
// # Metrics
//
//   - fjord_cache_hits_total{layer="redis"} - Cache hits
//   - fjord_cache_misses_total - Cache misses
//   - fjord_cache_size_bytes{layer="redis"} - Cache size
//   - fjord_304_responses_total - Conditional request successes
//   - fjord_conditional_requests_total - Conditional requests sent
//   - fjord_cache_errors_total{operation} - Cache operation errors
//
// The cache is strictly optional: an SDK client without a Redis
// connection simply skips it and always hits the API.
package cache
