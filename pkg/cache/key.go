package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Project is the Fjord project the request was scoped to
	Project string

	// Endpoint is the API endpoint path (e.g., "/api/v1/projects/p/raw/dbs")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"limit": "100"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: fjord:project:endpoint:query1=val1:query2=val2
//
// Example:
//
//	fjord:prod-plant:api/v1/projects/prod-plant/raw/dbs:limit=100
func (k CacheKey) String() string {
	parts := []string{"fjord"}

	if k.Project != "" {
		parts = append(parts, k.Project)
	}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
