// Package testutil provides testing utilities for the Fjord API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock Fjord endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockFjord is a configurable mock Fjord API server for testing.
type MockFjord struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
}

// NewMockFjord creates a new mock Fjord server.
func NewMockFjord() *MockFjord {
	mock := &MockFjord{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockFjord) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockFjord) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockFjord) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockFjord) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockFjord) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockFjord) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockFjord) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

func setBudgetHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Request-Budget-Remain", "1000")
	w.Header().Set("X-Request-Budget-Reset", "60")
	w.Header().Set("Content-Type", "application/json")
}

// defaultHandler provides default Fjord-like responses.
func (m *MockFjord) defaultHandler(w http.ResponseWriter, r *http.Request) {
	setBudgetHeaders(w)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"items": []}`))
}

// NewHealthyResponse creates a standard 200 OK response with budget headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-Request-Budget-Remain": "1000",
			"X-Request-Budget-Reset":  "60",
			"Content-Type":            "application/json",
		},
	}
}

// NewErrorResponse creates a Fjord error envelope response.
func NewErrorResponse(status int, code, message string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"error": {"code": %q, "message": %q}}`, code, message),
		Headers: map[string]string{
			"X-Request-Budget-Remain": "900",
			"X-Request-Budget-Reset":  "60",
			"Content-Type":            "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 response with a depleted budget.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": {"code": "TooManyRequests", "message": "request budget exceeded"}}`,
		Headers: map[string]string{
			"X-Request-Budget-Remain": "3",
			"X-Request-Budget-Reset":  "30",
			"Content-Type":            "application/json",
		},
	}
}

// NewConditionalHandler creates a handler that responds with 304 when the
// request's If-None-Match matches etag.
func NewConditionalHandler(etag, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		setBudgetHeaders(w)
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}

// RawRow is a seeded row for ServeRawTable.
type RawRow struct {
	Key     string         `json:"key"`
	Columns map[string]any `json:"columns"`
}

// ServeRawTable registers handlers for one raw table: paginated row
// listing, single-row retrieval, and server-side cursor splitting for
// parallel reads. Cursors encode a half-open index range "r{cur}-{end}".
func (m *MockFjord) ServeRawTable(project, db, table string, rows []RawRow) {
	base := fmt.Sprintf("/api/v1/projects/%s/raw/dbs/%s/tables/%s/rows", project, db, table)

	m.SetHandler(base+"/cursors", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("numberOfCursors"))
		if n < 1 {
			n = 1
		}
		if n > len(rows) && len(rows) > 0 {
			n = len(rows)
		}

		cursors := make([]string, 0, n)
		per := (len(rows) + n - 1) / n
		for start := 0; start < len(rows) || (start == 0 && len(rows) == 0); start += per {
			end := start + per
			if end > len(rows) {
				end = len(rows)
			}
			cursors = append(cursors, fmt.Sprintf("r%d-%d", start, end))
			if per == 0 {
				break
			}
		}

		setBudgetHeaders(w)
		json.NewEncoder(w).Encode(map[string]any{"items": cursors})
	})

	m.SetHandler(base, func(w http.ResponseWriter, r *http.Request) {
		start, end := 0, len(rows)
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			if _, err := fmt.Sscanf(cursor, "r%d-%d", &start, &end); err != nil || start < 0 || end > len(rows) {
				setBudgetHeaders(w)
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, `{"error": {"code": "InvalidCursor", "message": "bad cursor %s"}}`, cursor)
				return
			}
		}

		pageSize := 10000
		if limit := r.URL.Query().Get("limit"); limit != "" {
			if v, err := strconv.Atoi(limit); err == nil && v > 0 {
				pageSize = v
			}
		}

		pageEnd := start + pageSize
		if pageEnd > end {
			pageEnd = end
		}

		resp := map[string]any{"items": rows[start:pageEnd]}
		if pageEnd < end {
			resp["nextCursor"] = fmt.Sprintf("r%d-%d", pageEnd, end)
		}

		setBudgetHeaders(w)
		json.NewEncoder(w).Encode(resp)
	})

	for i := range rows {
		row := rows[i]
		m.SetHandler(base+"/"+row.Key, func(w http.ResponseWriter, r *http.Request) {
			setBudgetHeaders(w)
			json.NewEncoder(w).Encode(row)
		})
	}
}
