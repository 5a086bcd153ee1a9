package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fjorddata/fjord-go/internal/testutil"
	"github.com/fjorddata/fjord-go/pkg/auth"
	"github.com/fjorddata/fjord-go/pkg/client"
	"github.com/fjorddata/fjord-go/pkg/raw"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newClient(t *testing.T, mock *testutil.MockFjord, redisClient *redis.Client) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("integration-project", auth.NewStaticTokenProvider("test-token"), "FjordIntegration/1.0.0")
	cfg.BaseURL = mock.URL()
	cfg.Redis = redisClient

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestFullRequestFlow tests the complete flow: budget gate -> cache ->
// request -> cache update -> conditional revalidation.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockFjord()
	defer mock.Close()

	etag := `"stable-etag-123"`
	data := `{"items": [{"name": "sensors"}]}`
	mock.SetHandler("/api/v1/projects/integration-project/raw/dbs", testutil.NewConditionalHandler(etag, data))

	c := newClient(t, mock, redisClient)
	ctx := context.Background()

	// Request 1: cache miss, full response, cache fill
	resp1, err := c.Get(ctx, "/api/v1/projects/integration-project/raw/dbs", nil)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	if string(body1) != data {
		t.Errorf("Response 1 body = %s, want %s", body1, data)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("After request 1: requests = %d, want 1", mock.GetRequestCount())
	}

	// Wait for cache write
	time.Sleep(100 * time.Millisecond)

	// Request 2: conditional revalidation, 304 served from cache
	resp2, err := c.Get(ctx, "/api/v1/projects/integration-project/raw/dbs", nil)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if string(body2) != data {
		t.Errorf("Response 2 body = %s, want cached %s", body2, data)
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("Conditional requests = %d, want 1", mock.GetConditionalCount())
	}
}

// TestSharedBudgetState tests that two client instances sharing Redis see
// the same budget state: a critical budget observed by one blocks the other.
func TestSharedBudgetState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockFjord()
	defer mock.Close()

	// A successful response whose headers report a nearly-exhausted budget
	mock.SetResponse("/api/v1/projects/integration-project/sessions", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"items": []}`,
		Headers: map[string]string{
			"X-Request-Budget-Remain": "3",
			"X-Request-Budget-Reset":  "60",
			"Content-Type":            "application/json",
		},
	})

	clientA := newClient(t, mock, redisClient)
	clientB := newClient(t, mock, redisClient)
	ctx := context.Background()

	resp, err := clientA.Get(ctx, "/api/v1/projects/integration-project/sessions", nil)
	if err != nil {
		t.Fatalf("Client A request failed: %v", err)
	}
	resp.Body.Close()

	// Client B must be blocked before reaching the server
	requestsBefore := mock.GetRequestCount()
	_, err = clientB.Get(ctx, "/api/v1/projects/integration-project/sessions", nil)
	if !errors.Is(err, client.ErrBudgetExhausted) {
		t.Fatalf("Client B error = %v, want ErrBudgetExhausted", err)
	}
	if mock.GetRequestCount() != requestsBefore {
		t.Errorf("Client B reached the server despite a critical shared budget")
	}
}

// TestParallelReadEndToEnd reads a raw table through server-split cursor
// partitions with the full client stack (budget tracking, cache, retries).
func TestParallelReadEndToEnd(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockFjord()
	defer mock.Close()

	rows := make([]testutil.RawRow, 120)
	for i := range rows {
		rows[i] = testutil.RawRow{
			Key:     fmt.Sprintf("row-%03d", i),
			Columns: map[string]any{"value": i},
		}
	}
	mock.ServeRawTable("integration-project", "sensors", "readings", rows)

	c := newClient(t, mock, redisClient)
	svc := raw.NewService(c)
	ctx := context.Background()

	reader, err := svc.ReadRowsParallel(ctx, "sensors", "readings", raw.RowOptions{
		Partitions: 4,
		PageSize:   30,
	})
	if err != nil {
		t.Fatalf("ReadRowsParallel failed: %v", err)
	}

	var keys []string
	for {
		chunk, ok, err := reader.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		for _, row := range chunk {
			keys = append(keys, row.Key)
		}
	}
	if err := reader.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(keys) != len(rows) {
		t.Fatalf("Read %d rows, want %d", len(keys), len(rows))
	}
	sort.Strings(keys)
	for i, key := range keys {
		if want := fmt.Sprintf("row-%03d", i); key != want {
			t.Fatalf("keys[%d] = %s, want %s (every row exactly once)", i, key, want)
		}
	}
}
