package tasks

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjorddata/fjord-go/pkg/client"
)

func TestExecute_AllSucceed(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	succeeded, err := Execute(context.Background(), items, func(ctx context.Context, task int) error {
		return nil
	}, Config{MaxWorkers: 3})

	require.NoError(t, err)
	assert.ElementsMatch(t, items, succeeded)
}

func TestExecute_Empty(t *testing.T) {
	succeeded, err := Execute(context.Background(), nil, func(ctx context.Context, task int) error {
		t.Fatal("task func must not be called for an empty batch")
		return nil
	}, Config{})

	require.NoError(t, err)
	assert.Empty(t, succeeded)
}

func TestExecute_Triage(t *testing.T) {
	// Outcome per task value: definitive rejection, unknown server error,
	// unknown network error, success.
	rejected := &client.APIError{StatusCode: 400, Code: "InvalidArgument", Message: "bad row key"}
	serverErr := &client.APIError{StatusCode: 503, Message: "try again"}
	netErr := &net.DNSError{Err: "no such host", Name: "api.fjorddata.io"}

	items := []int{1, 2, 3, 4, 5, 6}
	run := func(ctx context.Context, task int) error {
		switch task {
		case 2:
			return rejected
		case 4:
			return serverErr
		case 5:
			return netErr
		default:
			return nil
		}
	}

	succeeded, err := Execute(context.Background(), items, run, Config{MaxWorkers: 2})

	var compound *CompoundError[int]
	require.ErrorAs(t, err, &compound)

	assert.ElementsMatch(t, []int{1, 3, 6}, succeeded)
	assert.Equal(t, []int{2}, compound.Failed, "4xx rejections are failed")
	assert.ElementsMatch(t, []int{4, 5}, compound.Unknown, "5xx and network errors are unknown")
	assert.Empty(t, compound.Skipped)

	// Every task lands in exactly one bucket
	total := len(succeeded) + len(compound.Failed) + len(compound.Unknown) + len(compound.Skipped)
	assert.Equal(t, len(items), total)

	assert.ErrorIs(t, err, rejected)
	assert.ErrorIs(t, err, serverErr)
}

func TestExecute_FailFast(t *testing.T) {
	rejected := &client.APIError{StatusCode: 409, Message: "conflict"}
	items := []int{0, 1, 2, 3, 4}

	// A single worker makes the dispatch order deterministic.
	succeeded, err := Execute(context.Background(), items, func(ctx context.Context, task int) error {
		if task == 2 {
			return rejected
		}
		return nil
	}, Config{MaxWorkers: 1, FailFast: true})

	var compound *CompoundError[int]
	require.ErrorAs(t, err, &compound)

	assert.Equal(t, []int{0, 1}, succeeded)
	assert.Equal(t, []int{2}, compound.Failed)
	assert.Equal(t, []int{3, 4}, compound.Skipped, "undispatched tasks are skipped, not unknown")
	assert.Empty(t, compound.Unknown)
}

func TestExecute_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []int{1, 2, 3}
	succeeded, err := Execute(ctx, items, func(ctx context.Context, task int) error {
		t.Fatal("task func must not run with a cancelled context")
		return nil
	}, Config{MaxWorkers: 2})

	var compound *CompoundError[int]
	require.ErrorAs(t, err, &compound)

	assert.Empty(t, succeeded)
	assert.ElementsMatch(t, items, compound.Unknown, "cancelled tasks have an unknown outcome")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_BoundedConcurrency(t *testing.T) {
	var current, peak atomic.Int64

	items := make([]int, 20)
	_, err := Execute(context.Background(), items, func(ctx context.Context, task int) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return nil
	}, Config{MaxWorkers: 3})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestCompoundError_Error(t *testing.T) {
	e := &CompoundError[string]{
		Failed:  []string{"a"},
		Unknown: []string{"b", "c"},
		Errors:  []error{errors.New("boom")},
	}
	assert.Equal(t, "1 task(s) failed, 2 unknown: boom", e.Error())

	e.Skipped = []string{"d"}
	assert.Contains(t, e.Error(), "1 skipped")
}

func TestSplitBatches(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{name: "even split", items: []int{1, 2, 3, 4}, size: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "ragged tail", items: []int{1, 2, 3, 4, 5}, size: 2, want: [][]int{{1, 2}, {3, 4}, {5}}},
		{name: "size above length", items: []int{1, 2}, size: 10, want: [][]int{{1, 2}}},
		{name: "empty input", items: nil, size: 3, want: nil},
		{name: "zero size", items: []int{1}, size: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitBatches(tt.items, tt.size))
		})
	}
}
