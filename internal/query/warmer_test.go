package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantutran2k1/rsql/internal/filterstore"
	"github.com/vantutran2k1/rsql/pkg/metrics"
)

type checked struct {
	status    string
	lastError string
}

// fakeSource holds due filters plus idle ones that are not due this pass.
type fakeSource struct {
	mu      sync.Mutex
	filters []filterstore.Filter
	idle    []filterstore.Filter
	marked  map[int64]checked
}

func (s *fakeSource) Due(context.Context, time.Duration) ([]filterstore.Filter, error) {
	return s.filters, nil
}

func (s *fakeSource) MarkChecked(_ context.Context, id int64, status, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marked == nil {
		s.marked = make(map[int64]checked)
	}
	s.marked[id] = checked{status, lastError}
	return nil
}

func (s *fakeSource) CountByStatus(_ context.Context, status string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range append(append([]filterstore.Filter(nil), s.filters...), s.idle...) {
		current := f.Status
		if c, ok := s.marked[f.ID]; ok {
			current = c.status
		}
		if current == status {
			n++
		}
	}
	return n, nil
}

type fakeNotifier struct {
	messages map[string]string
}

func (n *fakeNotifier) Notify(_ context.Context, f filterstore.Filter, msg string) error {
	if n.messages == nil {
		n.messages = make(map[string]string)
	}
	n.messages[f.Name] = msg
	return nil
}

func TestWarmerCheck(t *testing.T) {
	source := &fakeSource{filters: []filterstore.Filter{
		{ID: 1, Name: "recovered", Expression: "name==John", Target: "sql", Status: filterstore.StatusBroken},
		{ID: 2, Name: "broke", Expression: "nope", Target: "sql", Status: filterstore.StatusOK},
		{ID: 3, Name: "steady", Expression: "age=gt=18", Target: "all", Status: filterstore.StatusOK},
		{ID: 4, Name: "bad-target", Expression: "a==1", Target: "xml", Status: filterstore.StatusUnchecked},
	}}
	notifier := &fakeNotifier{}
	w := NewWarmer(source, newService(t), notifier, WarmerConfig{})

	require.NoError(t, w.check(context.Background()))

	assert.Equal(t, filterstore.StatusOK, source.marked[1].status)
	assert.Equal(t, filterstore.StatusBroken, source.marked[2].status)
	assert.NotEmpty(t, source.marked[2].lastError)
	assert.Equal(t, filterstore.StatusOK, source.marked[3].status)
	assert.Empty(t, source.marked[3].lastError)
	assert.Equal(t, filterstore.StatusBroken, source.marked[4].status)

	assert.Contains(t, notifier.messages["recovered"], "compiles again")
	assert.Contains(t, notifier.messages["broke"], "no longer compiles")
	assert.Contains(t, notifier.messages["bad-target"], "no longer compiles")
	assert.NotContains(t, notifier.messages, "steady")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SavedFiltersBroken))
}

func TestWarmerBrokenGaugeCountsIdleFilters(t *testing.T) {
	source := &fakeSource{
		filters: []filterstore.Filter{
			{ID: 1, Name: "fixed", Expression: "a==1", Target: "sql", Status: filterstore.StatusBroken},
		},
		idle: []filterstore.Filter{
			{ID: 2, Name: "still-broken", Expression: "nope", Target: "sql", Status: filterstore.StatusBroken},
			{ID: 3, Name: "fine", Expression: "a==2", Target: "sql", Status: filterstore.StatusOK},
		},
	}
	w := NewWarmer(source, newService(t), nil, WarmerConfig{})

	require.NoError(t, w.check(context.Background()))
	assert.Equal(t, filterstore.StatusOK, source.marked[1].status)
	assert.NotContains(t, source.marked, int64(2), "idle filters are not rechecked")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SavedFiltersBroken))
}

func TestWarmerRunStopsOnCancel(t *testing.T) {
	source := &fakeSource{filters: []filterstore.Filter{{ID: 1, Name: "f", Expression: "a==1"}}}
	w := NewWarmer(source, newService(t), nil, WarmerConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.marked[1].status == filterstore.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("warmer did not stop")
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	require.NoError(t, n.Notify(context.Background(), filterstore.Filter{Name: "adults"}, "broken"))
	assert.Equal(t, map[string]string{"filter": "adults", "message": "broken"}, got)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	err := NewWebhookNotifier(failing.URL).Notify(context.Background(), filterstore.Filter{Name: "x"}, "m")
	assert.ErrorContains(t, err, "502")
}
