package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/config"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
	"github.com/at-ishikawa/studydeck/internal/server"
	"github.com/at-ishikawa/studydeck/internal/statistics"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, baseURL string, retryAttempts uint) *Client {
	t.Helper()
	client := New(config.ClientConfig{
		BaseURL:        baseURL,
		RetryAttempts:  retryAttempts,
		TimeoutSeconds: 5,
	})
	client.retryDelay = time.Millisecond
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// newAPI serves the real API on top of a memory repository.
func newAPI(t *testing.T) *Client {
	t.Helper()
	repo := card.NewMemoryRepository()
	sched := scheduler.New(repo, scheduler.WithClock(func() time.Time { return testNow }))
	ts := httptest.NewServer(server.New(config.ServerConfig{Port: 8080}, sched, repo))
	t.Cleanup(ts.Close)
	return newTestClient(t, ts.URL, 0)
}

func TestClient_StudyFlow(t *testing.T) {
	ctx := context.Background()
	client := newAPI(t)

	next, err := client.NextDueCard(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, next)

	added := &card.Card{Question: "capital of France", Answer: "Paris", Course: "geo"}
	require.NoError(t, client.AddCard(ctx, added))
	assert.Equal(t, int64(1), added.ID)
	assert.Equal(t, card.TypeBasic, added.Type)

	next, err = client.NextDueCard(ctx, "geo")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, added.ID, next.ID)

	next, err = client.NextDueCard(ctx, "math")
	require.NoError(t, err)
	assert.Nil(t, next)

	reviewed, err := client.RecordReview(ctx, added.ID, scheduler.QualityEasy)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed.Repetitions)
	assert.Equal(t, 1, reviewed.Interval)
	assert.InDelta(t, 2.6, reviewed.EasinessFactor, 1e-9)
	assert.True(t, reviewed.DueAt.Equal(testNow.AddDate(0, 0, 1)))

	got, err := client.Card(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, reviewed.Repetitions, got.Repetitions)

	cards, err := client.Cards(ctx, "geo")
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	courses, err := client.Courses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"geo"}, courses)

	stats, err := client.Stats(ctx, "", statistics.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Overall.TotalCards)
	assert.Equal(t, 1, stats.Overall.TotalReviews)
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	client := newAPI(t)

	_, err := client.RecordReview(ctx, 42, 3)
	assert.ErrorIs(t, err, scheduler.ErrNotFound)
	assert.EqualError(t, err, "response error 404: card not found: card 42")

	_, err = client.Card(ctx, 42)
	assert.ErrorIs(t, err, scheduler.ErrNotFound)

	added := &card.Card{Question: "q", Answer: "a"}
	require.NoError(t, client.AddCard(ctx, added))
	_, err = client.RecordReview(ctx, added.ID, 9)
	assert.ErrorIs(t, err, scheduler.ErrInvalidInput)

	err = client.AddCard(ctx, &card.Card{Question: "no answer"})
	assert.ErrorIs(t, err, scheduler.ErrInvalidInput)
}

func TestClient_Retry(t *testing.T) {
	tests := []struct {
		name          string
		failures      int32
		failStatus    int
		retryAttempts uint
		wantCalls     int32
		wantErr       bool
	}{
		{
			name:          "recovers from a server error",
			failures:      2,
			failStatus:    http.StatusServiceUnavailable,
			retryAttempts: 3,
			wantCalls:     3,
		},
		{
			name:          "recovers from rate limiting",
			failures:      1,
			failStatus:    http.StatusTooManyRequests,
			retryAttempts: 1,
			wantCalls:     2,
		},
		{
			name:          "gives up after the last attempt",
			failures:      10,
			failStatus:    http.StatusInternalServerError,
			retryAttempts: 2,
			wantCalls:     3,
			wantErr:       true,
		},
		{
			name:          "does not retry a bad request",
			failures:      10,
			failStatus:    http.StatusBadRequest,
			retryAttempts: 3,
			wantCalls:     1,
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/courses", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				if calls.Add(1) <= tt.failures {
					w.WriteHeader(tt.failStatus)
					_, _ = w.Write([]byte(`{"error":"try later"}`))
					return
				}
				_, _ = w.Write([]byte(`{"courses":["math"]}`))
			}))
			defer ts.Close()

			client := newTestClient(t, ts.URL, tt.retryAttempts)
			courses, err := client.Courses(context.Background())

			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				var responseErr *ResponseError
				require.ErrorAs(t, err, &responseErr)
				assert.Equal(t, tt.failStatus, responseErr.StatusCode)
				assert.Equal(t, "try later", responseErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"math"}, courses)
		})
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := newTestClient(t, url, 1)
	_, err := client.NextDueCard(context.Background(), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, scheduler.ErrNotFound)
}

func TestClient_CanceledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := newTestClient(t, ts.URL, 5)
	_, err := client.Courses(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_StatsFilter(t *testing.T) {
	tests := []struct {
		name      string
		course    string
		filter    statistics.Filter
		wantQuery string
	}{
		{
			name:      "no filter",
			wantQuery: "",
		},
		{
			name:      "course and year",
			course:    "math",
			filter:    statistics.Filter{Year: 2025},
			wantQuery: "course=math&year=2025",
		},
		{
			name:      "year and month",
			filter:    statistics.Filter{Year: 2025, Month: 3},
			wantQuery: "month=3&year=2025",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/stats", r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.Query().Encode())
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"overall": {"totalCards": 4}}`))
			}))
			defer ts.Close()

			client := newTestClient(t, ts.URL, 0)
			stats, err := client.Stats(context.Background(), tt.course, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, 4, stats.Overall.TotalCards)
		})
	}
}

func TestClient_StatsFilterAgainstAPI(t *testing.T) {
	ctx := context.Background()
	client := newAPI(t)

	added := &card.Card{Question: "q", Answer: "a"}
	require.NoError(t, client.AddCard(ctx, added))
	_, err := client.RecordReview(ctx, added.ID, scheduler.QualityEasy)
	require.NoError(t, err)

	stats, err := client.Stats(ctx, "", statistics.Filter{Year: testNow.Year(), Month: int(testNow.Month())})
	require.NoError(t, err)
	require.Len(t, stats.Periods, 1)
	assert.Equal(t, "2025-03", stats.Periods[0].Period)
	assert.Equal(t, 1, stats.Periods[0].Reviews)

	stats, err = client.Stats(ctx, "", statistics.Filter{Year: testNow.Year() - 1})
	require.NoError(t, err)
	assert.Empty(t, stats.Periods)
	assert.Equal(t, 1, stats.Overall.TotalReviews)

	_, err = client.Stats(ctx, "", statistics.Filter{Month: 3})
	assert.ErrorIs(t, err, scheduler.ErrInvalidInput)
}

// dropFirstResponse applies the first request to path and then closes the
// connection before the client sees an answer.
func dropFirstResponse(t *testing.T, path string, next http.Handler, calls *atomic.Int32) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			next.ServeHTTP(w, r)
			return
		}
		if calls.Add(1) > 1 {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(httptest.NewRecorder(), r)
		conn, _, err := w.(http.Hijacker).Hijack()
		if !assert.NoError(t, err) {
			return
		}
		_ = conn.Close()
	})
}

func TestClient_DoesNotResendWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("record review", func(t *testing.T) {
		repo := card.NewMemoryRepository()
		sched := scheduler.New(repo, scheduler.WithClock(func() time.Time { return testNow }))
		existing := &card.Card{Question: "q", Answer: "a"}
		require.NoError(t, sched.AddCard(ctx, existing))

		var calls atomic.Int32
		ts := httptest.NewServer(dropFirstResponse(t, "/record-review",
			server.New(config.ServerConfig{Port: 8080}, sched, repo), &calls))
		defer ts.Close()

		client := newTestClient(t, ts.URL, 3)
		_, err := client.RecordReview(ctx, existing.ID, scheduler.QualityEasy)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())

		got, err := repo.FindByID(ctx, existing.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 1, got.Repetitions)
		assert.Equal(t, 1, got.Interval)
		logs, err := repo.FindReviewLogs(ctx, "")
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	t.Run("add card", func(t *testing.T) {
		repo := card.NewMemoryRepository()
		sched := scheduler.New(repo, scheduler.WithClock(func() time.Time { return testNow }))

		var calls atomic.Int32
		ts := httptest.NewServer(dropFirstResponse(t, "/cards",
			server.New(config.ServerConfig{Port: 8080}, sched, repo), &calls))
		defer ts.Close()

		client := newTestClient(t, ts.URL, 3)
		err := client.AddCard(ctx, &card.Card{Question: "q", Answer: "a"})
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())

		cards, err := repo.FindAll(ctx, "")
		require.NoError(t, err)
		assert.Len(t, cards, 1)
	})
}

func TestClient_WriteRetry(t *testing.T) {
	tests := []struct {
		name       string
		failStatus int
		wantCalls  int32
		wantErr    bool
	}{
		{
			name:       "retries a rate limited write",
			failStatus: http.StatusTooManyRequests,
			wantCalls:  2,
		},
		{
			name:       "does not resend a write after a server error",
			failStatus: http.StatusInternalServerError,
			wantCalls:  1,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/cards", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				if calls.Add(1) == 1 {
					w.WriteHeader(tt.failStatus)
					_, _ = w.Write([]byte(`{"error":"try later"}`))
					return
				}
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id": 5, "question": "q", "answer": "a"}`))
			}))
			defer ts.Close()

			client := newTestClient(t, ts.URL, 3)
			added := &card.Card{Question: "q", Answer: "a"}
			err := client.AddCard(context.Background(), added)

			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(5), added.ID)
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	dialErr := fmt.Errorf("POST /cards > %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	readErr := fmt.Errorf("POST /cards > %w", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})
	eofErr := fmt.Errorf("POST /cards > %w", io.EOF)

	tests := []struct {
		name           string
		err            error
		wantReadRetry  bool
		wantWriteRetry bool
	}{
		{name: "nil", err: nil},
		{name: "canceled", err: context.Canceled},
		{name: "dial error", err: dialErr, wantReadRetry: true, wantWriteRetry: true},
		{name: "read error", err: readErr, wantReadRetry: true},
		{name: "connection closed", err: eofErr, wantReadRetry: true},
		{name: "server error", err: &ResponseError{StatusCode: http.StatusBadGateway}, wantReadRetry: true},
		{name: "rate limited", err: &ResponseError{StatusCode: http.StatusTooManyRequests}, wantReadRetry: true, wantWriteRetry: true},
		{name: "bad request", err: &ResponseError{StatusCode: http.StatusBadRequest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantReadRetry, isRetryableError(tt.err, true))
			assert.Equal(t, tt.wantWriteRetry, isRetryableError(tt.err, false))
		})
	}
}
