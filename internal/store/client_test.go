package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// fakeStore answers with the handler's response and records every request.
func fakeStore(t *testing.T, handler func(r recorded) (int, any), opts ...Option) (*Client, func() []recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone(), Body: body}
		mu.Lock()
		calls = append(calls, rec)
		status, out := handler(rec)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if out != nil {
			_ = json.NewEncoder(w).Encode(out)
		}
	}))
	t.Cleanup(srv.Close)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(srv.URL+"/", opts...), func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestClient_StatusErrorMatchesNotFound(t *testing.T) {
	c, _ := fakeStore(t, func(recorded) (int, any) {
		return http.StatusNotFound, map[string]string{"error": "not found"}
	})

	_, err := c.Messages.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Contains(t, se.Body, "not found")
}

func TestClient_ServerErrorIsNotNotFound(t *testing.T) {
	c, calls := fakeStore(t, func(recorded) (int, any) {
		return http.StatusInternalServerError, map[string]string{"error": "boom"}
	})

	_, err := c.Messages.List(context.Background(), MessageQuery{SenderID: "u1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Len(t, calls(), 1, "no automatic retry")
}

func TestClient_SendsBearerToken(t *testing.T) {
	c, calls := fakeStore(t, func(recorded) (int, any) { return http.StatusOK, []any{} }, WithToken("tok"))

	_, err := c.Messages.List(context.Background(), MessageQuery{})
	require.NoError(t, err)
	require.Len(t, calls(), 1)
	assert.Equal(t, "Bearer tok", calls()[0].Header.Get("Authorization"))
	assert.Equal(t, "/messages", calls()[0].Path)
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+221 77 123 45 67", "+221771234567", true},
		{"123456", "123456", true},
		{"12345", "", false},
		{"+1234567890123456", "", false},
		{"77-123-45", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			assert.True(t, IsValidation(err), tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}
