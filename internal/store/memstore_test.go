package store

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory stand-in for the resource store: collections of
// JSON objects with equality and _like filters, PATCH merge and PUT replace.
type memStore struct {
	mu   sync.Mutex
	data map[string][]map[string]any
}

func newMemStore(t *testing.T) (*memStore, *Client) {
	t.Helper()
	ms := &memStore{data: map[string][]map[string]any{}}
	srv := httptest.NewServer(ms)
	t.Cleanup(srv.Close)
	return ms, New(srv.URL, WithClock(func() time.Time { return fixedNow }))
}

func (ms *memStore) seed(collection string, items ...any) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, it := range items {
		raw, _ := json.Marshal(it)
		var obj map[string]any
		_ = json.Unmarshal(raw, &obj)
		ms.data[collection] = append(ms.data[collection], obj)
	}
}

func (ms *memStore) items(collection string) []map[string]any {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]map[string]any(nil), ms.data[collection]...)
}

func (ms *memStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	collection := parts[0]
	write := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	find := func(id string) int {
		for i, it := range ms.data[collection] {
			if it["id"] == id {
				return i
			}
		}
		return -1
	}
	var body map[string]any
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			out := []map[string]any{}
			for _, it := range ms.data[collection] {
				if matches(it, r.URL.Query()) {
					out = append(out, it)
				}
			}
			write(http.StatusOK, out)
		case http.MethodPost:
			ms.data[collection] = append(ms.data[collection], body)
			write(http.StatusCreated, body)
		default:
			write(http.StatusMethodNotAllowed, nil)
		}
		return
	}

	idx := find(parts[1])
	if idx < 0 {
		write(http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		write(http.StatusOK, ms.data[collection][idx])
	case http.MethodPatch:
		for k, v := range body {
			ms.data[collection][idx][k] = v
		}
		write(http.StatusOK, ms.data[collection][idx])
	case http.MethodPut:
		body["id"] = parts[1]
		ms.data[collection][idx] = body
		write(http.StatusOK, body)
	case http.MethodDelete:
		ms.data[collection] = append(ms.data[collection][:idx], ms.data[collection][idx+1:]...)
		write(http.StatusOK, map[string]any{})
	}
}

func matches(item map[string]any, q map[string][]string) bool {
	for key, vals := range q {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if field, ok := strings.CutSuffix(key, "_like"); ok {
			if !strings.Contains(fmt.Sprint(item[field]), vals[0]) {
				return false
			}
			continue
		}
		if fmt.Sprint(item[key]) != vals[0] {
			return false
		}
	}
	return true
}
