package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/s1natex/tasks-file-api/internal/config"
	"github.com/s1natex/tasks-file-api/internal/tasks"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Config{
		Store:  config.StoreConfig{Driver: config.DriverFile, Path: filepath.Join(dir, "db.json")},
		Import: config.ImportConfig{CSVPath: filepath.Join(dir, "tasks.csv")},
		HTTP:   config.HTTPConfig{CORSOrigins: []string{"*"}},
	}
	repo, closeRepo, err := openRepository(context.Background(), cfg.Store)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = closeRepo() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := tasks.NewHandler(repo, tasks.Options{ImportPath: cfg.Import.CSVPath, Logger: logger})

	ts := httptest.NewServer(newRouter(h, cfg, logger))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, target, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeTasks(t *testing.T, data []byte) []tasks.Task {
	t.Helper()
	var list []tasks.Task
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v; body=%s", err, data)
	}
	return list
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	expected := "{\"status\":\"ok\"}\n"
	if string(body) != expected {
		t.Errorf("expected body %q, got %q", expected, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	do(t, http.MethodGet, ts.URL+"/tasks", "")
	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte(`http_requests_total{method="GET",path="/tasks"`)) {
		t.Fatalf("expected /tasks series in metrics output")
	}
}

func TestTaskLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.URL+"/tasks", `{"title":"T","description":"D"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, ts.URL+"/tasks", `{"title":"other","description":"x"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}

	resp, body := do(t, http.MethodGet, ts.URL+"/tasks?search="+url.QueryEscape("T"), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", resp.StatusCode)
	}
	found := decodeTasks(t, body)
	if len(found) != 1 || found[0].Title == nil || *found[0].Title != "T" {
		t.Fatalf("search: expected only the T task, got %+v", found)
	}
	id := found[0].ID
	if found[0].CompletedAt != nil {
		t.Fatalf("new task must not be completed")
	}

	resp, _ = do(t, http.MethodPatch, ts.URL+"/tasks/"+id+"/complete", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("complete: expected 204, got %d", resp.StatusCode)
	}

	_, body = do(t, http.MethodGet, ts.URL+"/tasks?search=T", "")
	found = decodeTasks(t, body)
	if len(found) != 1 || found[0].CompletedAt == nil {
		t.Fatalf("complete: expected completed_at to be set, got %+v", found)
	}
	if found[0].UpdatedAt == nil || !found[0].UpdatedAt.Equal(*found[0].CompletedAt) {
		t.Fatalf("complete: updated_at should equal completed_at")
	}

	resp, _ = do(t, http.MethodDelete, ts.URL+"/tasks/"+id, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	_, body = do(t, http.MethodGet, ts.URL+"/tasks", "")
	for _, task := range decodeTasks(t, body) {
		if task.ID == id {
			t.Fatalf("deleted task %s still listed", id)
		}
	}

	resp, body = do(t, http.MethodDelete, ts.URL+"/tasks/does-not-exist", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete unknown: expected 404, got %d", resp.StatusCode)
	}
	if string(body) != "Task não encontrada." {
		t.Fatalf("delete unknown: unexpected body %q", body)
	}
}
