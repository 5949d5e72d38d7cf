package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/sort-forge/internal/jobs"
	"github.com/yourusername/sort-forge/internal/logging"
)

type stubJobs struct {
	submitted [][2]string
	statuses  map[string]jobs.Status
	err       error
}

func (s *stubJobs) Submit(ctx context.Context, concurrency, rawURL string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.submitted = append(s.submitted, [2]string{concurrency, rawURL})
	return "job-123", nil
}

func (s *stubJobs) Status(ctx context.Context, jobID string) (jobs.Status, error) {
	if s.err != nil {
		return nil, s.err
	}
	status, ok := s.statuses[jobID]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return status, nil
}

func newTestRouter(svc JobService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(svc, logging.Discard()).Register(router)
	return router
}

func get(router *gin.Engine, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmit(t *testing.T) {
	svc := &stubJobs{}
	router := newTestRouter(svc)

	target := "/?concurrency=3&sort=" + url.QueryEscape("http://example.com/data?x=1")
	rec := get(router, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["jobid"] != "job-123" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if len(svc.submitted) != 1 || svc.submitted[0] != [2]string{"3", "http://example.com/data?x=1"} {
		t.Fatalf("unexpected submissions: %v", svc.submitted)
	}
}

func TestBadRequests(t *testing.T) {
	router := newTestRouter(&stubJobs{})
	for _, target := range []string{"/", "/?concurrency=3", "/?sort=http://x", "/?get=", "/?concurrency=&sort=http://x", "/?foo=bar"} {
		rec := get(router, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Fatalf("%s: expected empty body, got %q", target, rec.Body.String())
		}
	}
}

func TestStatusStates(t *testing.T) {
	svc := &stubJobs{statuses: map[string]jobs.Status{
		"q": jobs.Queued{},
		"p": jobs.InProgress{},
		"e": jobs.Failed{Message: "remote error"},
	}}
	router := newTestRouter(svc)

	tests := []struct {
		id   string
		code int
		want string
	}{
		{"q", http.StatusOK, `{"state":"queued","data":null}`},
		{"p", http.StatusOK, `{"state":"progress","data":null}`},
		{"e", http.StatusOK, `{"state":"error","data":"remote error"}`},
		{"missing", http.StatusNotFound, `{"state":"eexist","data":null}`},
	}
	for _, tt := range tests {
		rec := get(router, "/?get="+tt.id, nil)
		if rec.Code != tt.code {
			t.Fatalf("%s: status = %d, want %d", tt.id, rec.Code, tt.code)
		}
		if rec.Body.String() != tt.want {
			t.Fatalf("%s: body = %s, want %s", tt.id, rec.Body.String(), tt.want)
		}
	}
}

func TestStatusReadyServesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json")
	content := `{"state": "ready", "data": [1, 2, 3]}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	svc := &stubJobs{statuses: map[string]jobs.Status{
		"r": jobs.Ready{Path: path, Count: 3, Checksum: "abc123"},
	}}
	router := newTestRouter(svc)

	rec := get(router, "/?get=r", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != content {
		t.Fatalf("body = %q, want file content", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if etag := rec.Header().Get("ETag"); etag != `"abc123"` {
		t.Fatalf("ETag = %q", etag)
	}

	rec = get(router, "/?get=r", map[string]string{"If-None-Match": `"abc123"`})
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Fatalf("conditional request: status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestStatusReadyMissingFile(t *testing.T) {
	svc := &stubJobs{statuses: map[string]jobs.Status{
		"r": jobs.Ready{Path: filepath.Join(t.TempDir(), "gone.json")},
	}}
	rec := get(newTestRouter(svc), "/?get=r", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestServiceErrors(t *testing.T) {
	router := newTestRouter(&stubJobs{err: errors.New("redis down")})
	for _, target := range []string{"/?concurrency=1&sort=http://x", "/?get=abc"} {
		rec := get(router, target, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status = %d, want 500", target, rec.Code)
		}
		if rec.Body.String() != `{"state":"error","data":"unexpected error"}` {
			t.Fatalf("%s: unexpected body %s", target, rec.Body.String())
		}
	}
}

func TestEtagMatches(t *testing.T) {
	if !etagMatches(`W/"x", "y"`, `"x"`) || !etagMatches("*", `"z"`) || etagMatches(`"a"`, `"b"`) {
		t.Fatal("unexpected etag matching")
	}
}
