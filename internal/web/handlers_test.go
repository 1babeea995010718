package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rissahq/rissa/internal/core"
	"github.com/rissahq/rissa/internal/store"
)

const handlerTestStructure = `{"structure": {"columns": [
	{"name": "age", "required": true, "type": "int", "min": 0, "max": 120},
	{"name": "sex", "required": true, "type": "string", "allowed_values": ["M", "F"]}
]}}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := core.NewService(store.NewMemory(), nil, nil, slog.Default())
	return NewServer(svc, Options{})
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// createProject provisions a project (and optionally a schema) through the
// API and returns its ID.
func createProject(t *testing.T, s *Server, name string, withSchema bool) int64 {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/projects", fmt.Sprintf(`{"name": %q}`, name))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: status %d: %s", rec.Code, rec.Body)
	}
	var project core.Project
	decodeBody(t, rec, &project)

	if withSchema {
		rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/schemas", project.ID), handlerTestStructure)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create schema: status %d: %s", rec.Code, rec.Body)
		}
	}
	return project.ID
}

func uploadCSV(t *testing.T, s *Server, projectID int64, center, csvContent string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("center_name", center); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "data.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(csvContent)); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/projects/%d/submissions", projectID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["database"] != "connected" {
		t.Errorf("body = %v", body)
	}
}

func TestHealthEndpointProbeFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := core.NewService(store.NewMemory(), nil, nil, logger)
	s := NewServer(svc, Options{Ping: func(context.Context) error {
		return errors.New("connection refused")
	}})
	rec := doJSON(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "error" {
		t.Errorf("body = %v", body)
	}
}

func TestProjectEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := createProject(t, s, "stroke-registry", false)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/projects", `{"name": "stroke-registry"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		if resp.Code != "CONFLICT" {
			t.Errorf("code = %q", resp.Code)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/projects", `{"name": "  "}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("get and list", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d", id), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var project core.Project
		decodeBody(t, rec, &project)
		if project.Name != "stroke-registry" {
			t.Errorf("Name = %q", project.Name)
		}

		rec = doJSON(t, s, http.MethodGet, "/api/projects", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d", rec.Code)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/projects/999", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/projects/abc", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("patch download password never echoed", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPatch, fmt.Sprintf("/api/projects/%d", id),
			`{"download_password": "s3cret"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		if strings.Contains(rec.Body.String(), "s3cret") {
			t.Error("response leaked the download password")
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/projects/%d", id), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d", id), "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status after delete = %d", rec.Code)
		}
	})
}

func TestListProjectsPaging(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		createProject(t, s, name, false)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?limit=2", 2},
		{"?skip=1", 2},
		{"?skip=1&limit=1", 1},
		{"?skip=10", 0},
		{"?skip=-1&limit=bogus", 3},
	}
	for _, tt := range tests {
		rec := doJSON(t, s, http.MethodGet, "/api/projects"+tt.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.query, rec.Code)
		}
		var projects []core.Project
		decodeBody(t, rec, &projects)
		if len(projects) != tt.want {
			t.Errorf("%s: got %d projects, want %d", tt.query, len(projects), tt.want)
		}
	}
}

func TestSchemaEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := createProject(t, s, "trial", true)

	t.Run("invalid structure rejected", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/schemas", id),
			`{"structure": {"fields": []}}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		if resp.Code != "INVALID_STRUCTURE" {
			t.Errorf("code = %q", resp.Code)
		}
	})

	t.Run("latest tracks new versions", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/schemas", id), handlerTestStructure)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}

		rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/schemas/latest", id), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var schema core.Schema
		decodeBody(t, rec, &schema)
		if schema.Version != 2 {
			t.Errorf("Version = %d, want 2", schema.Version)
		}
	})

	t.Run("latest on schemaless project", func(t *testing.T) {
		bare := createProject(t, s, "bare", false)
		rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/schemas/latest", bare), "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestSubmitEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := createProject(t, s, "trial", true)

	t.Run("accepted upload", func(t *testing.T) {
		rec := uploadCSV(t, s, id, "taipei", "age,sex\n30,M\n41,F\n")
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var receipt core.SubmissionReceipt
		decodeBody(t, rec, &receipt)
		if receipt.Status != core.StatusValidated {
			t.Errorf("Status = %q", receipt.Status)
		}
		if receipt.FileStats.RowCount != 2 {
			t.Errorf("FileStats = %+v", receipt.FileStats)
		}
	})

	t.Run("validation failure returns the report", func(t *testing.T) {
		rec := uploadCSV(t, s, id, "taichung", "age,sex\n200,X\n")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		if resp.Code != "VALIDATION_FAILED" || resp.Report == nil || len(resp.Report.Errors) == 0 {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("sensitive columns rejected with names", func(t *testing.T) {
		rec := uploadCSV(t, s, id, "taipei", "age,sex,patient_id\n30,M,1\n")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		if resp.Code != "SENSITIVE_DATA_REJECTED" || len(resp.Columns) != 1 {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("missing center_name", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", "data.csv")
		fw.Write([]byte("age,sex\n30,M\n"))
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/projects/%d/submissions", id), &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("project without schema", func(t *testing.T) {
		bare := createProject(t, s, "bare", false)
		rec := uploadCSV(t, s, bare, "taipei", "age,sex\n30,M\n")
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		if resp.Code != "PRECONDITION_FAILED" {
			t.Errorf("code = %q", resp.Code)
		}
	})

	t.Run("listing hides datasets", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/submissions", id), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), `"data"`) {
			t.Error("submission listing exposed dataset contents")
		}
	})
}

func TestDownloadEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := createProject(t, s, "trial", true)

	t.Run("no validated data", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/download", id), "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
	})

	if rec := uploadCSV(t, s, id, "taipei", "age,sex\n30,M\n"); rec.Code != http.StatusCreated {
		t.Fatalf("seed upload: %d: %s", rec.Code, rec.Body)
	}
	doJSON(t, s, http.MethodPatch, fmt.Sprintf("/api/projects/%d", id), `{"download_password": "s3cret"}`)

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/download", id),
			`{"password": "nope"}`)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("correct password streams CSV", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/download", id),
			`{"password": "s3cret"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
			t.Errorf("Content-Type = %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, fmt.Sprintf("project_%d_data.csv", id)) {
			t.Errorf("Content-Disposition = %q", cd)
		}
		body := rec.Body.String()
		if !strings.HasPrefix(body, "age,sex,_center_source") || !strings.Contains(body, "30,M,taipei") {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("form-encoded password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/projects/%d/download", id),
			strings.NewReader("password=s3cret"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), "30,M,taipei") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("multipart password", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("password", "s3cret"); err != nil {
			t.Fatal(err)
		}
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/projects/%d/download", id), &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), "30,M,taipei") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("wrong form password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/projects/%d/download", id),
			strings.NewReader("password=nope"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
	})
}
