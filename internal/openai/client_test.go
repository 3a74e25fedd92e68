package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:  "test-key",
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func TestUploadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "examples.jsonl")
	if err := os.WriteFile(path, []byte(`{"prompt":"p","completion":"c"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("purpose"); got != "fine-tune" {
			t.Errorf("purpose = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "file-123"})
	}))
	defer srv.Close()

	fileID, err := testClient(srv.URL).UploadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if fileID != "file-123" {
		t.Errorf("file id = %q", fileID)
	}
}

func TestCreateFineTune(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fine_tuning/jobs" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req["training_file"] != "file-123" || req["model"] != "gpt-4.1-mini" {
			t.Errorf("request = %v", req)
		}
		json.NewEncoder(w).Encode(Job{ID: "ftjob-1", Status: "validating_files", Model: "gpt-4.1-mini"})
	}))
	defer srv.Close()

	job, err := testClient(srv.URL).CreateFineTune(context.Background(), "file-123", "gpt-4.1-mini")
	if err != nil {
		t.Fatalf("CreateFineTune failed: %v", err)
	}
	if job.ID != "ftjob-1" || job.Status != "validating_files" {
		t.Errorf("job = %+v", job)
	}
}

func TestGetFineTune(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fine_tuning/jobs/ftjob-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Job{ID: "ftjob-1", Status: "succeeded", FineTunedModel: "ft:gpt-4.1-mini:x"})
	}))
	defer srv.Close()

	job, err := testClient(srv.URL).GetFineTune(context.Background(), "ftjob-1")
	if err != nil {
		t.Fatalf("GetFineTune failed: %v", err)
	}
	if job.Status != "succeeded" || job.FineTunedModel != "ft:gpt-4.1-mini:x" {
		t.Errorf("job = %+v", job)
	}
}

func TestAPIErrorsBecomeSinkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "invalid_request_error", "message": "bad training file"},
		})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateFineTune(context.Background(), "file-x", "gpt-4.1-mini")
	if err == nil {
		t.Fatal("expected error")
	}
	var serr *SinkError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SinkError, got %T: %v", err, err)
	}
	if serr.Op != "create job" {
		t.Errorf("op = %q", serr.Op)
	}
}
