// Package openai submits fine-tuning datasets to the OpenAI API. The service
// treats it as an opaque sink: upload a file, create a job, poll its status.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// SinkError wraps any failure talking to the fine-tuning service. Callers
// treat the cause as opaque.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Job is the subset of the fine-tuning job object pythia tracks.
type Job struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Model          string `json:"model"`
	FineTunedModel string `json:"fine_tuned_model"`
	TrainingFile   string `json:"training_file"`
	CreatedAt      int64  `json:"created_at"`
}

type fileResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// UploadFile uploads a JSONL dataset with purpose "fine-tune" and returns
// the provider file ID.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &SinkError{Op: "upload", Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", "fine-tune"); err != nil {
		return "", &SinkError{Op: "upload", Err: err}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", &SinkError{Op: "upload", Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", &SinkError{Op: "upload", Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &SinkError{Op: "upload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return "", &SinkError{Op: "upload", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp fileResponse
	if err := c.do(req, &resp); err != nil {
		return "", &SinkError{Op: "upload", Err: err}
	}
	return resp.ID, nil
}

// CreateFineTune starts a fine-tuning job over an uploaded file.
func (c *Client) CreateFineTune(ctx context.Context, fileID, model string) (*Job, error) {
	payload, err := json.Marshal(map[string]string{
		"training_file": fileID,
		"model":         model,
	})
	if err != nil {
		return nil, &SinkError{Op: "create job", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fine_tuning/jobs", bytes.NewReader(payload))
	if err != nil {
		return nil, &SinkError{Op: "create job", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var job Job
	if err := c.do(req, &job); err != nil {
		return nil, &SinkError{Op: "create job", Err: err}
	}
	return &job, nil
}

// GetFineTune fetches the current state of a fine-tuning job.
func (c *Client) GetFineTune(ctx context.Context, jobID string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fine_tuning/jobs/"+jobID, nil)
	if err != nil {
		return nil, &SinkError{Op: "get job", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var job Job
	if err := c.do(req, &job); err != nil {
		return nil, &SinkError{Op: "get job", Err: err}
	}
	return &job, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return fmt.Errorf("api error %d: %s — %s", resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
