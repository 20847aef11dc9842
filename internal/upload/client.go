// Package upload hands a finished export archive to the chattomap server:
// presign, PUT the archive bytes, then mark the upload complete so server-side
// processing starts. There are no retries; the caller decides whether to rerun.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the production server.
const DefaultBaseURL = "https://chattomap.com"

// Client talks to the upload endpoints of one server.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

func New(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		base:   strings.TrimSuffix(baseURL, "/"),
		http:   &http.Client{Timeout: 5 * time.Minute},
		logger: logger,
	}
}

// envelope is the server's generic response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// PresignResponse is the presign endpoint's payload. Key is empty unless the
// server runs the key-addressed storage variant.
type PresignResponse struct {
	UploadURL string `json:"upload_url"`
	JobID     string `json:"job_id"`
	Key       string `json:"key"`
}

// CreateJobResponse is the payload returned once processing is queued.
type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Presign asks the server for a pre-signed upload URL and a job id.
func (c *Client) Presign(ctx context.Context) (PresignResponse, error) {
	var out PresignResponse
	err := c.postJSON(ctx, "/api/upload/presign", strings.NewReader("{}"), &out)
	if err != nil {
		return PresignResponse{}, fmt.Errorf("presign: %w", err)
	}
	c.logger.Debug("presigned upload", zap.String("job_id", out.JobID))
	return out, nil
}

// ProgressFunc reports upload progress as a percent and a message.
type ProgressFunc func(percent int, message string)

// UploadFile PUTs the archive at path to uploadURL. The file is read fully
// into memory first; archives are small relative to the chat.db they came
// from. A nil progress function is allowed.
func (c *Client) UploadFile(ctx context.Context, path, uploadURL string, progress ProgressFunc) error {
	emit := func(percent int, message string) {
		if progress != nil {
			progress(percent, message)
		}
	}

	emit(0, "Reading export file...")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	emit(10, fmt.Sprintf("Uploading %s...", formatSize(int64(len(data)))))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")
	req.ContentLength = int64(len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed %d: %s", resp.StatusCode, sanitizeErrorBody(string(body)))
	}

	c.logger.Info("archive uploaded", zap.Int("bytes", len(data)))
	emit(100, "Upload complete")
	return nil
}

// Complete tells the server the archive is in place and processing can start.
// Key is forwarded only when set.
func (c *Client) Complete(ctx context.Context, jobID, key string, chatCount, messageCount int) (CreateJobResponse, error) {
	payload := map[string]any{
		"job_id":        jobID,
		"chat_count":    chatCount,
		"message_count": messageCount,
	}
	if key != "" {
		payload["key"] = key
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CreateJobResponse{}, fmt.Errorf("complete: encode request: %w", err)
	}

	var out CreateJobResponse
	if err := c.postJSON(ctx, "/api/upload/complete", bytes.NewReader(body), &out); err != nil {
		return CreateJobResponse{}, fmt.Errorf("complete: %w", err)
	}
	c.logger.Debug("upload completed", zap.String("job_id", out.JobID), zap.String("status", out.Status))
	return out, nil
}

// ResultsURL is the browser page where the job's results appear.
func (c *Client) ResultsURL(jobID string) string {
	return c.base + "/processing/" + jobID
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server error %d: %s", resp.StatusCode, sanitizeErrorBody(string(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if !env.Success {
		if env.Error != "" {
			return fmt.Errorf("%s", env.Error)
		}
		return fmt.Errorf("unknown error")
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("missing data in response")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

// sanitizeErrorBody turns an arbitrary error response body into something
// printable: HTML pages become their title, JSON bodies their error or
// message field, and long plain text is truncated.
func sanitizeErrorBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "(empty response)"
	}

	if strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<!doctype") ||
		strings.HasPrefix(trimmed, "<html") || strings.HasPrefix(trimmed, "<HTML") {
		if title := extractHTMLTitle(trimmed); title != "" {
			return title
		}
		return "Server returned an HTML error page"
	}

	if strings.HasPrefix(trimmed, "{") {
		var fields struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
			if fields.Error != "" {
				return fields.Error
			}
			if fields.Message != "" {
				return fields.Message
			}
		}
	}

	runes := []rune(trimmed)
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return trimmed
}

func extractHTMLTitle(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title>")
	if start < 0 {
		return ""
	}
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(html[start+len("<title>") : start+end])
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
	)
	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
