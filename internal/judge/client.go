package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Harsh-BH/codepad/internal/domain"
)

const (
	DefaultAPIKeyHeader = "X-Auth-Token"
	DefaultHTTPTimeout  = 15 * time.Second

	// maxResponseBytes caps how much of a judge response is read.
	maxResponseBytes = 1 << 20
)

// Judge status ids.
const (
	StatusInQueue    = 1
	StatusProcessing = 2
	StatusAccepted   = 3
)

// Submission is the body of a submission request.
type Submission struct {
	SourceCode   string  `json:"source_code"`
	LanguageID   int     `json:"language_id"`
	Wait         bool    `json:"wait"`
	CPUTimeLimit float64 `json:"cpu_time_limit"`
	MemoryLimit  int     `json:"memory_limit"`
}

// SubmissionStatus is the judge's view of a submission.
type SubmissionStatus struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	CompileOutput string  `json:"compile_output"`
	Time          Seconds `json:"time"`
}

// Pending reports whether the submission is still queued or processing.
func (s *SubmissionStatus) Pending() bool {
	return s.Status.ID == StatusInQueue || s.Status.ID == StatusProcessing
}

// Seconds is a duration the judge reports either as a decimal string or a number.
type Seconds float64

func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("judge: invalid time %q: %w", raw, err)
	}
	*s = Seconds(v)
	return nil
}

// Millis converts to whole milliseconds.
func (s Seconds) Millis() uint64 {
	return domain.Millis(time.Duration(float64(s) * float64(time.Second)))
}

// HTTPError reports a non-2xx judge response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("judge returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return domain.ErrTransportFailure }

// Client talks to a Judge0-compatible hosted judge service.
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	http         *http.Client
}

// NewClient creates a judge client. apiKey may be empty.
func NewClient(baseURL, apiKey, apiKeyHeader string, timeout time.Duration) *Client {
	if apiKeyHeader == "" {
		apiKeyHeader = DefaultAPIKeyHeader
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		apiKeyHeader: apiKeyHeader,
		http:         &http.Client{Timeout: timeout},
	}
}

// Submit creates a submission and returns its token.
func (c *Client) Submit(ctx context.Context, sub Submission) (string, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("judge: marshal submission: %w", err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/submissions?base64_encoded=false&wait=false", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("judge: submission response has no token: %w", domain.ErrTransportFailure)
	}
	return resp.Token, nil
}

// Status fetches the current state of a submission.
func (c *Client) Status(ctx context.Context, token string) (*SubmissionStatus, error) {
	var status SubmissionStatus
	if err := c.do(ctx, http.MethodGet, "/submissions/"+token+"?base64_encoded=false", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("judge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("judge: %s %s: %v: %w", method, path, err, domain.ErrTransportFailure)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("judge: read response: %v: %w", err, domain.ErrTransportFailure)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("judge: decode response: %v: %w", err, domain.ErrTransportFailure)
	}
	return nil
}
