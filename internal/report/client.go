package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/newhook/testrun/internal/logging"
)

const (
	// DefaultAPIKeyEnv is the environment variable holding the API token.
	DefaultAPIKeyEnv = "API_KEY"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	runsPath = "/test-runs"
)

// ErrMissingAPIKey is returned when no API token is available.
var ErrMissingAPIKey = errors.New("API key not set")

// UploadError is a rejected upload.
type UploadError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *UploadError) Error() string {
	if e.Code != 0 && e.Code != e.StatusCode {
		return fmt.Sprintf("upload failed (HTTP %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("upload failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// RunID is a server-assigned run id. The service may send it as a number or
// a string.
type RunID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *RunID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RunID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid run id %s: %w", data, err)
	}
	*id = RunID(n.String())
	return nil
}

// UploadResult is the data returned for an accepted run.
type UploadResult struct {
	ID            RunID  `json:"id"`
	BranchName    string `json:"branch_name"`
	CommitShortID string `json:"commit_short_id"`
	Status        string `json:"status"`
}

type envelope struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *UploadResult `json:"data"`
}

// APIKeyFromEnv reads the token from the named environment variable, or
// DefaultAPIKeyEnv when name is empty.
func APIKeyFromEnv(name string) (string, error) {
	if name == "" {
		name = DefaultAPIKeyEnv
	}
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("%w: %s environment variable is empty", ErrMissingAPIKey, name)
	}
	return key, nil
}

// RunsURL appends the test-runs path to apiURL unless it is already there.
func RunsURL(apiURL string) string {
	if strings.HasSuffix(apiURL, runsPath) {
		return apiURL
	}
	return strings.TrimSuffix(apiURL, "/") + runsPath
}

// Client uploads run reports.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for apiURL. A zero timeout uses DefaultTimeout.
func NewClient(apiURL, apiKey string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: RunsURL(apiURL),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Endpoint returns the URL reports are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Upload posts r and returns the server's view of the created run.
func (c *Client) Upload(ctx context.Context, r *RunReport) (*UploadResult, error) {
	reqBody, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run report: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	logging.Debug("uploading run report",
		"endpoint", c.endpoint,
		"branch", r.BranchName,
		"commit", r.CommitID,
		"cases", len(r.TestCases))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && env.Message != "" {
			msg = env.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &UploadError{StatusCode: resp.StatusCode, Code: env.Code, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to unmarshal upload response: %w", decodeErr)
	}
	if env.Code != http.StatusOK {
		msg := env.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &UploadError{StatusCode: resp.StatusCode, Code: env.Code, Message: msg}
	}

	result := env.Data
	if result == nil {
		result = &UploadResult{}
	}
	logging.Info("run report uploaded", "id", string(result.ID), "status", result.Status)
	return result, nil
}
