package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://ci.example.com/api", "https://ci.example.com/api/test-runs"},
		{"https://ci.example.com/api/", "https://ci.example.com/api/test-runs"},
		{"https://ci.example.com/api/test-runs", "https://ci.example.com/api/test-runs"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, RunsURL(tt.input))
		})
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TESTRUN_TOKEN", "")
	_, err := APIKeyFromEnv("TESTRUN_TOKEN")
	require.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv("TESTRUN_TOKEN", " secret ")
	key, err := APIKeyFromEnv("TESTRUN_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "secret", key)

	t.Setenv(DefaultAPIKeyEnv, "default-secret")
	key, err = APIKeyFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "default-secret", key)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("http://localhost", "", 0)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_Upload(t *testing.T) {
	var gotAuth, gotContentType, gotPath string
	var gotBody RunReport

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","data":{"id":17,"branch_name":"main","commit_short_id":"01234567","status":"failed"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret", time.Second)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/test-runs", client.Endpoint())

	r, err := NewRunReport("main", "0123456789", "", sampleCases())
	require.NoError(t, err)

	res, err := client.Upload(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "/test-runs", gotPath)
	assert.Equal(t, *r, gotBody)

	assert.Equal(t, RunID("17"), res.ID)
	assert.Equal(t, "01234567", res.CommitShortID)
	assert.Equal(t, "failed", res.Status)
}

func TestClient_Upload_StringID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"id":"run-abc"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret", time.Second)
	require.NoError(t, err)
	r, err := NewRunReport("main", "0123456789", "", sampleCases())
	require.NoError(t, err)

	res, err := client.Upload(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, RunID("run-abc"), res.ID)
}

func TestClient_Upload_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "http error with envelope",
			status:      http.StatusBadRequest,
			body:        `{"code":400,"message":"commit not found"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "commit not found",
		},
		{
			name:        "http error with raw body",
			status:      http.StatusBadGateway,
			body:        "upstream down",
			wantStatus:  http.StatusBadGateway,
			wantMessage: "upstream down",
		},
		{
			name:        "http error without body",
			status:      http.StatusUnauthorized,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Unauthorized",
		},
		{
			name:        "application code not 200",
			status:      http.StatusOK,
			body:        `{"code":500,"message":"duplicate run"}`,
			wantStatus:  http.StatusOK,
			wantMessage: "duplicate run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(server.URL, "secret", time.Second)
			require.NoError(t, err)
			r, err := NewRunReport("main", "0123456789", "", sampleCases())
			require.NoError(t, err)

			_, err = client.Upload(context.Background(), r)
			var uploadErr *UploadError
			require.ErrorAs(t, err, &uploadErr)
			assert.Equal(t, tt.wantStatus, uploadErr.StatusCode)
			assert.Equal(t, tt.wantMessage, uploadErr.Message)
			assert.NotContains(t, err.Error(), "secret")
		})
	}
}

func TestClient_Upload_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret", time.Second)
	require.NoError(t, err)
	r, err := NewRunReport("main", "0123456789", "", sampleCases())
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal upload response")
}

func TestClient_Upload_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret", 5*time.Second)
	require.NoError(t, err)
	r, err := NewRunReport("main", "0123456789", "", sampleCases())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Upload(ctx, r)
	require.ErrorIs(t, err, context.Canceled)
}
