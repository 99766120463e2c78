package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookden/pkg/domainerrors"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{BaseURL: baseURL})
	require.NoError(t, err)
	return client
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"no scheme", "api.example.com/v1/"},
		{"garbage", "://nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.baseURL})
			require.Error(t, err)
			assert.True(t, domainerrors.Is(err, domainerrors.CodeConfiguration))
		})
	}
}

func TestUninitializedClientFailsFast(t *testing.T) {
	var c *Client
	err := c.Get(context.Background(), "/book/", nil, nil)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConfiguration))
	assert.Contains(t, err.Error(), "not initialized")

	var zero Client
	err = zero.Post(context.Background(), "/book/", nil, nil)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConfiguration))
}

func TestGetDecodesAndJoinsPaths(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "title": "Dune"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/api/v1/")

	var out struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	err := client.Get(context.Background(), "/book/7/", url.Values{"expand": {"reviews"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/book/7/", gotPath)
	assert.Equal(t, "expand=reviews", gotQuery)
	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "Dune", out.Title)
}

func TestPostSetsHeadersAndRequestID(t *testing.T) {
	var gotContentType, gotRequestID string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.Post(context.Background(), "/account/authenticate/", map[string]string{"username": "u"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "u", gotBody["username"])
}

func TestErrorNormalization(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode domainerrors.Code
		wantMsg  string
	}{
		{"401 maps to unauthorized", 401, `{"error":"Failed Authentication: Incorrect Credentials"}`, domainerrors.CodeUnauthorized, "Incorrect Credentials"},
		{"409 maps to validation", 409, `{"error":"User already exists"}`, domainerrors.CodeValidation, "User already exists"},
		{"404 maps to not found", 404, `{"detail":"Not found."}`, domainerrors.CodeNotFound, "Not found."},
		{"500 maps to server", 500, "boom", domainerrors.CodeServer, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			err := client.Get(context.Background(), "/whatever/", nil, nil)
			require.Error(t, err)
			assert.True(t, domainerrors.Is(err, tt.wantCode))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Contains(t, apiErr.Message, tt.wantMsg)
			assert.NotEmpty(t, apiErr.RequestID)
		})
	}
}

func TestErrorMessageSanitized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "{\"error\":\"bad\\nthing\\u001b[31m\"}")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.Get(context.Background(), "/x/", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.NotContains(t, apiErr.Message, "\n")
	assert.NotContains(t, apiErr.Message, "\x1b")
}

func TestNetworkFailureIsNetworkCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := newTestClient(t, srv.URL)
	err := client.Get(context.Background(), "/book/", nil, nil)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNetwork))
}

func TestTimeoutIsNetworkCodeNotUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/slow/", nil, nil)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNetwork))
	assert.False(t, domainerrors.Is(err, domainerrors.CodeUnauthorized))
}

func TestPostFileUploadsMultipart(t *testing.T) {
	var gotFilename, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("cover_image")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotFilename = header.Filename
		gotContent = string(data)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	var out map[string]string
	err := client.PostFile(context.Background(), "/book/1/cover/", "cover_image", "cover.png",
		strings.NewReader("png-bytes"), &out)
	require.NoError(t, err)
	assert.Equal(t, "cover.png", gotFilename)
	assert.Equal(t, "png-bytes", gotContent)
	assert.Equal(t, "ok", out["status"])
}

func TestServerMessageFallbacks(t *testing.T) {
	assert.Equal(t, "", serverMessage(nil))
	assert.Equal(t, "plain text", serverMessage([]byte("plain text")))
	assert.Equal(t, "from error", serverMessage([]byte(`{"error":"from error"}`)))
	assert.Equal(t, "from message", serverMessage([]byte(`{"message":"from message"}`)))
}
