package httprequest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRequestNode_Run(t *testing.T) {
	var (
		gotMethod string
		gotHeader string
		gotBody   map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Token")

		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("http-1", map[string]any{
		"url":     server.URL,
		"method":  "post",
		"headers": map[string]any{"X-Token": "secret"},
		"body":    map[string]any{"name": "flowsmith"},
		"timeout": float64(5),
	}, server.Client())
	require.NoError(t, err)

	out, err := node.Run(t.Context())
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, http.StatusOK, result["statusCode"])
	assert.Equal(t, map[string]any{"id": float64(42)}, result["body"])
	assert.Equal(t, "application/json", result["headers"].(map[string]any)["content-type"])

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "secret", gotHeader)
	assert.Equal(t, map[string]any{"name": "flowsmith"}, gotBody)
}

func TestHTTPRequestNode_ErrorStatus(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{status: http.StatusUnauthorized, message: "HTTP 401 unauthorized: denied"},
		{status: http.StatusServiceUnavailable, message: "HTTP 503 service unavailable: denied"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("denied"))
			}))
			defer server.Close()

			node, err := NewHTTPRequestNode("http-1", map[string]any{"url": server.URL}, nil)
			require.NoError(t, err)

			_, err = node.Run(t.Context())

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestHTTPRequestNode_PlainTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("http-1", map[string]any{"url": server.URL}, nil)
	require.NoError(t, err)

	out, err := node.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "pong", out.(map[string]any)["body"])
}

func TestNewHTTPRequestNode_MissingURL(t *testing.T) {
	_, err := NewHTTPRequestNode("http-1", map[string]any{}, nil)
	assert.Error(t, err)
}
