package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPRequestNode performs one HTTP request per run.
type HTTPRequestNode struct {
	id     string
	config HTTPRequestConfig
	client *http.Client
}

// HTTPRequestConfig defines the configuration for HTTP request nodes.
type HTTPRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
	Timeout time.Duration     `json:"timeout"`
}

// HTTPError is a response with a 4xx or 5xx status. Its message carries the
// status text so failures classify by their HTTP meaning.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, strings.ToLower(http.StatusText(e.StatusCode)), e.Message)
}

func NewHTTPRequestNode(id string, config map[string]any, client *http.Client) (*HTTPRequestNode, error) {
	httpConfig := HTTPRequestConfig{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		Timeout: defaultTimeout,
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	httpConfig.URL = url

	if method, ok := config["method"].(string); ok && method != "" {
		httpConfig.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				httpConfig.Headers[k] = s
			}
		}
	}

	httpConfig.Body = config["body"]

	switch timeout := config["timeout"].(type) {
	case float64:
		httpConfig.Timeout = time.Duration(timeout * float64(time.Second))
	case int:
		httpConfig.Timeout = time.Duration(timeout) * time.Second
	}

	if client == nil {
		client = &http.Client{}
	}

	return &HTTPRequestNode{id: id, config: httpConfig, client: client}, nil
}

func (n *HTTPRequestNode) Run(ctx context.Context) (any, error) {
	if n.config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
	}

	body, contentType, err := n.encodeBody()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, n.config.URL, body)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	for key, value := range n.config.Headers {
		req.Header.Set(key, value)
	}

	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[strings.ToLower(key)] = resp.Header.Get(key)
	}

	var decoded any = string(respBody)

	var parsed any
	if len(respBody) > 0 && json.Unmarshal(respBody, &parsed) == nil {
		decoded = parsed
	}

	return map[string]any{
		"statusCode": resp.StatusCode,
		"headers":    headers,
		"body":       decoded,
		"url":        n.config.URL,
	}, nil
}

func (n *HTTPRequestNode) encodeBody() (io.Reader, string, error) {
	switch body := n.config.Body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if body == "" {
			return nil, "", nil
		}

		return strings.NewReader(body), "application/json", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("invalid request body: %w", err)
		}

		return strings.NewReader(string(data)), "application/json", nil
	}
}
