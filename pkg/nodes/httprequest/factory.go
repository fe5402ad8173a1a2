// Package httprequest provides the HTTP request connector.
package httprequest

import (
	"context"
	"net/http"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/protocol"
)

// HTTPRequestNodeFactory creates HTTPRequestNode connectors.
type HTTPRequestNodeFactory struct {
	client *http.Client
}

func (f *HTTPRequestNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Connector, error) {
	return NewHTTPRequestNode(id, config, f.client)
}

func (f *HTTPRequestNodeFactory) ID() string {
	return models.NodeTypeHTTP
}

func (f *HTTPRequestNodeFactory) Name() string {
	return "HTTP Request"
}

func (f *HTTPRequestNodeFactory) Description() string {
	return "Performs an HTTP request and returns status, headers and the decoded body"
}

func (f *HTTPRequestNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL",
				"examples":    []string{"https://api.example.com/users/{{ $json.id }}"},
			},
			"method": map[string]any{
				"type":    "string",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "get", "post", "put", "patch", "delete", "head"},
				"default": "GET",
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"description": "Request body. Objects and arrays are sent as JSON.",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Client timeout in seconds",
				"minimum":     0,
				"default":     30,
			},
		},
		"required": []string{"url"},
	}
}

// NewHTTPRequestNodeFactory creates a factory sending requests with client,
// or with a fresh client per request when client is nil.
func NewHTTPRequestNodeFactory(client *http.Client) protocol.ConnectorFactory {
	return &HTTPRequestNodeFactory{client: client}
}
