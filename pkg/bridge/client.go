package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type authRoundTripper struct {
	base          http.RoundTripper
	authorization string
}

func (rt *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rt.base
	if base == nil {
		base = http.DefaultTransport
	}
	if rt.authorization == "" {
		return base.RoundTrip(req)
	}
	cloned := req.Clone(req.Context())
	cloned.Header = req.Header.Clone()
	if cloned.Header.Get("Authorization") == "" {
		cloned.Header.Set("Authorization", rt.authorization)
	}
	return base.RoundTrip(cloned)
}

func authorizationHeaderValue(authType AuthType, token string) (string, error) {
	token = strings.TrimSpace(token)
	switch authType {
	case "", AuthNone:
		return "", nil
	case AuthBearer:
		if token == "" {
			return "", fmt.Errorf("missing bridge token")
		}
		return "Bearer " + token, nil
	case AuthAPIKey:
		if token == "" {
			return "", fmt.Errorf("missing bridge token")
		}
		return "ApiKey " + token, nil
	default:
		return "", fmt.Errorf("unsupported auth_type %q", authType)
	}
}

func requestTimeout(cfg ServerConfig) time.Duration {
	if cfg.TimeoutSeconds > 0 {
		return time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

func httpClientFor(cfg ServerConfig) (*http.Client, error) {
	headerValue, err := authorizationHeaderValue(cfg.AuthType, cfg.Token)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout:   requestTimeout(cfg),
		Transport: &authRoundTripper{base: http.DefaultTransport, authorization: headerValue},
	}, nil
}

// connect opens a new MCP client session to the server. Callers own the
// returned session and must Close it.
func connect(ctx context.Context, cfg ServerConfig) (*mcp.ClientSession, error) {
	if !cfg.hasTarget() {
		return nil, fmt.Errorf("bridge server %q has no target", cfg.ServerID)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "agent-hivemind", Version: "1.0.0"}, nil)

	var (
		session *mcp.ClientSession
		err     error
	)
	switch cfg.Transport {
	case TransportStdio:
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		session, err = client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	case TransportHTTP:
		httpClient, clientErr := httpClientFor(cfg)
		if clientErr != nil {
			return nil, clientErr
		}
		session, err = client.Connect(ctx, &mcp.StreamableClientTransport{
			Endpoint:   cfg.Endpoint,
			HTTPClient: httpClient,
			MaxRetries: 3,
		}, nil)
	default:
		return nil, fmt.Errorf("unsupported bridge transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect bridge %q: %w", cfg.ServerID, err)
	}
	return session, nil
}

// discoverTools lists every tool a server exposes, deduplicated by name.
func discoverTools(ctx context.Context, cfg ServerConfig) ([]*mcp.Tool, error) {
	session, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	seen := make(map[string]struct{})
	var out []*mcp.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("failed to list tools from %s: %w", cfg.ServerID, err)
		}
		if tool == nil || strings.TrimSpace(tool.Name) == "" {
			continue
		}
		if _, ok := seen[tool.Name]; ok {
			continue
		}
		seen[tool.Name] = struct{}{}
		out = append(out, tool)
	}
	return out, nil
}

// callTool opens a session, invokes the named tool, and formats the
// result as a compact JSON-compatible string.
func callTool(ctx context.Context, cfg ServerConfig, toolName string, args map[string]any) (string, bool, error) {
	session, err := connect(ctx, cfg)
	if err != nil {
		return "", false, err
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return "", false, fmt.Errorf("bridge call failed for %s on %s: %w", toolName, cfg.ServerID, err)
	}
	text, err := formatToolResult(result)
	return text, result != nil && result.IsError, err
}

func formatContentItem(c mcp.Content) map[string]any {
	switch v := c.(type) {
	case *mcp.TextContent:
		return map[string]any{"type": "text", "text": v.Text}
	case *mcp.ImageContent:
		return map[string]any{"type": "image", "mimeType": v.MIMEType, "data": base64.StdEncoding.EncodeToString(v.Data)}
	case *mcp.AudioContent:
		return map[string]any{"type": "audio", "mimeType": v.MIMEType, "data": base64.StdEncoding.EncodeToString(v.Data)}
	case *mcp.EmbeddedResource:
		item := map[string]any{"type": "resource"}
		if v.Resource != nil {
			item["uri"] = v.Resource.URI
			if v.Resource.MIMEType != "" {
				item["mimeType"] = v.Resource.MIMEType
			}
			if v.Resource.Text != "" {
				item["text"] = v.Resource.Text
			}
			if len(v.Resource.Blob) > 0 {
				item["data"] = base64.StdEncoding.EncodeToString(v.Resource.Blob)
			}
		}
		return item
	default:
		return map[string]any{"type": "unknown"}
	}
}

func formatToolResult(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "{}", nil
	}
	if len(result.Content) == 1 {
		if text, ok := result.Content[0].(*mcp.TextContent); ok {
			trimmed := strings.TrimSpace(text.Text)
			if trimmed != "" {
				return trimmed, nil
			}
		}
	}
	items := make([]map[string]any, 0, len(result.Content))
	for _, c := range result.Content {
		items = append(items, formatContentItem(c))
	}
	encoded, err := json.Marshal(map[string]any{"content": items, "is_error": result.IsError})
	if err != nil {
		return "", fmt.Errorf("failed to encode bridge result: %w", err)
	}
	return string(encoded), nil
}
