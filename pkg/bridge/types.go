// Package bridge manages connections to external MCP tool servers:
// registration, transport connection (stdio or streamable HTTP),
// periodic tool discovery, and supervised restart on failure.
package bridge

import "time"

// Transport selects how a bridge server is reached.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http_sse"
)

// AuthType selects how outbound HTTP requests to an http_sse server are
// authenticated.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "apikey"
)

// ServerConfig is how one bridge server is registered.
type ServerConfig struct {
	ServerID       string    `json:"server_id"`
	Transport      Transport `json:"transport"`
	Command        string    `json:"command"` // stdio: executable
	Args           []string  `json:"args"`    // stdio: arguments
	Endpoint       string    `json:"endpoint"` // http_sse: URL
	AuthType       AuthType  `json:"auth_type"`
	Token          string    `json:"token"`
	TimeoutSeconds int       `json:"timeout_seconds"`
}

func (c ServerConfig) hasTarget() bool {
	switch c.Transport {
	case TransportStdio:
		return c.Command != ""
	case TransportHTTP:
		return c.Endpoint != ""
	default:
		return false
	}
}

// Status is a bridge server's current supervised state.
type Status string

const (
	StatusConnecting  Status = "connecting"
	StatusConnected   Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusFailed      Status = "failed"
)

const (
	toolCacheTTL        = 60 * time.Second
	discoveryTimeout    = 10 * time.Second
	healthPingInterval  = 30 * time.Second
	maxBackoff          = 2 * time.Minute
	initialBackoff      = 2 * time.Second
)
