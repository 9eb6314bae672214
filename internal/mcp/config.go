package mcp

import (
	"context"

	"github.com/swissarmyhammer/agentcore/pkg/types"
)

// ConfigFromTypes adapts a configured mcp server entry (pkg/types.MCPConfig,
// loaded from the runtime's config file) into the Config this package's
// Client understands. Enabled defaults to true when the field is omitted,
// matching the teacher's config-loading convention elsewhere in this repo.
func ConfigFromTypes(c types.MCPConfig) *Config {
	enabled := true
	if c.Enabled != nil {
		enabled = *c.Enabled
	}

	transportType := TransportType(c.Type)
	switch transportType {
	case TransportTypeRemote, TransportTypeLocal, TransportTypeStdio:
	default:
		if c.URL != "" {
			transportType = TransportTypeRemote
		} else {
			transportType = TransportTypeLocal
		}
	}

	return &Config{
		Enabled:     enabled,
		Type:        transportType,
		URL:         c.URL,
		Command:     c.Command,
		Environment: c.Environment,
		Timeout:     c.Timeout,
	}
}

// ConnectAll adds every configured server to client, continuing past
// individual connection failures so one unreachable server never blocks
// the rest (each failure is still recorded on the client via AddServer's
// StatusFailed bookkeeping, visible through Status()).
func ConnectAll(ctx context.Context, client *Client, servers map[string]types.MCPConfig) []error {
	var errs []error
	for name, cfg := range servers {
		if err := client.AddServer(ctx, name, ConfigFromTypes(cfg)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
