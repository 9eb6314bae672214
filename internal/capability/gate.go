// Package capability enforces the negotiated CapabilitySet at every
// boundary operation: inbound prompt content blocks and outbound
// filesystem/terminal requests a tool wants to perform. The gate performs
// no I/O; it only consults the capability set it is given.
package capability

import (
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// Gate validates operations against a session's negotiated CapabilitySet.
type Gate struct{}

// New returns a stateless Gate. It carries no fields because every call
// takes the CapabilitySet to check against explicitly — the gate has no
// session-keyed state of its own.
func New() *Gate {
	return &Gate{}
}

// ValidateContentBlocks checks every inbound ContentBlock against the
// agent's declared prompt_capabilities, failing fast before any LLM
// request is issued (§4.2.1 step 1, §8 invariant 4).
func (g *Gate) ValidateContentBlocks(caps acp.CapabilitySet, blocks []acp.ContentBlock) error {
	for _, b := range blocks {
		switch b.(type) {
		case acp.ImageContent:
			if !caps.PromptImage {
				return capNotSupported("prompt_capabilities.image", "session/prompt")
			}
		case acp.AudioContent:
			if !caps.PromptAudio {
				return capNotSupported("prompt_capabilities.audio", "session/prompt")
			}
		case acp.ResourceContent:
			if !caps.PromptEmbeddedResource {
				return capNotSupported("prompt_capabilities.embedded_resource", "session/prompt")
			}
		case acp.TextContent, acp.ResourceLinkContent:
			// No capability required.
		}
	}
	return nil
}

// RequireClientCapability gates an outbound operation (fs.read_text_file,
// fs.write_text_file, terminal/create) a tool wants to perform against the
// client's declared capabilities (§4.4, §8 invariant 5).
func (g *Gate) RequireClientCapability(caps acp.CapabilitySet, operation string) error {
	var ok bool
	switch operation {
	case "fs.read_text_file":
		ok = caps.FSReadTextFile
	case "fs.write_text_file":
		ok = caps.FSWriteTextFile
	case "terminal":
		ok = caps.Terminal
	default:
		return capUnknown(operation)
	}
	if !ok {
		return capNotSupported(operation, operation)
	}
	return nil
}

// RequireLoadSession gates session/load against the load_session
// capability.
func (g *Gate) RequireLoadSession(caps acp.CapabilitySet) error {
	if !caps.LoadSession {
		return capNotSupported("load_session", "session/load")
	}
	return nil
}

func capNotSupported(capability, operation string) error {
	return acp.New(acp.ErrCapabilityNotSupported,
		"capability not supported: "+capability+" (required by "+operation+")",
		map[string]any{"capability": capability, "operation": operation})
}

func capUnknown(operation string) error {
	return acp.New(acp.ErrUnknownCapability,
		"unknown capability requested by operation "+operation,
		map[string]any{"operation": operation})
}
