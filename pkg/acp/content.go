// Package acp implements the wire-level types of the Agent Client Protocol:
// a JSON-RPC 2.0 dialect spoken between a client IDE and this agent runtime.
package acp

import "encoding/json"

// ContentBlock is a tagged variant sent by clients inside a prompt. Every
// variant carries the JSON "type" discriminator used on the wire.
type ContentBlock interface {
	ContentBlockType() string
}

// TextContent is plain prompt text.
type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) ContentBlockType() string { return "text" }

// ImageContent is an inline or referenced image.
type ImageContent struct {
	MimeType   string `json:"mimeType"`
	Data       string `json:"data,omitempty"` // base64
	URI        string `json:"uri,omitempty"`
	Dimensions *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions,omitempty"`
}

func (ImageContent) ContentBlockType() string { return "image" }

// AudioContent is inline audio.
type AudioContent struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

func (AudioContent) ContentBlockType() string { return "audio" }

// ResourceContent embeds resource contents inline.
type ResourceContent struct {
	Contents json.RawMessage `json:"contents"`
}

func (ResourceContent) ContentBlockType() string { return "resource" }

// ResourceLinkContent references a resource by URI only.
type ResourceLinkContent struct {
	URI string `json:"uri"`
}

func (ResourceLinkContent) ContentBlockType() string { return "resource_link" }

// UnmarshalContentBlock decodes one wire ContentBlock into its concrete Go
// variant based on the "type" discriminator.
func UnmarshalContentBlock(data []byte) (ContentBlock, error) {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, err
	}
	switch disc.Type {
	case "text":
		var c TextContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "image":
		var c ImageContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "audio":
		var c AudioContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "resource":
		var c ResourceContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "resource_link":
		var c ResourceLinkContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &UnknownVariantError{Field: "type", Value: disc.Type}
	}
}

// UnknownVariantError is returned by wire decoders when a discriminator does
// not match any known variant.
type UnknownVariantError struct {
	Field string
	Value string
}

func (e *UnknownVariantError) Error() string {
	return "unknown " + e.Field + " variant: " + e.Value
}
