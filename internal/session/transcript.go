package session

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// transcriptDoc is the on-disk YAML shape of a session's transcript
// (§6.1 "Transcript format"): rewritten wholesale on every append.
type transcriptDoc struct {
	SessionID string              `yaml:"session_id"`
	CreatedAt string              `yaml:"created_at"`
	Messages  []transcriptMessage `yaml:"messages"`
}

type transcriptMessage struct {
	Timestamp  string `yaml:"timestamp"`
	Role       string `yaml:"role"`
	Content    string `yaml:"content"`
	ToolCallID string `yaml:"tool_call_id,omitempty"`
	ToolName   string `yaml:"tool_name,omitempty"`
}

// writeTranscript rewrites s.TranscriptPath with s's current history,
// using the same temp-file-then-rename discipline as the rest of the
// storage layer so a reader never observes a partial file.
func writeTranscript(s *Session) error {
	doc := transcriptDoc{
		SessionID: s.ID,
		CreatedAt: s.CreatedAt.Format(rfc3339Milli),
		Messages:  make([]transcriptMessage, len(s.Messages)),
	}
	for i, m := range s.Messages {
		doc.Messages[i] = transcriptMessage{
			Timestamp:  m.Timestamp.Format(rfc3339Milli),
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.TranscriptPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := s.TranscriptPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if f, err := os.OpenFile(tmp, os.O_WRONLY, 0o644); err == nil {
		_ = f.Sync()
		_ = f.Close()
	}
	return os.Rename(tmp, s.TranscriptPath)
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"
