// Package memory keeps short-term conversational context per thread.
// Appends are best-effort and never block the request path; a dead
// store degrades to empty context, not errors.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation thread.
type Message struct {
	Role     Role                   `json:"role"`
	Content  string                 `json:"content"`
	Ts       string                 `json:"ts"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewMessage stamps a message with the current UTC time.
func NewMessage(role Role, content string, metadata map[string]interface{}) Message {
	return Message{
		Role:     role,
		Content:  content,
		Ts:       time.Now().UTC().Format(time.RFC3339),
		Metadata: metadata,
	}
}

// Store is the chat memory interface.
type Store interface {
	// Append records a turn. Implementations must be fast or
	// asynchronous; failures are logged, not returned.
	Append(ctx context.Context, threadID string, msg Message)
	// Read returns up to maxMessages recent turns, oldest first.
	Read(ctx context.Context, threadID string, maxMessages int) ([]Message, error)
}

// RenderContext formats recent turns as a plain-text transcript for
// prompt inclusion. An unavailable store yields an empty transcript.
func RenderContext(ctx context.Context, store Store, threadID string, maxMessages int) string {
	if store == nil || threadID == "" {
		return ""
	}
	messages, err := store.Read(ctx, threadID, maxMessages)
	if err != nil || len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", msg.Role, msg.Content)
	}
	return b.String()
}

// LastAssistantAskedClarification reports whether the thread's most
// recent assistant turn was a clarification prompt.
func LastAssistantAskedClarification(ctx context.Context, store Store, threadID string, maxMessages int) bool {
	if store == nil || threadID == "" {
		return false
	}
	messages, err := store.Read(ctx, threadID, maxMessages)
	if err != nil {
		return false
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleAssistant {
			continue
		}
		kind, ok := messages[i].Metadata["kind"].(string)
		return ok && kind == "clarification"
	}
	return false
}
