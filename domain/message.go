// Package domain contains core concepts of the design conversations.
// This file defines Messages exchanged between agents and related rules.
// Messages are immutable once appended to a conversation.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents one turn of a conversation.
// Name is the agent that authored it, Role is relative to the reader.
type Message struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Name        string
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
	Images      []Image
	CreatedAt   time.Time
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

type Image struct {
	MIME string
	Data []byte
}

func NewMessage(name string, role Role, content string) Message {
	return Message{
		ID:        uuid.New(),
		Name:      name,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.ToolCalls) == 0 && len(m.ToolResults) == 0
}

// Text flattens tool results into the content so that agents without
// tool support can still read them.
func (m Message) Text() string {
	if len(m.ToolResults) == 0 {
		return m.Content
	}
	var sb strings.Builder
	if m.Content != "" {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	for i, r := range m.ToolResults {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Response from calling tool ")
		sb.WriteString(r.Name)
		sb.WriteString(":\n")
		sb.WriteString(r.Content)
	}
	return sb.String()
}

// Usage is the token accounting reported by a model endpoint.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}
