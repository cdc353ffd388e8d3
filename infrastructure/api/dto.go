package api

import (
	"cad-lab/domain"
	"cad-lab/rag"
	"cad-lab/services"
	"time"

	"github.com/samber/lo"
)

type ChatRequest struct {
	Prompt string `json:"PROMPT" validate:"required"`
}

type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

type ErrorResponse struct {
	Error   string        `json:"error"`
	Outcome *ChatResponse `json:"outcome,omitempty"`
}

type MessageResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	ToolCalls   []ToolCallDTO   `json:"tool_calls,omitempty"`
	ToolResults []ToolResultDTO `json:"tool_results,omitempty"`
	Images      int             `json:"images,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ToolCallDTO struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolResultDTO struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

type ArtifactResponse struct {
	Name   string    `json:"name"`
	Path   string    `json:"path"`
	Format string    `json:"format"`
	Size   int64     `json:"size"`
	At     time.Time `json:"at"`
}

type UsageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type ChatResponse struct {
	SessionID  string                   `json:"session_id"`
	Summary    string                   `json:"summary"`
	Rounds     int                      `json:"rounds"`
	StopReason string                   `json:"stop_reason"`
	STLPath    string                   `json:"stl_path"`
	Artifacts  []ArtifactResponse       `json:"artifacts"`
	Usage      map[string]UsageResponse `json:"usage"`
	History    []MessageResponse        `json:"history"`
}

type MessagesResponse struct {
	Messages   []MessageResponse `json:"messages"`
	NextCursor *string           `json:"next_cursor"`
}

type AnswerResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func toMessageResponse(m domain.Message, _ int) MessageResponse {
	return MessageResponse{
		ID:      m.ID.String(),
		Name:    m.Name,
		Role:    string(m.Role),
		Content: m.Content,
		ToolCalls: lo.Map(m.ToolCalls, func(c domain.ToolCall, _ int) ToolCallDTO {
			return ToolCallDTO{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
		}),
		ToolResults: lo.Map(m.ToolResults, func(r domain.ToolResult, _ int) ToolResultDTO {
			return ToolResultDTO{CallID: r.CallID, Name: r.Name, Content: r.Content, IsError: r.IsError}
		}),
		Images:    len(m.Images),
		CreatedAt: m.CreatedAt,
	}
}

func toChatResponse(o services.ChatOutcome) ChatResponse {
	return ChatResponse{
		SessionID:  o.Result.SessionID.String(),
		Summary:    o.Result.Summary,
		Rounds:     o.Result.Rounds,
		StopReason: string(o.Result.StopReason),
		STLPath:    o.STLPath,
		Artifacts: lo.Map(o.Artifacts, func(a domain.Artifact, _ int) ArtifactResponse {
			return ArtifactResponse{Name: a.Name, Path: a.Path, Format: a.Format, Size: a.Size, At: a.At}
		}),
		Usage: lo.MapValues(o.Result.Usage, func(u domain.Usage, _ string) UsageResponse {
			return UsageResponse{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
		}),
		History: lo.Map(o.Result.History, toMessageResponse),
	}
}

func toAnswerResponse(a rag.Answer) AnswerResponse {
	return AnswerResponse{
		Answer:  a.Text,
		Sources: lo.Uniq(lo.Map(a.Sources, func(c domain.Chunk, _ int) string { return c.Source })),
	}
}
