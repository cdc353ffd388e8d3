package llm

import (
	"bytes"
	"cad-lab/domain"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider talks to the Messages API.
type AnthropicProvider struct {
	retrier
	cfg        Config
	log        *slog.Logger
	HTTPClient *http.Client
}

func NewAnthropicProvider(cfg Config, log *slog.Logger) *AnthropicProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &AnthropicProvider{
		retrier:    retrier{MaxAttempts: cfg.MaxAttempts},
		cfg:        cfg,
		log:        log,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *AnthropicProvider) Name() string {
	return fmt.Sprintf("%s/%s", p.cfg.Vendor, p.cfg.Model)
}

type claudeBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     any            `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	Source    *claudeSource  `json:"source,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	System      string           `json:"system,omitempty"`
	Messages    []claudeMessage  `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

type claudeResponse struct {
	Model      string        `json:"model"`
	Content    []claudeBlock `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(p.toRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	p.log.Debug("Calling messages api",
		"provider", p.Name(), "messages", len(req.Messages), "tools", len(req.Tools))

	body, status, err := p.do(ctx, func() ([]byte, int, error) {
		return p.post(ctx, payload)
	})
	if err != nil {
		return Response{}, fmt.Errorf("%s: request failed: %w", p.Name(), err)
	}
	if status >= 400 {
		return Response{}, fmt.Errorf("%s: unexpected status code %d: %s", p.Name(), status, truncate(string(body), 512))
	}

	var res claudeResponse
	if err = json.Unmarshal(body, &res); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	out := Response{
		Model:      res.Model,
		StopReason: res.StopReason,
		Usage: domain.Usage{
			PromptTokens:     res.Usage.InputTokens,
			CompletionTokens: res.Usage.OutputTokens,
		},
	}
	var texts []string
	for _, b := range res.Content {
		switch b.Type {
		case "text":
			texts = append(texts, b.Text)
		case "tool_use":
			args, _ := b.Input.(map[string]any)
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	out.Content = strings.Join(texts, "\n")
	return out, nil
}

func (p *AnthropicProvider) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	res, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	return body, res.StatusCode, err
}

// toRequest folds system turns into the system prompt and makes sure the
// conversation opens with a user turn.
func (p *AnthropicProvider) toRequest(req Request) claudeRequest {
	out := claudeRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Tools:       req.Tools,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if out.Temperature == nil {
		t := p.cfg.Temperature
		out.Temperature = &t
	}

	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			out.System = strings.TrimSpace(out.System + "\n\n" + m.Content)
			continue
		}
		out.Messages = append(out.Messages, toClaudeMessage(m))
	}
	if len(out.Messages) == 0 || out.Messages[0].Role != string(domain.RoleUser) {
		opener := claudeMessage{Role: string(domain.RoleUser), Content: []claudeBlock{{Type: "text", Text: "Let's start."}}}
		out.Messages = append([]claudeMessage{opener}, out.Messages...)
	}
	return out
}

func toClaudeMessage(m domain.Message) claudeMessage {
	if len(m.ToolResults) > 0 {
		msg := claudeMessage{Role: string(domain.RoleUser)}
		for _, r := range m.ToolResults {
			msg.Content = append(msg.Content, claudeBlock{
				Type:      "tool_result",
				ToolUseID: r.CallID,
				Content:   r.Content,
				IsError:   r.IsError,
			})
		}
		return msg
	}

	role := string(domain.RoleUser)
	if m.Role == domain.RoleAssistant {
		role = string(domain.RoleAssistant)
	}
	msg := claudeMessage{Role: role}
	if m.Content != "" {
		msg.Content = append(msg.Content, claudeBlock{Type: "text", Text: m.Content})
	}
	for _, img := range m.Images {
		msg.Content = append(msg.Content, claudeBlock{
			Type: "image",
			Source: &claudeSource{
				Type:      "base64",
				MediaType: img.MIME,
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	for _, c := range m.ToolCalls {
		input := c.Arguments
		if input == nil {
			input = map[string]any{}
		}
		msg.Content = append(msg.Content, claudeBlock{Type: "tool_use", ID: c.ID, Name: c.Name, Input: input})
	}
	if len(msg.Content) == 0 {
		msg.Content = []claudeBlock{{Type: "text", Text: "(empty)"}}
	}
	return msg
}
