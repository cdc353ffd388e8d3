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
	"regexp"
	"time"
)

// OpenAIProvider talks to OpenAI-compatible chat completion endpoints.
// Groq and the Gemini compatibility layer speak the same wire format.
type OpenAIProvider struct {
	retrier
	cfg        Config
	log        *slog.Logger
	HTTPClient *http.Client
}

func NewOpenAIProvider(cfg Config, log *slog.Logger) *OpenAIProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &OpenAIProvider{
		retrier:    retrier{MaxAttempts: cfg.MaxAttempts},
		cfg:        cfg,
		log:        log,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("%s/%s", p.cfg.Vendor, p.cfg.Model)
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(p.toRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	p.log.Debug("Calling chat completions",
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
	return p.parse(body)
}

func (p *OpenAIProvider) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	res, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	return body, res.StatusCode, err
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Seed        *int            `json:"seed,omitempty"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Name       string           `json:"name,omitempty"`
	Content    any              `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   *string          `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (p *OpenAIProvider) toRequest(req Request) openaiRequest {
	out := openaiRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: req.Temperature,
		Seed:        req.Seed,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if out.Temperature == nil {
		t := p.cfg.Temperature
		out.Temperature = &t
	}
	if out.Seed == nil {
		out.Seed = p.cfg.Seed
	}
	if req.System != "" {
		out.Messages = append(out.Messages, openaiMessage{Role: string(domain.RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toOpenAIMessages(m)...)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openaiTool{
			Type:     "function",
			Function: openaiFunction{Name: t.Name, Description: t.Description, Parameters: t.InputSchema},
		})
	}
	if len(out.Tools) > 0 {
		out.ToolChoice = "auto"
	}
	return out
}

func toOpenAIMessages(m domain.Message) []openaiMessage {
	if len(m.ToolResults) > 0 {
		res := make([]openaiMessage, 0, len(m.ToolResults))
		for _, r := range m.ToolResults {
			res = append(res, openaiMessage{Role: string(domain.RoleTool), ToolCallID: r.CallID, Content: r.Content})
		}
		return res
	}

	msg := openaiMessage{
		Role:    string(m.Role),
		Name:    invalidNameChars.ReplaceAllString(m.Name, "_"),
		Content: m.Content,
	}
	if m.Role == domain.RoleSystem {
		msg.Name = ""
	}
	if len(m.Images) > 0 {
		parts := []openaiContentPart{{Type: "text", Text: m.Content}}
		for _, img := range m.Images {
			parts = append(parts, openaiContentPart{
				Type:     "image_url",
				ImageURL: &openaiImageURL{URL: dataURL(img)},
			})
		}
		msg.Content = parts
	}
	for _, c := range m.ToolCalls {
		args, _ := json.Marshal(c.Arguments)
		call := openaiToolCall{ID: c.ID, Type: "function"}
		call.Function.Name = c.Name
		call.Function.Arguments = string(args)
		msg.ToolCalls = append(msg.ToolCalls, call)
	}
	return []openaiMessage{msg}
}

func dataURL(img domain.Image) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIME, base64.StdEncoding.EncodeToString(img.Data))
}

func (p *OpenAIProvider) parse(body []byte) (Response, error) {
	var res openaiResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if len(res.Choices) == 0 {
		return Response{}, fmt.Errorf("%s: response has no choices", p.Name())
	}
	choice := res.Choices[0]
	out := Response{
		Model:      res.Model,
		StopReason: choice.FinishReason,
		Usage: domain.Usage{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
		},
	}
	if out.Model == "" {
		out.Model = p.cfg.Model
	}
	if choice.Message.Content != nil {
		out.Content = *choice.Message.Content
	}
	for i, c := range choice.Message.ToolCalls {
		args := map[string]any{}
		if c.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
				return Response{}, fmt.Errorf("decode arguments of %s: %w", c.Function.Name, err)
			}
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d_%d", time.Now().UnixNano(), i)
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: id, Name: c.Function.Name, Arguments: args})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
