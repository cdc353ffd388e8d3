package storage

import (
	"cad-lab/domain"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Records are stored as protobuf Structs so that new fields never break old data.

func marshal(fields map[string]any) ([]byte, error) {
	st, err := structpb.NewStruct(validUTF8(fields).(map[string]any))
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

// validUTF8 replaces invalid byte sequences in every string, which structpb
// would otherwise reject.
func validUTF8(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToValidUTF8(x, "\uFFFD")
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[strings.ToValidUTF8(k, "\uFFFD")] = validUTF8(e)
		}
		return out
	case []any:
		return lo.Map(x, func(e any, _ int) any { return validUTF8(e) })
	default:
		return v
	}
}

func unmarshal(data []byte) (map[string]*structpb.Value, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return st.GetFields(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v *structpb.Value) (time.Time, error) {
	s := v.GetStringValue()
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseUUID(v *structpb.Value) (uuid.UUID, error) {
	s := v.GetStringValue()
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func fromMessage(m domain.Message) map[string]any {
	return map[string]any{
		"id":         m.ID.String(),
		"session_id": m.SessionID.String(),
		"name":       m.Name,
		"role":       string(m.Role),
		"content":    m.Content,
		"created_at": formatTime(m.CreatedAt),
		"tool_calls": lo.Map(m.ToolCalls, func(c domain.ToolCall, _ int) any {
			return map[string]any{"id": c.ID, "name": c.Name, "arguments": c.Arguments}
		}),
		"tool_results": lo.Map(m.ToolResults, func(r domain.ToolResult, _ int) any {
			return map[string]any{"call_id": r.CallID, "name": r.Name, "content": r.Content, "is_error": r.IsError}
		}),
		"images": lo.Map(m.Images, func(i domain.Image, _ int) any {
			return map[string]any{"mime": i.MIME, "data": base64.StdEncoding.EncodeToString(i.Data)}
		}),
	}
}

func toMessage(f map[string]*structpb.Value) (domain.Message, error) {
	id, err := parseUUID(f["id"])
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	session, err := parseUUID(f["session_id"])
	if err != nil {
		return domain.Message{}, fmt.Errorf("message session: %w", err)
	}
	at, err := parseTime(f["created_at"])
	if err != nil {
		return domain.Message{}, fmt.Errorf("message time: %w", err)
	}
	m := domain.Message{
		ID:        id,
		SessionID: session,
		Name:      f["name"].GetStringValue(),
		Role:      domain.Role(f["role"].GetStringValue()),
		Content:   f["content"].GetStringValue(),
		CreatedAt: at,
	}
	for _, v := range f["tool_calls"].GetListValue().GetValues() {
		c := v.GetStructValue()
		m.ToolCalls = append(m.ToolCalls, domain.ToolCall{
			ID:        c.GetFields()["id"].GetStringValue(),
			Name:      c.GetFields()["name"].GetStringValue(),
			Arguments: c.GetFields()["arguments"].GetStructValue().AsMap(),
		})
	}
	for _, v := range f["tool_results"].GetListValue().GetValues() {
		r := v.GetStructValue().GetFields()
		m.ToolResults = append(m.ToolResults, domain.ToolResult{
			CallID:  r["call_id"].GetStringValue(),
			Name:    r["name"].GetStringValue(),
			Content: r["content"].GetStringValue(),
			IsError: r["is_error"].GetBoolValue(),
		})
	}
	for _, v := range f["images"].GetListValue().GetValues() {
		i := v.GetStructValue().GetFields()
		data, err := base64.StdEncoding.DecodeString(i["data"].GetStringValue())
		if err != nil {
			return domain.Message{}, fmt.Errorf("message image: %w", err)
		}
		m.Images = append(m.Images, domain.Image{MIME: i["mime"].GetStringValue(), Data: data})
	}
	return m, nil
}

func fromSession(s domain.Session) map[string]any {
	return map[string]any{
		"id":          s.ID.String(),
		"team":        s.Team,
		"prompt":      s.Prompt,
		"started_at":  formatTime(s.StartedAt),
		"finished_at": formatTime(s.FinishedAt),
		"stop_reason": string(s.StopReason),
		"rounds":      s.Rounds,
	}
}

func toSession(f map[string]*structpb.Value) (domain.Session, error) {
	id, err := parseUUID(f["id"])
	if err != nil {
		return domain.Session{}, err
	}
	started, err := parseTime(f["started_at"])
	if err != nil {
		return domain.Session{}, err
	}
	finished, err := parseTime(f["finished_at"])
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:         id,
		Team:       f["team"].GetStringValue(),
		Prompt:     f["prompt"].GetStringValue(),
		StartedAt:  started,
		FinishedAt: finished,
		StopReason: domain.StopReason(f["stop_reason"].GetStringValue()),
		Rounds:     int(f["rounds"].GetNumberValue()),
	}, nil
}

func fromArtifact(a domain.Artifact) map[string]any {
	return map[string]any{
		"session_id": a.SessionID.String(),
		"name":       a.Name,
		"path":       a.Path,
		"format":     a.Format,
		"size":       a.Size,
		"at":         formatTime(a.At),
	}
}

func toArtifact(f map[string]*structpb.Value) (domain.Artifact, error) {
	session, err := parseUUID(f["session_id"])
	if err != nil {
		return domain.Artifact{}, err
	}
	at, err := parseTime(f["at"])
	if err != nil {
		return domain.Artifact{}, err
	}
	return domain.Artifact{
		SessionID: session,
		Name:      f["name"].GetStringValue(),
		Path:      f["path"].GetStringValue(),
		Format:    f["format"].GetStringValue(),
		Size:      int64(f["size"].GetNumberValue()),
		At:        at,
	}, nil
}

// DecodeMessage reads a value stored under a "msg:" key.
func DecodeMessage(data []byte) (domain.Message, error) {
	fields, err := unmarshal(data)
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(fields)
}

// DecodeSession reads a value stored under a "session:" key.
func DecodeSession(data []byte) (domain.Session, error) {
	fields, err := unmarshal(data)
	if err != nil {
		return domain.Session{}, err
	}
	return toSession(fields)
}

// DecodeArtifact reads a value stored under an "artifact:" key.
func DecodeArtifact(data []byte) (domain.Artifact, error) {
	fields, err := unmarshal(data)
	if err != nil {
		return domain.Artifact{}, err
	}
	return toArtifact(fields)
}
