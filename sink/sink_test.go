package sink_test

import (
	"bytes"
	"cad-lab/domain"
	"cad-lab/mocks"
	"cad-lab/sink"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDiskSink_Consume(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIMessageRepository(ctrl)
	s := sink.NewDiskSink(repo, logs.GetLoggerFromLevel(slog.LevelDebug))
	msg := domain.NewMessage("Reviewer", domain.RoleAssistant, "Looks good. TERMINATE")
	msg.SessionID = uuid.New()

	repo.EXPECT().StoreMessage(msg).Return(nil)
	req.NoError(s.Consume(context.Background(), msg))
	req.EqualValues(1, s.Stored())

	boom := errors.New("disk full")
	repo.EXPECT().StoreMessage(msg).Return(boom)
	err := s.Consume(context.Background(), msg)
	req.ErrorIs(err, boom)
	req.ErrorContains(err, msg.SessionID.String())
	req.EqualValues(1, s.Stored())
}

func TestTimeline_Consume(t *testing.T) {
	req := require.New(t)
	timeline := sink.NewTimeline()
	var wg sync.WaitGroup

	// When several speakers publish concurrently
	for _, name := range []string{"User", "Executor", "Reviewer"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = timeline.Consume(context.Background(), domain.NewMessage(name, domain.RoleAssistant, "hi"))
		}(name)
	}
	wg.Wait()

	// Then every message is kept
	req.Len(timeline.Snapshot(), 3)
	req.ElementsMatch([]string{"User", "Executor", "Reviewer"}, timeline.Speakers())
}

func TestConsoleSink_Consume(t *testing.T) {
	cases := []struct {
		name     string
		msg      domain.Message
		colours  bool
		contains []string
	}{
		{
			name:     "plain message",
			msg:      domain.NewMessage("Designer_Expert", domain.RoleAssistant, "Required Parameters: width"),
			contains: []string{"Designer_Expert (assistant):\n\nRequired Parameters: width\n", "--------"},
		},
		{
			name: "tool call and failed result",
			msg: domain.Message{
				Name:        "CadQuery_Code_Writer",
				Role:        domain.RoleAssistant,
				ToolCalls:   []domain.ToolCall{{ID: "c1", Name: "create_gear", Arguments: map[string]any{"teeth": 20.0}}},
				ToolResults: []domain.ToolResult{{CallID: "c1", Content: "bad module", IsError: true}},
			},
			contains: []string{"Suggested tool call (c1): create_gear", "Response from calling tool (c1)", "bad module"},
		},
		{
			name:     "coloured speaker",
			msg:      domain.NewMessage("User", domain.RoleUser, "Design a box"),
			colours:  true,
			contains: []string{"User", "Design a box"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			var out bytes.Buffer
			s := sink.NewConsoleSink(&out, c.colours)

			req.NoError(s.Consume(context.Background(), c.msg))

			for _, want := range c.contains {
				req.Contains(out.String(), want)
			}
		})
	}
}
