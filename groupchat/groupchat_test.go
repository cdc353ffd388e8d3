package groupchat

import (
	"cad-lab/agents"
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/llm"
	"cad-lab/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func cannedAgent(name, reply string) *agents.Agent {
	return agents.New(agents.Config{Name: name, Description: name + " role", DefaultAutoReply: reply}, nil)
}

func speakers(history []domain.Message) []string {
	return lo.Map(history, func(m domain.Message, _ int) string { return m.Name })
}

func TestManager_RoundRobin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockMessageSink(ctrl)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(5)

	// Given three agents taking turns for five rounds
	user := cannedAgent("User", "next")
	expert := cannedAgent("Designer_Expert", "plan")
	coder := cannedAgent("CadQuery_Code_Writer", "code")
	manager := NewManager(GroupChat{
		Agents:           []*agents.Agent{user, expert, coder},
		MaxRound:         5,
		SpeakerSelection: domain.SelectRoundRobin,
	}, nil, WithSinks(sink))

	// When the user opens the chat
	res, err := manager.Run(context.Background(), user, "Design a box")

	// Then every agent speaks in list order until the round limit
	req.NoError(err)
	req.Equal(domain.StopMaxRound, res.StopReason)
	req.Equal(5, res.Rounds)
	req.Equal([]string{"User", "Designer_Expert", "CadQuery_Code_Writer", "User", "Designer_Expert"}, speakers(res.History))
	req.Equal("Design a box", res.History[0].Content)
	for _, m := range res.History {
		req.Equal(manager.SessionID(), m.SessionID)
	}
}

func TestManager_StopsOnTermination(t *testing.T) {
	req := require.New(t)

	// Given a reviewer closing the conversation
	user := cannedAgent("User", "")
	coder := cannedAgent("CadQuery_Code_Writer", "```python\nprint(1)\n```")
	reviewer := cannedAgent("Reviewer", "It ran successfully. TERMINATE")
	manager := NewManager(GroupChat{
		Agents:           []*agents.Agent{user, coder, reviewer},
		MaxRound:         50,
		SpeakerSelection: domain.SelectRoundRobin,
	}, nil)

	// When the chat runs
	res, err := manager.Run(context.Background(), user, "Design a plate")

	// Then the next speaker reads the termination and stops
	req.NoError(err)
	req.Equal(domain.StopTermination, res.StopReason)
	req.Equal(3, res.Rounds)
	req.Equal("It ran successfully.", res.Summary)
}

func TestManager_Introductions(t *testing.T) {
	req := require.New(t)

	// Given a chat sending introductions
	user := cannedAgent("User", "ok")
	coder := cannedAgent("CadQuery_Code_Writer", "code")
	manager := NewManager(GroupChat{
		Agents:            []*agents.Agent{user, coder},
		MaxRound:          2,
		SpeakerSelection:  domain.SelectRoundRobin,
		SendIntroductions: true,
	}, nil)

	// When it runs
	res, err := manager.Run(context.Background(), user, "Design a cone")

	// Then the introduction opens the history without counting as a round
	req.NoError(err)
	req.Len(res.History, 3)
	req.Equal(ManagerName, res.History[0].Name)
	req.Equal(domain.RoleSystem, res.History[0].Role)
	req.Contains(res.History[0].Content, "CadQuery_Code_Writer: CadQuery_Code_Writer role")
	req.Equal(2, res.Rounds)
}

func TestManager_InitiatorOutsideGroup(t *testing.T) {
	req := require.New(t)

	// Given an initiator which is not part of the group
	aid := cannedAgent("designer_aid", "")
	coder := cannedAgent("CadQuery_Code_Writer", "code")
	reviewer := cannedAgent("Reviewer", "review")
	manager := NewManager(GroupChat{
		Agents:           []*agents.Agent{coder, reviewer},
		MaxRound:         3,
		SpeakerSelection: domain.SelectRoundRobin,
	}, nil)

	res, err := manager.Run(context.Background(), aid, "Design a torus")

	// Then the group starts from its first agent
	req.NoError(err)
	req.Equal([]string{"designer_aid", "CadQuery_Code_Writer", "Reviewer"}, speakers(res.History))
}

func TestManager_Canceled(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	user := cannedAgent("User", "ok")
	coder := cannedAgent("CadQuery_Code_Writer", "code")
	manager := NewManager(GroupChat{Agents: []*agents.Agent{user, coder}, MaxRound: 10}, nil)

	res, err := manager.Run(ctx, user, "Design a sphere")

	req.NoError(err)
	req.Equal(domain.StopCanceled, res.StopReason)
	req.Equal(1, res.Rounds)
}

func TestManager_ProviderError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(llm.Response{}, fmt.Errorf("boom"))

	// Given a coder whose model fails
	user := cannedAgent("User", "ok")
	coder := agents.New(agents.Config{Name: "CadQuery_Code_Writer", Provider: provider}, nil)
	manager := NewManager(GroupChat{Agents: []*agents.Agent{user, coder}, MaxRound: 10, SpeakerSelection: domain.SelectRoundRobin}, nil)

	// When the chat runs
	res, err := manager.Run(context.Background(), user, "Design a gear")

	// Then the error surfaces with the history played so far
	req.Error(err)
	req.ErrorContains(err, "boom")
	req.Len(res.History, 1)
}

func TestManager_EmptyPrompt(t *testing.T) {
	req := require.New(t)
	user := cannedAgent("User", "ok")
	manager := NewManager(GroupChat{Agents: []*agents.Agent{user}}, nil)

	_, err := manager.Run(context.Background(), user, "")

	req.ErrorIs(err, errors.ErrEmptyPrompt)
}

func TestGroupChat_Candidates(t *testing.T) {
	user := cannedAgent("User", "")
	expert := cannedAgent("Designer_Expert", "")
	coder := agents.New(agents.Config{Name: "CadQuery_Code_Writer", Tools: toolboxStub{}}, nil)
	reviewer := cannedAgent("Reviewer", "")
	all := []*agents.Agent{user, expert, coder, reviewer}

	toolCall := domain.NewMessage("Designer_Expert", domain.RoleAssistant, "")
	toolCall.ToolCalls = []domain.ToolCall{{ID: "1", Name: "create_box"}}

	cases := []struct {
		name     string
		chat     GroupChat
		last     string
		history  []domain.Message
		expected []string
		err      error
	}{
		{
			name:     "repeat not allowed",
			chat:     GroupChat{Agents: all},
			last:     "User",
			expected: []string{"Designer_Expert", "CadQuery_Code_Writer", "Reviewer"},
		},
		{
			name:     "repeat allowed",
			chat:     GroupChat{Agents: all, AllowRepeatSpeaker: true},
			last:     "User",
			expected: []string{"User", "Designer_Expert", "CadQuery_Code_Writer", "Reviewer"},
		},
		{
			name:     "single agent may repeat",
			chat:     GroupChat{Agents: []*agents.Agent{user}},
			last:     "User",
			expected: []string{"User"},
		},
		{
			name:     "allowed transitions",
			chat:     GroupChat{Agents: all, AllowedTransitions: map[string][]string{"CadQuery_Code_Writer": {"Reviewer", "User"}}},
			last:     "CadQuery_Code_Writer",
			expected: []string{"User", "Reviewer"},
		},
		{
			name:     "function call filter",
			chat:     GroupChat{Agents: all, FuncCallFilter: true},
			last:     "Designer_Expert",
			history:  []domain.Message{toolCall},
			expected: []string{"CadQuery_Code_Writer"},
		},
		{
			name: "nobody left",
			chat: GroupChat{Agents: all, AllowedTransitions: map[string][]string{"User": {"User"}}},
			last: "User",
			err:  errors.ErrNoCandidate,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			got, err := c.chat.candidates(c.last, c.history)
			if c.err != nil {
				req.ErrorIs(err, c.err)
				return
			}
			req.NoError(err)
			req.Equal(c.expected, lo.Map(got, func(a *agents.Agent, _ int) string { return a.Name() }))
		})
	}
}

func TestGroupChat_ValidateTransitions(t *testing.T) {
	req := require.New(t)
	chat := GroupChat{
		Agents:             []*agents.Agent{cannedAgent("User", "")},
		AllowedTransitions: map[string][]string{"User": {"Ghost"}},
	}
	req.ErrorIs(chat.validate(), errors.ErrUnknownAgent)
}

func TestSpeakerSelector_Auto(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	selector := mocks.NewMockProvider(ctrl)

	user := cannedAgent("User", "")
	expert := cannedAgent("Designer_Expert", "")
	coder := cannedAgent("CadQuery_Code_Writer", "")
	chat := &GroupChat{Agents: []*agents.Agent{user, expert, coder}, SpeakerSelection: domain.SelectAuto, Selector: selector}
	s := &speakerSelector{chat: chat, log: logs.GetLoggerFromLevel(slog.LevelDebug), usage: map[string]domain.Usage{}}

	// Given a selector naming the coder loosely
	selector.EXPECT().Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r llm.Request) (llm.Response, error) {
			req.Contains(r.System, "You are in a role play game")
			req.Contains(r.System, "Designer_Expert: Designer_Expert role")
			return llm.Response{Content: "The next role is CadQuery Code Writer.", Model: "gemini-pro", Usage: domain.Usage{PromptTokens: 30, CompletionTokens: 4}}, nil
		})

	// When the next speaker is selected after the user
	next, err := s.next(context.Background(), "User", []domain.Message{domain.NewMessage("User", domain.RoleUser, "Design a box")})

	// Then the mentioned agent is picked and usage accounted
	req.NoError(err)
	req.Equal("CadQuery_Code_Writer", next.Name())
	req.Equal(34, s.usage["gemini-pro"].Total())
}

func TestSpeakerSelector_AutoFallsBackToRoundRobin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	selector := mocks.NewMockProvider(ctrl)
	selector.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(llm.Response{}, fmt.Errorf("rate limited"))

	user := cannedAgent("User", "")
	expert := cannedAgent("Designer_Expert", "")
	coder := cannedAgent("CadQuery_Code_Writer", "")
	chat := &GroupChat{Agents: []*agents.Agent{user, expert, coder}, SpeakerSelection: domain.SelectAuto, Selector: selector}
	s := &speakerSelector{chat: chat, log: logs.GetLoggerFromLevel(slog.LevelDebug), usage: map[string]domain.Usage{}}

	next, err := s.next(context.Background(), "User", nil)

	req.NoError(err)
	req.Equal("Designer_Expert", next.Name())
}

func TestSpeakerSelector_RandomAndManual(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	human := mocks.NewMockHumanInput(ctrl)

	user := cannedAgent("User", "")
	expert := cannedAgent("Designer_Expert", "")
	coder := cannedAgent("CadQuery_Code_Writer", "")
	reviewer := cannedAgent("Reviewer", "")

	// Random picks through the injected draw among non repeating candidates
	chat := &GroupChat{
		Agents:           []*agents.Agent{user, expert, coder, reviewer},
		SpeakerSelection: domain.SelectRandom,
		Intn:             func(n int) int { return n - 1 },
	}
	s := &speakerSelector{chat: chat, log: logs.GetLoggerFromLevel(slog.LevelDebug), usage: map[string]domain.Usage{}}
	next, err := s.next(context.Background(), "Reviewer", nil)
	req.NoError(err)
	req.Equal("CadQuery_Code_Writer", next.Name())

	// Manual asks the human again on an invalid number
	gomock.InOrder(
		human.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("9", nil),
		human.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("1", nil),
	)
	chat.SpeakerSelection = domain.SelectManual
	chat.Human = human
	next, err = s.next(context.Background(), "User", nil)
	req.NoError(err)
	req.Equal("Designer_Expert", next.Name())
}

func TestMatchSpeaker(t *testing.T) {
	expert := cannedAgent("Designer_Expert", "")
	coder := cannedAgent("CadQuery_Code_Writer", "")
	candidates := []*agents.Agent{expert, coder}

	cases := []struct {
		reply    string
		expected string
	}{
		{"Designer_Expert", "Designer_Expert"},
		{"  cadquery_code_writer ", "CadQuery_Code_Writer"},
		{"I pick designer expert", "Designer_Expert"},
		{"Designer_Expert then CadQuery_Code_Writer", ""},
		{"nobody", ""},
	}
	for _, c := range cases {
		t.Run(c.reply, func(t *testing.T) {
			req := require.New(t)
			got, ok := matchSpeaker(c.reply, candidates)
			if c.expected == "" {
				req.False(ok)
				return
			}
			req.True(ok)
			req.Equal(c.expected, got.Name())
		})
	}
}

func TestInitiateChat(t *testing.T) {
	cases := []struct {
		name     string
		maxTurns int
		rounds   int
		stop     domain.StopReason
	}{
		{name: "bounded by turns", maxTurns: 2, rounds: 4, stop: domain.StopMaxRound},
		{name: "bounded by auto replies", maxTurns: 0, rounds: 6, stop: domain.StopMaxAutoReply},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)

			// Given a designer allowed two automatic replies and a coder
			designer := agents.New(agents.Config{Name: "Designer", DefaultAutoReply: "go on", MaxConsecutiveAutoReply: 2}, nil)
			coder := cannedAgent("CadQuery_Code_Writer", "code")

			// When the designer starts the chat
			res, err := InitiateChat(context.Background(), nil, designer, coder, "Design a bottle", c.maxTurns)

			// Then both alternate until the limit
			req.NoError(err)
			req.Equal(c.stop, res.StopReason)
			req.Equal(c.rounds, res.Rounds)
			req.Equal("Designer", res.History[0].Name)
			req.Equal("CadQuery_Code_Writer", res.History[1].Name)
		})
	}
}

func TestSummary(t *testing.T) {
	req := require.New(t)
	history := []domain.Message{
		domain.NewMessage(ManagerName, domain.RoleSystem, "intro"),
		domain.NewMessage("CadQuery_Code_Writer", domain.RoleAssistant, "saved as \"box.stl\""),
		domain.NewMessage("Reviewer", domain.RoleAssistant, "TERMINATE"),
		domain.NewMessage("User", domain.RoleUser, "   "),
	}
	req.Equal("saved as \"box.stl\"", Summary(history))
	req.Empty(Summary(history[:1]))
}

type toolboxStub struct{}

func (toolboxStub) Definitions() []llm.ToolDefinition { return nil }

func (toolboxStub) Has(name string) bool { return name == "create_box" }

func (toolboxStub) Execute(_ context.Context, call domain.ToolCall) domain.ToolResult {
	return domain.ToolResult{CallID: call.ID, Name: call.Name}
}
