package agents

import (
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/executor"
	"cad-lab/llm"
	"cad-lab/mocks"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type toolboxStub struct {
	calls []domain.ToolCall
}

func (t *toolboxStub) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{{Name: "create_box", Description: "Create a CAD box model."}}
}

func (t *toolboxStub) Has(name string) bool { return name == "create_box" }

func (t *toolboxStub) Execute(_ context.Context, call domain.ToolCall) domain.ToolResult {
	t.calls = append(t.calls, call)
	return domain.ToolResult{CallID: call.ID, Name: call.Name, Content: "Box model created and saved as NewCADs/box.stl"}
}

type executorStub struct {
	res executor.Result
	err error
}

func (e executorStub) ExecuteFromHistory(context.Context, []domain.Message, int) (executor.Result, error) {
	return e.res, e.err
}

func userMessage(content string) domain.Message {
	return domain.NewMessage("User", domain.RoleUser, content)
}

func TestIsTermination(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"exact keyword", "TERMINATE", true},
		{"keyword at the end", "Model exported. TERMINATE", true},
		{"lower case", "all good, terminate", true},
		{"trailing newline", "TERMINATE\n", true},
		{"trailing spaces", "Done.  TERMINATE \t\n", true},
		{"only whitespace", "   \n", false},
		{"trailing dot", "TERMINATE.", false},
		{"keyword in the middle", "TERMINATE the plan later", false},
		{"too short", "END", false},
		{"empty", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(c.want, IsTermination(domain.Message{Content: c.content}))
		})
	}
}

func TestAgent_ReplyFromModel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	recorder := &recorderStub{}

	// Given an assistant backed by a model
	agent := New(Config{
		Name:          "Designer_Expert",
		SystemMessage: "You are a CAD Design Expert.",
		Provider:      provider,
		Recorder:      recorder,
	}, nil)
	provider.EXPECT().Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r llm.Request) (llm.Response, error) {
			req.Equal("You are a CAD Design Expert.", r.System)
			req.Len(r.Messages, 1)
			req.Equal(domain.RoleUser, r.Messages[0].Role)
			return llm.Response{
				Content: "Required Parameters: length, width",
				Model:   "llama-3.1-70b-versatile",
				Usage:   domain.Usage{PromptTokens: 12, CompletionTokens: 5},
			}, nil
		})

	// When it replies to the user
	reply, err := agent.GenerateReply(context.Background(), []domain.Message{userMessage("Design a box")})

	// Then the model answer is returned and usage is accounted per model
	req.NoError(err)
	req.Empty(reply.Stop)
	last, ok := reply.Last()
	req.True(ok)
	req.Equal("Designer_Expert", last.Name)
	req.Equal(domain.RoleAssistant, last.Role)
	req.Equal("Required Parameters: length, width", last.Content)
	req.Equal(domain.Usage{PromptTokens: 12, CompletionTokens: 5}, agent.Usage()["llama-3.1-70b-versatile"])
	req.Equal(1, recorder.calls)
}

func TestAgent_StopsOnTermination(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)

	// Given an autonomous agent
	agent := New(Config{Name: "Reviewer", Provider: provider}, nil)

	// When the last message asks to terminate
	reply, err := agent.GenerateReply(context.Background(), []domain.Message{userMessage("It ran successfully. TERMINATE")})

	// Then the conversation stops without calling the model
	req.NoError(err)
	req.Equal(domain.StopTermination, reply.Stop)
	req.Empty(reply.Messages)
}

func TestAgent_MaxConsecutiveAutoReply(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given an agent allowed two automatic replies
	agent := New(Config{Name: "Executor", MaxConsecutiveAutoReply: 2, DefaultAutoReply: "ok"}, nil)
	history := []domain.Message{userMessage("go on")}

	// When the same sender keeps talking to it
	for i := 0; i < 2; i++ {
		reply, err := agent.GenerateReply(ctx, history)
		req.NoError(err)
		req.Empty(reply.Stop)
	}
	reply, err := agent.GenerateReply(ctx, history)

	// Then the third reply ends the conversation
	req.NoError(err)
	req.Equal(domain.StopMaxAutoReply, reply.Stop)

	// And the counter starts over afterwards
	reply, err = agent.GenerateReply(ctx, history)
	req.NoError(err)
	req.Empty(reply.Stop)
}

func TestAgent_HumanAlways(t *testing.T) {
	cases := []struct {
		name     string
		last     string
		answer   string
		stop     domain.StopReason
		expected string
	}{
		{name: "human feedback", last: "Here is the plan", answer: "make it 20mm thick", expected: "make it 20mm thick"},
		{name: "exit", last: "Here is the plan", answer: "exit", stop: domain.StopHumanExit},
		{name: "exit is case insensitive", last: "Here is the plan", answer: " EXIT ", stop: domain.StopHumanExit},
		{name: "empty answer uses auto reply", last: "Here is the plan", answer: "", expected: "auto"},
		{name: "empty answer on termination", last: "Done. TERMINATE", answer: "", stop: domain.StopTermination},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			human := mocks.NewMockHumanInput(ctrl)
			human.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(c.answer, nil)

			// Given a user proxy always asking the human
			agent := New(Config{
				Name:             "User",
				Kind:             domain.KindUserProxy,
				HumanInputMode:   domain.HumanAlways,
				DefaultAutoReply: "auto",
				Human:            human,
			}, nil)

			// When the reviewer talks to it
			reply, err := agent.GenerateReply(context.Background(),
				[]domain.Message{domain.NewMessage("Reviewer", domain.RoleAssistant, c.last)})

			// Then the human answer drives the turn
			req.NoError(err)
			req.Equal(c.stop, reply.Stop)
			if c.stop != "" {
				req.Empty(reply.Messages)
				return
			}
			last, ok := reply.Last()
			req.True(ok)
			req.Equal("User", last.Name)
			req.Equal(c.expected, last.Content)
		})
	}
}

func TestAgent_HumanTerminate(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	human := mocks.NewMockHumanInput(ctrl)
	ctx := context.Background()

	// Given a user proxy asking the human only on termination
	agent := New(Config{
		Name:             "User",
		HumanInputMode:   domain.HumanTerminate,
		DefaultAutoReply: "continue",
		Human:            human,
	}, nil)

	// When a regular message arrives, the human is not asked
	reply, err := agent.GenerateReply(ctx, []domain.Message{domain.NewMessage("Reviewer", domain.RoleAssistant, "looks fine")})
	req.NoError(err)
	last, _ := reply.Last()
	req.Equal("continue", last.Content)

	// When a termination message arrives, the human is asked and pressing enter stops
	human.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("", nil)
	reply, err = agent.GenerateReply(ctx, []domain.Message{domain.NewMessage("Reviewer", domain.RoleAssistant, "TERMINATE")})
	req.NoError(err)
	req.Equal(domain.StopTermination, reply.Stop)

	// When the human answers at termination, the conversation goes on with that answer
	human.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("add a fillet", nil)
	reply, err = agent.GenerateReply(ctx, []domain.Message{domain.NewMessage("Reviewer", domain.RoleAssistant, "TERMINATE")})
	req.NoError(err)
	last, _ = reply.Last()
	req.Equal("add a fillet", last.Content)
}

func TestAgent_ExecutesCode(t *testing.T) {
	cases := []struct {
		name     string
		exec     executorStub
		expected string
	}{
		{
			name:     "code found",
			exec:     executorStub{res: executor.Result{ExitCode: 0, Output: "exported box.stl"}},
			expected: "exitcode: 0 (execution succeeded)\nCode output: exported box.stl",
		},
		{
			name:     "code failed",
			exec:     executorStub{res: executor.Result{ExitCode: 1, Output: "NameError"}},
			expected: "exitcode: 1 (execution failed)\nCode output: NameError",
		},
		{
			name:     "no code falls back to default reply",
			exec:     executorStub{err: errors.ErrNoCodeBlock},
			expected: "",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)

			// Given an executor agent
			agent := New(Config{Name: "Executor", Kind: domain.KindExecutor, Executor: c.exec}, nil)

			// When the coder posts a message
			reply, err := agent.GenerateReply(context.Background(),
				[]domain.Message{domain.NewMessage("CadQuery_Code_Writer", domain.RoleAssistant, "```python\nprint(1)\n```")})

			// Then the execution result becomes the reply
			req.NoError(err)
			last, ok := reply.Last()
			req.True(ok)
			req.Equal(c.expected, last.Content)
		})
	}
}

func TestAgent_ToolRounds(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	tools := &toolboxStub{}

	// Given a coder with CAD functions
	agent := New(Config{Name: "CadQuery_Code_Writer", Provider: provider, Tools: tools}, nil)
	call := domain.ToolCall{ID: "call_1", Name: "create_box", Arguments: map[string]any{"length": 10.0}}
	gomock.InOrder(
		provider.EXPECT().Complete(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r llm.Request) (llm.Response, error) {
				req.Len(r.Tools, 1)
				return llm.Response{ToolCalls: []domain.ToolCall{call}, Model: "m"}, nil
			}),
		provider.EXPECT().Complete(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r llm.Request) (llm.Response, error) {
				req.Len(r.Messages, 3)
				req.Equal(domain.RoleTool, r.Messages[2].Role)
				req.Equal("call_1", r.Messages[2].ToolResults[0].CallID)
				return llm.Response{Content: "The box is saved as \"box.stl\"", Model: "m"}, nil
			}),
	)

	// When it replies to a design request
	reply, err := agent.GenerateReply(context.Background(), []domain.Message{userMessage("Create a 10mm box")})

	// Then the tool runs and the model answers after reading the result
	req.NoError(err)
	req.Len(reply.Messages, 3)
	req.True(reply.Messages[0].HasToolCalls())
	req.Len(reply.Messages[1].ToolResults, 1)
	req.Equal("The box is saved as \"box.stl\"", reply.Messages[2].Content)
	req.Len(tools.calls, 1)
}

func TestAgent_RunsToolCallsOfOthers(t *testing.T) {
	req := require.New(t)
	tools := &toolboxStub{}

	// Given an agent owning the tool and a message requesting it
	agent := New(Config{Name: "User", Tools: tools}, nil)
	msg := domain.NewMessage("CadQuery_Code_Writer", domain.RoleAssistant, "")
	msg.ToolCalls = []domain.ToolCall{{ID: "call_9", Name: "create_box"}}

	// When it takes the turn
	reply, err := agent.GenerateReply(context.Background(), []domain.Message{msg})

	// Then it answers with the tool results
	req.NoError(err)
	last, _ := reply.Last()
	req.Equal(domain.RoleTool, last.Role)
	req.Equal("call_9", last.ToolResults[0].CallID)
}

func TestAgent_LLMMessages(t *testing.T) {
	req := require.New(t)
	agent := New(Config{Name: "Reviewer"}, nil)

	call := domain.NewMessage("CadQuery_Code_Writer", domain.RoleAssistant, "")
	call.ToolCalls = []domain.ToolCall{{ID: "c1", Name: "create_box"}}
	result := domain.NewMessage("CadQuery_Code_Writer", domain.RoleTool, "")
	result.ToolResults = []domain.ToolResult{{CallID: "c1", Name: "create_box", Content: "saved"}}
	history := []domain.Message{
		userMessage("Design a box"),
		call,
		result,
		domain.NewMessage("Reviewer", domain.RoleAssistant, "Looks good"),
	}

	// When the history is seen from the reviewer
	out := agent.llmMessages(history)

	// Then other agents speak as the user and foreign tool traffic is flattened
	req.Len(out, 4)
	req.Equal(domain.RoleUser, out[0].Role)
	req.Equal(domain.RoleUser, out[1].Role)
	req.Empty(out[1].ToolCalls)
	req.Contains(out[1].Content, "requested create_box")
	req.Equal(domain.RoleUser, out[2].Role)
	req.Contains(out[2].Content, "Response from calling tool create_box")
	req.Equal(domain.RoleAssistant, out[3].Role)
}

func TestAgent_RetrieveProxy(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	retriever := mocks.NewMockRetriever(ctrl)
	ctx := context.Background()

	// Given a retrieval proxy returning two chunks per call
	agent := New(Config{Name: "designer_aid", Kind: domain.KindRetrieve, Retriever: retriever, NResults: 2}, nil)
	gomock.InOrder(
		retriever.EXPECT().Retrieve(gomock.Any(), "plate with a hole", 2, 0).
			Return([]domain.Chunk{{Content: "cq.Workplane().box()"}, {Content: ".hole(5)"}}, nil),
		retriever.EXPECT().Retrieve(gomock.Any(), "plate with a hole", 2, 2).
			Return([]domain.Chunk{{Content: ".cboreHole(3)"}}, nil),
		retriever.EXPECT().Retrieve(gomock.Any(), "plate with a hole", 2, 3).
			Return(nil, nil),
	)

	// When the chat opens, the problem comes with the first chunks
	first, err := agent.InitialMessage(ctx, "plate with a hole")
	req.NoError(err)
	req.Contains(first.Content, "User's question is: plate with a hole")
	req.Contains(first.Content, ".hole(5)")

	// When the coder asks for more context, the next batch is sent
	reply, err := agent.GenerateReply(ctx, []domain.Message{domain.NewMessage("CadQuery_Code_Writer", domain.RoleAssistant, "UPDATE CONTEXT")})
	req.NoError(err)
	last, _ := reply.Last()
	req.Contains(last.Content, ".cboreHole(3)")

	// When the documentation is exhausted, the proxy terminates
	reply, err = agent.GenerateReply(ctx, []domain.Message{domain.NewMessage("CadQuery_Code_Writer", domain.RoleAssistant, "update context")})
	req.NoError(err)
	last, _ = reply.Last()
	req.Equal(domain.TerminationKeyword, last.Content)
}

func TestAgent_InitialMessageRejectsEmptyPrompt(t *testing.T) {
	req := require.New(t)
	agent := New(Config{Name: "User"}, nil)

	_, err := agent.InitialMessage(context.Background(), "   ")

	req.ErrorIs(err, errors.ErrEmptyPrompt)
}

func TestLoadImage(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	png := filepath.Join(dir, "drawing.png")
	req.NoError(os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))
	txt := filepath.Join(dir, "notes.txt")
	req.NoError(os.WriteFile(txt, []byte("not an image"), 0o644))

	img, err := LoadImage(png)
	req.NoError(err)
	req.Equal("image/png", img.MIME)

	_, err = LoadImage(txt)
	req.ErrorIs(err, errors.ErrUnsupportedImage)
}

func TestAgent_MultimodalTurnsTagsIntoImages(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	png := filepath.Join(dir, "drawing.png")
	req.NoError(os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))

	// Given a multimodal agent
	agent := New(Config{Name: "Drawing_Recognition_Agent", Multimodal: true}, nil)

	// When a message carries an image tag
	out := agent.llmMessages([]domain.Message{userMessage("Describe <img " + png + "> please")})

	// Then the image is attached and the tag replaced
	req.Len(out, 1)
	req.Len(out[0].Images, 1)
	req.Equal("Describe <image> please", out[0].Content)
}

type recorderStub struct {
	calls int
}

func (r *recorderStub) RecordLLMCall(domain.Usage, error) { r.calls++ }
