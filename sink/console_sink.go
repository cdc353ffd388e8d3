package sink

import (
	"cad-lab/domain"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
)

const separator = "--------------------------------------------------------------------------------"

var palette = []color.Color{color.FgCyan, color.FgGreen, color.FgYellow, color.FgMagenta, color.FgBlue, color.FgLightRed}

// ConsoleSink prints the conversation as it happens, one colour per speaker.
type ConsoleSink struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
}

func NewConsoleSink(out io.Writer, colours bool) *ConsoleSink {
	return &ConsoleSink{out: out, colours: colours}
}

func (c *ConsoleSink) Consume(_ context.Context, msg domain.Message) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s):\n\n", c.paint(msg.Name), msg.Role)
	if msg.Content != "" {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	for _, call := range msg.ToolCalls {
		fmt.Fprintf(&sb, "***** Suggested tool call (%s): %s *****\nArguments: %v\n", call.ID, call.Name, call.Arguments)
	}
	for _, res := range msg.ToolResults {
		header := fmt.Sprintf("***** Response from calling tool (%s) *****", res.CallID)
		if res.IsError {
			header = c.style(color.New(color.FgRed), header)
		}
		fmt.Fprintf(&sb, "%s\n%s\n", header, res.Content)
	}
	if len(msg.Images) > 0 {
		fmt.Fprintf(&sb, "[%d image(s)]\n", len(msg.Images))
	}
	sb.WriteString("\n")
	sb.WriteString(separator)
	sb.WriteString("\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, sb.String())
	return err
}

func (c *ConsoleSink) paint(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return c.style(color.New(palette[h.Sum32()%uint32(len(palette))], color.OpBold), name)
}

func (c *ConsoleSink) style(s color.Style, text string) string {
	if !c.colours {
		return text
	}
	return s.Render(text)
}
