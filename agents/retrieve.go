package agents

import (
	"cad-lab/domain"
	"context"
	"fmt"
	"strings"
)

const retrievePrompt = `You're a retrieve augmented coding assistant. You answer the user's question based on your own knowledge and the context provided by the user.
If you can't answer the question with or without the current context, you should reply exactly ` + "`" + domain.UpdateContextKeyword + "`" + `.
For code generation, you must obey the following rules:
Rule 1. You MUST NOT install any packages because all the packages needed are already installed.
Rule 2. You must follow the formats below to write your code:
` + "```python\n# your code\n```" + `

User's question is: %s

Context is: %s
`

// asksForContext matches a reply opening or closing with UPDATE CONTEXT.
func asksForContext(content string) bool {
	upper := strings.ToUpper(strings.TrimSpace(content))
	head := upper
	if len(head) > 20 {
		head = head[:20]
	}
	return strings.Contains(head, domain.UpdateContextKeyword) ||
		strings.HasSuffix(upper, domain.UpdateContextKeyword)
}

// nextContext fetches the next batch of chunks for the current problem.
// Once the documentation is exhausted the proxy answers TERMINATE.
func (a *Agent) nextContext(ctx context.Context) (string, error) {
	a.mu.Lock()
	problem, offset := a.problem, a.offset
	a.mu.Unlock()

	chunks, err := a.cfg.Retriever.Retrieve(ctx, problem, a.cfg.NResults, offset)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	if len(chunks) == 0 && offset > 0 {
		a.log.Info("No more context, terminating")
		return domain.TerminationKeyword, nil
	}

	a.mu.Lock()
	a.offset = offset + len(chunks)
	a.mu.Unlock()
	a.log.Debug("Retrieved context", "chunks", len(chunks), "offset", offset)

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
		sb.WriteString("\n")
	}
	return fmt.Sprintf(retrievePrompt, problem, sb.String()), nil
}
