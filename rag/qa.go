package rag

import (
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/llm"
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultK = 4

	qaPrompt = "You are an assistant for question-answering tasks. " +
		"Use the following pieces of retrieved context to answer the question. " +
		"If you don't know the answer, say that you don't know.\n\n%s"
)

// Answer is the reply of a documentation question with the chunks it was grounded on.
type Answer struct {
	Text    string
	Sources []domain.Chunk
	Usage   domain.Usage
}

// QA answers questions about the documentation in a single model call.
type QA struct {
	store    *Store
	provider llm.Provider
	k        int
}

func NewQA(store *Store, provider llm.Provider, k int) *QA {
	if k <= 0 {
		k = DefaultK
	}
	return &QA{store: store, provider: provider, k: k}
}

func (q *QA) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, errors.ErrEmptyPrompt
	}
	chunks, err := q.store.Query(ctx, question, q.k)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieval failed: %w", err)
	}
	retrieved := strings.Join(lo.Map(chunks, func(c domain.Chunk, _ int) string { return c.Content }), "\n\n")
	res, err := q.provider.Complete(ctx, llm.Request{
		System:   fmt.Sprintf(qaPrompt, retrieved),
		Messages: []domain.Message{domain.NewMessage("user", domain.RoleUser, question)},
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: res.Content, Sources: chunks, Usage: res.Usage}, nil
}
