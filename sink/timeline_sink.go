package sink

import (
	"cad-lab/domain"
	"context"
	"sync"

	"github.com/samber/lo"
)

// Timeline keeps the conversation in memory, in the order messages arrived.
type Timeline struct {
	mu       sync.RWMutex
	messages []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

func (t *Timeline) Consume(_ context.Context, msg domain.Message) error {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	return nil
}

func (t *Timeline) Snapshot() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.Message(nil), t.messages...)
}

// Speakers returns the authors in speaking order.
func (t *Timeline) Speakers() []string {
	return lo.Map(t.Snapshot(), func(m domain.Message, _ int) string { return m.Name })
}
