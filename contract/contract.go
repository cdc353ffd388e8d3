//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"cad-lab/domain"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Stop()
}

// Worker is a long running task. Recovering from its own failures is the
// supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

// Named lets a worker choose how it shows up in the logs.
type Named interface {
	Name() string
}

// GetWorkerName is the worker's own name, or its type name.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "nil"
	}
	if n, ok := w.(Named); ok {
		return n.Name()
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// MessageSink receives every message appended to a conversation.
type MessageSink interface {
	Consume(ctx context.Context, msg domain.Message) error
}

// HumanInput is the human side of a conversation (stdin, a test script...).
type HumanInput interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Retriever returns documentation chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, n, offset int) ([]domain.Chunk, error)
}

// ProcessTracker is told about child processes worth monitoring.
type ProcessTracker interface {
	Track(process domain.Process)
}

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(session uuid.UUID, cursor *string) ([]domain.Message, *string, error)
}

type ISessionRepository interface {
	Store(session domain.Session) error
	Get(id uuid.UUID) (domain.Session, error)
	List() ([]domain.Session, error)
}

type IArtifactRepository interface {
	Store(artifact domain.Artifact) error
	List(session uuid.UUID) ([]domain.Artifact, error)
}
