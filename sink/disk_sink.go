package sink

import (
	"cad-lab/contract"
	"cad-lab/domain"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// DiskSink writes the transcript of a conversation to the message repository.
type DiskSink struct {
	repository contract.IMessageRepository
	log        *slog.Logger
	stored     *atomic.Int64
}

func NewDiskSink(repository contract.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log, stored: &atomic.Int64{}}
}

func (d DiskSink) Consume(_ context.Context, msg domain.Message) error {
	if err := d.repository.StoreMessage(msg); err != nil {
		return fmt.Errorf("store message %s of session %s: %w", msg.ID, msg.SessionID, err)
	}
	n := d.stored.Add(1)
	d.log.Debug("Message stored", "name", msg.Name, "role", msg.Role, "position", n)
	return nil
}

// Stored is the number of messages written so far.
func (d DiskSink) Stored() int64 {
	return d.stored.Load()
}
