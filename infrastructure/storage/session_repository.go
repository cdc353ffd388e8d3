package storage

import (
	"cad-lab/domain"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const sessionPrefix = "session:"

type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log}
}

// Store creates or replaces the session record.
func (r *SessionRepository) Store(session domain.Session) error {
	bytes, err := marshal(fromSession(session))
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionPrefix+session.ID.String()), bytes)
	})
}

func (r *SessionRepository) Get(id uuid.UUID) (domain.Session, error) {
	var session domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionPrefix + id.String()))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			fields, err := unmarshal(v)
			if err != nil {
				return err
			}
			session, err = toSession(fields)
			return err
		})
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	return session, nil
}

// List returns every session, the most recently started first.
func (r *SessionRepository) List() ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(sessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				fields, err := unmarshal(v)
				if err != nil {
					return err
				}
				session, err := toSession(fields)
				if err != nil {
					return err
				}
				sessions = append(sessions, session)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}
