package storage

import (
	"cad-lab/domain"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ArtifactRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewArtifactRepository(db *badger.DB, log *slog.Logger) *ArtifactRepository {
	return &ArtifactRepository{db: db, log: log}
}

// Store records an exported file under "artifact:{session}:{timestamp_padded}:{name}".
func (r *ArtifactRepository) Store(artifact domain.Artifact) error {
	key := fmt.Sprintf("artifact:%s:%019d:%s", artifact.SessionID, artifact.At.UnixNano(), artifact.Name)
	bytes, err := marshal(fromArtifact(artifact))
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", artifact.Name, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// List returns the artifacts of a session in export order.
func (r *ArtifactRepository) List(session uuid.UUID) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(fmt.Sprintf("artifact:%s:", session))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				fields, err := unmarshal(v)
				if err != nil {
					return err
				}
				artifact, err := toArtifact(fields)
				if err != nil {
					return err
				}
				artifacts = append(artifacts, artifact)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return artifacts, err
}
