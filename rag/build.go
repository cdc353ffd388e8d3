package rag

import (
	"cad-lab/domain"
	"context"
	"fmt"
)

// Build indexes the documentation under docsDir unless the collection already
// holds chunks, in which case the persisted collection is loaded as is.
// It returns the number of chunks available.
func (s *Store) Build(ctx context.Context, docsDir string, splitter Splitter) (int, error) {
	exists, err := s.Exists()
	if err != nil {
		return 0, err
	}
	if exists {
		count, err := s.Count()
		if err != nil {
			return 0, err
		}
		s.log.Info("Loading existing collection", "chunks", count)
		return count, nil
	}

	docs, err := LoadDocuments(ctx, docsDir, s.log)
	if err != nil {
		return 0, fmt.Errorf("failed to load documentation: %w", err)
	}
	var chunks []domain.Chunk
	for _, doc := range docs {
		for i, part := range splitter.Split(doc.Content) {
			chunks = append(chunks, domain.Chunk{
				ID:      fmt.Sprintf("%s#%04d", doc.Source, i),
				Source:  doc.Source,
				Content: part,
			})
		}
	}
	if err := s.Add(ctx, chunks); err != nil {
		return 0, err
	}
	s.log.Info("Collection created", "documents", len(docs), "chunks", len(chunks))
	return len(chunks), nil
}
