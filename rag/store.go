// Package rag indexes the CadQuery documentation and retrieves the chunks
// relevant to a design problem.
package rag

import (
	"cad-lab/domain"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DefaultCollection = "cadquery"
	// Full text matches re-ranked per query. Pages are cut from this one list,
	// so chunks past it are never returned.
	rankWindow = 256
)

// Store keeps chunk bodies in badger and a full text index of them in bluge.
// Results are ranked by an even blend of normalised BM25 and term vector cosine.
type Store struct {
	db         *badger.DB
	index      *bluge.Writer
	collection string
	vectorizer *Vectorizer
	log        *slog.Logger
	owned      bool
}

func NewStore(db *badger.DB, index *bluge.Writer, collection string, log *slog.Logger) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		db:         db,
		index:      index,
		collection: collection,
		vectorizer: NewVectorizer(DefaultFeatures),
		log:        log.With("collection", collection),
	}
}

// Open creates or reopens a store persisted under dir.
func Open(dir, collection string, log *slog.Logger) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(filepath.Join(dir, "chunks")).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	index, err := bluge.OpenWriter(bluge.DefaultConfig(filepath.Join(dir, "index")))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	s := NewStore(db, index, collection, log)
	s.owned = true
	return s, nil
}

func (s *Store) Collection() string {
	return s.collection
}

func (s *Store) prefix() []byte {
	return []byte(fmt.Sprintf("chunk:%s:", s.collection))
}

func (s *Store) key(id string) []byte {
	return []byte(fmt.Sprintf("chunk:%s:%s", s.collection, id))
}

// Count returns the number of chunks in the collection.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := s.prefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Exists reports whether the collection was already built.
func (s *Store) Exists() (bool, error) {
	count, err := s.Count()
	return count > 0, err
}

// Add stores and indexes chunks. Chunks with a known id are replaced.
func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Lang == "" {
			c.Lang = whatlanggo.Detect(c.Content).Lang.Iso6391()
		}
		data, err := encodeChunk(c)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %s: %w", c.ID, err)
		}
		if err := wb.Set(s.key(c.ID), data); err != nil {
			return err
		}
		doc := bluge.NewDocument(s.docID(c.ID)).
			AddField(bluge.NewKeywordField("collection", s.collection)).
			AddField(bluge.NewKeywordField("chunk", c.ID).StoreValue()).
			AddField(bluge.NewKeywordField("source", c.Source).StoreValue()).
			AddField(bluge.NewKeywordField("lang", c.Lang)).
			AddField(bluge.NewTextField("content", c.Content))
		batch.Update(doc.ID(), doc)
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	s.log.Debug("Chunks added", "count", len(chunks))
	return nil
}

func (s *Store) docID(id string) string {
	return s.collection + "/" + id
}

// Query returns the n chunks closest to text.
func (s *Store) Query(ctx context.Context, text string, n int) ([]domain.Chunk, error) {
	return s.QueryPage(ctx, text, n, 0)
}

// QueryPage returns n chunks after skipping the offset best ones.
// Every page of a query is cut from the same ranking.
func (s *Store) QueryPage(ctx context.Context, text string, n, offset int) ([]domain.Chunk, error) {
	if n <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	ranked, err := s.rank(ctx, text)
	if err != nil {
		return nil, err
	}
	offset = max(offset, 0)
	if offset >= len(ranked) {
		return nil, nil
	}
	return ranked[offset:min(offset+n, len(ranked))], nil
}

// rank orders the best full text matches of text by blended score.
func (s *Store) rank(ctx context.Context, text string) ([]domain.Chunk, error) {
	hits, err := s.search(ctx, text, rankWindow)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	best := lo.MaxBy(hits, func(a, b hit) bool { return a.score > b.score }).score
	query := s.vectorizer.Features(text)
	chunks := make([]domain.Chunk, 0, len(hits))
	for _, h := range hits {
		c, err := s.get(h.id)
		if err != nil {
			return nil, err
		}
		bm25 := 0.0
		if best > 0 {
			bm25 = h.score / best
		}
		c.Score = 0.5*bm25 + 0.5*Cosine(query, s.vectorizer.Features(c.Content))
		chunks = append(chunks, c)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score == chunks[j].Score {
			return chunks[i].ID < chunks[j].ID
		}
		return chunks[i].Score > chunks[j].Score
	})
	return chunks, nil
}

// Retrieve serves the retrieve proxy agents.
func (s *Store) Retrieve(ctx context.Context, query string, n, offset int) ([]domain.Chunk, error) {
	return s.QueryPage(ctx, query, n, offset)
}

type hit struct {
	id    string
	score float64
}

func (s *Store) search(ctx context.Context, text string, size int) ([]hit, error) {
	reader, err := s.index.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(s.collection).SetField("collection")).
		AddMust(bluge.NewMatchQuery(text).SetField("content"))
	dmi, err := reader.Search(ctx, bluge.NewTopNSearch(size, q))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var hits []hit
	match, err := dmi.Next()
	for err == nil && match != nil {
		h := hit{score: match.Score}
		if err := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "chunk" {
				h.id = string(value)
			}
			return true
		}); err != nil {
			return nil, err
		}
		if h.id != "" {
			hits = append(hits, h)
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("search iteration failed: %w", err)
	}
	return hits, nil
}

func (s *Store) get(id string) (domain.Chunk, error) {
	var c domain.Chunk
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			c, err = DecodeChunk(v)
			return err
		})
	})
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, err)
	}
	return c, nil
}

// Close releases the database and the index when the store opened them.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	s.log.Info("Closing Bluge...")
	indexErr := s.index.Close()
	s.log.Info("Closing BadgerDB...")
	if err := s.db.Close(); err != nil {
		return err
	}
	return indexErr
}

func encodeChunk(c domain.Chunk) ([]byte, error) {
	st, err := structpb.NewStruct(map[string]any{
		"id":      strings.ToValidUTF8(c.ID, "\uFFFD"),
		"source":  strings.ToValidUTF8(c.Source, "\uFFFD"),
		"lang":    c.Lang,
		"content": strings.ToValidUTF8(c.Content, "\uFFFD"),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

// DecodeChunk reads a stored chunk value.
func DecodeChunk(data []byte) (domain.Chunk, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return domain.Chunk{}, fmt.Errorf("failed to unmarshal chunk: %w", err)
	}
	f := st.GetFields()
	return domain.Chunk{
		ID:      f["id"].GetStringValue(),
		Source:  f["source"].GetStringValue(),
		Lang:    f["lang"].GetStringValue(),
		Content: f["content"].GetStringValue(),
	}, nil
}
