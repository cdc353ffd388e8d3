package internal

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const (
	defaultPrefix    = "session:"
	defaultPageLimit = 200
)

// InspectRow is one store record decoded for display.
type InspectRow struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	EntityID  string `json:"entity_id"`
	Namespace string `json:"namespace"`
	Detail    string `json:"detail"`
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type inspectPage struct {
	Prefix string         `json:"prefix"`
	Items  []InspectRow   `json:"items"`
	Next   string         `json:"next,omitempty"`
	Stats  map[string]any `json:"stats,omitempty"`
}

// Inspector pages through the badger store by key prefix.
type Inspector struct {
	db     *badger.DB
	mapper RowMapper
	stats  StatsProvider
	limit  int
	tmpl   *template.Template
}

type InspectorOption func(*Inspector)

func WithMapper(mapper RowMapper) InspectorOption {
	return func(i *Inspector) { i.mapper = mapper }
}

func WithStats(stats StatsProvider) InspectorOption {
	return func(i *Inspector) { i.stats = stats }
}

// WithPageLimit caps the rows of one page, 0 lifts the cap.
func WithPageLimit(limit int) InspectorOption {
	return func(i *Inspector) { i.limit = limit }
}

func NewInspector(db *badger.DB, opts ...InspectorOption) *Inspector {
	i := &Inspector{
		db:     db,
		mapper: DefaultMapper,
		limit:  defaultPageLimit,
		tmpl:   template.Must(template.ParseFS(templatesFS, "inspect.html")),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Scan returns the records under prefix, starting after the key `after`.
// next is the key to resume from when the page is full, empty otherwise.
func (i *Inspector) Scan(prefix, after string, limit int) (rows []InspectRow, next string, err error) {
	err = i.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		start := []byte(prefix)
		if after != "" {
			start = []byte(after)
		}
		for it.Seek(start); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if key == after {
				continue
			}
			if limit > 0 && len(rows) == limit {
				next = rows[len(rows)-1].Key
				return nil
			}
			if err := item.Value(func(val []byte) error {
				rows = append(rows, i.mapper(key, val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return rows, next, err
}

// ServeHTTP renders a page as HTML, or as JSON with ?format=json.
// Query parameters are prefix and after.
func (i *Inspector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := inspectPage{Prefix: query.Get("prefix")}
	if page.Prefix == "" {
		page.Prefix = defaultPrefix
	}
	if i.stats != nil {
		page.Stats = i.stats()
	}

	var err error
	page.Items, page.Next, err = i.Scan(page.Prefix, query.Get("after"), i.limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if query.Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = i.tmpl.Execute(w, page)
}

// ServeInspector serves the inspector on addr in the background. The caller
// owns the returned server and shuts it down.
func ServeInspector(inspector *Inspector, addr, endpoint string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET "+endpoint, inspector)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Inspector stopped", "error", err)
		}
	}()
	return srv
}

// DefaultMapper fills a row from a "{type}:{namespace}:{timestamp}:{id}" key.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.SplitN(key, ":", 4)
	row := InspectRow{
		Key:       key,
		Type:      strings.ToUpper(parts[0]),
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "default",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) > 1 {
		row.Namespace = parts[1]
	}
	if len(parts) == 4 {
		if nanos, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, nanos).UTC().Format(time.TimeOnly)
		}
		row.EntityID = parts[3]
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	}
	return row
}
