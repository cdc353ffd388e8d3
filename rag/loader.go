package rag

import (
	"cad-lab/domain/mimetypes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	"golang.org/x/text/encoding/htmlindex"
)

// DocExtensions are the documentation files worth indexing.
var DocExtensions = []string{".md", ".txt", ".rst", ".py", ".html"}

// Document is one source file of the documentation.
type Document struct {
	Source  string
	Content string
}

// LoadDocuments walks dir and reads every text file with a known extension.
// Files detected as binary are skipped.
func LoadDocuments(ctx context.Context, dir string, log *slog.Logger) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !lo.Contains(DocExtensions, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return fmt.Errorf("detect %s: %w", path, err)
		}
		if !isText(mt) {
			log.Debug("Skipping binary file", "path", path, "mime", mt.String())
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		text, ok := decodeText(content, mt.String())
		if !ok {
			log.Warn("Invalid characters replaced", "path", path, "mime", mt.String())
		}
		docs = append(docs, Document{Source: filepath.ToSlash(rel), Content: text})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if mimetypes.IsText(m.String()) {
			return true
		}
	}
	return false
}

// decodeText returns content as UTF-8, decoded from the detected charset when
// it is not UTF-8 already. ok is false when bytes had to be replaced.
func decodeText(content []byte, mediaType string) (text string, ok bool) {
	if utf8.Valid(content) {
		return string(content), true
	}
	if _, params, err := mime.ParseMediaType(mediaType); err == nil {
		if enc, err := htmlindex.Get(params["charset"]); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(content); err == nil && utf8.Valid(decoded) {
				return string(decoded), true
			}
		}
	}
	return strings.ToValidUTF8(string(content), "\uFFFD"), false
}
