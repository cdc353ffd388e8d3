package executor

import (
	"cad-lab/errors"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const DefaultLang = "python"

// CodeBlock is a fenced block found in a message.
type CodeBlock struct {
	Lang string
	Code string
}

var (
	fencePattern    = regexp.MustCompile("(?s)```[ \\t]*([\\w+-]*)[ \\t]*\\r?\\n(.*?)\\r?\\n?[ \\t]*```")
	filenamePattern = regexp.MustCompile(`^\s*#\s*filename:\s*([^\s]+)`)
)

// ExtractCodeBlocks returns the fenced blocks of text in order.
// A block without a language is python.
func ExtractCodeBlocks(text string) []CodeBlock {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	blocks := make([]CodeBlock, 0, len(matches))
	for _, m := range matches {
		code := m[2]
		if strings.TrimSpace(code) == "" {
			continue
		}
		blocks = append(blocks, CodeBlock{Lang: normalizeLang(m[1]), Code: code})
	}
	return blocks
}

func normalizeLang(lang string) string {
	switch l := strings.ToLower(strings.TrimSpace(lang)); l {
	case "", "py", "python", "python3":
		return DefaultLang
	default:
		return l
	}
}

// FileName returns the file a block is saved as, relative to the work directory.
// The "# filename: x.py" hint on the first line wins over the content hash.
func FileName(code, lang string) (string, error) {
	firstLine, _, _ := strings.Cut(code, "\n")
	if m := filenamePattern.FindStringSubmatch(firstLine); m != nil {
		name := filepath.Clean(m[1])
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", errors.ErrUnsafeFilename, m[1])
		}
		return name, nil
	}
	sum := sha256.Sum256([]byte(code))
	return fmt.Sprintf("tmp_code_%s.%s", hex.EncodeToString(sum[:])[:32], extension(lang)), nil
}

func extension(lang string) string {
	if lang == DefaultLang {
		return "py"
	}
	return lang
}
