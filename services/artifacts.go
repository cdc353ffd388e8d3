package services

import (
	"cad-lab/domain"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// CodeWriterName is the agent whose messages name the exported files.
const CodeWriterName = "CadQuery_Code_Writer"

var (
	stlName       = regexp.MustCompile(`"([^"]+\.stl)"`)
	cadExtensions = []string{".stl", ".step", ".dxf"}
)

// FindSTLPath returns the first STL file named by the last code writer message
// mentioning one, joined to workDir. It is empty when no message does.
func FindSTLPath(history []domain.Message, workDir string) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Name != CodeWriterName {
			continue
		}
		match := stlName.FindStringSubmatch(m.Text())
		if match == nil {
			continue
		}
		return filepath.Join(workDir, filepath.Base(match[1]))
	}
	return ""
}

// ScanArtifacts lists the CAD exports under workDir modified after since.
// since is truncated to the second for file systems with coarse timestamps.
func ScanArtifacts(workDir string, since time.Time) ([]domain.Artifact, error) {
	if _, err := os.Stat(workDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	since = since.Truncate(time.Second)
	var artifacts []domain.Artifact
	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if d.IsDir() || !lo.Contains(cadExtensions, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(since) {
			return nil
		}
		artifacts = append(artifacts, domain.Artifact{
			Name:   d.Name(),
			Path:   path,
			Format: strings.TrimPrefix(ext, "."),
			Size:   info.Size(),
			At:     info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(artifacts, func(i, j int) bool { return artifacts[i].At.Before(artifacts[j].At) })
	return artifacts, nil
}
