package repo

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// skippedDirs are version-control metadata and dependency caches.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

// File is a repository file with its raw content.
type File struct {
	Path    string
	Content string
}

// FileList returns slash-separated paths relative to root, in lexical walk order.
func (a *Analyzer) FileList(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing files: %v", ErrAnalysis, err)
	}
	return files, nil
}

// ReadFiles reads the first limit files of the analysis in enumeration order.
// Unreadable and binary files are skipped. A limit of zero or less reads everything.
func (a *Analyzer) ReadFiles(an *Analysis, limit int) []File {
	paths := an.Files
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	out := make([]File, 0, len(paths))
	for _, rel := range paths {
		b, err := os.ReadFile(filepath.Join(an.LocalPath, filepath.FromSlash(rel)))
		if err != nil {
			slog.Warn("skipping unreadable file", "submission_id", an.SubmissionID, "file", rel, "error", err)
			continue
		}
		if bytes.IndexByte(b, 0) >= 0 {
			continue
		}
		out = append(out, File{Path: rel, Content: string(b)})
	}
	return out
}
