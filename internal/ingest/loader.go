package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	ExtPDF = ".pdf"
	ExtTXT = ".txt"
)

// TextExtractor turns a binary document into plain text
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// Loader reads every supported document from a fixed list of directories.
type Loader struct {
	dirs []string
	pdf  TextExtractor
}

func NewLoader(dirs []string, pdf TextExtractor) *Loader {
	return &Loader{dirs: dirs, pdf: pdf}
}

// Dirs returns the directories the loader reads from
func (l *Loader) Dirs() []string {
	return l.dirs
}

// Load returns one Document per readable file. Within each directory PDFs
// come first, then text files, each sorted by name. Missing directories are
// skipped and files that fail to extract are logged and skipped. When files
// exist but none can be read, Load fails with ErrNoReadableDocuments so the
// caller does not mistake the run for an empty corpus.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	found := 0

	for _, dir := range l.dirs {
		for _, ext := range []string{ExtPDF, ExtTXT} {
			paths, err := ListFiles(dir, ext)
			if err != nil {
				return nil, err
			}
			found += len(paths)

			for _, path := range paths {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				text, err := l.read(path, ext)
				if err != nil {
					log.Printf("ingest: skipping %s: %v", path, err)
					continue
				}
				docs = append(docs, domain.Document{
					Filename: filepath.Base(path),
					RawText:  text,
				})
			}
		}
	}

	if found > 0 && len(docs) == 0 {
		return nil, fmt.Errorf("%w: %d skipped", domain.ErrNoReadableDocuments, found)
	}
	return docs, nil
}

func (l *Loader) read(path, ext string) (string, error) {
	switch ext {
	case ExtPDF:
		if l.pdf == nil {
			return "", errors.New("no pdf extractor configured")
		}
		return l.pdf.ExtractText(path)
	case ExtTXT:
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(content), nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
}

// ListFiles returns the regular files in dir with the given extension
// (case-insensitive), sorted by name. A missing dir yields no files.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

// IsSupported reports whether the loader would pick up name
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ExtPDF || ext == ExtTXT
}
