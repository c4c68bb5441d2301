package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/ingest"
)

// DocumentMirror copies documents to remote storage
type DocumentMirror interface {
	UploadDocument(ctx context.Context, localPath, filename string) error
	DeleteDocument(ctx context.Context, filename string) error
	DownloadAll(ctx context.Context, dir string) ([]string, error)
}

// Rebuilder rebuilds the index
type Rebuilder interface {
	Rebuild(ctx context.Context) (*RebuildResult, error)
}

type DocumentInfo struct {
	Name     string
	Size     int64
	Uploaded time.Time
}

type Upload struct {
	Filename string
	Content  io.Reader
}

type UploadResult struct {
	Files   []string
	Rebuild *RebuildResult
}

// DocumentService manages the PDFs in the upload directory
type DocumentService struct {
	dir    string
	mirror DocumentMirror
	index  Rebuilder
}

// NewDocumentService creates a service; mirror may be nil
func NewDocumentService(dir string, mirror DocumentMirror, index Rebuilder) *DocumentService {
	return &DocumentService{dir: dir, mirror: mirror, index: index}
}

// Dir returns the upload directory
func (s *DocumentService) Dir() string {
	return s.dir
}

// ValidateFilename accepts bare PDF file names only
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	if !strings.EqualFold(filepath.Ext(name), ingest.ExtPDF) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, name)
	}
	return nil
}

// Upload saves the files, rebuilds the index and then mirrors them. If
// saving or rebuilding fails, the saved files are removed again and nothing
// is mirrored.
func (s *DocumentService) Upload(ctx context.Context, uploads []Upload) (*UploadResult, error) {
	if len(uploads) == 0 {
		return nil, domain.ErrNoFilesUploaded
	}
	for _, u := range uploads {
		if err := ValidateFilename(u.Filename); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	var saved []string
	cleanup := func() {
		for _, name := range saved {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Printf("documents: failed to remove %s: %v", name, err)
			}
		}
	}

	for _, u := range uploads {
		if err := s.save(u); err != nil {
			cleanup()
			return nil, err
		}
		saved = append(saved, u.Filename)
	}

	result, err := s.index.Rebuild(ctx)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("error processing files: %w", err)
	}

	// Mirrored only once indexed; a rejected upload must not come back on
	// the next remote sync.
	if s.mirror != nil {
		for _, name := range saved {
			if err := s.mirror.UploadDocument(ctx, filepath.Join(s.dir, name), name); err != nil {
				log.Printf("documents: mirror upload failed: %v", err)
			}
		}
	}

	log.Printf("documents: uploaded and indexed %d files", len(saved))
	return &UploadResult{Files: saved, Rebuild: result}, nil
}

func (s *DocumentService) save(u Upload) error {
	path := filepath.Join(s.dir, u.Filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", domain.ErrStorageOperationFail, u.Filename, err)
	}
	if _, err := io.Copy(f, u.Content); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: write %s: %w", domain.ErrStorageOperationFail, u.Filename, err)
	}
	return f.Close()
}

// List returns the PDFs in the upload directory sorted by name
func (s *DocumentService) List() ([]DocumentInfo, error) {
	paths, err := ingest.ListFiles(s.dir, ingest.ExtPDF)
	if err != nil {
		return nil, err
	}

	docs := make([]DocumentInfo, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		docs = append(docs, DocumentInfo{
			Name:     filepath.Base(path),
			Size:     info.Size(),
			Uploaded: info.ModTime(),
		})
	}
	return docs, nil
}

// Delete removes a document and rebuilds the index. Deleting the last
// document is not an error.
func (s *DocumentService) Delete(ctx context.Context, name string) error {
	if err := ValidateFilename(name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrFileNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}

	if s.mirror != nil {
		if err := s.mirror.DeleteDocument(ctx, name); err != nil {
			log.Printf("documents: mirror delete failed: %v", err)
		}
	}

	if _, err := s.index.Rebuild(ctx); err != nil && !errors.Is(err, domain.ErrNoDocuments) {
		return fmt.Errorf("file deleted but reindex failed: %w", err)
	}
	return nil
}

// SyncFromRemote downloads every mirrored document into the upload directory
func (s *DocumentService) SyncFromRemote(ctx context.Context) ([]string, error) {
	if s.mirror == nil {
		return nil, nil
	}
	names, err := s.mirror.DownloadAll(ctx, s.dir)
	if err != nil {
		return nil, err
	}
	log.Printf("documents: synced %d files from remote storage", len(names))
	return names, nil
}
