package service

import (
	"log"
	"os"
	"time"

	"github.com/cloo-solutions/docqa/internal/ingest"
)

// ArtifactClock reports when the index artifact was last written
type ArtifactClock interface {
	ModTime() (time.Time, bool)
}

// StalenessDetector compares the artifact mtime with the newest PDF mtime.
// It does not hash content: an edit that keeps the mtime is missed, text
// files are not considered, and deleting documents does not mark the index
// stale.
type StalenessDetector struct {
	artifact ArtifactClock
	dirs     []string
}

func NewStalenessDetector(artifact ArtifactClock, dirs []string) *StalenessDetector {
	return &StalenessDetector{artifact: artifact, dirs: dirs}
}

// NeedsRebuild is true when the artifact is missing or older than a PDF
func (d *StalenessDetector) NeedsRebuild() bool {
	built, ok := d.artifact.ModTime()
	if !ok {
		return true
	}

	newest, ok := d.NewestSource()
	if !ok {
		return false
	}
	return built.Before(newest)
}

// NewestSource returns the most recent PDF mtime across the watched dirs
func (d *StalenessDetector) NewestSource() (time.Time, bool) {
	var newest time.Time
	found := false

	for _, dir := range d.dirs {
		paths, err := ingest.ListFiles(dir, ingest.ExtPDF)
		if err != nil {
			log.Printf("staleness: %v", err)
			continue
		}
		for _, path := range paths {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if !found || info.ModTime().After(newest) {
				newest = info.ModTime()
				found = true
			}
		}
	}

	return newest, found
}
