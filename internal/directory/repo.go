package directory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"presence/internal/metrics"
	"presence/internal/presence"
)

const sourceName = "directory"

// Repository reads the directory document from an XML file.
type Repository struct {
	path string
}

// NewRepository creates a repo over the XML at path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the source file location.
func (r *Repository) Path() string { return r.path }

// Load parses the document and returns its users in source order.
func (r *Repository) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open directory %s: %w", presence.ErrSourceUnavailable, r.path, err)
	}
	defer f.Close()

	dir, report, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", r.path, err)
	}
	for _, s := range report.Skipped {
		slog.Debug("skipped directory user", "path", r.path, "line", s.Line, "reason", s.Reason)
	}
	metrics.RecordsSkipped.WithLabelValues(sourceName).Add(float64(len(report.Skipped)))
	metrics.SourceLoadSeconds.WithLabelValues(sourceName).Observe(time.Since(start).Seconds())
	slog.Info("directory loaded", "path", r.path, "server", dir.Server.BaseURL(), "users", len(dir.Entries), "skipped", len(report.Skipped))
	return dir.Entries, nil
}
