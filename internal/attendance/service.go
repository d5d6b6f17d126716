// Package attendance loads the attendance and directory sources through a
// shared cache and hands per-person timelines to the aggregations.
package attendance

import (
	"context"
	"log/slog"

	"presence/internal/cache"
	"presence/internal/directory"
	"presence/internal/presence"
)

// Cache keys.
const (
	KeyAttendance = "attendance"
	KeyDirectory  = "directory"
)

// Service serves cached source data to the HTTP layer and CLI.
type Service struct {
	records   *Repository
	directory *directory.Repository
	cache     *cache.Cache
}

// NewService wires the two sources to a cache. A nil cache gets a fresh one
// with the default TTL.
func NewService(records *Repository, dir *directory.Repository, c *cache.Cache) *Service {
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}
	return &Service{records: records, directory: dir, cache: c}
}

// AttendanceData returns every person's timeline, reparsing the source only
// when the cached copy is stale or was reset.
func (s *Service) AttendanceData(ctx context.Context) (Data, error) {
	return cache.Get(s.cache, KeyAttendance, func() (Data, error) {
		return s.records.Load(ctx)
	})
}

// DirectoryEntries returns the users of the metadata source in source order.
func (s *Service) DirectoryEntries(ctx context.Context) ([]directory.Entry, error) {
	return cache.Get(s.cache, KeyDirectory, func() ([]directory.Entry, error) {
		return s.directory.Load(ctx)
	})
}

// Timeline returns one person's timeline. An unknown id yields an empty
// timeline and false.
func (s *Service) Timeline(ctx context.Context, id int) (presence.Timeline, bool, error) {
	data, err := s.AttendanceData(ctx)
	if err != nil {
		return nil, false, err
	}
	tl, ok := data.Timeline(id)
	return tl, ok, nil
}

// Reset discards every cached parse.
func (s *Service) Reset() {
	s.cache.Reset()
	slog.Info("presence cache reset")
}

// Sources returns the attendance and directory file paths.
func (s *Service) Sources() (attendancePath, directoryPath string) {
	return s.records.Path(), s.directory.Path()
}
