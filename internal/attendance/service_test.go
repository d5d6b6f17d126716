package attendance

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/cache"
	"presence/internal/directory"
	"presence/internal/presence"
)

const testDataXML = "../../testdata/test_data.xml"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	b, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, b, 0o644))
}

// newMutableService copies the fixtures to a temp dir so tests can edit them.
func newMutableService(t *testing.T) (*Service, *fakeClock, string) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	xmlPath := filepath.Join(dir, "users.xml")
	copyFile(t, testDataCSV, csvPath)
	copyFile(t, testDataXML, xmlPath)

	clk := &fakeClock{now: time.Date(2013, 9, 16, 8, 0, 0, 0, time.UTC)}
	c := cache.New(10*time.Minute, cache.WithClock(clk.Now))
	svc := NewService(NewRepository(csvPath), directory.NewRepository(xmlPath), c)
	return svc, clk, csvPath
}

func appendRow(t *testing.T, path, row string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(row + "\n")
	require.NoError(t, err)
}

func TestService_AttendanceData_CachedWithinWindow(t *testing.T) {
	ctx := context.Background()
	svc, clk, csvPath := newMutableService(t)

	first, err := svc.AttendanceData(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11}, first.PersonIDs())

	appendRow(t, csvPath, "2,2013-09-16,09:00:00,17:00:00")
	clk.Advance(5 * time.Minute)

	second, err := svc.AttendanceData(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotContains(t, second, 2)
}

func TestService_AttendanceData_ObservesEditAfterReset(t *testing.T) {
	ctx := context.Background()
	svc, _, csvPath := newMutableService(t)

	_, err := svc.AttendanceData(ctx)
	require.NoError(t, err)
	appendRow(t, csvPath, "2,2013-09-16,09:00:00,17:00:00")

	svc.Reset()
	data, err := svc.AttendanceData(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 10, 11}, data.PersonIDs())
}

func TestService_AttendanceData_ObservesEditAfterWindow(t *testing.T) {
	ctx := context.Background()
	svc, clk, csvPath := newMutableService(t)

	_, err := svc.AttendanceData(ctx)
	require.NoError(t, err)
	appendRow(t, csvPath, "2,2013-09-16,09:00:00,17:00:00")

	clk.Advance(10 * time.Minute)
	data, err := svc.AttendanceData(ctx)
	require.NoError(t, err)
	assert.Contains(t, data, 2)
}

func TestService_DirectoryEntries(t *testing.T) {
	svc, _, _ := newMutableService(t)
	entries, err := svc.DirectoryEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, directory.Entry{
		PersonID:  10,
		Name:      "Maciej Z.",
		AvatarURL: "https://intranet.example:443/api/images/users/10",
	}, entries[0])
	assert.Equal(t, 11, entries[1].PersonID)
}

func TestService_Timeline_UnknownPerson(t *testing.T) {
	svc, _, _ := newMutableService(t)
	ctx := context.Background()

	tl10, ok, err := svc.Timeline(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	tl2, ok, err := svc.Timeline(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	buckets10 := presence.GroupByWeekday(tl10)
	nonEmpty := 0
	for _, b := range buckets10 {
		if len(b) > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, 3, nonEmpty)

	for _, b := range presence.GroupByWeekday(tl2) {
		assert.Empty(t, b)
	}
	se := presence.StartEndPresence(tl2)
	assert.Len(t, se, 7)
	for _, b := range se {
		assert.Empty(t, b.Start)
		assert.Empty(t, b.End)
	}
}

func TestService_SourceUnavailable(t *testing.T) {
	svc, _, csvPath := newMutableService(t)
	require.NoError(t, os.Remove(csvPath))

	_, err := svc.AttendanceData(context.Background())
	assert.ErrorIs(t, err, presence.ErrSourceUnavailable)

	_, _, err = svc.Timeline(context.Background(), 10)
	assert.ErrorIs(t, err, presence.ErrSourceUnavailable)
}

func TestService_SourceRemovedAfterCaching(t *testing.T) {
	svc, _, csvPath := newMutableService(t)
	ctx := context.Background()
	_, err := svc.AttendanceData(ctx)
	require.NoError(t, err)
	require.NoError(t, os.Remove(csvPath))

	// still served from cache until reset
	_, err = svc.AttendanceData(ctx)
	require.NoError(t, err)

	svc.Reset()
	_, err = svc.AttendanceData(ctx)
	assert.ErrorIs(t, err, presence.ErrSourceUnavailable)
}

func TestService_NilCacheGetsDefault(t *testing.T) {
	svc := NewService(NewRepository(testDataCSV), directory.NewRepository(testDataXML), nil)
	a, d := svc.Sources()
	assert.Equal(t, testDataCSV, a)
	assert.Equal(t, testDataXML, d)
	_, err := svc.AttendanceData(context.Background())
	require.NoError(t, err)
}
