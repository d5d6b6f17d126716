package attendance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/presence"
)

const (
	testDataCSV  = "../../testdata/test_data.csv"
	malformedCSV = "../../testdata/malformed.csv"
)

func date(y int, m time.Month, d int) presence.Date {
	return presence.Date{Year: y, Month: m, Day: d}
}

func TestRepository_Load(t *testing.T) {
	data, err := NewRepository(testDataCSV).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{10, 11}, data.PersonIDs())
	require.Contains(t, data[10], date(2013, time.September, 10))
	assert.Equal(t, presence.TimeOfDay{Hour: 9, Minute: 39, Second: 5}, data[10][date(2013, time.September, 10)].Start)
	assert.Equal(t, presence.TimeOfDay{Hour: 17, Minute: 59, Second: 52}, data[10][date(2013, time.September, 10)].End)
	assert.Len(t, data[10], 3)
	assert.Len(t, data[11], 6)
}

func TestRepository_Load_GroupedByWeekday(t *testing.T) {
	data, err := NewRepository(testDataCSV).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [presence.DaysInWeek][]int{{}, {30047}, {24465}, {23705}, {}, {}, {}}, presence.GroupByWeekday(data[10]))
	assert.Equal(t, [presence.DaysInWeek][]int{{24123}, {16564}, {25321}, {22969, 22999}, {6426}, {}, {}}, presence.GroupByWeekday(data[11]))

	want := [presence.DaysInWeek]presence.StartEnd{
		{Start: []int{}, End: []int{}},
		{Start: []int{34745}, End: []int{64792}},
		{Start: []int{33592}, End: []int{58057}},
		{Start: []int{38926}, End: []int{62631}},
		{Start: []int{}, End: []int{}},
		{Start: []int{}, End: []int{}},
		{Start: []int{}, End: []int{}},
	}
	assert.Equal(t, want, presence.StartEndPresence(data[10]))
}

func TestRepository_Load_Missing(t *testing.T) {
	_, err := NewRepository(filepath.Join(t.TempDir(), "nope.csv")).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, presence.ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRepository_Load_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRepository(testDataCSV).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRecords_SkipsMalformedRows(t *testing.T) {
	f, err := os.Open(malformedCSV)
	require.NoError(t, err)
	defer f.Close()

	data, report, err := ParseRecords(f)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accepted)
	lines := make([]int, 0, len(report.Skipped))
	for _, s := range report.Skipped {
		lines = append(lines, s.Line)
		assert.NotEmpty(t, s.Reason)
	}
	assert.Equal(t, []int{4, 5, 6, 7, 8, 11}, lines)

	// last row for a person and date wins
	require.Len(t, data[10], 1)
	assert.Equal(t, presence.Presence{
		Start: presence.TimeOfDay{Hour: 8},
		End:   presence.TimeOfDay{Hour: 16},
	}, data[10][date(2013, time.September, 10)])

	// exit before entry is kept as is
	tl, ok := data.Timeline(12)
	require.True(t, ok)
	assert.Equal(t, -57600, presence.GroupByWeekday(tl)[2][0])
}

func TestParseRecords_HeaderOnlyAndEmpty(t *testing.T) {
	for _, src := range []string{"", "user_id,date,start,end\n"} {
		data, report, err := ParseRecords(strings.NewReader(src))
		require.NoError(t, err)
		assert.Empty(t, data)
		assert.Zero(t, report.Accepted)
		assert.Empty(t, report.Skipped)
	}
}

func TestParseRecords_HeaderIsAlwaysSkipped(t *testing.T) {
	src := "10,2013-09-10,09:00:00,17:00:00\n10,2013-09-11,09:00:00,17:00:00\n"
	data, report, err := ParseRecords(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)
	assert.NotContains(t, data[10], date(2013, time.September, 10))
	assert.Contains(t, data[10], date(2013, time.September, 11))
}

func TestParseRecords_TrimsSpaceAndCRLF(t *testing.T) {
	src := "user_id,date,start,end\r\n 10 , 2013-09-10 , 09:00:00 , 17:00:00 \r\n"
	data, report, err := ParseRecords(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 28800, presence.GroupByWeekday(data[10])[1][0])
}

func TestParseRecords_BadQuotingIsSkipped(t *testing.T) {
	src := "user_id,date,start,end\n10,2013-09\"-10,09:00:00,17:00:00\n10,2013-09-11,09:00:00,17:00:00\n"
	data, report, err := ParseRecords(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, 2, report.Skipped[0].Line)
	assert.Len(t, data[10], 1)
}

func TestParseRecords_OpeningQuoteOnlyCostsItsLine(t *testing.T) {
	src := "user_id,date,start,end\n" +
		"10,\"2013-09-10,09:00:00,17:00:00\n" +
		"10,2013-09-11,09:00:00,17:00:00\n" +
		"11,2013-09-11,08:00:00,16:00:00\n" +
		"\"12,2013-09-12,10:00:00,18:00:00\n" +
		"12,2013-09-13,10:00:00,18:00:00\n"
	data, report, err := ParseRecords(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accepted)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 2, report.Skipped[0].Line)
	assert.Equal(t, 5, report.Skipped[1].Line)
	assert.Equal(t, []int{10, 11, 12}, data.PersonIDs())
	assert.Contains(t, data[10], date(2013, time.September, 11))
	assert.NotContains(t, data[10], date(2013, time.September, 10))
}

func TestParseRecords_UniquePerPersonDate(t *testing.T) {
	var b strings.Builder
	b.WriteString("user_id,date,start,end\n")
	for i := 0; i < 5; i++ {
		b.WriteString("7,2013-09-10,09:00:0")
		b.WriteByte(byte('0' + i))
		b.WriteString(",17:00:00\n")
	}
	data, report, err := ParseRecords(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 5, report.Accepted)
	require.Len(t, data[7], 1)
	assert.Equal(t, 4, data[7][date(2013, time.September, 10)].Start.Second)
}

func TestData_TimelineUnknown(t *testing.T) {
	tl, ok := Data{}.Timeline(2)
	assert.False(t, ok)
	assert.NotNil(t, tl)
	assert.Empty(t, tl)
	for _, b := range presence.GroupByWeekday(tl) {
		assert.Empty(t, b)
	}
}
