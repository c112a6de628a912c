package regime_classifier

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketregime/internal/domain/regime"
)

func tableOf(pattern string) *regime.Table {
	ls := labels(pattern)
	rows := make([]regime.Row, len(ls))
	for i, l := range ls {
		rows[i] = regime.Row{
			Timestamp:  testStart.Add(time.Duration(i) * time.Hour),
			Regime:     l,
			RegimeCode: l.Code(),
		}
	}
	return &regime.Table{Rows: rows}
}

func TestSummarize(t *testing.T) {
	s := Summarize(tableOf("UUSSSDU"))

	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 3, s.Counts[regime.Bull])
	assert.Equal(t, 3, s.Counts[regime.Sideways])
	assert.Equal(t, 1, s.Counts[regime.Bear])
	assert.InDelta(t, 100.0*3/7, s.Percent[regime.Bull], 1e-9)
	assert.InDelta(t, 100.0/7, s.Percent[regime.Bear], 1e-9)

	assert.InDelta(t, 1.5, s.AvgDuration[regime.Bull], 1e-12)
	assert.InDelta(t, 3.0, s.AvgDuration[regime.Sideways], 1e-12)
	assert.InDelta(t, 1.0, s.AvgDuration[regime.Bear], 1e-12)

	assert.Equal(t, []regime.Streak{
		{Regime: regime.Bull, Start: 0, Length: 2},
		{Regime: regime.Sideways, Start: 2, Length: 3},
		{Regime: regime.Bear, Start: 5, Length: 1},
		{Regime: regime.Bull, Start: 6, Length: 1},
	}, s.Streaks)
	assert.False(t, s.Empty())
}

func TestSummarize_AbsentRegime(t *testing.T) {
	s := Summarize(tableOf("SSSS"))

	assert.Equal(t, 0, s.Counts[regime.Bull])
	assert.Equal(t, 0.0, s.Percent[regime.Bull])
	assert.Equal(t, 0.0, s.AvgDuration[regime.Bear])
	assert.Equal(t, 100.0, s.Percent[regime.Sideways])
	assert.Equal(t, 4.0, s.AvgDuration[regime.Sideways])
}

func TestSummarize_Empty(t *testing.T) {
	assert.True(t, Summarize(&regime.Table{}).Empty())
	assert.True(t, Summarize(nil).Empty())
	assert.True(t, Summarize(tableOf("??")).Empty(), "no smoothed labels")
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteReport(&buf, Summarize(tableOf("UUSSSDU"))))

	expected := strings.Join([]string{
		"",
		"Regime distribution:",
		"  Bull    :      3 ( 42.9%)",
		"  Sideways:      3 ( 42.9%)",
		"  Bear    :      1 ( 14.3%)",
		"",
		"Average duration (bars):",
		"  Bull    :    1.5",
		"  Sideways:    3.0",
		"  Bear    :    1.0",
		"",
		"",
	}, "\n")
	assert.Equal(t, expected, buf.String())
}

func TestWriteReport_GroupsThousands(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteReport(&buf, Summarize(tableOf(strings.Repeat("U", 1234)))))

	assert.Contains(t, buf.String(), "  Bull    :  1,234 (100.0%)")
}

func TestWriteReport_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteReport(&buf, Summarize(nil)))

	assert.Equal(t, "No regime data to summarize.\n", buf.String())
}
