package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVRecordTrade(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)

	rec := sampleRecord("01JX1001")
	require.NoError(t, j.RecordTrade(rec))
	require.NoError(t, j.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "01JX1001", row[0])
	assert.Equal(t, "2025-06-01T12:30:00Z", row[1])
	assert.Equal(t, "open_long", row[2])
	assert.Equal(t, "EUR_USD", row[3])
	assert.Equal(t, "1.100000", row[4])
	assert.Equal(t, "25000", row[7])
	assert.Equal(t, "practice", row[8])
	assert.Equal(t, "success", row[9])
}

func TestCSVAppendSkipsHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")

	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleRecord("01JX1002")))
	require.NoError(t, j.Close())

	// Reopening an existing ledger must not write a second header row.
	j2, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j2.RecordTrade(sampleRecord("01JX1003")))
	require.NoError(t, j2.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "01JX1002", rows[1][0])
	assert.Equal(t, "01JX1003", rows[2][0])
}
