package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/ledger"
)

func sampleRecords() []ledger.TradeRecord {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []ledger.TradeRecord{
		{
			ID:           "t1",
			Timestamp:    base,
			TokenAddress: "0xaaa",
			Action:       "open",
			StakeUSD:     300,
			Price:        0.5,
		},
		{
			ID:           "t2",
			Timestamp:    base.Add(2 * time.Hour),
			TokenAddress: "0xaaa",
			Action:       "close",
			StakeUSD:     300,
			Price:        2.5,
			PnL:          1200,
			ExitReason:   domain.ExitTakeProfit,
			HoldTime:     "2h0m",
		},
		{
			ID:           "t3",
			Timestamp:    base.Add(3 * time.Hour),
			TokenAddress: "0xbbb",
			Action:       "open",
			StakeUSD:     150,
			Price:        1.0,
		},
	}
}

func TestExportCSVWithActionFilter(t *testing.T) {
	dir := t.TempDir()
	exporter := NewTradeExporter(zap.NewNop())

	path, err := exporter.Export(sampleRecords(), ledger.Stats{}, Options{
		Format:       FormatCSV,
		ActionFilter: "close",
		OutputDir:    dir,
	})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one close")
	assert.Equal(t, "t2", rows[1][0])
	assert.Equal(t, "close", rows[1][4])
	assert.Equal(t, "take_profit", rows[1][9])
}

func TestExportJSONIncludesSummary(t *testing.T) {
	dir := t.TempDir()
	exporter := NewTradeExporter(zap.NewNop())

	stats := ledger.Stats{TotalCloses: 1, Wins: 1, WinRate: 100, RealizedPnL: 1200}
	path, err := exporter.Export(sampleRecords(), stats, Options{
		Format:    FormatJSON,
		OutputDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload struct {
		TradeCount int                  `json:"trade_count"`
		Trades     []ledger.TradeRecord `json:"trades"`
		Summary    ledger.Stats         `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, 3, payload.TradeCount)
	assert.InDelta(t, 1200.0, payload.Summary.RealizedPnL, 0.001)
}

func TestExportNoMatchesErrors(t *testing.T) {
	exporter := NewTradeExporter(zap.NewNop())
	_, err := exporter.Export(sampleRecords(), ledger.Stats{}, Options{
		Format:      FormatCSV,
		TokenFilter: "0xmissing",
		OutputDir:   t.TempDir(),
	})
	assert.Error(t, err)
}

func TestExportTokenAndTimeFilters(t *testing.T) {
	dir := t.TempDir()
	exporter := NewTradeExporter(zap.NewNop())

	path, err := exporter.Export(sampleRecords(), ledger.Stats{}, Options{
		Format:      FormatCSV,
		TokenFilter: "0xaaa",
		StartTime:   time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
		OutputDir:   dir,
	})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "t2", rows[1][0])
}
