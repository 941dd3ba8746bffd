package ledger

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/logger"
)

// TradeRecord is one row of the trade history: an open or a close.
type TradeRecord struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	SourceWallet string            `json:"source_wallet"`
	TokenAddress string            `json:"token_address"`
	Action       string            `json:"action"` // "open" or "close"
	StakeUSD     float64           `json:"stake_usd"`
	Quantity     float64           `json:"quantity"`
	Price        float64           `json:"price"`
	TxHash       string            `json:"tx_hash"`
	ExitReason   domain.ExitReason `json:"exit_reason,omitempty"`
	EntryPrice   float64           `json:"entry_price,omitempty"`
	PnL          float64           `json:"pnl,omitempty"`
	PnLPercent   float64           `json:"pnl_percent,omitempty"`
	HoldTime     string            `json:"hold_time,omitempty"`
}

func (r *TradeRecord) toCSV() []string {
	return []string{
		r.ID,
		r.Timestamp.Format(time.RFC3339),
		r.SourceWallet,
		r.TokenAddress,
		r.Action,
		formatFloat(r.StakeUSD),
		formatFloat(r.Quantity),
		formatFloat(r.Price),
		r.TxHash,
		string(r.ExitReason),
		formatFloat(r.EntryPrice),
		formatFloat(r.PnL),
		formatFloat(r.PnLPercent),
		r.HoldTime,
	}
}

func historyHeaders() []string {
	return []string{
		"id",
		"timestamp",
		"source_wallet",
		"token_address",
		"action",
		"stake_usd",
		"quantity",
		"price",
		"tx_hash",
		"exit_reason",
		"entry_price",
		"pnl",
		"pnl_percent",
		"hold_time",
	}
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return fmt.Sprintf("%.6f", f)
}

// formatHoldTime renders a duration the way a human reads a trade log.
func formatHoldTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd%dh", days, int(d.Hours())%24)
}

// History appends trade records to a CSV file and keeps a bounded
// in-memory tail for statistics.
type History struct {
	mu        sync.Mutex
	csvWriter *logger.SafeCSVWriter
	records   []TradeRecord
	maxRecs   int
	logger    *zap.Logger

	totalCloses int
	wins        int
	realizedPnL float64
}

// NewHistory opens (or creates) the trade CSV under logDir/trades.
func NewHistory(logDir string, maxRecords int, zapLogger *zap.Logger) (*History, error) {
	csvPath := filepath.Join(logDir, "trades",
		fmt.Sprintf("trades_%s.csv", time.Now().Format("20060102_150405")))

	csvWriter, err := logger.NewSafeCSVWriter(csvPath, historyHeaders(), 30*time.Second, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade CSV writer: %w", err)
	}

	zapLogger.Info("Trade history initialized", zap.String("csv_file", csvPath))

	return &History{
		csvWriter: csvWriter,
		records:   make([]TradeRecord, 0, maxRecords),
		maxRecs:   maxRecords,
		logger:    zapLogger,
	}, nil
}

// Record appends one trade record.
func (h *History) Record(rec TradeRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if err := h.csvWriter.WriteRecord(rec.toCSV()); err != nil {
		h.logger.Error("Failed to write trade record",
			zap.String("trade_id", rec.ID),
			zap.Error(err))
		return fmt.Errorf("failed to write trade record: %w", err)
	}

	if len(h.records) >= h.maxRecs {
		h.records = h.records[1:]
	}
	h.records = append(h.records, rec)

	if rec.Action == "close" {
		h.totalCloses++
		h.realizedPnL += rec.PnL
		if rec.PnL > 0 {
			h.wins++
		}
	}
	return nil
}

// Stats summarizes closed trades.
type Stats struct {
	TotalCloses int     `json:"total_closes"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"win_rate"`
	RealizedPnL float64 `json:"realized_pnl"`
}

func (h *History) Statistics() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		TotalCloses: h.totalCloses,
		Wins:        h.wins,
		RealizedPnL: h.realizedPnL,
	}
	if h.totalCloses > 0 {
		s.WinRate = float64(h.wins) / float64(h.totalCloses) * 100
	}
	return s
}

// Recent returns up to limit most recent records.
func (h *History) Recent(limit int) []TradeRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 || limit > len(h.records) {
		limit = len(h.records)
	}
	out := make([]TradeRecord, limit)
	copy(out, h.records[len(h.records)-limit:])
	return out
}

// Close flushes and closes the underlying CSV file.
func (h *History) Close() error {
	stats := h.Statistics()
	h.logger.Info("Closing trade history",
		zap.Int("total_closes", stats.TotalCloses),
		zap.Float64("realized_pnl", stats.RealizedPnL),
		zap.Float64("win_rate", stats.WinRate))
	return h.csvWriter.Close()
}
