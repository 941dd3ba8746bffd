package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/ledger"
)

// Format represents the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures the export behavior.
type Options struct {
	Format       Format
	StartTime    time.Time
	EndTime      time.Time
	TokenFilter  string // filter by token address
	ActionFilter string // filter by action (open/close)
	OutputDir    string
}

// TradeExporter writes filtered trade records to session files.
type TradeExporter struct {
	logger *zap.Logger
}

func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{logger: logger.Named("export")}
}

// Export writes the matching records and returns the output path.
func (te *TradeExporter) Export(records []ledger.TradeRecord, stats ledger.Stats, options Options) (string, error) {
	filtered := te.filter(records, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	outputPath := filepath.Join(options.OutputDir, te.filename(options))
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = te.writeCSV(filtered, outputPath)
	case FormatJSON:
		err = te.writeJSON(filtered, stats, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (te *TradeExporter) filter(records []ledger.TradeRecord, options Options) []ledger.TradeRecord {
	var filtered []ledger.TradeRecord
	for _, rec := range records {
		if !options.StartTime.IsZero() && rec.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && rec.Timestamp.After(options.EndTime) {
			continue
		}
		if options.TokenFilter != "" && rec.TokenAddress != options.TokenFilter {
			continue
		}
		if options.ActionFilter != "" && rec.Action != options.ActionFilter {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func (te *TradeExporter) filename(options Options) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "session_all"
	if options.ActionFilter != "" {
		prefix = "session_" + options.ActionFilter
	}
	if len(options.TokenFilter) >= 10 {
		prefix += "_" + options.TokenFilter[2:10]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (te *TradeExporter) writeCSV(records []ledger.TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "timestamp", "source_wallet", "token_address", "action",
		"stake_usd", "quantity", "price", "tx_hash", "exit_reason", "pnl", "hold_time"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Timestamp.Format(time.RFC3339),
			rec.SourceWallet,
			rec.TokenAddress,
			rec.Action,
			fmt.Sprintf("%.6f", rec.StakeUSD),
			fmt.Sprintf("%.6f", rec.Quantity),
			fmt.Sprintf("%.12f", rec.Price),
			rec.TxHash,
			string(rec.ExitReason),
			fmt.Sprintf("%.6f", rec.PnL),
			rec.HoldTime,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write trade row: %w", err)
		}
	}
	return nil
}

func (te *TradeExporter) writeJSON(records []ledger.TradeRecord, stats ledger.Stats, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	payload := struct {
		ExportTime time.Time            `json:"export_time"`
		TradeCount int                  `json:"trade_count"`
		Trades     []ledger.TradeRecord `json:"trades"`
		Summary    ledger.Stats         `json:"summary"`
	}{
		ExportTime: time.Now(),
		TradeCount: len(records),
		Trades:     records,
		Summary:    stats,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
