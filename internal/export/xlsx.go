package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Results"

// Service renders batch reports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// XLSX returns the report as workbook bytes with one row per listing.
func (s *Service) XLSX(ctx context.Context, rep Report) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	index, _ := f.GetSheetIndex(resultsSheet)
	f.SetActiveSheet(index)

	headers := []string{
		"#",
		"Car ID",
		"VIN",
		"Document VINs",
		"VIN Match",
		"Car Detections",
		"Best Confidence",
		"Real Probability",
		"Fake Probability",
		"Source",
		"Reason",
		"Error",
		"Elapsed (ms)",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(resultsSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(resultsSheet, "A1", "M1", style)
	}

	row := 2
	for _, r := range rep.Rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(resultsSheet, cell, v)
		}

		write(1, r.Seq)
		write(2, r.CarID)
		write(3, r.VIN)
		write(4, strings.Join(r.DocVINs, ", "))
		if r.Failed() {
			write(12, truncate(r.Error, 200))
		} else {
			write(5, r.VinFoundInDoc)
			write(6, r.CarDetections)
			write(7, r.BestConf)
			write(8, r.RealProbability)
			write(9, r.FakeProbability)
			write(10, r.Source)
			write(11, truncate(r.Reason, 300))
		}
		write(13, r.Elapsed.Milliseconds())
		row++
	}

	_ = f.SetColWidth(resultsSheet, "A", "A", 6)
	_ = f.SetColWidth(resultsSheet, "B", "B", 14)
	_ = f.SetColWidth(resultsSheet, "C", "D", 22)
	_ = f.SetColWidth(resultsSheet, "E", "J", 14)
	_ = f.SetColWidth(resultsSheet, "K", "L", 60)
	_ = f.SetColWidth(resultsSheet, "M", "M", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rep.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
