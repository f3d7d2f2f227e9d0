package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/infra/observability"
	"github.com/fintrackhq/fintrack-go/internal/port"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// utf8BOM lets spreadsheet applications detect the CSV encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var exportHeader = []string{"date", "category", "type", "amount", "description"}

// ExportService renders a user's transactions as downloadable files. It is
// a plain row projection, not analytics: every transaction in range is
// included, uncategorized ones with empty category and type columns.
type ExportService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService wires the exporter to the ledger store.
func NewExportService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *ExportService {
	return &ExportService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// TransactionsCSV renders the export as UTF-8 CSV with a BOM prefix and
// RFC 4180 quoting. Returns the body and a download filename.
func (s *ExportService) TransactionsCSV(ctx context.Context, f port.TransactionFilter) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "ExportService.TransactionsCSV")
	defer span.End()

	s.metrics.IncrStoreQuery("export_rows")
	rows, err := s.store.ExportRows(ctx, f)
	if err != nil {
		s.metrics.IncrStoreError("export_rows")
		return nil, "", err
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, "", fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date,
			r.Category,
			r.Type,
			strconv.FormatFloat(r.Amount, 'f', 2, 64),
			r.Description,
		}
		if err := w.Write(record); err != nil {
			return nil, "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("flush csv: %w", err)
	}

	s.metrics.IncrExport("csv")
	s.logger.Debug("csv export rendered",
		zap.String("user_id", f.UserID),
		zap.Int("rows", len(rows)),
	)

	filename := fmt.Sprintf("transactions_%d.csv", s.now().Unix())
	return buf.Bytes(), filename, nil
}

// TransactionsXLSX renders the export as a spreadsheet: one sheet with the
// transaction rows and a summary block with range totals.
func (s *ExportService) TransactionsXLSX(ctx context.Context, f port.TransactionFilter) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "ExportService.TransactionsXLSX")
	defer span.End()

	s.metrics.IncrStoreQuery("export_rows")
	rows, err := s.store.ExportRows(ctx, f)
	if err != nil {
		s.metrics.IncrStoreError("export_rows")
		return nil, "", err
	}

	s.metrics.IncrStoreQuery("summary")
	totals, err := s.store.SummaryTotals(ctx, f)
	if err != nil {
		s.metrics.IncrStoreError("summary")
		return nil, "", err
	}

	book := excelize.NewFile()
	defer book.Close()

	const sheet = "Transactions"
	book.SetSheetName("Sheet1", sheet)

	headerStyle, err := book.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, "", fmt.Errorf("create header style: %w", err)
	}

	for i, col := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		book.SetCellValue(sheet, cell, col)
	}
	book.SetCellStyle(sheet, "A1", "E1", headerStyle)

	for i, r := range rows {
		rowIdx := i + 2
		book.SetCellValue(sheet, fmt.Sprintf("A%d", rowIdx), r.Date)
		book.SetCellValue(sheet, fmt.Sprintf("B%d", rowIdx), r.Category)
		book.SetCellValue(sheet, fmt.Sprintf("C%d", rowIdx), r.Type)
		book.SetCellValue(sheet, fmt.Sprintf("D%d", rowIdx), r.Amount)
		book.SetCellValue(sheet, fmt.Sprintf("E%d", rowIdx), r.Description)
	}

	summaryRow := len(rows) + 3
	book.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total income")
	book.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), totals.TotalIncome)
	book.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+1), "Total expense")
	book.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+1), totals.TotalExpense)
	book.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+2), "Balance")
	book.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+2), totals.Balance)

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	s.metrics.IncrExport("xlsx")
	s.logger.Debug("xlsx export rendered",
		zap.String("user_id", f.UserID),
		zap.Int("rows", len(rows)),
	)

	filename := fmt.Sprintf("transactions_%d.xlsx", s.now().Unix())
	return buf.Bytes(), filename, nil
}
