// Package export renders processed transactions to XLSX for review outside
// the tool.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mkarwowski/receipt2ledger/internal/entity"
	"github.com/mkarwowski/receipt2ledger/internal/repository"
)

// Service is a tiny façade over the transaction repository that produces
// XLSX bytes.
type Service struct {
	txs    *repository.TransactionRepository
	logger *slog.Logger
}

func NewService(txs *repository.TransactionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{txs: txs, logger: logger}
}

// ExportXLSX returns a workbook of recorded transactions. When onlyReview is
// set, only the review queue is included.
func (s *Service) ExportXLSX(ctx context.Context, onlyReview bool) ([]byte, error) {
	start := time.Now()

	var rows []repository.TransactionRow
	var err error
	if onlyReview {
		rows, err = s.txs.ListByDecision(ctx, entity.ActionNeedsReview)
	} else {
		rows, err = s.txs.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Transactions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Date",
		"Type",
		"Vendor",
		"Amount",
		"Category",
		"Category Source",
		"Account",
		"Decision",
		"Reason",
		"Confidence",
		"Ledger Tx ID",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for r, row := range rows {
		values := []any{
			row.Date,
			row.Type,
			row.Vendor,
			entity.FormatCents(row.AmountCents),
			row.Category,
			row.CategorySource,
			row.AccountID,
			row.Decision,
			row.DecisionReason,
			fmt.Sprintf("%.2f", row.Confidence),
			row.LedgerTxID,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	// Drop the default sheet excelize creates.
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 && sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"only_review", onlyReview,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
