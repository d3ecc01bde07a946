// Package export renders run history and stock snapshots as XLSX
// files for reporting.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stocksync/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Exporter writes report files into the configured export directory.
type Exporter struct {
	repo domain.Repository
	path string
}

func NewExporter(repo domain.Repository, path string) *Exporter {
	return &Exporter{repo: repo, path: path}
}

// RunHistory writes the recent run log for a site (or all sites when
// site is empty) and returns the file path.
func (e *Exporter) RunHistory(ctx context.Context, site string, limit int) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	runs, err := e.repo.ListRunLogs(ctx, site, limit)
	if err != nil {
		return "", fmt.Errorf("error getting run logs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Runs"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Time", "Site", "Status", "Checked", "Instock", "Outofstock", "Failed", "Skipped", "Duration", "Error"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	for row, run := range runs {
		errText := ""
		if run.Error != nil {
			errText = *run.Error
		}
		values := []interface{}{
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			run.Site,
			run.Status,
			run.Checked,
			run.SyncedInStock,
			run.SyncedOutOfStock,
			run.Failed,
			run.Skipped,
			run.Duration.Round(time.Millisecond).String(),
			errText,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "B", "J", 14)

	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(sheetName, "A1", "J1", style)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("runs_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

// StockSnapshot writes the cached product mirror for one site.
func (e *Exporter) StockSnapshot(ctx context.Context, site string) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	products, err := e.repo.ListCachedProducts(ctx, site)
	if err != nil {
		return "", fmt.Errorf("error getting cached products: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Stock"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"SKU", "Name", "Publish status", "Stock status", "Quantity", "Last synced"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	for row, product := range products {
		values := []interface{}{
			product.SKU,
			product.Name,
			product.PublishStatus,
			product.StockStatus,
			product.Quantity,
			product.LastSyncedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 24)
	_ = f.SetColWidth(sheetName, "C", "F", 16)

	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(sheetName, "A1", "F1", style)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("stock_%s_%s.xlsx", site, time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}
