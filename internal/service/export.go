package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"plate-reader/internal/domain/reader"
)

const exportSheet = "Runs"

var exportHeader = []interface{}{
	"Run ID", "Created At", "Source Image", "Raw Text", "Corrected Text",
	"Layout", "Engine", "Region", "Candidates", "Crop Path", "Crop URL",
}

// ExportRuns writes the runs matching filter as an XLSX workbook.
func (s *ReaderService) ExportRuns(ctx context.Context, w io.Writer, filter reader.RunFilter) (int, error) {
	runs, err := s.FindRuns(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := WriteRunsXLSX(w, runs); err != nil {
		return 0, err
	}
	return len(runs), nil
}

func WriteRunsXLSX(w io.Writer, runs []reader.Run) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, run := range runs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			run.ID.String(),
			run.CreatedAt.Format(time.RFC3339),
			run.SourceImage,
			strings.TrimRight(run.RawText, "\r\n"),
			strings.TrimRight(run.CorrectedText, "\r\n"),
			run.Layout,
			run.Engine,
			fmt.Sprintf("%d,%d %dx%d", run.Region.X, run.Region.Y, run.Region.Width, run.Region.Height),
			run.Candidates,
			run.CropPath,
			run.CropURL,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "K", 20); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
