package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/entityhistory/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of workbooks written by WriteHistoryXLSX.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var historyHeaders = []string{
	"Version",
	"Previous Version",
	"Updated By",
	"Updated At",
	"Fields Added",
	"Fields Updated",
	"Fields Deleted",
}

// WriteHistoryXLSX writes one sheet listing every version record, in the order given.
func WriteHistoryXLSX(w io.Writer, entityType string, records []domain.VersionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(entityType)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range historyHeaders {
		if err := setCell(f, sheet, col+1, 1, header); err != nil {
			return err
		}
	}

	for i, record := range records {
		row := i + 2
		previous := ""
		var added, updated, deleted []string
		if record.ChangeDescription != nil {
			if v, ok := record.ChangeDescription.PreviousVersion(); ok {
				previous = v.String()
			}
			added = record.ChangeDescription.FieldsAdded()
			updated = record.ChangeDescription.FieldsUpdated()
			deleted = record.ChangeDescription.FieldsDeleted()
		}

		values := []any{
			record.Version.String(),
			previous,
			record.UpdatedBy,
			record.UpdatedAt.UTC().Format(time.RFC3339),
			strings.Join(added, ", "),
			strings.Join(updated, ", "),
			strings.Join(deleted, ", "),
		}
		for col, value := range values {
			if err := setCell(f, sheet, col+1, row, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell %d,%d: %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

const maxSheetNameRunes = 31

// sheetName keeps within Excel's sheet name rules: at most 31 characters, none
// of :\/?*[] and no apostrophe at either end.
func sheetName(entityType string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.ToValidUTF8(entityType, ""))

	name = strings.Trim(name, "' \t")
	if runes := []rune(name); len(runes) > maxSheetNameRunes {
		name = strings.TrimRight(string(runes[:maxSheetNameRunes]), "' \t")
	}
	if name == "" || strings.EqualFold(name, "History") {
		name = "versions"
	}
	return name
}
