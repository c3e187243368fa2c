package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// Spreadsheet column names
const (
	ColTimestamp = "timestamp"
	ColGlucose   = "glucose_mg/dl"
	ColBolus     = "bolus_insulin_u"
	ColBasal     = "basal_insulin_u"
	ColCarbs     = "carb_input_g"
	ColFood      = "food_intake"
)

// ImportService turns spreadsheet rows into glucose and insulin records
type ImportService struct {
	logs   *repository.LogRepository
	owners owner.Resolver
}

func NewImportService(logs *repository.LogRepository, owners owner.Resolver) *ImportService {
	return &ImportService{logs: logs, owners: owners}
}

// ImportFile reads an .xlsx or .csv file and imports its first sheet
func (s *ImportService) ImportFile(ctx context.Context, filename string, r io.Reader) (domain.ImportSummary, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return domain.ImportSummary{}, errors.NewValidationError("only .xlsx and .csv files can be imported")
	}
	if err != nil {
		return domain.ImportSummary{}, errors.Wrap(err, errors.ErrorTypeValidation, "BAD_FILE", "could not read the spreadsheet")
	}
	return s.ImportRows(ctx, rows)
}

// ImportRows imports a header row followed by data rows. Rows with an
// unreadable timestamp are skipped and counted. All records are written in
// one batch.
func (s *ImportService) ImportRows(ctx context.Context, rows [][]string) (domain.ImportSummary, error) {
	var summary domain.ImportSummary
	id, err := s.owners.Resolve(ctx)
	if err != nil {
		return summary, err
	}
	if len(rows) == 0 {
		return summary, errors.NewValidationError("the spreadsheet is empty")
	}

	cols := headerIndex(rows[0])
	if _, ok := cols[ColTimestamp]; !ok {
		return summary, errors.NewValidationError("the spreadsheet has no timestamp column")
	}

	var recs []domain.Record
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		summary.Rows++

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		ts, ok := utils.ParseFlexibleTimestamp(cell(ColTimestamp))
		if !ok {
			summary.Skipped++
			continue
		}

		if g, ok := parseNumber(cell(ColGlucose)); ok && g > 0 {
			recs = append(recs, domain.NewRecord(id, ts, &domain.Glucose{Value: g}))
		}

		ins := &domain.Insulin{FoodIntake: cell(ColFood)}
		ins.Bolus, _ = parseNumber(cell(ColBolus))
		ins.CarbInput, _ = parseNumber(cell(ColCarbs))
		if basal, ok := parseNumber(cell(ColBasal)); ok {
			ins.BasalRate = &basal
		}
		if ins.Bolus != 0 || ins.BasalRate != nil || ins.CarbInput != 0 || ins.FoodIntake != "" {
			recs = append(recs, domain.NewRecord(id, ts, ins))
		}
	}

	if err := s.logs.BatchUpsert(ctx, recs); err != nil {
		return summary, errors.NewDatabaseError(err)
	}
	summary.Glucose = distinctRecords(recs, domain.KindGlucose)
	summary.Insulin = distinctRecords(recs, domain.KindInsulin)

	logger.Info("Imported spreadsheet",
		"owner_id", id,
		"rows", summary.Rows,
		"glucose", summary.Glucose,
		"insulin", summary.Insulin,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	// Raw values keep date cells as serial day numbers.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup && name != "" {
			cols[name] = i
		}
	}
	return cols
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
