package services

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
)

var importHeader = []string{"timestamp", "glucose_mg/dL", "bolus_insulin_U", "basal_insulin_U", "carb_input_g", "food_intake"}

func TestImportRowsCountsSkippedTimestamps(t *testing.T) {
	env := newTestEnv()
	svc := NewImportService(env.logs, env.owners)

	rows := [][]string{importHeader}
	for i := 0; i < 10; i++ {
		ts := fmt.Sprintf("2024-03-10 08:%02d:00", i*5)
		if i%3 == 1 {
			ts = "yesterday-ish"
		}
		rows = append(rows, []string{ts, fmt.Sprint(100 + i), "", "", "", ""})
	}

	summary, err := svc.ImportRows(ownerCtx("u1"), rows)
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if summary.Rows != 10 || summary.Skipped != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Glucose+summary.Insulin > 7 {
		t.Fatalf("%d records from 7 usable rows", summary.Glucose+summary.Insulin)
	}
}

func TestImportRowsCountsSameSecondOnce(t *testing.T) {
	env := newTestEnv()
	svc := NewImportService(env.logs, env.owners)

	summary, err := svc.ImportRows(ownerCtx("u1"), [][]string{
		importHeader,
		{"2024-03-10 08:00:00", "140", "2", "", "", ""},
		{"2024-03-10 08:00:00", "145", "3", "", "", ""},
		{"2024-03-10 08:05:00", "150", "", "", "", ""},
	})
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	want := domain.ImportSummary{Rows: 3, Glucose: 2, Insulin: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
}

func TestImportRowsSplitsGlucoseAndInsulin(t *testing.T) {
	env := newTestEnv()
	svc := NewImportService(env.logs, env.owners)
	ctx := ownerCtx("u1")

	summary, err := svc.ImportRows(ctx, [][]string{
		importHeader,
		{"2024-03-10 08:00:00", "140", "4", "0.8", "45", "idli"},
		{"2024-03-10 09:00:00", "", "", "", "", "tea"},
		{"2024-03-10 10:00:00", "120"},
		{"", "", "", "", "", ""},
		{"2024-03-10 11:00:00", "", "", "", "", ""},
	})
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	want := domain.ImportSummary{Rows: 4, Glucose: 2, Insulin: 2, Skipped: 0}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}

	at := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)
	recs, err := env.logs.QueryRange(ctx, domain.KindInsulin, "u1", at, at)
	if err != nil || len(recs) != 1 {
		t.Fatalf("insulin at %v: %d, %v", at, len(recs), err)
	}
	ins, _ := recs[0].Insulin()
	if ins.Bolus != 4 || ins.BasalRate == nil || *ins.BasalRate != 0.8 || ins.CarbInput != 45 || ins.FoodIntake != "idli" {
		t.Fatalf("insulin payload = %+v", ins)
	}
}

func TestImportRowsRequiresTimestampColumn(t *testing.T) {
	env := newTestEnv()
	svc := NewImportService(env.logs, env.owners)

	_, err := svc.ImportRows(ownerCtx("u1"), [][]string{{"glucose_mg/dL"}, {"100"}})
	assertType(t, err, errors.ErrorTypeValidation)

	_, err = svc.ImportRows(ownerCtx("u1"), nil)
	assertType(t, err, errors.ErrorTypeValidation)
}

func TestImportFileCSV(t *testing.T) {
	env := newTestEnv()
	svc := NewImportService(env.logs, env.owners)

	data := strings.Join([]string{
		strings.Join(importHeader, ","),
		"2024-03-10 08:00:00,140,,,,",
		"10.03.2024 08.15.00,150,,,,",
		"garbage,160,,,,",
	}, "\n")
	summary, err := svc.ImportFile(ownerCtx("u1"), "export.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if summary.Glucose != 2 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	_, err = svc.ImportFile(ownerCtx("u1"), "export.pdf", strings.NewReader(data))
	assertType(t, err, errors.ErrorTypeValidation)
}

func TestImportFileXLSXSerialDates(t *testing.T) {
	env := newTestEnv()
	svc := NewImportService(env.logs, env.owners)
	ctx := ownerCtx("u1")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(importHeader))
	for i, h := range importHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &[]interface{}{45292.5, 130, 2, "", 30, "upma"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	summary, err := svc.ImportFile(ctx, "log.xlsx", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if summary.Glucose != 1 || summary.Insulin != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	// 45292.5 is 2024-01-01 12:00 local.
	want := time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC)
	rec, err := env.logs.Get(ctx, domain.KindGlucose, "cgm_u1_20240101_063000")
	if err != nil || rec == nil || !rec.Timestamp.Equal(want) {
		t.Fatalf("glucose record = %+v, %v", rec, err)
	}
}
