// Package analytics derives model features and heuristic scores from the
// glucose, insulin and activity logs.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// Unit is a glucose concentration unit
type Unit string

const (
	UnitMgdl Unit = "mg/dL"
	UnitMmol Unit = "mmol/L"

	// mmolToMgdl converts mmol/L to mg/dL
	mmolToMgdl = 18.0
)

// ParseUnit accepts mg/dL or mmol/L. An empty string means mg/dL.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case "", UnitMgdl:
		return UnitMgdl, nil
	case UnitMmol:
		return UnitMmol, nil
	default:
		return "", fmt.Errorf("unit must be %s or %s", UnitMgdl, UnitMmol)
	}
}

// ConvertToMgdl converts a series to mg/dL when it is in mmol/L
func ConvertToMgdl(values []float64, unit Unit) []float64 {
	if unit != UnitMmol {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * mmolToMgdl
	}
	return out
}

// Row is one glucose reading joined with the activity and insulin logged in
// the same minute.
type Row struct {
	Timestamp        time.Time `json:"timestamp"`
	GlucoseMgdl      float64   `json:"glucose_mgdl"`
	Steps            int       `json:"steps"`
	HeartRate        int       `json:"heart_rate"`
	BolusUnits       float64   `json:"bolus_units"`
	BasalUnits       float64   `json:"basal_units"`
	CarbsG           float64   `json:"carbs_g"`
	CircadianSin     float64   `json:"circadian_sin"`
	CircadianCos     float64   `json:"circadian_cos"`
	GlucoseCarbRatio float64   `json:"glucose_carb_ratio"`
}

// Circadian encodes the local time of day of t on the unit circle.
func Circadian(t time.Time) (sin, cos float64) {
	local := utils.ToLocal(t)
	hod := float64(local.Hour()) + float64(local.Minute())/60
	angle := 2 * math.Pi * hod / 24
	return math.Sin(angle), math.Cos(angle)
}

func minuteKey(t time.Time) int64 {
	return t.UTC().Truncate(time.Minute).Unix()
}

// BuildMasterRows produces one row per glucose record, oldest first.
// Activity and insulin records are matched by the UTC minute they fall in;
// when several share a minute the last one given wins.
func BuildMasterRows(cgm, activity, insulin []domain.Record, unit Unit) []Row {
	acts := make(map[int64]*domain.Activity, len(activity))
	for _, rec := range activity {
		if a, ok := rec.Activity(); ok {
			acts[minuteKey(rec.Timestamp)] = a
		}
	}
	doses := make(map[int64]*domain.Insulin, len(insulin))
	for _, rec := range insulin {
		if ins, ok := rec.Insulin(); ok {
			doses[minuteKey(rec.Timestamp)] = ins
		}
	}

	rows := make([]Row, 0, len(cgm))
	for _, rec := range cgm {
		g, ok := rec.Glucose()
		if !ok {
			continue
		}
		value := g.Value
		if unit == UnitMmol {
			value *= mmolToMgdl
		}

		row := Row{Timestamp: rec.Timestamp, GlucoseMgdl: value}
		key := minuteKey(rec.Timestamp)
		if a := acts[key]; a != nil {
			row.Steps = a.Steps
			if a.HeartRate != nil {
				row.HeartRate = *a.HeartRate
			}
		}
		if ins := doses[key]; ins != nil {
			row.BolusUnits = ins.Bolus
			row.CarbsG = ins.CarbInput
			if ins.BasalRate != nil {
				row.BasalUnits = *ins.BasalRate
			}
		}
		row.CircadianSin, row.CircadianCos = Circadian(rec.Timestamp)

		carbs := row.CarbsG
		if carbs <= 0 {
			carbs = 1
		}
		row.GlucoseCarbRatio = round(value/carbs, 3)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return rows
}

// Window bounds for BuildSequences
const (
	DefaultWindow = 6
	MinWindow     = 3
	MaxWindow     = 24
)

// Sequence is a sliding window of feature values ending at EndTimestamp
type Sequence struct {
	EndTimestamp     time.Time `json:"end_timestamp"`
	GlucoseMgdl      []float64 `json:"glucose_mgdl"`
	CarbsG           []float64 `json:"carbs_g"`
	BolusUnits       []float64 `json:"bolus_units"`
	GlucoseCarbRatio []float64 `json:"glucose_carb_ratio"`
	CircadianSin     []float64 `json:"circadian_sin"`
	CircadianCos     []float64 `json:"circadian_cos"`
}

// BuildSequences returns every full window of consecutive rows. rows must be
// oldest first.
func BuildSequences(rows []Row, window int) ([]Sequence, error) {
	if window < MinWindow || window > MaxWindow {
		return nil, fmt.Errorf("window must be between %d and %d", MinWindow, MaxWindow)
	}
	seqs := make([]Sequence, 0)
	for end := window; end <= len(rows); end++ {
		slice := rows[end-window : end]
		seq := Sequence{
			EndTimestamp:     slice[window-1].Timestamp,
			GlucoseMgdl:      make([]float64, window),
			CarbsG:           make([]float64, window),
			BolusUnits:       make([]float64, window),
			GlucoseCarbRatio: make([]float64, window),
			CircadianSin:     make([]float64, window),
			CircadianCos:     make([]float64, window),
		}
		for i, r := range slice {
			seq.GlucoseMgdl[i] = r.GlucoseMgdl
			seq.CarbsG[i] = r.CarbsG
			seq.BolusUnits[i] = r.BolusUnits
			seq.GlucoseCarbRatio[i] = r.GlucoseCarbRatio
			seq.CircadianSin[i] = r.CircadianSin
			seq.CircadianCos[i] = r.CircadianCos
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
