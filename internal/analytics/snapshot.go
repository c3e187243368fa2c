package analytics

import (
	"fmt"
	"time"
)

// snapshotPoints is how many trailing rows a dashboard snapshot covers
const snapshotPoints = 24

// RecentQuery selects the logs feature endpoints work on
type RecentQuery struct {
	LookbackMinutes int  `json:"lookback_minutes"`
	Limit           int  `json:"limit"`
	Unit            Unit `json:"unit"`
}

// Normalize fills defaults and checks bounds
func (q *RecentQuery) Normalize() error {
	if q.LookbackMinutes == 0 {
		q.LookbackMinutes = 240
	}
	if q.Limit == 0 {
		q.Limit = 500
	}
	if q.LookbackMinutes < 5 || q.LookbackMinutes > 1440 {
		return fmt.Errorf("lookback_minutes must be between 5 and 1440")
	}
	if q.Limit < 1 || q.Limit > 1000 {
		return fmt.Errorf("limit must be between 1 and 1000")
	}
	unit, err := ParseUnit(string(q.Unit))
	if err != nil {
		return err
	}
	q.Unit = unit
	return nil
}

// Lookback returns the query window as a duration
func (q RecentQuery) Lookback() time.Duration {
	return time.Duration(q.LookbackMinutes) * time.Minute
}

type ISSValue struct {
	Value      float64       `json:"value"`
	Components ISSComponents `json:"components"`
}

type Series struct {
	Timestamps  []time.Time `json:"timestamps"`
	GlucoseMgdl []float64   `json:"glucose_mgdl"`
	Steps       []int       `json:"steps"`
	HeartRate   []int       `json:"heart_rate"`
	BolusUnits  []float64   `json:"bolus_units"`
	CarbsG      []float64   `json:"carbs_g"`
}

// Snapshot summarises the latest rows for a dashboard
type Snapshot struct {
	Latest *Row     `json:"latest"`
	ISS    ISSValue `json:"iss"`
	Series Series   `json:"series"`
}

// DashboardSnapshot takes rows oldest first and scores the trailing window.
func DashboardSnapshot(rows []Row) Snapshot {
	var snap Snapshot
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		snap.Latest = &last
	}

	tail := rows[max(0, len(rows)-snapshotPoints):]
	s := Series{
		Timestamps:  make([]time.Time, 0, len(tail)),
		GlucoseMgdl: make([]float64, 0, len(tail)),
		Steps:       make([]int, 0, len(tail)),
		HeartRate:   make([]int, 0, len(tail)),
		BolusUnits:  make([]float64, 0, len(tail)),
		CarbsG:      make([]float64, 0, len(tail)),
	}
	for _, r := range tail {
		s.Timestamps = append(s.Timestamps, r.Timestamp)
		s.GlucoseMgdl = append(s.GlucoseMgdl, r.GlucoseMgdl)
		s.Steps = append(s.Steps, r.Steps)
		s.HeartRate = append(s.HeartRate, r.HeartRate)
		s.BolusUnits = append(s.BolusUnits, r.BolusUnits)
		s.CarbsG = append(s.CarbsG, r.CarbsG)
	}
	snap.Series = s

	value, comps := ComputeISS(s.GlucoseMgdl, s.BolusUnits)
	snap.ISS = ISSValue{Value: value, Components: comps}
	return snap
}
