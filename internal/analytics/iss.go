package analytics

import (
	"fmt"
	"math"
)

// ISSComponents are the inputs of an insulin sensitivity score
type ISSComponents struct {
	MeanGlucose           float64 `json:"mean_glucose"`
	GlucoseVariabilitySTD float64 `json:"glucose_variability_std"`
	InsulinUnitsTotal     float64 `json:"insulin_units_total"`
	MeanTerm              float64 `json:"mean_term"`
	GVNorm                float64 `json:"gv_norm"`
	IUNorm                float64 `json:"iu_norm"`
}

// ComputeISS returns a heuristic insulin sensitivity score in [0, 100] for
// a glucose series in mg/dL and the insulin units given over the same
// period. Higher means more sensitive. It is meant for trend tracking only.
func ComputeISS(glucoseMgdl, insulinUnits []float64) (float64, ISSComponents) {
	n := len(glucoseMgdl)
	var sum float64
	for _, g := range glucoseMgdl {
		sum += g
	}
	mean := sum / float64(max(n, 1))

	var gv float64
	if n > 1 {
		var sq float64
		for _, g := range glucoseMgdl {
			sq += (g - mean) * (g - mean)
		}
		gv = math.Sqrt(sq / float64(n))
	}

	var iu float64
	for _, u := range insulinUnits {
		iu += u
	}

	gvNorm := math.Min(1, gv/50)
	iuNorm := math.Min(1, iu/50)
	meanTerm := math.Max(0, math.Min(1, (180-math.Abs(mean-100))/180))

	raw := 0.5*meanTerm + 0.25*(1-gvNorm) + 0.25*(1-iuNorm)
	return round(100*raw, 1), ISSComponents{
		MeanGlucose:           round(mean, 1),
		GlucoseVariabilitySTD: round(gv, 1),
		InsulinUnitsTotal:     round(iu, 2),
		MeanTerm:              round(meanTerm, 3),
		GVNorm:                round(gvNorm, 3),
		IUNorm:                round(iuNorm, 3),
	}
}

// ISF methods
const (
	ISF1800Rule = "1800_rule"
	ISF100Rule  = "100_rule"
)

// ISF1800 is the expected mg/dL drop per unit of insulin by the rule of 1800
func ISF1800(totalDailyDose float64) float64 {
	return 1800 / totalDailyDose
}

// ISF100 is the expected mmol/L drop per unit of insulin by the rule of 100
func ISF100(totalDailyDose float64) float64 {
	return 100 / totalDailyDose
}

// ISF applies the named rule and returns the rounded factor and its unit.
func ISF(method string, totalDailyDose float64) (float64, string, error) {
	if totalDailyDose <= 0 {
		return 0, "", fmt.Errorf("total daily dose must be positive")
	}
	switch method {
	case "", ISF1800Rule:
		return round(ISF1800(totalDailyDose), 2), "mg/dL per U", nil
	case ISF100Rule:
		return round(ISF100(totalDailyDose), 3), "mmol/L per U", nil
	default:
		return 0, "", fmt.Errorf("method must be %s or %s", ISF1800Rule, ISF100Rule)
	}
}
