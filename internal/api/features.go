package api

import (
	"net/http"
	"strconv"

	"github.com/vladimiradmaev/wellnest/internal/analytics"
	"github.com/vladimiradmaev/wellnest/internal/errors"
)

// readRecentQuery decodes an optional RecentQuery body. Bounds are checked by
// the feature service.
func readRecentQuery(w http.ResponseWriter, r *http.Request) (analytics.RecentQuery, error) {
	var q analytics.RecentQuery
	if r.ContentLength == 0 {
		return q, nil
	}
	err := readJSON(w, r, &q)
	return q, err
}

func (app *Application) recentFeaturesHandler(w http.ResponseWriter, r *http.Request) {
	q, err := readRecentQuery(w, r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	rows, err := app.services.Features.Recent(r.Context(), q)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(rows), "rows": rows})
}

type sequenceResponse struct {
	Window    int                  `json:"window"`
	Count     int                  `json:"count"`
	Sequences []analytics.Sequence `json:"sequences"`
}

func (app *Application) sequenceHandler(w http.ResponseWriter, r *http.Request) {
	window := analytics.DefaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			app.writeError(w, r, errors.NewValidationError("window must be an integer"))
			return
		}
		window = n
	}
	q, err := readRecentQuery(w, r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	seqs, err := app.services.Features.Sequences(r.Context(), q, window)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sequenceResponse{Window: window, Count: len(seqs), Sequences: seqs})
}

type issRequest struct {
	Glucose      []float64      `json:"glucose"`
	InsulinUnits []float64      `json:"insulin_units"`
	Unit         analytics.Unit `json:"unit"`
}

type issResponse struct {
	ISS        float64                 `json:"iss"`
	Components analytics.ISSComponents `json:"components"`
	Notes      string                  `json:"notes"`
}

func (app *Application) issHandler(w http.ResponseWriter, r *http.Request) {
	var req issRequest
	if err := readJSON(w, r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	unit, err := analytics.ParseUnit(string(req.Unit))
	if err != nil {
		app.writeError(w, r, errors.NewValidationError(err.Error()))
		return
	}
	for _, g := range req.Glucose {
		if g <= 0 {
			app.writeError(w, r, errors.NewValidationError("glucose values must be positive"))
			return
		}
	}
	for _, u := range req.InsulinUnits {
		if u < 0 {
			app.writeError(w, r, errors.NewValidationError("insulin units must not be negative"))
			return
		}
	}
	iss, comps := analytics.ComputeISS(analytics.ConvertToMgdl(req.Glucose, unit), req.InsulinUnits)
	writeJSON(w, http.StatusOK, issResponse{ISS: iss, Components: comps, Notes: "Heuristic only."})
}

type isfRequest struct {
	Method         string  `json:"method"`
	TotalDailyDose float64 `json:"total_daily_dose"`
}

func (app *Application) isfHandler(w http.ResponseWriter, r *http.Request) {
	var req isfRequest
	if err := readJSON(w, r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	isf, unit, err := analytics.ISF(req.Method, req.TotalDailyDose)
	if err != nil {
		app.writeError(w, r, errors.NewValidationError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"isf": isf, "unit": unit})
}

func (app *Application) dashboardSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	q, err := readRecentQuery(w, r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	snap, err := app.services.Features.Snapshot(r.Context(), q)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (app *Application) markTrainedHandler(w http.ResponseWriter, r *http.Request) {
	at, ok := app.readMark(w, r)
	if !ok {
		return
	}
	if err := app.services.Features.MarkTrained(r.Context(), at); err != nil {
		app.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
