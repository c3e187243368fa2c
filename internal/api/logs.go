package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/services"
)

// logStore is the part of every record service the generic log routes use.
type logStore interface {
	Range(ctx context.Context, start, end time.Time) ([]domain.Record, error)
	Latest(ctx context.Context) (*domain.Record, error)
	Get(ctx context.Context, recordID string) (*domain.Record, error)
	Delete(ctx context.Context, recordID string) error
	DeleteMany(ctx context.Context, recordIDs []string) error
}

func (app *Application) logStoreFor(r *http.Request) (domain.Kind, logStore, error) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", nil, errors.NewValidationError(err.Error())
	}
	switch kind {
	case domain.KindGlucose:
		return kind, app.services.CGM, nil
	case domain.KindInsulin:
		return kind, app.services.Insulin, nil
	default:
		return kind, app.services.Activity, nil
	}
}

type recordsResponse struct {
	Count   int             `json:"count"`
	Records []domain.Record `json:"records"`
}

func (app *Application) listLogsHandler(w http.ResponseWriter, r *http.Request) {
	_, logs, err := app.logStoreFor(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	from, to, err := rangeParams(r, time.Now())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	recs, err := logs.Range(r.Context(), from, to)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse{Count: len(recs), Records: recs})
}

func (app *Application) latestLogHandler(w http.ResponseWriter, r *http.Request) {
	_, logs, err := app.logStoreFor(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	rec, err := logs.Latest(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound), Message: "No records yet"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (app *Application) getLogHandler(w http.ResponseWriter, r *http.Request) {
	_, logs, err := app.logStoreFor(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	rec, err := logs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound), Message: "Record not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (app *Application) deleteLogHandler(w http.ResponseWriter, r *http.Request) {
	_, logs, err := app.logStoreFor(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := logs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		app.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (app *Application) batchDeleteHandler(w http.ResponseWriter, r *http.Request) {
	_, logs, err := app.logStoreFor(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	var req batchDeleteRequest
	if err := readJSON(w, r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		app.writeError(w, r, errors.NewValidationError("ids must not be empty"))
		return
	}
	if err := logs.DeleteMany(r.Context(), req.IDs); err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

// createLogRequest carries the fields of every kind; only those of the
// addressed kind are read.
type createLogRequest struct {
	Timestamp string `json:"timestamp"`

	Value float64 `json:"value"`

	Bolus     float64  `json:"bolus"`
	BasalRate *float64 `json:"basal_rate"`
	CarbInput float64  `json:"carb_input"`
	Calories  float64  `json:"calories"`

	Steps      int     `json:"steps"`
	DistanceKm float64 `json:"distance_km"`
	HeartRate  *int    `json:"heart_rate"`
}

func (app *Application) createLogHandler(w http.ResponseWriter, r *http.Request) {
	kind, _, err := app.logStoreFor(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	var req createLogRequest
	if err := readJSON(w, r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	at, err := parseTimestamp(req.Timestamp)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	var rec domain.Record
	switch kind {
	case domain.KindGlucose:
		rec, err = app.services.CGM.AddLog(r.Context(), at, req.Value)
	case domain.KindInsulin:
		rec, err = app.services.Insulin.AddLog(r.Context(), services.InsulinEntry{
			Timestamp: at,
			Bolus:     req.Bolus,
			BasalRate: req.BasalRate,
			CarbInput: req.CarbInput,
			Calories:  req.Calories,
		})
	case domain.KindActivity:
		rec, err = app.services.Activity.AddLog(r.Context(), services.ActivityEntry{
			Timestamp:  at,
			Steps:      req.Steps,
			DistanceKm: req.DistanceKm,
			HeartRate:  req.HeartRate,
		})
	}
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
