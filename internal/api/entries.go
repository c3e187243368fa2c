package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/services"
)

type mealRequest struct {
	Timestamp  string  `json:"timestamp"`
	CarbInput  float64 `json:"carb_input"`
	FoodIntake string  `json:"food_intake"`
}

func (app *Application) upsertMealHandler(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := readJSON(w, r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	at, err := parseTimestamp(req.Timestamp)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	res, err := app.services.Nutrition.UpsertMeal(r.Context(), services.MealEntry{
		Timestamp:  at,
		CarbInput:  req.CarbInput,
		FoodIntake: req.FoodIntake,
	})
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (app *Application) listMealsHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeParams(r, time.Now())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	meals, err := app.services.Nutrition.CarbsAndFoodRange(r.Context(), from, to)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(meals), "meals": meals})
}

func (app *Application) listDosesHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeParams(r, time.Now())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	doses, err := app.services.Insulin.BolusBasalRange(r.Context(), from, to)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(doses), "doses": doses})
}

func (app *Application) latestBolusHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := app.services.Insulin.LatestBolus(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeRecordOrNotFound(w, rec)
}

type markRequest struct {
	Timestamp string `json:"timestamp"`
}

func (app *Application) recordPredictionHandler(w http.ResponseWriter, r *http.Request) {
	at, ok := app.readMark(w, r)
	if !ok {
		return
	}
	if err := app.services.Insulin.RecordPrediction(r.Context(), at); err != nil {
		app.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *Application) readMark(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	var req markRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			app.writeError(w, r, err)
			return time.Time{}, false
		}
	}
	at, err := parseTimestamp(req.Timestamp)
	if err != nil {
		app.writeError(w, r, err)
		return time.Time{}, false
	}
	return at, true
}

func (app *Application) activityForDateHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := app.services.Activity.ForDate(r.Context(), chi.URLParam(r, "day"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse{Count: len(recs), Records: recs})
}

func (app *Application) heartRateTodayHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := app.services.Activity.LatestHeartRateToday(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeRecordOrNotFound(w, rec)
}

func writeRecordOrNotFound(w http.ResponseWriter, rec *domain.Record) {
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound), Message: "No matching record"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// maxUploadBytes bounds spreadsheet uploads.
const maxUploadBytes = 16 << 20

func (app *Application) importHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		app.writeError(w, r, errors.NewValidationError("expected a multipart upload with a file field"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		app.writeError(w, r, errors.NewValidationError("missing file field"))
		return
	}
	defer file.Close()

	summary, err := app.services.Import.ImportFile(r.Context(), header.Filename, file)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (app *Application) uploadReadingsHandler(w http.ResponseWriter, r *http.Request) {
	var readings []domain.RawReading
	if err := readJSON(w, r, &readings); err != nil {
		app.writeError(w, r, err)
		return
	}
	res, err := app.services.CGM.UploadNewLogs(r.Context(), readings)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (app *Application) syncFitbitHandler(w http.ResponseWriter, r *http.Request) {
	if app.services.FitbitSync == nil {
		app.writeError(w, r, errNotConfigured("Fitbit"))
		return
	}
	res, err := app.services.FitbitSync.Sync(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (app *Application) syncLibreLinkHandler(w http.ResponseWriter, r *http.Request) {
	if app.services.LibreLink == nil {
		app.writeError(w, r, errNotConfigured("LibreLink"))
		return
	}
	res, err := app.services.LibreLink.Sync(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func errNotConfigured(integration string) error {
	return errors.New(errors.ErrorTypeExternal, "NOT_CONFIGURED", integration+" integration is not configured")
}
