package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and a message safe to show the caller.
func (app *Application) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	args := []any{"request_id", RequestID(r.Context()), "path", r.URL.Path, "status", status}
	if id, ok := owner.FromContext(r.Context()); ok {
		args = append(args, "owner_id", id)
	}
	app.errs.Handle(r.Context(), err, args...)
	writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: errors.UserMessage(err),
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

// parseTimestamp reads a request timestamp. Empty means now. Values without
// an offset are local wall-clock time.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := utils.ParseFlexibleTimestamp(raw)
	if !ok {
		return time.Time{}, errors.NewValidationError("invalid timestamp: " + raw)
	}
	return t, nil
}

// rangeParams reads the from and to query parameters. Missing bounds default
// to the last 24 hours.
func rangeParams(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	to, err := parseTimestamp(q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.IsZero() {
		to = now.UTC()
	}
	from, err := parseTimestamp(q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	return from, to, nil
}
