package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// Kind tags a log record variant. Its value doubles as the document id prefix.
type Kind string

const (
	KindGlucose  Kind = "cgm"
	KindInsulin  Kind = "insulin"
	KindActivity Kind = "activity"
)

// Kinds lists every record variant.
var Kinds = []Kind{KindGlucose, KindInsulin, KindActivity}

// Collection returns the document collection holding records of this kind.
func (k Kind) Collection() string {
	switch k {
	case KindGlucose:
		return "CGM_logs"
	case KindInsulin:
		return "Insulin_logs"
	case KindActivity:
		return "Activity_logs"
	default:
		return ""
	}
}

// Prefix returns the id prefix for this kind.
func (k Kind) Prefix() string {
	return string(k)
}

// NewPayload returns an empty payload of this kind.
func (k Kind) NewPayload() (Payload, error) {
	switch k {
	case KindGlucose:
		return &Glucose{}, nil
	case KindInsulin:
		return &Insulin{}, nil
	case KindActivity:
		return &Activity{}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", string(k))
	}
}

// ParseKind accepts the canonical kind names and a few aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cgm", "glucose":
		return KindGlucose, nil
	case "insulin", "bolus":
		return KindInsulin, nil
	case "activity", "log", "steps":
		return KindActivity, nil
	default:
		return "", fmt.Errorf("unknown record kind %q", s)
	}
}

// Payload is the type-specific body of a log record.
type Payload interface {
	Kind() Kind
}

// Glucose is a single glucose monitor reading in mg/dL.
type Glucose struct {
	Value float64 `json:"glucose"`
}

func (*Glucose) Kind() Kind { return KindGlucose }

// Insulin covers bolus/basal doses and the meal fields logged alongside them.
type Insulin struct {
	Bolus      float64  `json:"bolus"`
	BasalRate  *float64 `json:"basal_rate"`
	CarbInput  float64  `json:"carb_input"`
	FoodIntake string   `json:"food_intake,omitempty"`
	Calories   float64  `json:"calories"`
}

func (*Insulin) Kind() Kind { return KindInsulin }

// Activity is a fitness tracker sample.
type Activity struct {
	Steps          int     `json:"steps"`
	DistanceKm     float64 `json:"distance_km"`
	HeartRate      *int    `json:"heart_rate"`
	StepDifference int     `json:"step_difference"`
}

func (*Activity) Kind() Kind { return KindActivity }

// Record is the common envelope of every log record.
type Record struct {
	ID        string
	OwnerID   string
	Timestamp time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	Payload   Payload
}

// NewRecord builds a record for owner at timestamp. The timestamp is stored
// in UTC truncated to whole seconds and the id is derived from it.
func NewRecord(ownerID string, timestamp time.Time, payload Payload) Record {
	ts := timestamp.UTC().Truncate(time.Second)
	return Record{
		ID:        utils.GenerateDocID(payload.Kind().Prefix(), ownerID, ts),
		OwnerID:   ownerID,
		Timestamp: ts,
		Payload:   payload,
	}
}

// Kind returns the variant of the record payload.
func (r Record) Kind() Kind {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Kind()
}

// Glucose returns the payload if the record is a glucose reading.
func (r Record) Glucose() (*Glucose, bool) {
	p, ok := r.Payload.(*Glucose)
	return p, ok
}

// Insulin returns the payload if the record is an insulin event.
func (r Record) Insulin() (*Insulin, bool) {
	p, ok := r.Payload.(*Insulin)
	return p, ok
}

// Activity returns the payload if the record is an activity sample.
func (r Record) Activity() (*Activity, bool) {
	p, ok := r.Payload.(*Activity)
	return p, ok
}

type recordJSON struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
	LocalTime string    `json:"local_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Payload   Payload   `json:"payload"`
}

// MarshalJSON renders the record with its kind and local display time.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:        r.ID,
		Kind:      r.Kind(),
		OwnerID:   r.OwnerID,
		Timestamp: r.Timestamp,
		LocalTime: utils.LocalDisplayString(r.Timestamp),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Payload:   r.Payload,
	})
}

// RawReading is a device or cloud reading before timestamp normalization.
// Date may be a string or a spreadsheet serial number.
type RawReading struct {
	Date  any     `json:"date"`
	Value float64 `json:"value"`
}

// TrackingField names a per-owner sync watermark.
type TrackingField string

const (
	LastTrackedFitbit  TrackingField = "last_tracked_fitbit"
	LastTrackedCGM     TrackingField = "last_tracked_cgm"
	LastTrained        TrackingField = "last_trained"
	LastPredictedBolus TrackingField = "last_predicted_bolus"
)

// Tracking holds the sync watermarks of one owner.
type Tracking struct {
	LastTrackedFitbit  *time.Time `json:"last_tracked_fitbit,omitempty"`
	LastTrackedCGM     *time.Time `json:"last_tracked_cgm,omitempty"`
	LastTrained        *time.Time `json:"last_trained,omitempty"`
	LastPredictedBolus *time.Time `json:"last_predicted_bolus,omitempty"`
}

// Set stores t under field.
func (t *Tracking) Set(field TrackingField, at time.Time) error {
	at = at.UTC()
	switch field {
	case LastTrackedFitbit:
		t.LastTrackedFitbit = &at
	case LastTrackedCGM:
		t.LastTrackedCGM = &at
	case LastTrained:
		t.LastTrained = &at
	case LastPredictedBolus:
		t.LastPredictedBolus = &at
	default:
		return fmt.Errorf("invalid tracking field: %s", field)
	}
	return nil
}

// User is an account profile with its fitness tracker credentials.
type User struct {
	ID                 string    `json:"user_id"`
	Name               string    `json:"name,omitempty"`
	Email              string    `json:"email,omitempty"`
	TelegramID         int64     `json:"telegram_id,omitempty"`
	TherapyType        string    `json:"therapy_type,omitempty"`
	CGMDeviceID        string    `json:"cgm_device_id,omitempty"`
	FitbitPermission   bool      `json:"fitbit_permission"`
	FitbitUserID       string    `json:"fitbit_user_id,omitempty"`
	FitbitScopes       []string  `json:"fitbit_scopes,omitempty"`
	FitbitAccessToken  string    `json:"fitbit_access_token,omitempty"`
	FitbitRefreshToken string    `json:"fitbit_refresh_token,omitempty"`
	FitbitExpiresAt    time.Time `json:"fitbit_expires_at,omitempty"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`
}

// ImportSummary reports the outcome of a spreadsheet import.
type ImportSummary struct {
	Rows    int `json:"rows"`
	Glucose int `json:"glucose"`
	Insulin int `json:"insulin"`
	Skipped int `json:"skipped"`
}

// UploadResult reports the outcome of a device sync upload.
type UploadResult struct {
	Received int `json:"received"`
	Saved    int `json:"saved"`
	Invalid  int `json:"invalid"`
	Older    int `json:"older"`
}
