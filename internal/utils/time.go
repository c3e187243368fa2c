package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/logger"
)

// LocalOffset is the fixed offset of the users' wall clock from UTC.
// There is no timezone database lookup and no daylight saving.
const LocalOffset = 5*time.Hour + 30*time.Minute

// LocalZone renders instants on the fixed local offset.
var LocalZone = time.FixedZone("IST", int(LocalOffset/time.Second))

// DisplayLayout is the layout produced by LocalDisplayString.
const DisplayLayout = "02 Jan 2006, 03:04:05 PM"

// NotAvailable is returned by LocalDisplayString for a missing instant.
const NotAvailable = "N/A"

// minValidYear is the only plausibility guard applied to parsed timestamps.
const minValidYear = 2000

// spreadsheetEpoch is day zero of spreadsheet serial dates.
var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerialDay is 9999-12-31, the last day spreadsheets can represent.
const maxSerialDay = 2958465

// dottedTime matches a time of day written with dots, e.g. 23.45 or 23.45.00.
var dottedTime = regexp.MustCompile(`^\d{1,2}(\.\d{2}){1,2}$`)

// Layouts that carry their own offset. They parse to absolute instants.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
}

// Layouts without an offset. They are read as local wall-clock time.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02-01-2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"2006-01-02 3:04:05 PM",
	"2006-01-02 3:04 PM",
	DisplayLayout,
	"2006-01-02",
}

// ToUTC reads the wall-clock fields of local as local time and returns the
// matching UTC instant. The location attached to local is ignored.
func ToUTC(local time.Time) time.Time {
	wall := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
	return wall.Add(-LocalOffset)
}

// ToLocal returns the local wall clock of an instant, expressed in UTC fields.
// It is the inverse of ToUTC.
func ToLocal(instant time.Time) time.Time {
	return instant.UTC().Add(LocalOffset)
}

// LocalDisplayString formats an instant on the local wall clock.
func LocalDisplayString(instant time.Time) string {
	if instant.IsZero() {
		return NotAvailable
	}
	return ToLocal(instant).Format(DisplayLayout)
}

// LocalDayBounds returns the UTC instants of 00:00:00 and 23:59:59 of a local
// calendar day given as YYYY-MM-DD.
func LocalDayBounds(day string) (time.Time, time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(day))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := ToUTC(d)
	return start, start.Add(24*time.Hour - time.Second), nil
}

// LocalDate returns the local calendar date of an instant as YYYY-MM-DD.
func LocalDate(instant time.Time) string {
	return ToLocal(instant).Format("2006-01-02")
}

// ParseFlexibleTimestamp accepts a spreadsheet serial day number, a
// time.Time holding local wall-clock time, or a string. Strings with an
// explicit offset are absolute; all other inputs are local and get shifted to
// UTC. The boolean is false when the input cannot be parsed or lands before
// the year 2000.
func ParseFlexibleTimestamp(raw any) (time.Time, bool) {
	var (
		t  time.Time
		ok bool
	)

	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case float64:
		t, ok = fromSerial(v)
	case float32:
		t, ok = fromSerial(float64(v))
	case int:
		t, ok = fromSerial(float64(v))
	case int64:
		t, ok = fromSerial(float64(v))
	case time.Time:
		if !v.IsZero() {
			t, ok = ToUTC(v), true
		}
	case *time.Time:
		if v != nil && !v.IsZero() {
			t, ok = ToUTC(*v), true
		}
	case string:
		t, ok = parseTimestampString(v)
	}

	if !ok || t.Year() < minValidYear {
		logger.Debug("Rejected timestamp", "raw", raw)
		return time.Time{}, false
	}
	return t.UTC(), true
}

func fromSerial(days float64) (time.Time, bool) {
	if math.IsNaN(days) || math.IsInf(days, 0) || days < 10000 || days > maxSerialDay {
		return time.Time{}, false
	}
	ms := int64(math.Round(days * 86400 * 1000))
	return time.UnixMilli(spreadsheetEpoch.UnixMilli() + ms - LocalOffset.Milliseconds()).UTC(), true
}

func parseTimestampString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSerial(f)
	}

	if !strings.Contains(s, "T") {
		s = normalizeTimeDots(s)
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ToUTC(t), true
		}
	}
	return time.Time{}, false
}

// normalizeTimeDots rewrites a dotted time of day ("23.45.00") to colons,
// wherever it sits among the space-separated fields. Dotted dates are left alone.
func normalizeTimeDots(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if dottedTime.MatchString(f) {
			fields[i] = strings.ReplaceAll(f, ".", ":")
		}
	}
	return strings.Join(fields, " ")
}
