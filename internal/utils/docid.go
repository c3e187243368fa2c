package utils

import (
	"fmt"
	"time"
)

// GenerateDocID builds the deterministic document key
// {prefix}_{owner}_{YYYYMMDD}_{HHMMSS}. The calendar fields are always taken
// from the UTC representation, truncated to whole seconds, so two writes of
// the same prefix and owner within one second share a key.
func GenerateDocID(prefix, ownerID string, timestamp time.Time) string {
	t := timestamp.UTC().Truncate(time.Second)
	return fmt.Sprintf("%s_%s_%04d%02d%02d_%02d%02d%02d",
		prefix, ownerID,
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second())
}
