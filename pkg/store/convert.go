package store

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Lenient conversions for values coming back from the driver. Absent or
// mistyped values collapse to zero values rather than erroring; callers that
// need strictness check presence on the record first.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// asTime decodes the timestamp strings this store writes (RFC3339 parsing
// accepts the fractional seconds), plus the native temporal types a server
// may hand back for values written by other tools.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case time.Time:
		return t, true
	case dbtype.LocalDateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}
