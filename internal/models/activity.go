package models

// Activity is one audit-log entry. Entries are append-only; the activity
// backend indexes the filter fields for the admin search endpoints.
type Activity struct {
	Message string    `json:"message"`
	Filter  LogFilter `json:"filter"`
	Object  any       `json:"object,omitempty"`
}

// LogFilter carries the indexed fields of an activity entry. Timestamp is
// unix nanoseconds as a string.
type LogFilter struct {
	Fields    map[string]string `json:"fields"`
	Timestamp string            `json:"timestamp"`
}

// TimeSeriesPoint is one bucket of the per-day activity aggregation.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
