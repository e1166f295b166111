package models

// AdminStatsQueryParams scopes the time-series sections of the stats
// response. Days defaults to 30 when omitted.
type AdminStatsQueryParams struct {
	Days int `query:"days" validate:"omitempty,min=1,max=365"`
}

// AdminStatsResponse is the deployment-wide two-factor adoption summary.
type AdminStatsResponse struct {
	TotalUsers          int64             `json:"total_users"`
	EnrolledUsers       int64             `json:"enrolled_users"`
	PendingUsers        int64             `json:"pending_users"`
	EnrollmentsByDay    []TimeSeriesPoint `json:"enrollments_by_day"`
	TrustedDevicesByDay []TimeSeriesPoint `json:"trusted_devices_by_day"`
	VerificationsByDay  []TimeSeriesPoint `json:"verifications_by_day"`
	FailuresByDay       []TimeSeriesPoint `json:"failures_by_day"`
}

// AdminActivityQueryParams filters the audit-log search. Multiple values for
// one field are comma separated and OR-ed together.
type AdminActivityQueryParams struct {
	Action   string `query:"action"    validate:"omitempty,max=64"`
	UserID   string `query:"user_id"   validate:"omitempty,uuid"`
	Email    string `query:"email"     validate:"omitempty,max=254"`
	DeviceID string `query:"device_id" validate:"omitempty,max=64"`
	IP       string `query:"ip"        validate:"omitempty,max=45"`
}

// AdminActivityResponse wraps the raw audit entries returned by the backend.
type AdminActivityResponse struct {
	Results []map[string]interface{} `json:"results"`
}
