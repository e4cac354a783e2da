package types

type CheckInRequest struct {
	BiometricKey int64  `json:"biometric_key"`
	RequestedAt  string `json:"requested_at,omitempty"` // optional sensor timestamp
}

type CheckInResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Outcome       string `json:"outcome"` // "recorded" | "already_recorded"
	AlreadyMarked bool   `json:"already_marked"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	EventID       int64  `json:"event_id"`
	Day           string `json:"day"`
	Timestamp     string `json:"timestamp"` // RFC 3339, UTC
}

type StudentSummary struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name"`
	RegistrationCode string `json:"registration_code"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
}

type AttendanceEntry struct {
	EventID   int64          `json:"event_id"`
	Day       string         `json:"day"`
	Timestamp string         `json:"timestamp"`
	Student   StudentSummary `json:"student"`
}

type AttendanceResponse struct {
	Success    bool              `json:"success"`
	Count      int               `json:"count"`
	Attendance []AttendanceEntry `json:"attendance"`
}

type AttendanceRecord struct {
	EventID   int64  `json:"event_id"`
	Day       string `json:"day"`
	Timestamp string `json:"timestamp"`
}

type StudentAttendanceResponse struct {
	Success    bool               `json:"success"`
	Student    StudentSummary     `json:"student"`
	Count      int                `json:"count"`
	Attendance []AttendanceRecord `json:"attendance"`
}
