package httpapi

import (
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/types"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ── Students ─────────────────────────────────────────────────────────────────

func studentFromRecord(p store.PersonRecord) types.Student {
	return types.Student{
		ID:               p.PersonID,
		Name:             p.Name,
		RegistrationCode: p.RegistrationCode,
		Phone:            p.Phone,
		Email:            p.Email,
		BiometricKey:     p.BiometricKey,
		EnrolledAt:       formatTime(p.EnrolledAt),
	}
}

func personInputFromRequest(req types.RegisterRequest) service.PersonInput {
	return service.PersonInput{
		Name:             req.Name,
		RegistrationCode: req.RegistrationCode,
		Phone:            req.Phone,
		Email:            req.Email,
		BiometricKey:     req.BiometricKey,
	}
}

// ── Check-in ─────────────────────────────────────────────────────────────────

func checkInResponse(res service.CheckInResult) types.CheckInResponse {
	resp := types.CheckInResponse{
		Success:   true,
		Message:   "Attendance marked successfully",
		Outcome:   res.Outcome.String(),
		Name:      res.Person.Name,
		Phone:     res.Person.Phone,
		EventID:   res.Event.EventID,
		Day:       res.Event.Day,
		Timestamp: formatTime(res.Event.RecordedAt),
	}
	if res.Outcome == service.OutcomeAlreadyRecorded {
		resp.Message = "Attendance already marked for today"
		resp.AlreadyMarked = true
	}
	return resp
}

func checkInResponseToProto(res service.CheckInResult) CheckInResponsePB {
	out := CheckInResponsePB{
		Name:         res.Person.Name,
		Phone:        res.Person.Phone,
		RecordedAtMs: res.Event.RecordedAt.UnixMilli(),
		EventID:      res.Event.EventID,
	}
	switch res.Outcome {
	case service.OutcomeRecorded:
		out.Outcome = OutcomeRecordedPB
	case service.OutcomeAlreadyRecorded:
		out.Outcome = OutcomeAlreadyRecordedPB
	}
	return out
}

func checkInRequestFromProto(p CheckInRequestPB) types.CheckInRequest {
	return types.CheckInRequest{
		BiometricKey: p.BiometricKey,
		RequestedAt:  p.RequestedAt,
	}
}

// ── Reports ──────────────────────────────────────────────────────────────────

func attendanceEntries(rows []store.AttendanceWithPerson) []types.AttendanceEntry {
	out := make([]types.AttendanceEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.AttendanceEntry{
			EventID:   row.Event.EventID,
			Day:       row.Event.Day,
			Timestamp: formatTime(row.Event.RecordedAt),
			Student: types.StudentSummary{
				ID:               row.Person.PersonID,
				Name:             row.Person.Name,
				RegistrationCode: row.Person.RegistrationCode,
			},
		})
	}
	return out
}

func attendanceRecords(events []store.AttendanceRecord) []types.AttendanceRecord {
	out := make([]types.AttendanceRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, types.AttendanceRecord{
			EventID:   ev.EventID,
			Day:       ev.Day,
			Timestamp: formatTime(ev.RecordedAt),
		})
	}
	return out
}
