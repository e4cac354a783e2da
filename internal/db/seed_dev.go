package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DevStudent is the demo enrolment created by SeedDev so a freshly started
// dev server can accept check-ins from sensor key 1.
type DevStudent struct {
	PersonID         string
	Name             string
	RegistrationCode string
	Phone            string
	Email            string
	BiometricKey     int64
}

var defaultDevStudent = DevStudent{
	PersonID:         "00000000-0000-4000-8000-000000000001",
	Name:             "Dev Student",
	RegistrationCode: "DEV0001",
	Phone:            "+15550000001",
	Email:            "dev.student@example.edu",
	BiometricKey:     1,
}

type SeedDevOptions struct {
	// Students overrides the default demo enrolment when non-empty.
	Students []DevStudent
}

// SeedDev inserts demo students, skipping any whose code or key is taken.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	students := opt.Students
	if len(students) == 0 {
		students = []DevStudent{defaultDevStudent}
	}

	for _, st := range students {
		if _, err := db.ExecContext(ctx, `
INSERT INTO persons(
  person_id, name, registration_code, phone, email, biometric_key, enrolled_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING;
`, st.PersonID, st.Name, st.RegistrationCode, st.Phone, st.Email, st.BiometricKey, now); err != nil {
			return fmt.Errorf("seed student %s: %w", st.RegistrationCode, err)
		}
	}

	return nil
}
