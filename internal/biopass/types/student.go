package types

type RegisterRequest struct {
	Name             string `json:"name"`
	RegistrationCode string `json:"registration_code"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	BiometricKey     int64  `json:"biometric_key"`
}

type Student struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	RegistrationCode string `json:"registration_code"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	BiometricKey     int64  `json:"biometric_key"`
	EnrolledAt       string `json:"enrolled_at"` // RFC 3339, UTC
}

type RegisterResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Student Student `json:"student"`
}

type StudentsResponse struct {
	Success  bool      `json:"success"`
	Count    int       `json:"count"`
	Students []Student `json:"students"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"` // machine-readable code
	Message string `json:"message"`
	Field   string `json:"field,omitempty"` // set for duplicate_identity
}
