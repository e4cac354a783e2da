package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

// DefaultPhonePattern accepts 7 to 15 digits with an optional leading "+".
const DefaultPhonePattern = `^\+?[0-9]{7,15}$`

// PersonInput is a registration request.  Strings are trimmed before the
// validate tags are checked.
type PersonInput struct {
	Name             string `json:"name" validate:"required,max=200"`
	RegistrationCode string `json:"registration_code" validate:"required,max=64"`
	Phone            string `json:"phone" validate:"required,phone"`
	Email            string `json:"email" validate:"required,email"`
	BiometricKey     int64  `json:"biometric_key" validate:"gt=0"`
}

type RegistryConfig struct {
	// PhonePattern overrides DefaultPhonePattern.
	PhonePattern string

	// Now overrides the clock used for EnrolledAt.
	Now func() time.Time

	// NewID overrides person id generation.
	NewID func() string
}

// IdentityRegistry owns enrolment and the key/code lookups every other
// operation starts from.
type IdentityRegistry struct {
	store    store.PersonStore
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

func NewIdentityRegistry(st store.PersonStore, n Notifier, cfg RegistryConfig, logger *slog.Logger) (*IdentityRegistry, error) {
	pattern := cfg.PhonePattern
	if pattern == "" {
		pattern = DefaultPhonePattern
	}
	phoneRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile phone pattern: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register phone validation: %w", err)
	}

	if n == nil {
		n = NopNotifier{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IdentityRegistry{
		store:    st,
		notifier: n,
		validate: v,
		now:      cfg.Now,
		newID:    cfg.NewID,
		logger:   logger,
	}, nil
}

// Register enrols a new person.  A taken registration code or biometric key
// yields a *DuplicateIdentityError and writes nothing.
func (r *IdentityRegistry) Register(ctx context.Context, in PersonInput) (store.PersonRecord, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.RegistrationCode = strings.TrimSpace(in.RegistrationCode)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)

	if err := r.validate.Struct(in); err != nil {
		observability.Registrations.WithLabelValues("invalid").Inc()
		return store.PersonRecord{}, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}

	rec := store.PersonRecord{
		PersonID:         r.newID(),
		Name:             in.Name,
		RegistrationCode: in.RegistrationCode,
		Phone:            in.Phone,
		Email:            in.Email,
		BiometricKey:     in.BiometricKey,
		EnrolledAt:       r.now().UTC().Truncate(time.Millisecond),
	}

	if err := r.store.CreatePerson(ctx, rec); err != nil {
		err = translate("register", err)
		if errors.Is(err, ErrDuplicateIdentity) {
			observability.Registrations.WithLabelValues("duplicate").Inc()
		} else {
			observability.Registrations.WithLabelValues("error").Inc()
			r.logger.Error("register failed", "registration_code", rec.RegistrationCode, "error", err)
		}
		return store.PersonRecord{}, err
	}

	observability.Registrations.WithLabelValues("created").Inc()
	r.logger.Info("person registered", "person_id", rec.PersonID, "registration_code", rec.RegistrationCode)
	r.notifier.Notify(ctx, registeredNotification(rec))
	return rec, nil
}

func (r *IdentityRegistry) LookupByBiometricKey(ctx context.Context, key int64) (store.PersonRecord, error) {
	if key <= 0 {
		return store.PersonRecord{}, fmt.Errorf("%w: biometric_key must be positive", ErrInvalidInput)
	}
	p, err := r.store.PersonByBiometricKey(ctx, key)
	if err != nil {
		return store.PersonRecord{}, translate("lookup by biometric key", err)
	}
	return p, nil
}

func (r *IdentityRegistry) LookupByRegistrationCode(ctx context.Context, code string) (store.PersonRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return store.PersonRecord{}, fmt.Errorf("%w: registration_code is required", ErrInvalidInput)
	}
	p, err := r.store.PersonByRegistrationCode(ctx, code)
	if err != nil {
		return store.PersonRecord{}, translate("lookup by registration code", err)
	}
	return p, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
