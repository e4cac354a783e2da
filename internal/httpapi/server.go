package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/types"
)

type Dependencies struct {
	Logger   *slog.Logger
	Addr     string
	Registry *service.IdentityRegistry
	Ledger   *service.Ledger
	Query    *service.QueryEngine

	// Store backs /readyz.
	Store store.Pinger

	// Broker, when set, must also answer for /readyz to pass.
	Broker store.Pinger

	// LiveFeed serves /api/live when non-nil.
	LiveFeed http.Handler
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	router     chi.Router
	registry   *service.IdentityRegistry
	ledger     *service.Ledger
	query      *service.QueryEngine
	calendar   service.Calendar
	store      store.Pinger
	broker     store.Pinger
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	s := &Server{
		logger:   logger,
		router:   r,
		registry: d.Registry,
		ledger:   d.Ledger,
		query:    d.Query,
		calendar: d.Ledger.Calendar(),
		store:    d.Store,
		broker:   d.Broker,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(logger))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Get("/students", s.handleListStudents)

		r.Post("/attendance", s.handleCheckIn)
		r.Get("/attendance", s.handleListAttendance)
		r.Get("/attendance/student/{registrationCode}", s.handleStudentAttendance)

		if d.LiveFeed != nil {
			r.Handle("/live", d.LiveFeed)
		}
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Registration ─────────────────────────────────────────────────────────────

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	p, err := s.registry.Register(r.Context(), personInputFromRequest(req))
	if err != nil {
		s.writeServiceError(w, r, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, types.RegisterResponse{
		Success: true,
		Message: "Student registered successfully",
		Student: studentFromRecord(p),
	})
}

// ── Check-in ─────────────────────────────────────────────────────────────────

// handleCheckIn accepts JSON or, from sensors, protobuf.  The response uses
// the request's encoding.
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	proto := isProtobuf(r)

	var req types.CheckInRequest
	if proto {
		body, err := readProtoBody(r)
		if err != nil {
			writeProto(w, http.StatusBadRequest, nil)
			return
		}
		var pb CheckInRequestPB
		if err := pb.Unmarshal(body); err != nil {
			writeProto(w, http.StatusBadRequest, nil)
			return
		}
		req = checkInRequestFromProto(pb)
	} else if !s.decodeJSON(w, r, &req) {
		return
	}

	if t := parseOptionalTimestamp(req.RequestedAt); t != nil {
		s.logger.DebugContext(r.Context(), "sensor clock",
			"biometric_key", req.BiometricKey,
			"skew", time.Since(*t).Round(time.Millisecond).String(),
		)
	}

	res, err := s.ledger.RecordCheckIn(r.Context(), req.BiometricKey)
	if err != nil {
		if proto {
			writeProto(w, s.statusFor(r, "check-in", err), nil)
			return
		}
		s.writeServiceError(w, r, "check-in", err)
		return
	}

	status := http.StatusCreated
	if res.Outcome == service.OutcomeAlreadyRecorded {
		status = http.StatusOK
	}

	if proto {
		writeProto(w, status, checkInResponseToProto(res).Marshal())
		return
	}
	writeJSON(w, status, checkInResponse(res))
}

// ── Reports ──────────────────────────────────────────────────────────────────

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	persons, err := s.query.ListAllPersons(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "list students", err)
		return
	}

	students := make([]types.Student, 0, len(persons))
	for _, p := range persons {
		students = append(students, studentFromRecord(p))
	}
	writeJSON(w, http.StatusOK, types.StudentsResponse{
		Success:  true,
		Count:    len(students),
		Students: students,
	})
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r, s.calendar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}

	rows, err := s.query.ListEvents(r.Context(), rng)
	if err != nil {
		s.writeServiceError(w, r, "list attendance", err)
		return
	}

	entries := attendanceEntries(rows)
	writeJSON(w, http.StatusOK, types.AttendanceResponse{
		Success:    true,
		Count:      len(entries),
		Attendance: entries,
	})
}

func (s *Server) handleStudentAttendance(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r, s.calendar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}

	code := chi.URLParam(r, "registrationCode")
	p, events, err := s.query.ListEventsForPerson(r.Context(), code, rng)
	if err != nil {
		s.writeServiceError(w, r, "student attendance", err)
		return
	}

	records := attendanceRecords(events)
	writeJSON(w, http.StatusOK, types.StudentAttendanceResponse{
		Success: true,
		Student: types.StudentSummary{
			Name:             p.Name,
			RegistrationCode: p.RegistrationCode,
			Phone:            p.Phone,
			Email:            p.Email,
		},
		Count:      len(records),
		Attendance: records,
	})
}

// ── Health ───────────────────────────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, probe := range []struct {
		name string
		p    store.Pinger
	}{{"store", s.store}, {"broker", s.broker}} {
		if probe.p == nil {
			continue
		}
		if err := probe.p.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "readiness probe failed", "component", probe.name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "component": probe.name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

// statusFor maps a service error to an HTTP status, logging the ones that
// are the server's fault.
func (s *Server) statusFor(r *http.Request, op string, err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownIdentity):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.Is(err, service.ErrStoreUnavailable):
		s.logger.ErrorContext(r.Context(), op+" failed", "error", err)
		return http.StatusServiceUnavailable
	default:
		s.logger.ErrorContext(r.Context(), op+" failed", "error", err)
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := s.statusFor(r, op, err)

	var dup *service.DuplicateIdentityError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, status, types.ErrorResponse{
			Error:   "duplicate_identity",
			Message: "a student with this " + strings.ReplaceAll(dup.Field, "_", " ") + " already exists",
			Field:   dup.Field,
		})
	case status == http.StatusBadRequest && errors.Is(err, service.ErrInvalidRange):
		writeError(w, status, "invalid_range", err.Error())
	case status == http.StatusBadRequest:
		writeError(w, status, "invalid_input", err.Error())
	case status == http.StatusNotFound:
		writeError(w, status, "unknown_identity", "no student found")
	case status == http.StatusServiceUnavailable:
		writeError(w, status, "store_unavailable", "storage is unavailable, retry later")
	default:
		writeError(w, status, "internal_error", "unexpected server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: msg})
}
