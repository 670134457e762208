package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/catalog"
	"github.com/hackgods/clinic-slot-booking/pkg/logging"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, in appointment.CreateInput) (*appointment.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, to appointment.AppointmentStatus) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context) ([]appointment.Appointment, error)
	BookedSlotsFor(ctx context.Context, doctorID int64, date string) ([]string, error)
	AvailableSlotsFor(ctx context.Context, doctorID int64, date string) ([]string, error)
	Window() (first, last string)
}

type Catalog interface {
	ListDepartments() []catalog.Department
	ListDoctorsByDepartment(departmentID int64) []catalog.Doctor
	GetDoctor(id int64) (catalog.Doctor, bool)
	GetDepartment(id int64) (catalog.Department, bool)
}

type RouterConfig struct {
	Service        AppointmentService
	Catalog        Catalog
	Dependencies   []Dependency
	MetricsHandler http.Handler
	Logger         *logging.Logger
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Reference data
	r.Get("/departments", listDepartmentsHandler(cfg.Catalog))
	r.Get("/departments/{id}/doctors", listDoctorsHandler(cfg.Catalog))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Catalog))
	r.Get("/doctors/{id}/slots", doctorSlotsHandler(cfg.Service, cfg.Catalog))
	r.Get("/booking-window", bookingWindowHandler(cfg.Service))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service, cfg.Catalog))
		r.Get("/", listAppointmentsHandler(cfg.Service, cfg.Catalog))
		r.Get("/{id}", getAppointmentHandler(cfg.Service, cfg.Catalog))
		r.Patch("/{id}", updateStatusHandler(cfg.Service, cfg.Catalog))
	})

	return r
}
