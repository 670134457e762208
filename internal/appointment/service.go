package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hackgods/clinic-slot-booking/internal/catalog"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
	"github.com/hackgods/clinic-slot-booking/pkg/logging"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

// maxTransitionAttempts bounds re-reads when a concurrent writer wins the
// status compare-and-swap.
const maxTransitionAttempts = 3

// Catalog is the reference data lookup the service validates against.
type Catalog interface {
	GetDoctor(id int64) (catalog.Doctor, bool)
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	catalog Catalog
	window  BookingWindow
	policy  TransitionPolicy
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo Repository, locker redisclient.Locker, cat Catalog, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		locker:  locker,
		catalog: cat,
		window:  BookingWindow{Days: cfg.BookingWindowDays, Location: cfg.Location},
		policy:  TransitionPolicy{AllowConfirmedCancellation: cfg.AllowConfirmedCancellation},
		now:     time.Now,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAppointment books a slot. Preconditions are checked in order: doctor
// belongs to the department, the time slot is offered, the date is inside the
// booking window, and finally, under the slot lock, the slot is still free.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	start := s.now()
	created, err := s.create(ctx, in)
	s.metrics.ObserveCreate(createOutcome(err), s.now().Sub(start).Seconds())
	if err != nil {
		s.logger.Info("appointment not created",
			"doctor_id", in.DoctorID, "date", in.Date, "time_slot", in.TimeSlot, "error", err)
		return nil, err
	}

	s.logger.Info("appointment created",
		"appointment_id", created.ID, "doctor_id", created.DoctorID,
		"date", created.Date, "time_slot", created.TimeSlot)
	return created, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (*Appointment, error) {
	doctor, ok := s.catalog.GetDoctor(in.DoctorID)
	if !ok || doctor.DepartmentID != in.DepartmentID {
		return nil, fmt.Errorf("%w: doctor %d, department %d", ErrInvalidReference, in.DoctorID, in.DepartmentID)
	}
	if !doctor.Offers(in.TimeSlot) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, in.TimeSlot)
	}
	if err := s.window.Check(in.Date, s.now()); err != nil {
		return nil, err
	}

	key := in.SlotKey()
	var created *Appointment

	err := s.locker.WithSlotLock(ctx, key.String(), func(lockCtx context.Context) error {
		// Once the lock is held the write runs to completion even if the
		// caller goes away.
		writeCtx := context.WithoutCancel(lockCtx)

		// Inside the critical section re-check for an active appointment on this slot
		existing, err := s.repo.FindActiveBySlot(writeCtx, key)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot: %w", err)
		}
		if existing != nil {
			return ErrSlotConflict
		}

		appt, err := s.repo.Insert(writeCtx, Appointment{
			DepartmentID: in.DepartmentID,
			DoctorID:     in.DoctorID,
			Date:         in.Date,
			TimeSlot:     in.TimeSlot,
			PatientName:  in.PatientName,
			Phone:        in.Phone,
			Email:        in.Email,
			Notes:        in.Notes,
			Status:       StatusPending,
			CreatedAt:    s.now().UTC(),
		})
		if err != nil {
			if errors.Is(err, ErrSlotConflict) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(writeCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id": appt.DoctorID,
			"date":      appt.Date,
			"time_slot": appt.TimeSlot,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	return created, nil
}

// UpdateAppointmentStatus moves an appointment along the lifecycle. The write
// is a compare-and-swap on the status that was validated, so two concurrent
// writers can never both apply a transition from the same state.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id int64, to AppointmentStatus) (*Appointment, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load appointment: %w", err)
		}

		from := appt.Status
		if !s.policy.Allowed(from, to) {
			s.metrics.ObserveTransition(string(from), string(to), "rejected")
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}

		updated, err := s.repo.UpdateAppointmentStatus(context.WithoutCancel(ctx), id, from, to)
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the race; re-validate against the new state.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update appointment status: %w", err)
		}

		s.metrics.ObserveTransition(string(from), string(to), "ok")
		s.logEvent(ctx, id, EventAppointmentStatusChanged, map[string]any{
			"from": from,
			"to":   to,
		})
		s.logger.Info("appointment status changed", "appointment_id", id, "from", from, "to", to)

		return updated, nil
	}

	s.metrics.ObserveTransition("", string(to), "contended")
	return nil, fmt.Errorf("%w: appointment %d changed concurrently", ErrInvalidTransition, id)
}

// GetAppointment retrieves one appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments returns every appointment in insertion order.
func (s *Service) ListAppointments(ctx context.Context) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// IsBooked reports whether an active appointment holds the slot.
func (s *Service) IsBooked(ctx context.Context, key SlotKey) (bool, error) {
	_, err := s.repo.FindActiveBySlot(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAppointmentNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check slot: %w", err)
	}
}

// BookedSlotsFor lists the taken times for a doctor on a date, sorted.
func (s *Service) BookedSlotsFor(ctx context.Context, doctorID int64, date string) ([]string, error) {
	slots, err := s.repo.BookedTimeSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("booked slots: %w", err)
	}
	if slots == nil {
		slots = []string{}
	}
	slices.Sort(slots)
	return slots, nil
}

// AvailableSlotsFor is the doctor's offered times minus the booked ones, in
// the doctor's own order.
func (s *Service) AvailableSlotsFor(ctx context.Context, doctorID int64, date string) ([]string, error) {
	doctor, ok := s.catalog.GetDoctor(doctorID)
	if !ok {
		return nil, fmt.Errorf("%w: doctor %d", ErrInvalidReference, doctorID)
	}
	booked, err := s.BookedSlotsFor(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	free := []string{}
	for _, slot := range doctor.Availability {
		if !slices.Contains(booked, slot) {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Window returns the bookable date range as of now.
func (s *Service) Window() (first, last string) {
	f, l := s.window.Bounds(s.now())
	return f.Format(DateLayout), l.Format(DateLayout)
}

// Policy exposes the transition table in force.
func (s *Service) Policy() TransitionPolicy {
	return s.policy
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log",
			"event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}

func createOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrSlotBusy):
		return "slot_busy"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	default:
		return "error"
	}
}
