package appointment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidReference    = errors.New("doctor does not belong to department")
	ErrInvalidSlot         = errors.New("time slot is not offered by doctor")
	ErrInvalidDate         = errors.New("date is outside the booking window")
	ErrSlotConflict        = errors.New("slot already booked")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidStatus       = errors.New("unknown appointment status")

	// ErrSlotBusy means another booking held the slot lock for longer than
	// the configured wait. It matches ErrSlotConflict.
	ErrSlotBusy = fmt.Errorf("%w: slot is currently being booked", ErrSlotConflict)
)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	// Insert assigns the id. It must fail with ErrSlotConflict when an active
	// appointment already holds the same slot key.
	Insert(ctx context.Context, a Appointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	ListAppointments(ctx context.Context) ([]Appointment, error)

	// For conflict checks and slot views
	FindActiveBySlot(ctx context.Context, key SlotKey) (*Appointment, error)
	BookedTimeSlots(ctx context.Context, doctorID int64, date string) ([]string, error)

	// UpdateAppointmentStatus is a compare-and-swap on status; a mismatch on
	// from is reported as ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
