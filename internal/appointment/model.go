package appointment

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ParseStatus accepts only the four lifecycle values.
func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Terminal statuses accept no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active appointments hold their slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled
}

const DateLayout = "2006-01-02"

// SlotKey identifies one bookable (doctor, date, time of day) opportunity.
type SlotKey struct {
	DoctorID int64
	Date     string
	TimeSlot string
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%d:%s:%s", k.DoctorID, k.Date, k.TimeSlot)
}

type Appointment struct {
	ID           int64
	DepartmentID int64
	DoctorID     int64
	Date         string // ISO 8601 calendar date
	TimeSlot     string
	PatientName  string
	Phone        string
	Email        string
	Notes        string
	Status       AppointmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Appointment) SlotKey() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.Date, TimeSlot: a.TimeSlot}
}

// CreateInput is everything the booking form collects.
type CreateInput struct {
	DepartmentID int64
	DoctorID     int64
	Date         string
	TimeSlot     string
	PatientName  string
	Phone        string
	Email        string
	Notes        string
}

func (in CreateInput) SlotKey() SlotKey {
	return SlotKey{DoctorID: in.DoctorID, Date: in.Date, TimeSlot: in.TimeSlot}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}
