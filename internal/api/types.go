package api

import (
	"time"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/catalog"
)

type CreateAppointmentRequest struct {
	DepartmentID int64  `json:"department_id"`
	DoctorID     int64  `json:"doctor_id"`
	Date         string `json:"date"`
	TimeSlot     string `json:"time_slot"`
	PatientName  string `json:"patient_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Notes        string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type DepartmentResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type DoctorResponse struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization"`
	DepartmentID   int64    `json:"department_id"`
	Availability   []string `json:"availability"`
}

type AppointmentResponse struct {
	ID             int64     `json:"id"`
	DepartmentID   int64     `json:"department_id"`
	DepartmentName string    `json:"department_name,omitempty"`
	DoctorID       int64     `json:"doctor_id"`
	DoctorName     string    `json:"doctor_name,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Date           string    `json:"date"`
	TimeSlot       string    `json:"time_slot"`
	PatientName    string    `json:"patient_name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	Notes          string    `json:"notes,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatusChangeResponse carries the updated record plus the user-facing notice.
type StatusChangeResponse struct {
	Message     string              `json:"message"`
	Appointment AppointmentResponse `json:"appointment"`
}

type SlotsResponse struct {
	DoctorID  int64    `json:"doctor_id"`
	Date      string   `json:"date"`
	Booked    []string `json:"booked"`
	Available []string `json:"available"`
}

type BookingWindowResponse struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toDepartment(d catalog.Department) DepartmentResponse {
	return DepartmentResponse{ID: d.ID, Name: d.Name}
}

func toDoctor(d catalog.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		DepartmentID:   d.DepartmentID,
		Availability:   d.Availability,
	}
}

// toAppointment enriches the record with catalog names when they resolve.
func toAppointment(a appointment.Appointment, cat Catalog) AppointmentResponse {
	resp := AppointmentResponse{
		ID:           a.ID,
		DepartmentID: a.DepartmentID,
		DoctorID:     a.DoctorID,
		Date:         a.Date,
		TimeSlot:     a.TimeSlot,
		PatientName:  a.PatientName,
		Phone:        a.Phone,
		Email:        a.Email,
		Notes:        a.Notes,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if doc, ok := cat.GetDoctor(a.DoctorID); ok {
		resp.DoctorName = doc.Name
		resp.Specialization = doc.Specialization
	}
	if dept, ok := cat.GetDepartment(a.DepartmentID); ok {
		resp.DepartmentName = dept.Name
	}
	return resp
}
