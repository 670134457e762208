package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/booking"
)

func listDepartmentsHandler(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depts := cat.ListDepartments()
		resp := make([]DepartmentResponse, 0, len(depts))
		for _, d := range depts {
			resp = append(resp, toDepartment(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listDoctorsHandler(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_department_id")
		if !ok {
			return
		}
		if _, found := cat.GetDepartment(id); !found {
			writeError(w, http.StatusNotFound, "department_not_found", "no department with that id")
			return
		}

		doctors := cat.ListDoctorsByDepartment(id)
		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, toDoctor(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		doc, found := cat.GetDoctor(id)
		if !found {
			writeError(w, http.StatusNotFound, "doctor_not_found", "no doctor with that id")
			return
		}
		writeJSON(w, http.StatusOK, toDoctor(doc))
	}
}

func doctorSlotsHandler(svc AppointmentService, cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		if _, found := cat.GetDoctor(id); !found {
			writeError(w, http.StatusNotFound, "doctor_not_found", "no doctor with that id")
			return
		}
		date := r.URL.Query().Get("date")
		if _, err := time.Parse(appointment.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		booked, err := svc.BookedSlotsFor(r.Context(), id, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		available, err := svc.AvailableSlotsFor(r.Context(), id, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{DoctorID: id, Date: date, Booked: booked, Available: available})
	}
}

func bookingWindowHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		first, last := svc.Window()
		writeJSON(w, http.StatusOK, BookingWindowResponse{First: first, Last: last})
	}
}

func createAppointmentHandler(svc AppointmentService, cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if fe := booking.ValidateContact(req.PatientName, req.Phone, req.Email); len(fe) > 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Fields: fe})
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateInput{
			DepartmentID: req.DepartmentID,
			DoctorID:     req.DoctorID,
			Date:         req.Date,
			TimeSlot:     req.TimeSlot,
			PatientName:  strings.TrimSpace(req.PatientName),
			Phone:        strings.TrimSpace(req.Phone),
			Email:        strings.TrimSpace(req.Email),
			Notes:        req.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointment(*appt, cat))
	}
}

func listAppointmentsHandler(svc AppointmentService, cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria := appointment.Criteria{SearchText: r.URL.Query().Get("q")}
		if s := r.URL.Query().Get("status"); s != "" && s != string(appointment.StatusAll) {
			status, err := appointment.ParseStatus(s)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			criteria.Status = status
		}

		all, err := svc.ListAppointments(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		matched := appointment.Filter(all, criteria)
		resp := make([]AppointmentResponse, 0, len(matched))
		for _, a := range matched {
			resp = append(resp, toAppointment(a, cat))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService, cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointment(*appt, cat))
	}
}

func updateStatusHandler(svc AppointmentService, cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateAppointmentStatus(r.Context(), id, appointment.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, StatusChangeResponse{
			Message:     "Appointment " + string(appt.Status) + "!",
			Appointment: toAppointment(*appt, cat),
		})
	}
}

func parseID(w http.ResponseWriter, r *http.Request, code string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, code, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotBusy):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrInvalidReference):
		writeError(w, http.StatusUnprocessableEntity, "invalid_reference", err.Error())
	case errors.Is(err, appointment.ErrInvalidSlot):
		writeError(w, http.StatusUnprocessableEntity, "invalid_time_slot", err.Error())
	case errors.Is(err, appointment.ErrInvalidDate):
		writeError(w, http.StatusUnprocessableEntity, "invalid_date", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
