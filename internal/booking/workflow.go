// Package booking drives the three-step appointment wizard as an explicit
// state machine: pick a doctor, pick a time, enter contact details, submit.
package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/catalog"
)

var (
	ErrInvalidStep     = errors.New("action not allowed in current step")
	ErrUnknownDoctor   = errors.New("doctor is not in the selected department")
	ErrSlotUnavailable = errors.New("time slot is not available")
	ErrStaleResponse   = errors.New("workflow changed while the request was in flight")
)

type State int

const (
	SelectingDoctor State = iota
	SelectingTime
	EnteringContact
	Submitting
	Done
	// Failed is only reported as a Result outcome; Submit routes the
	// workflow back to an editable step before returning.
	Failed
)

func (s State) String() string {
	switch s {
	case SelectingDoctor:
		return "selecting_doctor"
	case SelectingTime:
		return "selecting_time"
	case EnteringContact:
		return "entering_contact"
	case Submitting:
		return "submitting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store is the slice of the appointment service the wizard talks to.
type Store interface {
	CreateAppointment(ctx context.Context, in appointment.CreateInput) (*appointment.Appointment, error)
	BookedSlotsFor(ctx context.Context, doctorID int64, date string) ([]string, error)
}

type Catalog interface {
	GetDoctor(id int64) (catalog.Doctor, bool)
}

type Form struct {
	DepartmentID int64
	DoctorID     int64
	Date         string
	TimeSlot     string
	PatientName  string
	Phone        string
	Email        string
	Notes        string
}

func (f Form) input() appointment.CreateInput {
	return appointment.CreateInput{
		DepartmentID: f.DepartmentID,
		DoctorID:     f.DoctorID,
		Date:         f.Date,
		TimeSlot:     f.TimeSlot,
		PatientName:  strings.TrimSpace(f.PatientName),
		Phone:        strings.TrimSpace(f.Phone),
		Email:        strings.TrimSpace(f.Email),
		Notes:        f.Notes,
	}
}

type Contact struct {
	PatientName string
	Phone       string
	Email       string
	Notes       string
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a dismissible message for the user.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// SlotOption is one entry of the time selector; booked entries are disabled.
type SlotOption struct {
	Time   string
	Booked bool
}

// Result is what an asynchronous submission delivers. Outcome is Done or Failed.
type Result struct {
	Appointment *appointment.Appointment
	Outcome     State
	Err         error
}

// Workflow is safe for concurrent use so a Cancel can race an in-flight
// Submit; the store call itself runs without the workflow lock held.
type Workflow struct {
	mu         sync.Mutex
	store      Store
	catalog    Catalog
	state      State
	form       Form
	errs       FieldErrors
	booked     []string
	notice     *Notice
	generation uint64
}

func New(store Store, cat Catalog) *Workflow {
	return &Workflow{store: store, catalog: cat}
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workflow) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Errors returns the field errors of the last failed step check.
func (w *Workflow) Errors() FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(FieldErrors, len(w.errs))
	for k, v := range w.errs {
		out[k] = v
	}
	return out
}

func (w *Workflow) Notice() (Notice, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notice == nil {
		return Notice{}, false
	}
	return *w.notice, true
}

func (w *Workflow) DismissNotice() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notice = nil
}

// SelectDepartment picks a department. Switching departments drops the
// doctor and everything chosen for that doctor.
func (w *Workflow) SelectDepartment(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != SelectingDoctor {
		return ErrInvalidStep
	}
	if id != w.form.DepartmentID {
		w.form.DoctorID = 0
		w.clearSchedule()
	}
	w.form.DepartmentID = id
	return nil
}

func (w *Workflow) SelectDoctor(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != SelectingDoctor {
		return ErrInvalidStep
	}
	doc, ok := w.catalog.GetDoctor(id)
	if !ok || doc.DepartmentID != w.form.DepartmentID {
		w.errs = FieldErrors{"doctorId": "Please select a doctor from this department"}
		return ErrUnknownDoctor
	}
	if doc.ID != w.form.DoctorID {
		w.clearSchedule()
	}
	w.form.DoctorID = id
	delete(w.errs, "doctorId")
	return nil
}

// clearSchedule forgets the date, slot and booked set, which all belong to
// the previously selected doctor. Booked-set loads still in flight are stale.
func (w *Workflow) clearSchedule() {
	w.generation++
	w.form.Date = ""
	w.form.TimeSlot = ""
	w.booked = nil
}

// SelectDate sets the date, clears the time slot and refreshes the booked set.
func (w *Workflow) SelectDate(ctx context.Context, date string) error {
	w.mu.Lock()
	if w.state != SelectingTime {
		w.mu.Unlock()
		return ErrInvalidStep
	}
	w.form.Date = date
	w.form.TimeSlot = ""
	doctorID, gen := w.form.DoctorID, w.generation
	w.mu.Unlock()

	booked, err := w.store.BookedSlotsFor(ctx, doctorID, date)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || w.form.Date != date {
		return ErrStaleResponse
	}
	if err != nil {
		w.booked = nil
		return fmt.Errorf("load booked slots: %w", err)
	}
	w.booked = booked
	return nil
}

// TimeSlots lists the chosen doctor's slots with booked ones flagged.
func (w *Workflow) TimeSlots() []SlotOption {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc, ok := w.catalog.GetDoctor(w.form.DoctorID)
	if !ok || w.form.Date == "" {
		return nil
	}
	out := make([]SlotOption, 0, len(doc.Availability))
	for _, slot := range doc.Availability {
		out = append(out, SlotOption{Time: slot, Booked: slices.Contains(w.booked, slot)})
	}
	return out
}

// SelectTimeSlot rejects slots the doctor does not offer or that are booked.
func (w *Workflow) SelectTimeSlot(slot string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != SelectingTime {
		return ErrInvalidStep
	}
	doc, ok := w.catalog.GetDoctor(w.form.DoctorID)
	if !ok || !doc.Offers(slot) || slices.Contains(w.booked, slot) {
		return ErrSlotUnavailable
	}
	w.form.TimeSlot = slot
	return nil
}

func (w *Workflow) SetContact(c Contact) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != EnteringContact {
		return ErrInvalidStep
	}
	w.form.PatientName = c.PatientName
	w.form.Phone = c.Phone
	w.form.Email = c.Email
	w.form.Notes = c.Notes
	return nil
}

// Next validates the current step and advances. On failure the state is kept
// and the returned FieldErrors are also available from Errors.
func (w *Workflow) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs FieldErrors
	switch w.state {
	case SelectingDoctor:
		errs = check(doctorStep{DepartmentID: w.form.DepartmentID, DoctorID: w.form.DoctorID})
	case SelectingTime:
		errs = check(timeStep{Date: w.form.Date, TimeSlot: w.form.TimeSlot})
	default:
		return ErrInvalidStep
	}

	w.errs = errs
	if len(errs) > 0 {
		return errs
	}
	w.state++
	return nil
}

// Back steps to the previous state keeping all input. Going back from
// Submitting abandons the in-flight response.
func (w *Workflow) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.errs = nil
	switch w.state {
	case SelectingTime:
		w.state = SelectingDoctor
	case EnteringContact:
		w.state = SelectingTime
	case Submitting:
		w.generation++
		w.state = EnteringContact
	}
}

// Cancel clears everything and returns to the first step.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

func (w *Workflow) reset() {
	w.generation++
	w.state = SelectingDoctor
	w.form = Form{}
	w.errs = nil
	w.booked = nil
}

// Submit validates the contact step and books the appointment. On success
// the workflow resets for the next booking. On failure the input is kept and
// the workflow returns to the step that owns the offending field.
func (w *Workflow) Submit(ctx context.Context) (*appointment.Appointment, error) {
	w.mu.Lock()
	if w.state != EnteringContact {
		w.mu.Unlock()
		return nil, ErrInvalidStep
	}
	if errs := ValidateContact(w.form.PatientName, w.form.Phone, w.form.Email); len(errs) > 0 {
		w.errs = errs
		w.mu.Unlock()
		return nil, errs
	}
	w.errs = nil
	w.state = Submitting
	gen := w.generation
	in := w.form.input()
	w.mu.Unlock()

	appt, err := w.store.CreateAppointment(ctx, in)

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		return nil, ErrStaleResponse
	}

	if err == nil {
		w.notice = &Notice{Kind: NoticeSuccess, Message: "Appointment booked successfully!"}
		w.reset()
		w.mu.Unlock()
		return appt, nil
	}

	w.notice = &Notice{Kind: NoticeError, Message: failureMessage(err)}
	lost := w.routeFailure(err)
	doctorID, date := w.form.DoctorID, w.form.Date
	w.mu.Unlock()

	if errors.Is(err, appointment.ErrSlotConflict) {
		w.refreshBooked(ctx, gen, doctorID, date, lost)
	}
	return nil, err
}

// SubmitAsync runs Submit in the background. The channel receives exactly
// one Result and is then closed.
func (w *Workflow) SubmitAsync(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		appt, err := w.Submit(ctx)
		outcome := Done
		if err != nil {
			outcome = Failed
		}
		out <- Result{Appointment: appt, Outcome: outcome, Err: err}
	}()
	return out
}

// routeFailure moves a failed submission back to the step that produced the
// bad input and returns the time slot that was given up, if any. Called with
// w.mu held.
func (w *Workflow) routeFailure(err error) (lost string) {
	switch {
	case errors.Is(err, appointment.ErrInvalidReference):
		w.state = SelectingDoctor
		w.errs = FieldErrors{"doctorId": "Please select a doctor"}
	case errors.Is(err, appointment.ErrSlotConflict):
		lost = w.form.TimeSlot
		w.state = SelectingTime
		w.form.TimeSlot = ""
		w.errs = FieldErrors{"timeSlot": "That time was just booked, please pick another"}
		if !slices.Contains(w.booked, lost) {
			w.booked = append(slices.Clone(w.booked), lost)
			slices.Sort(w.booked)
		}
	case errors.Is(err, appointment.ErrInvalidSlot):
		w.state = SelectingTime
		w.form.TimeSlot = ""
		w.errs = FieldErrors{"timeSlot": "Please select a time slot"}
	case errors.Is(err, appointment.ErrInvalidDate):
		w.state = SelectingTime
		w.errs = FieldErrors{"date": "Please select a date within the booking window"}
	default:
		w.state = EnteringContact
	}
	return lost
}

// refreshBooked reloads the booked set after a lost race. The lost slot stays
// marked as booked even if the reload fails.
func (w *Workflow) refreshBooked(ctx context.Context, gen uint64, doctorID int64, date, lost string) {
	booked, err := w.store.BookedSlotsFor(context.WithoutCancel(ctx), doctorID, date)
	if err != nil {
		return
	}
	if lost != "" && !slices.Contains(booked, lost) {
		booked = append(booked, lost)
	}
	slices.Sort(booked)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen == w.generation && w.form.Date == date {
		w.booked = booked
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, appointment.ErrSlotConflict):
		return "Failed to book appointment: that time slot is no longer available"
	case errors.Is(err, appointment.ErrInvalidReference):
		return "Failed to book appointment: the selected doctor is not available in this department"
	case errors.Is(err, appointment.ErrInvalidSlot):
		return "Failed to book appointment: the doctor does not offer that time"
	case errors.Is(err, appointment.ErrInvalidDate):
		return "Failed to book appointment: the date is outside the booking window"
	default:
		return "Failed to book appointment"
	}
}
