package appointment

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepository keeps appointments in process. A single mutex guards the
// records and the active-slot index so both always change together.
type MemoryRepository struct {
	mu           sync.RWMutex
	nextID       int64
	nextEventID  int64
	appointments []Appointment
	byID         map[int64]int
	active       map[SlotKey]int64
	events       []EventLog
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[int64]int),
		active: make(map[SlotKey]int64),
		now:    time.Now,
	}
}

func (r *MemoryRepository) Insert(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := a.SlotKey()
	if a.Status.Active() {
		if _, taken := r.active[key]; taken {
			return nil, ErrSlotConflict
		}
	}

	r.nextID++
	a.ID = r.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	a.UpdatedAt = a.CreatedAt

	r.byID[a.ID] = len(r.appointments)
	r.appointments = append(r.appointments, a)
	if a.Status.Active() {
		r.active[key] = a.ID
	}

	out := a
	return &out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id int64) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := r.appointments[i]
	return &out, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.appointments), nil
}

func (r *MemoryRepository) FindActiveBySlot(_ context.Context, key SlotKey) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.active[key]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := r.appointments[r.byID[id]]
	return &out, nil
}

func (r *MemoryRepository) BookedTimeSlots(_ context.Context, doctorID int64, date string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for key := range r.active {
		if key.DoctorID == doctorID && key.Date == date {
			out = append(out, key.TimeSlot)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id int64, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok || r.appointments[i].Status != from {
		return nil, ErrAppointmentNotFound
	}

	a := &r.appointments[i]
	a.Status = to
	a.UpdatedAt = r.now().UTC()
	if !to.Active() {
		delete(r.active, a.SlotKey())
	}

	out := *a
	return &out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now().UTC()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns the audit trail recorded so far.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.events)
}
