package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-booking/internal/catalog"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
)

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

const today = "2026-10-19"

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Department{{ID: 1, Name: "Cardiology"}, {ID: 2, Name: "Neurology"}},
		[]catalog.Doctor{
			{ID: 1, Name: "Dr. One", DepartmentID: 1, Availability: []string{"09:00", "10:00"}},
			{ID: 2, Name: "Dr. Two", DepartmentID: 2, Availability: []string{"08:00"}},
		},
	)
	require.NoError(t, err)
	return c
}

type fixture struct {
	svc  *Service
	repo *MemoryRepository
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) fixture {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(&cfg)
	}
	repo := NewMemoryRepository()
	svc := NewService(repo, redisclient.NewLocalSlotLocker(5*time.Second), testCatalog(t), cfg,
		WithClock(func() time.Time { return testNow }),
		WithMetrics(metrics.NewBookingMetrics(prometheus.NewRegistry())),
	)
	return fixture{svc: svc, repo: repo}
}

func janeInput() CreateInput {
	return CreateInput{
		DepartmentID: 1,
		DoctorID:     1,
		Date:         today,
		TimeSlot:     "09:00",
		PatientName:  "Jane Roe",
		Phone:        "5551234567",
		Email:        "jane@x.com",
	}
}

func TestEndToEndBookingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.NotZero(t, appt.ID)
	assert.Equal(t, testNow, appt.CreatedAt)

	_, err = f.svc.CreateAppointment(ctx, janeInput())
	require.ErrorIs(t, err, ErrSlotConflict)

	confirmed, err := f.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	_, err = f.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreatePreconditionsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		want   error
	}{
		{"unknown doctor", func(in *CreateInput) { in.DoctorID = 99 }, ErrInvalidReference},
		{"doctor in other department", func(in *CreateInput) { in.DepartmentID = 2 }, ErrInvalidReference},
		{"reference checked before slot", func(in *CreateInput) { in.DepartmentID = 2; in.TimeSlot = "23:00" }, ErrInvalidReference},
		{"slot not offered", func(in *CreateInput) { in.TimeSlot = "08:00" }, ErrInvalidSlot},
		{"slot checked before date", func(in *CreateInput) { in.TimeSlot = "08:00"; in.Date = "2027-01-01" }, ErrInvalidSlot},
		{"date in the past", func(in *CreateInput) { in.Date = "2026-10-18" }, ErrInvalidDate},
		{"malformed date", func(in *CreateInput) { in.Date = "tomorrow" }, ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := janeInput()
			tt.mutate(&in)
			_, err := f.svc.CreateAppointment(ctx, in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	// Failed creates leave no trace.
	all, err := f.svc.ListAppointments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.repo.Events())
}

func TestBookingWindowBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, date := range []string{"2026-10-19", "2026-11-18"} {
		in := janeInput()
		in.Date = date
		_, err := f.svc.CreateAppointment(ctx, in)
		require.NoError(t, err, date)
	}

	in := janeInput()
	in.Date = "2026-11-19"
	_, err := f.svc.CreateAppointment(ctx, in)
	require.ErrorIs(t, err, ErrInvalidDate)

	first, last := f.svc.Window()
	assert.Equal(t, "2026-10-19", first)
	assert.Equal(t, "2026-11-18", last)
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.CreateAppointment(ctx, janeInput())
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotConflict)
	}
	assert.Equal(t, 1, wins)

	all, err := f.svc.ListAppointments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentCreateWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewMemoryRepository()
	svc := NewService(repo, redisclient.NewRedisSlotLocker(rdb, 5*time.Second, 5*time.Second),
		testCatalog(t), config.Default(), WithClock(func() time.Time { return testNow }))

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateAppointment(context.Background(), janeInput())
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrSlotConflict)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Empty(t, mr.Keys())
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := janeInput().SlotKey()

	appt, err := f.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)

	booked, err := f.svc.IsBooked(ctx, key)
	require.NoError(t, err)
	assert.True(t, booked)

	_, err = f.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusCancelled)
	require.NoError(t, err)

	booked, err = f.svc.IsBooked(ctx, key)
	require.NoError(t, err)
	assert.False(t, booked)

	again, err := f.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, again.ID)
}

func TestConfirmedCancellationFollowsPolicy(t *testing.T) {
	ctx := context.Background()

	strict := newFixture(t)
	appt, err := strict.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	_, err = strict.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = strict.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	lenient := newFixture(t, func(c *config.Config) { c.AllowConfirmedCancellation = true })
	appt, err = lenient.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	_, err = lenient.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = lenient.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusCancelled)
	require.NoError(t, err)

	booked, err := lenient.svc.IsBooked(ctx, janeInput().SlotKey())
	require.NoError(t, err)
	assert.False(t, booked)
	_, err = lenient.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
}

func TestTerminalStatusesRejectEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	completed, err := f.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	_, err = f.svc.UpdateAppointmentStatus(ctx, completed.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.UpdateAppointmentStatus(ctx, completed.ID, StatusCompleted)
	require.NoError(t, err)

	in := janeInput()
	in.TimeSlot = "10:00"
	cancelled, err := f.svc.CreateAppointment(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.UpdateAppointmentStatus(ctx, cancelled.ID, StatusCancelled)
	require.NoError(t, err)

	for _, id := range []int64{completed.ID, cancelled.ID} {
		for _, to := range []AppointmentStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled} {
			_, err := f.svc.UpdateAppointmentStatus(ctx, id, to)
			assert.ErrorIs(t, err, ErrInvalidTransition, "id %d -> %s", id, to)
		}
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateAppointmentStatus(ctx, 404, StatusConfirmed)
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	appt, err := f.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	_, err = f.svc.UpdateAppointmentStatus(ctx, appt.ID, "expired")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)

	// Confirm and cancel race from pending; exactly one may apply.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, to := range []AppointmentStatus{StatusConfirmed, StatusCancelled} {
		wg.Add(1)
		go func(to AppointmentStatus) {
			defer wg.Done()
			_, err := f.svc.UpdateAppointmentStatus(ctx, appt.ID, to)
			results <- err
		}(to)
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestSlotViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := janeInput()
	in.TimeSlot = "10:00"
	_, err := f.svc.CreateAppointment(ctx, in)
	require.NoError(t, err)

	booked, err := f.svc.BookedSlotsFor(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, booked)

	free, err := f.svc.AvailableSlotsFor(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, free)

	booked, err = f.svc.BookedSlotsFor(ctx, 1, "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, []string{}, booked)

	_, err = f.svc.AvailableSlotsFor(ctx, 99, today)
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestListIsInsertionOrderedAndRestartable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, slot := range []string{"10:00", "09:00"} {
		in := janeInput()
		in.TimeSlot = slot
		_, err := f.svc.CreateAppointment(ctx, in)
		require.NoError(t, err)
	}

	first, err := f.svc.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "10:00", first[0].TimeSlot)
	first[0].PatientName = "mutated"

	second, err := f.svc.ListAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", second[0].PatientName)

	assert.Equal(t, second, Filter(second, Criteria{Status: StatusAll}))
}

func TestEventsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	_, err = f.svc.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)

	events := f.repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, EventAppointmentStatusChanged, events[1].EventType)
	assert.Equal(t, appt.ID, *events[1].AppointmentID)
	assert.JSONEq(t, `{"from":"pending","to":"confirmed"}`, string(events[1].Payload))
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type failingLocker struct{ err error }

func (l failingLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return l.err
}

func TestLockFailuresSurface(t *testing.T) {
	cat := testCatalog(t)
	clock := WithClock(func() time.Time { return testNow })

	svc := NewService(NewMemoryRepository(), busyLocker{}, cat, config.Default(), clock)
	_, err := svc.CreateAppointment(context.Background(), janeInput())
	require.ErrorIs(t, err, ErrSlotBusy)
	require.ErrorIs(t, err, ErrSlotConflict)

	down := errors.New("redis down")
	svc = NewService(NewMemoryRepository(), failingLocker{err: down}, cat, config.Default(), clock)
	_, err = svc.CreateAppointment(context.Background(), janeInput())
	require.ErrorIs(t, err, down)
	require.NotErrorIs(t, err, ErrSlotConflict)
}

// insertRaceRepo simulates a writer that slipped in between the in-lock
// check and the insert (for example another process without the lock).
type insertRaceRepo struct {
	*MemoryRepository
}

func (r insertRaceRepo) Insert(context.Context, Appointment) (*Appointment, error) {
	return nil, ErrSlotConflict
}

func TestInsertConflictFromStorage(t *testing.T) {
	svc := NewService(insertRaceRepo{NewMemoryRepository()}, redisclient.NewLocalSlotLocker(time.Second),
		testCatalog(t), config.Default(), WithClock(func() time.Time { return testNow }))

	_, err := svc.CreateAppointment(context.Background(), janeInput())
	require.ErrorIs(t, err, ErrSlotConflict)
}

func TestCreateSurvivesCallerCancellationInsideLock(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	repo := &cancelOnFindRepo{MemoryRepository: f.repo, cancel: cancel}
	svc := NewService(repo, redisclient.NewLocalSlotLocker(time.Second), testCatalog(t), config.Default(),
		WithClock(func() time.Time { return testNow }))

	appt, err := svc.CreateAppointment(ctx, janeInput())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
}

type cancelOnFindRepo struct {
	*MemoryRepository
	cancel context.CancelFunc
}

func (r *cancelOnFindRepo) FindActiveBySlot(ctx context.Context, key SlotKey) (*Appointment, error) {
	r.cancel()
	return r.MemoryRepository.FindActiveBySlot(ctx, key)
}

func (r *cancelOnFindRepo) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.MemoryRepository.Insert(ctx, a)
}
