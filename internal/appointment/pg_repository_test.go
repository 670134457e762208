package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apptCols = []string{
	"id", "department_id", "doctor_id", "date", "time_slot", "patient_name",
	"phone", "email", "notes", "status", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func apptRow(id int64, status AppointmentStatus) []any {
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	return []any{id, int64(1), int64(1), date, "09:00", "Jane Roe", "5551234567", "jane@x.com", "", status, testNow, testNow}
}

func TestPgInsert(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnRows(pgxmock.NewRows(apptCols).AddRow(apptRow(7, StatusPending)...))

	a, err := repo.Insert(context.Background(), Appointment{
		DepartmentID: 1, DoctorID: 1, Date: today, TimeSlot: "09:00",
		PatientName: "Jane Roe", Phone: "5551234567", Email: "jane@x.com", Status: StatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, today, a.Date)
	assert.Equal(t, StatusPending, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertUniqueViolationIsConflict(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_key"})

	_, err := repo.Insert(context.Background(), Appointment{Date: today, Status: StatusPending})
	require.ErrorIs(t, err, ErrSlotConflict)
}

func TestPgInsertRejectsBadDateBeforeQuery(t *testing.T) {
	mock, repo := newMockRepo(t)

	_, err := repo.Insert(context.Background(), Appointment{Date: "10/19/2026"})
	require.ErrorIs(t, err, ErrInvalidDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindActiveBySlot(t *testing.T) {
	mock, repo := newMockRepo(t)
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("status <> 'cancelled'").
		WithArgs(int64(1), day, "09:00").
		WillReturnRows(pgxmock.NewRows(apptCols))

	_, err := repo.FindActiveBySlot(context.Background(), SlotKey{DoctorID: 1, Date: today, TimeSlot: "09:00"})
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookedTimeSlots(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT time_slot").
		WillReturnRows(pgxmock.NewRows([]string{"time_slot"}).AddRow("09:00").AddRow("14:00"))

	slots, err := repo.BookedTimeSlots(context.Background(), 1, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "14:00"}, slots)
}

func TestPgUpdateStatusCompareAndSwap(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(7), StatusConfirmed, StatusPending).
		WillReturnRows(pgxmock.NewRows(apptCols).AddRow(apptRow(7, StatusConfirmed)...))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(7), StatusCompleted, StatusPending).
		WillReturnRows(pgxmock.NewRows(apptCols))

	a, err := repo.UpdateAppointmentStatus(context.Background(), 7, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)

	_, err = repo.UpdateAppointmentStatus(context.Background(), 7, StatusPending, StatusCompleted)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListAppointments(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("ORDER BY id").
		WillReturnRows(pgxmock.NewRows(apptCols).
			AddRow(apptRow(1, StatusPending)...).
			AddRow(apptRow(2, StatusCancelled)...))

	list, err := repo.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, StatusCancelled, list[1].Status)
}

func TestPgInsertEvent(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := int64(7)
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType: EventAppointmentCreated, AppointmentID: &id, Payload: []byte(`{}`), CreatedAt: testNow,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
