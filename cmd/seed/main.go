package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/catalog"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
	"github.com/hackgods/clinic-slot-booking/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("component", "seed")
	logger.Info("seed starting")

	if cfg.PostgresDSN == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := seedCatalog(context.Background(), pool, catalog.DefaultDepartments(), catalog.DefaultDoctors()); err != nil {
		logger.Error("seed catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog seeded")

	count := envInt("SEED_APPOINTMENTS", 0)
	if count > 0 {
		gofakeit.Seed(time.Now().UnixNano())

		cat, err := catalog.LoadFromPostgres(context.Background(), pool)
		if err != nil {
			logger.Error("load catalog", "error", err)
			os.Exit(1)
		}
		svc := appointment.NewService(appointment.NewPgRepository(pool),
			redisclient.NewLocalSlotLocker(cfg.LockWait), cat, cfg,
			appointment.WithLogger(logger))

		created, taken := seedAppointments(context.Background(), svc, cat, cfg.BookingWindowDays, count)
		logger.Info("appointments seeded", "created", created, "already_taken", taken)
	}

	logger.Info("seed complete")
}

// seedCatalog upserts the reference data so the seed can be re-run.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool, depts []catalog.Department, doctors []catalog.Doctor) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, d := range depts {
		batch.Queue(`
			INSERT INTO departments (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		`, d.ID, d.Name)
	}
	for _, d := range doctors {
		batch.Queue(`
			INSERT INTO doctors (id, name, specialization, department_id, availability)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    specialization = EXCLUDED.specialization,
			    department_id = EXCLUDED.department_id,
			    availability = EXCLUDED.availability
		`, d.ID, d.Name, d.Specialization, d.DepartmentID, d.Availability)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert catalog: %w", err)
	}
	return tx.Commit(ctx)
}

// seedAppointments books random slots through the service so every insert
// goes through the same checks as live traffic.
func seedAppointments(ctx context.Context, svc *appointment.Service, cat *catalog.Catalog, windowDays, count int) (created, taken int) {
	var doctors []catalog.Doctor
	for _, dept := range cat.ListDepartments() {
		doctors = append(doctors, cat.ListDoctorsByDepartment(dept.ID)...)
	}
	if len(doctors) == 0 {
		return 0, 0
	}

	statuses := []string{"", "", string(appointment.StatusConfirmed), string(appointment.StatusCancelled)}
	today := time.Now()

	for i := 0; i < count; i++ {
		doc := doctors[gofakeit.Number(0, len(doctors)-1)]
		date := today.AddDate(0, 0, gofakeit.Number(0, windowDays)).Format(appointment.DateLayout)

		appt, err := svc.CreateAppointment(ctx, appointment.CreateInput{
			DepartmentID: doc.DepartmentID,
			DoctorID:     doc.ID,
			Date:         date,
			TimeSlot:     doc.Availability[gofakeit.Number(0, len(doc.Availability)-1)],
			PatientName:  gofakeit.Name(),
			Phone:        gofakeit.Phone(),
			Email:        gofakeit.Email(),
		})
		if errors.Is(err, appointment.ErrSlotConflict) {
			taken++
			continue
		}
		if err != nil {
			continue
		}
		created++

		if to := gofakeit.RandomString(statuses); to != "" {
			_, _ = svc.UpdateAppointmentStatus(ctx, appt.ID, appointment.AppointmentStatus(to))
		}
	}
	return created, taken
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
