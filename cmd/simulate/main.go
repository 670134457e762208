package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-slot-booking/internal/api"
	"github.com/hackgods/clinic-slot-booking/pkg/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	TransitionRatio float64
	ReadRatio       float64
	DaysAhead       int // spread bookings over this many days; small values force contention
}

type target struct {
	DepartmentID int64
	DoctorID     int64
	TimeSlot     string
}

// DataPool holds the bookable targets discovered from the API and the ids
// of appointments created during the run.
type DataPool struct {
	Targets []target
	Dates   []string

	mu           sync.RWMutex
	appointments []int64
}

func (dp *DataPool) AddAppointment(id int64) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (int64, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return 0, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (avg, p50, p95, worst time.Duration) {
	om.mu.Lock()
	sorted := slices.Clone(om.latencies)
	om.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0, 0
	}
	slices.Sort(sorted)

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	at := func(pct int) time.Duration {
		return sorted[min(len(sorted)*pct/100, len(sorted)-1)]
	}
	return sum / time.Duration(len(sorted)), at(50), at(95), sorted[len(sorted)-1]
}

type Metrics struct {
	Booking    OperationMetrics
	Transition OperationMetrics
	List       OperationMetrics
	Slots      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  *logging.Logger
	metrics Metrics
}

func main() {
	logger := logging.New(getEnv("LOG_LEVEL", "info")).With("component", "simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger.Info("simulator starting",
		"duration", cfg.Duration, "workers", cfg.Workers, "booking", cfg.BookingRatio,
		"transition", cfg.TransitionRatio, "read", cfg.ReadRatio, "days_ahead", cfg.DaysAhead)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		logger.Error("load data pool", "error", err)
		os.Exit(1)
	}
	sim.pool = pool
	logger.Info("loaded targets", "slots", len(pool.Targets), "dates", len(pool.Dates))

	sim.Run()

	doubles, err := sim.checkDoubleBookings(context.Background())
	if err != nil {
		logger.Error("double booking check", "error", err)
	}
	sim.PrintReport(doubles)
	if doubles > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:      strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		TransitionRatio: getFloat("SIM_TRANSITION_RATIO", 0.2),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		DaysAhead:       getInt("SIM_DAYS_AHEAD", 2),
	}

	total := cfg.BookingRatio + cfg.TransitionRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.TransitionRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead < 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be >= 0")
	}
	return nil
}

// loadDataPool walks the catalog endpoints and the booking window.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var window api.BookingWindowResponse
	if err := s.getJSON(ctx, "/booking-window", &window); err != nil {
		return nil, fmt.Errorf("booking window: %w", err)
	}
	first, err := time.Parse("2006-01-02", window.First)
	if err != nil {
		return nil, fmt.Errorf("booking window: %w", err)
	}

	dp := &DataPool{}
	for d := 0; d <= s.config.DaysAhead; d++ {
		day := first.AddDate(0, 0, d).Format("2006-01-02")
		if day > window.Last {
			break
		}
		dp.Dates = append(dp.Dates, day)
	}

	var depts []api.DepartmentResponse
	if err := s.getJSON(ctx, "/departments", &depts); err != nil {
		return nil, fmt.Errorf("departments: %w", err)
	}
	for _, dept := range depts {
		var doctors []api.DoctorResponse
		if err := s.getJSON(ctx, fmt.Sprintf("/departments/%d/doctors", dept.ID), &doctors); err != nil {
			return nil, fmt.Errorf("doctors of department %d: %w", dept.ID, err)
		}
		for _, doc := range doctors {
			for _, slot := range doc.Availability {
				dp.Targets = append(dp.Targets, target{DepartmentID: dept.ID, DoctorID: doc.ID, TimeSlot: slot})
			}
		}
	}

	if len(dp.Targets) == 0 {
		return nil, fmt.Errorf("no bookable slots")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.TransitionRatio:
			s.doTransition(ctx, rng)
		case rng.Intn(2) == 0:
			s.doList(ctx, rng)
		default:
			s.doSlots(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	req := api.CreateAppointmentRequest{
		DepartmentID: t.DepartmentID,
		DoctorID:     t.DoctorID,
		Date:         s.pool.Dates[rng.Intn(len(s.pool.Dates))],
		TimeSlot:     t.TimeSlot,
		PatientName:  gofakeit.Name(),
		Phone:        gofakeit.Phone(),
		Email:        gofakeit.Email(),
	}

	var created api.AppointmentResponse
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/appointments", req, &created)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), status, err)
	if status == http.StatusCreated && created.ID > 0 {
		s.pool.AddAppointment(created.ID)
	}
}

var transitionTargets = []string{"confirmed", "completed", "cancelled"}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	req := api.UpdateStatusRequest{Status: transitionTargets[rng.Intn(len(transitionTargets))]}

	start := time.Now()
	status, err := s.send(ctx, http.MethodPatch, fmt.Sprintf("/appointments/%d", id), req, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Transition.Record(time.Since(start), status, err)
}

var listFilters = []string{"", "?status=pending", "?status=confirmed", "?status=cancelled", "?q=example"}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, "/appointments"+listFilters[rng.Intn(len(listFilters))], nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.List.Record(time.Since(start), status, err)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	path := fmt.Sprintf("/doctors/%d/slots?date=%s", t.DoctorID, s.pool.Dates[rng.Intn(len(s.pool.Dates))])

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, path, nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Slots.Record(time.Since(start), status, err)
}

// checkDoubleBookings counts slot keys held by more than one active appointment.
func (s *Simulator) checkDoubleBookings(ctx context.Context) (int, error) {
	var all []api.AppointmentResponse
	if err := s.getJSON(ctx, "/appointments", &all); err != nil {
		return 0, err
	}

	seen := make(map[string]int, len(all))
	doubles := 0
	for _, a := range all {
		if a.Status == "cancelled" {
			continue
		}
		key := fmt.Sprintf("%d:%s:%s", a.DoctorID, a.Date, a.TimeSlot)
		seen[key]++
		if seen[key] == 2 {
			doubles++
		}
	}
	return doubles, nil
}

func (s *Simulator) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	status, err := s.send(ctx, http.MethodGet, path, nil, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, status)
	}
	return nil
}

func (s *Simulator) PrintReport(doubles int) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Contended dates: %d, slots per date: %d\n", len(s.pool.Dates), len(s.pool.Targets))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.Transition)
	printOperationReport("List", &s.metrics.List)
	printOperationReport("Slots", &s.metrics.Slots)

	fmt.Printf("Double bookings: %d\n", doubles)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, worst := om.Percentiles()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), worst.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
