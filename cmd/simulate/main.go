package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/hackgods/consultas-service/internal/appointment"
	"github.com/hackgods/consultas-service/internal/config"
	"github.com/hackgods/consultas-service/internal/logger"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	CreateRatio float64
	UpdateRatio float64
	DeleteRatio float64
	ListRatio   float64
}

// IDPool tracks ids the simulator created and has not deleted yet.
type IDPool struct {
	mu  sync.RWMutex
	ids []int64
}

func (p *IDPool) Add(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
}

func (p *IDPool) Random(rng *rand.Rand) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.ids) == 0 {
		return 0, false
	}
	return p.ids[rng.Intn(len(p.ids))], true
}

func (p *IDPool) Remove(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, v := range p.ids {
		if v == id {
			p.ids[i] = p.ids[len(p.ids)-1]
			p.ids = p.ids[:len(p.ids)-1]
			return
		}
	}
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	NotFound  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusNotFound:
		atomic.AddInt64(&om.NotFound, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Create OperationMetrics
	List   OperationMetrics
	Update OperationMetrics
	Delete OperationMetrics
}

type Simulator struct {
	config  SimConfig
	ids     *IDPool
	client  *http.Client
	log     *slog.Logger
	runID   string
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("consultas-simulate", baseCfg.LogLevel)

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	sim := &Simulator{
		config: cfg,
		ids:    &IDPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		runID:  uuid.NewString(),
	}

	log.Info("simulator starting",
		"run_id", sim.runID,
		"base_url", cfg.APIBaseURL,
		"duration", cfg.Duration.String(),
		"workers", cfg.Workers,
		"create", cfg.CreateRatio,
		"update", cfg.UpdateRatio,
		"delete", cfg.DeleteRatio,
		"list", cfg.ListRatio,
	)

	if err := sim.preload(context.Background()); err != nil {
		log.Warn("could not preload existing ids", "err", err)
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		CreateRatio: getFloat("SIM_CREATE_RATIO", 0.4),
		UpdateRatio: getFloat("SIM_UPDATE_RATIO", 0.2),
		DeleteRatio: getFloat("SIM_DELETE_RATIO", 0.1),
		ListRatio:   getFloat("SIM_LIST_RATIO", 0.3),
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	total := cfg.CreateRatio + cfg.UpdateRatio + cfg.DeleteRatio + cfg.ListRatio
	if total > 0 {
		cfg.CreateRatio /= total
		cfg.UpdateRatio /= total
		cfg.DeleteRatio /= total
		cfg.ListRatio /= total
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
	if cfg.CreateRatio+cfg.UpdateRatio+cfg.DeleteRatio+cfg.ListRatio <= 0 {
		return fmt.Errorf("at least one SIM_*_RATIO must be > 0")
	}
	return nil
}

// preload fills the id pool from the current listing so updates and deletes
// have targets before the first create returns.
func (s *Simulator) preload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url("/consulta/listar"), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list returned %d", resp.StatusCode)
	}

	var rows []appointment.Appointment
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return err
	}
	for _, a := range rows {
		s.ids.Add(a.ID)
	}
	s.log.Info("preloaded ids", "count", len(rows))
	return nil
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
	s.log.Info("simulation complete", "run_id", s.runID)
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < c.CreateRatio:
			s.doCreate(ctx)
		case r < c.CreateRatio+c.UpdateRatio:
			s.doUpdate(ctx, rng)
		case r < c.CreateRatio+c.UpdateRatio+c.DeleteRatio:
			s.doDelete(ctx, rng)
		default:
			s.doList(ctx)
		}
	}
}

func (s *Simulator) doCreate(ctx context.Context) {
	a := s.fakeAppointment()
	start := time.Now()
	status, body, err := s.postJSON(ctx, "/consulta/inserir", appointment.DraftOf(a))
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	if err == nil && status == http.StatusCreated {
		var created appointment.Appointment
		if json.Unmarshal(body, &created) == nil && created.ID != 0 {
			s.ids.Add(created.ID)
		}
	}
	s.metrics.Create.Record(latency, status, err)
}

func (s *Simulator) doUpdate(ctx context.Context, rng *rand.Rand) {
	id, ok := s.ids.Random(rng)
	if !ok {
		return
	}

	a := s.fakeAppointment()
	payload := struct {
		ID int64 `json:"id"`
		appointment.Draft
	}{ID: id, Draft: appointment.DraftOf(a)}

	start := time.Now()
	status, _, err := s.postJSON(ctx, "/consulta/atualizar", payload)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	if err == nil && status == http.StatusNotFound {
		s.ids.Remove(id)
	}
	s.metrics.Update.Record(latency, status, err)
}

func (s *Simulator) doDelete(ctx context.Context, rng *rand.Rand) {
	id, ok := s.ids.Random(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, _, err := s.postJSON(ctx, "/consulta/excluir", map[string]int64{"id": id})
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	if err == nil && (status == http.StatusOK || status == http.StatusNotFound) {
		s.ids.Remove(id)
	}
	s.metrics.Delete.Record(latency, status, err)
}

func (s *Simulator) doList(ctx context.Context) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url("/consulta/listar"), nil)
	if err != nil {
		return
	}

	status := 0
	resp, err := s.client.Do(req)
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	s.metrics.List.Record(latency, status, err)
}

func (s *Simulator) postJSON(ctx context.Context, path string, v any) (int, []byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url(path), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", s.runID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}

func (s *Simulator) url(path string) string {
	return s.config.APIBaseURL + "/api/v1" + path
}

func (s *Simulator) fakeAppointment() appointment.Appointment {
	return appointment.Appointment{
		Name:            gofakeit.Name(),
		BirthDate:       gofakeit.Date().Format("2006-01-02"),
		AppointmentDate: gofakeit.FutureDate().Format("2006-01-02"),
		Time:            fmt.Sprintf("%02d:%02d", gofakeit.Number(8, 17), gofakeit.Number(0, 59)),
		Kind:            gofakeit.RandomString([]string{"consulta", "retorno", "exame"}),
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run: %s\n", s.runID)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Inserir", &s.metrics.Create)
	printOperationReport("Listar", &s.metrics.List)
	printOperationReport("Atualizar", &s.metrics.Update)
	printOperationReport("Excluir", &s.metrics.Delete)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	notFound := atomic.LoadInt64(&om.NotFound)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if notFound > 0 {
		fmt.Printf("  Not found: %d (%.1f%%)\n", notFound, float64(notFound)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
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
