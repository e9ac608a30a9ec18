// simulate hammers the booking API to demonstrate slot exclusivity
// under contention: many workers race for one slot, and exactly one
// booking should win.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telemed-booking/internal/db"
)

type simConfig struct {
	APIBaseURL  string
	Workers     int
	Rounds      int
	PostgresDSN string
}

type opMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *opMetrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusBadRequest:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *opMetrics) percentile(p int) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func loadConfig() simConfig {
	cfg := simConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		Workers:     getEnvInt("SIM_WORKERS", 20),
		Rounds:      getEnvInt("SIM_ROUNDS", 10),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required to load patient/doctor ids")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	log.SetFlags(log.LstdFlags)
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}

	patients, err := loadIDs(context.Background(), pool, `SELECT id FROM patients LIMIT 500`)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	doctors, err := loadIDs(context.Background(), pool, `SELECT id FROM doctors LIMIT 100`)
	if err != nil {
		log.Fatalf("load doctors: %v", err)
	}
	pool.Close()

	if len(patients) == 0 || len(doctors) == 0 {
		log.Fatal("no patients or doctors seeded; run cmd/seed first")
	}

	log.Printf("simulating %d rounds with %d workers against %s", cfg.Rounds, cfg.Workers, cfg.APIBaseURL)

	client := &http.Client{Timeout: 10 * time.Second}
	om := &opMetrics{}

	for round := 0; round < cfg.Rounds; round++ {
		doctor := doctors[rand.Intn(len(doctors))]
		date := time.Now().AddDate(0, 0, 1+round).Format("2006-01-02")
		slotTime := fmt.Sprintf("%02d:%02d", 9+rand.Intn(8), 15*rand.Intn(4))

		var wg sync.WaitGroup
		var wins int64
		for w := 0; w < cfg.Workers; w++ {
			wg.Add(1)
			patient := patients[rand.Intn(len(patients))]
			go func() {
				defer wg.Done()
				status := book(client, cfg.APIBaseURL, om, patient, doctor, date, slotTime)
				if status == http.StatusCreated {
					atomic.AddInt64(&wins, 1)
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			log.Printf("round %d: slot %s %s got %d successful bookings, want exactly 1", round, date, slotTime, wins)
		}
	}

	log.Printf("done: total=%d success=%d conflict=%d error=%d p50=%s p95=%s",
		atomic.LoadInt64(&om.Total),
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
		om.percentile(50),
		om.percentile(95),
	)
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func book(client *http.Client, baseURL string, om *opMetrics, patient, doctor uuid.UUID, date, slotTime string) int {
	body, _ := json.Marshal(map[string]any{
		"patient_id": patient.String(),
		"doctor_ref": doctor.String(),
		"date":       date,
		"time":       slotTime,
		"type":       "video",
		"amount":     100,
	})

	start := time.Now()
	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		om.record(latency, 0)
		return 0
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	om.record(latency, resp.StatusCode)
	return resp.StatusCode
}
