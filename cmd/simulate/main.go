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
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
}

type CodePool struct {
	mu    sync.RWMutex
	codes []string
}

func (cp *CodePool) Add(code string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.codes = append(cp.codes, code)
}

func (cp *CodePool) Random(rng *rand.Rand) (string, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if len(cp.codes) == 0 {
		return "", false
	}
	return cp.codes[rng.Intn(len(cp.codes))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
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
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	BookingFlow OperationMetrics
	CancelFlow  OperationMetrics
	SlotListing OperationMetrics
	CodeLookup  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	codes   *CodePool
	client  *http.Client
	metrics Metrics
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type messageResponse struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	CurrentStep string `json:"current_step"`
	BookingCode string `json:"booking_code"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: base_url=%s duration=%s workers=%d booking=%.2f cancel=%.2f read=%.2f",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		codes:  &CodePool{},
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
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
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBookingConversation(ctx, rng)
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancelConversation(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doSlotListing(ctx)
				} else {
					s.doCodeLookup(ctx, rng)
				}
			}
		}
	}
}

var topicMentions = []string{
	"I need help with kyc",
	"questions about my sip mandate",
	"I need my tax statement",
	"a withdrawal is taking too long",
	"I want to update my nominee",
}

var timeMentions = []string{
	"tomorrow morning",
	"tomorrow afternoon",
	"tomorrow evening",
	"today afternoon",
}

// doBookingConversation drives a full scripted booking: greet, topic,
// confirmation, time preference, slot pick, final confirm.
func (s *Simulator) doBookingConversation(ctx context.Context, rng *rand.Rand) {
	start := time.Now()

	sessionID, err := s.startConversation(ctx)
	if err != nil {
		s.metrics.BookingFlow.Record(time.Since(start), false, false)
		return
	}

	script := []string{
		topicMentions[rng.Intn(len(topicMentions))],
		"yes",
		timeMentions[rng.Intn(len(timeMentions))],
		strconv.Itoa(1 + rng.Intn(2)),
		"yes, confirm",
	}

	var last messageResponse
	for _, msg := range script {
		last, err = s.sendMessage(ctx, sessionID, msg)
		if err != nil {
			s.metrics.BookingFlow.Record(time.Since(start), false, false)
			return
		}
		if last.CurrentStep == "COMPLETE" {
			break
		}
	}

	if last.BookingCode != "" {
		s.codes.Add(last.BookingCode)
		s.metrics.BookingFlow.Record(time.Since(start), true, false)
		return
	}
	// A COMPLETE without a code is the waitlist path; under load that
	// means the slots were contended away.
	s.metrics.BookingFlow.Record(time.Since(start), false, last.CurrentStep == "COMPLETE")
}

func (s *Simulator) doCancelConversation(ctx context.Context, rng *rand.Rand) {
	code, ok := s.codes.Random(rng)
	if !ok {
		return
	}

	start := time.Now()

	sessionID, err := s.startConversation(ctx)
	if err != nil {
		s.metrics.CancelFlow.Record(time.Since(start), false, false)
		return
	}

	var last messageResponse
	for _, msg := range []string{"I'd like to cancel", code, "yes"} {
		last, err = s.sendMessage(ctx, sessionID, msg)
		if err != nil {
			s.metrics.CancelFlow.Record(time.Since(start), false, false)
			return
		}
	}

	s.metrics.CancelFlow.Record(time.Since(start), last.CurrentStep == "COMPLETE", false)
}

func (s *Simulator) doSlotListing(ctx context.Context) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/slots", nil)
	if err != nil {
		s.metrics.SlotListing.Record(time.Since(start), false, false)
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.SlotListing.Record(time.Since(start), false, false)
		return
	}
	drain(resp)
	s.metrics.SlotListing.Record(time.Since(start), resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) doCodeLookup(ctx context.Context, rng *rand.Rand) {
	code, ok := s.codes.Random(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/bookings/"+code, nil)
	if err != nil {
		s.metrics.CodeLookup.Record(time.Since(start), false, false)
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.CodeLookup.Record(time.Since(start), false, false)
		return
	}
	drain(resp)
	s.metrics.CodeLookup.Record(time.Since(start), resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) startConversation(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/conversation/start", nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("start: status %d", resp.StatusCode)
	}

	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (s *Simulator) sendMessage(ctx context.Context, sessionID, message string) (messageResponse, error) {
	body, err := json.Marshal(messageRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return messageResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/conversation/message", bytes.NewReader(body))
	if err != nil {
		return messageResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return messageResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return messageResponse{}, fmt.Errorf("message: status %d", resp.StatusCode)
	}

	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return messageResponse{}, err
	}
	return out, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== simulation report ===")
	printOp("booking conversations", &s.metrics.BookingFlow)
	printOp("cancel conversations", &s.metrics.CancelFlow)
	printOp("slot listings", &s.metrics.SlotListing)
	printOp("code lookups", &s.metrics.CodeLookup)
}

func printOp(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		fmt.Printf("%-22s no operations\n", name)
		return
	}

	avg, min, max, p50, p95 := om.Stats()
	fmt.Printf("%-22s total=%d success=%d conflict=%d error=%d\n",
		name, total,
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
	)
	fmt.Printf("%-22s avg=%s min=%s max=%s p50=%s p95=%s\n", "", avg, min, max, p50, p95)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
