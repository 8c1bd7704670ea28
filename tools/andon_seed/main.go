package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	baseURL string
	token   string
	count   int
	start   string
	spacing time.Duration
	reasons []string
	names   []string
	maxMins int
	seed    int64
}

type andonRequest struct {
	Name        string `json:"name"`
	Reason      string `json:"reason"`
	StoppedTime int    `json:"stopped_time"`
	Timestamp   string `json:"timestamp"`
}

func main() {
	cfg := parseConfig()
	if cfg.baseURL == "" {
		log.Fatal("base-url is required")
	}
	if cfg.count <= 0 {
		log.Fatal("count must be > 0")
	}
	if len(cfg.reasons) == 0 {
		log.Fatal("reasons must not be empty")
	}
	start, err := parseStart(cfg.start)
	if err != nil {
		log.Fatalf("invalid start: %v", err)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}
	rng := rand.New(rand.NewSource(cfg.seed))

	log.Printf("seeding andon events: count=%d reasons=%v base=%s", cfg.count, cfg.reasons, cfg.baseURL)
	for i := 0; i < cfg.count; i++ {
		req := andonRequest{
			Name:        cfg.names[rng.Intn(len(cfg.names))],
			Reason:      cfg.reasons[rng.Intn(len(cfg.reasons))],
			StoppedTime: 1 + rng.Intn(cfg.maxMins),
			Timestamp:   start.Add(time.Duration(i) * cfg.spacing).Format(time.RFC3339),
		}
		if err := postEvent(ctx, client, cfg, req); err != nil {
			log.Fatalf("post event %d: %v", i, err)
		}
	}
	log.Printf("andon seed completed")
}

func parseConfig() config {
	cfg := config{}
	var reasons, names string
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.token, "token", envOrDefault("AUTH_TOKEN", ""), "bearer token with operator role")
	flag.IntVar(&cfg.count, "count", envOrInt("COUNT", 20), "number of events to submit")
	flag.StringVar(&cfg.start, "start", envOrDefault("START", ""), "timestamp of the first event (RFC3339)")
	flag.DurationVar(&cfg.spacing, "spacing", 15*time.Minute, "time between events")
	flag.StringVar(&reasons, "reasons", envOrDefault("REASONS", "Technical,Quality,Material,Health and Safety"), "comma separated reasons")
	flag.StringVar(&names, "names", envOrDefault("NAMES", "Ana,Ben,Chen,Dana"), "comma separated operator names")
	flag.IntVar(&cfg.maxMins, "max-minutes", envOrInt("MAX_MINUTES", 30), "upper bound of stoppage minutes")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	cfg.reasons = splitCSV(reasons)
	cfg.names = splitCSV(names)
	if len(cfg.names) == 0 {
		cfg.names = []string{""}
	}
	if cfg.maxMins <= 0 {
		cfg.maxMins = 1
	}
	return cfg
}

func postEvent(ctx context.Context, client *http.Client, cfg config, req andonRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.baseURL, "/")+"/api/v1/andon", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if cfg.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cfg.token)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func parseStart(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC().Add(-8 * time.Hour).Truncate(time.Minute), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func splitCSV(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
