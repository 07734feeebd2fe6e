package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"WorkflowPulse/internal/collector"
	"WorkflowPulse/internal/config"
	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/logging"
	"WorkflowPulse/internal/usecase"
)

type staticCollector struct {
	platform domain.Platform
	score    float64
}

func (s staticCollector) Platform() domain.Platform { return s.platform }

func (s staticCollector) Collect(_ context.Context, req collector.Request) []domain.Result {
	return []domain.Result{domain.Success(domain.Observation{
		Workflow: "Slack to Notion",
		Platform: s.platform,
		Country:  req.Country,
		Metrics:  domain.ForumMetrics{TopicID: 7, Views: 100},
		Score:    s.score,
	})}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Logging:    config.LoggingConfig{Level: "error"},
		HTTP:       config.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Database:   config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "app.db")},
		Security:   config.SecurityConfig{TriggerSecret: "s3cret"},
		Collection: config.CollectionConfig{Countries: []string{"us", "IN"}},
	}
}

func TestCollectStoresAndServesRecords(t *testing.T) {
	t.Parallel()

	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	application, err := New(testConfig(t), Options{
		Logger:     logging.Discard(),
		Collectors: []collector.Collector{staticCollector{platform: domain.PlatformForum, score: 20}},
		Now:        func() time.Time { return seen },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	report, err := application.Collect(context.Background(), usecase.RunRequest{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Stored != 2 || report.Failures != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/?country=in", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var records []domain.WorkflowRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].Country != domain.CountryIN || records[0].PopularityScore != 20 {
		t.Fatalf("unexpected records %+v", records)
	}
	if !records[0].LastSeen.Equal(seen) {
		t.Fatalf("last_seen = %v, want %v", records[0].LastSeen, seen)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"
	if _, err := New(cfg, Options{Logger: logging.Discard()}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), Options{
		Logger:     logging.Discard(),
		Collectors: []collector.Collector{staticCollector{platform: domain.PlatformForum}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListFiltersByPlatformAlias(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), Options{
		Logger:     logging.Discard(),
		Collectors: []collector.Collector{staticCollector{platform: domain.PlatformVideo, score: 5}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	if _, err := application.Collect(context.Background(), usecase.RunRequest{}); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for _, platform := range []string{"video", "youtube", "YouTube"} {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/?platform="+platform, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", platform, rec.Code)
		}
		var records []domain.WorkflowRecord
		if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("%s: decode: %v", platform, err)
		}
		if len(records) != 2 {
			t.Fatalf("%s: expected 2 records, got %d", platform, len(records))
		}
	}
}
