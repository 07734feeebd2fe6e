package discourse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"WorkflowPulse/internal/collector"
	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/infrastructure/httpjson"
	"WorkflowPulse/internal/scoring"
)

func newTestCollector(t *testing.T, cfg Config, handler http.HandlerFunc) *Collector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	return NewCollector(cfg, httpjson.NewClient(httpjson.WithDoer(server.Client())), nil)
}

func TestCollectScoresTopics(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t, Config{PageCount: 2}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest.json":
			if r.URL.Query().Get("page") == "0" {
				_, _ = w.Write([]byte(`{"topic_list":{"topics":[
					{"id":1,"title":"Slack & Sheets","fancy_title":"Slack &amp; Sheets","reply_count":2,"like_count":3,"views":100},
					{"id":2,"title":"Gmail digest","reply_count":0,"like_count":1,"views":16}
				]}}`))
				return
			}
			_, _ = w.Write([]byte(`{"topic_list":{"topics":[]}}`))
		case "/t/1.json":
			_, _ = w.Write([]byte(`{"details":{"participants":[{"id":1},{"id":2},{"id":3}]}}`))
		case "/t/2.json":
			http.Error(w, "gone", http.StatusNotFound)
		default:
			http.NotFound(w, r)
		}
	})

	results := c.Collect(context.Background(), collector.Request{Country: domain.CountryIN})
	observations, failures := domain.Split(results)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}

	first := observations[0]
	if first.Workflow != "Slack & Sheets" || first.Platform != domain.PlatformForum || first.Country != domain.CountryIN {
		t.Fatalf("unexpected observation: %+v", first)
	}
	if first.SourceURL != c.cfg.BaseURL+"/t/1" {
		t.Fatalf("unexpected source url %q", first.SourceURL)
	}
	if first.Score != scoring.Forum(2, 3, 3, 100) {
		t.Fatalf("unexpected score %v", first.Score)
	}

	second := observations[1].Metrics.(domain.ForumMetrics)
	if second.Contributors != 1 {
		t.Fatalf("failed detail fetch should default contributors to 1, got %d", second.Contributors)
	}
	if observations[1].Score != scoring.Forum(0, 1, 1, 16) {
		t.Fatalf("unexpected fallback score %v", observations[1].Score)
	}
}

func TestCollectKeepsTopicsFromPagesBeforeFailure(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t, Config{PageCount: 5}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest.json":
			switch r.URL.Query().Get("page") {
			case "0":
				_, _ = w.Write([]byte(`{"topic_list":{"topics":[{"id":10,"title":"A","views":1}]}}`))
			case "1":
				_, _ = w.Write([]byte(`{"topic_list":{"topics":[{"id":11,"title":"B","views":1}]}}`))
			case "2":
				_, _ = w.Write([]byte(`<html>maintenance</html>`))
			default:
				t.Errorf("page %s requested after failure", r.URL.Query().Get("page"))
			}
		default:
			_, _ = w.Write([]byte(`{"details":{"participants":[{"id":1}]}}`))
		}
	})

	results := c.Collect(context.Background(), collector.Request{Country: domain.CountryUS})
	observations, failures := domain.Split(results)

	if len(observations) != 2 {
		t.Fatalf("expected topics from the first two pages, got %d", len(observations))
	}
	if len(failures) != 1 || failures[0].Stage != "page" || failures[0].Key != "2" {
		t.Fatalf("expected a single page failure, got %v", failures)
	}
}

func TestCollectRespectsTopicCap(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t, Config{PageCount: 3, TopicCap: 3}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/latest.json" {
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			_, _ = fmt.Fprintf(w, `{"topic_list":{"topics":[{"id":%d,"title":"x"},{"id":%d,"title":"y"}]}}`, page*10+1, page*10+2)
			return
		}
		_, _ = w.Write([]byte(`{"details":{"participants":[]}}`))
	})

	results := c.Collect(context.Background(), collector.Request{Country: domain.CountryUS})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}
