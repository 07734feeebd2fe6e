// Package youtube collects video popularity from the YouTube Data API v3.
package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"WorkflowPulse/internal/collector"
	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/infrastructure/htmltext"
	"WorkflowPulse/internal/infrastructure/httpjson"
	"WorkflowPulse/internal/scoring"
)

const (
	defaultBaseURL    = "https://www.googleapis.com"
	defaultMaxResults = 10
	// maxStatisticsBatch is the id limit of the videos endpoint.
	maxStatisticsBatch = 50
	watchURL           = "https://www.youtube.com/watch?v="
)

// DefaultKeywords are the search phrases used when a request names none.
var DefaultKeywords = []string{
	"n8n workflow", "n8n automation", "n8n google sheets", "n8n slack",
	"n8n gmail", "n8n whatsapp", "n8n notion", "n8n airtable",
}

// Config parametrizes the collector.
type Config struct {
	APIKey     string
	BaseURL    string
	Keywords   []string
	MaxResults int
	ChunkSize  int
	Pause      time.Duration
}

// Collector searches videos per keyword and scores their statistics.
type Collector struct {
	cfg    Config
	client *httpjson.Client
	logger *slog.Logger
}

var _ collector.Collector = (*Collector)(nil)

// NewCollector applies defaults to cfg; a nil client gets a default one.
func NewCollector(cfg Config, client *httpjson.Client, logger *slog.Logger) *Collector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > maxStatisticsBatch {
		cfg.ChunkSize = maxStatisticsBatch
	}
	if client == nil {
		client = httpjson.NewClient()
	}
	return &Collector{cfg: cfg, client: client, logger: logger}
}

// Platform identifies the collector inside the registry.
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformVideo
}

// Collect runs one search per keyword constrained to req.Country.
// A failing keyword yields a failure result and the next keyword is tried.
func (c *Collector) Collect(ctx context.Context, req collector.Request) []domain.Result {
	country := req.Country
	if c.cfg.APIKey == "" {
		return []domain.Result{domain.Failure(domain.PlatformVideo, country, "config", "", domain.ErrMissingCredential)}
	}

	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = c.cfg.Keywords
	}

	var results []domain.Result
	for i, kw := range keywords {
		if i > 0 {
			if err := collector.Pause(ctx, c.cfg.Pause); err != nil {
				results = append(results, domain.Failure(domain.PlatformVideo, country, "keyword", kw, err))
				break
			}
		}

		observations, err := c.collectKeyword(ctx, country, kw)
		if err != nil {
			results = append(results, domain.Failure(domain.PlatformVideo, country, "keyword", kw, err))
			continue
		}
		c.debug("keyword collected", "country", country, "keyword", kw, "videos", len(observations))
		for _, obs := range observations {
			results = append(results, domain.Success(obs))
		}
	}

	return results
}

func (c *Collector) collectKeyword(ctx context.Context, country domain.Country, keyword string) ([]domain.Observation, error) {
	ids, err := c.search(ctx, country, keyword)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	observations := make([]domain.Observation, 0, len(ids))
	for start := 0; start < len(ids); start += c.cfg.ChunkSize {
		end := min(start+c.cfg.ChunkSize, len(ids))
		items, err := c.statistics(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
		for _, item := range items {
			observations = append(observations, toObservation(item, country, keyword))
		}
	}

	return observations, nil
}

func (c *Collector) search(ctx context.Context, country domain.Country, keyword string) ([]string, error) {
	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("q", keyword)
	query.Set("type", "video")
	query.Set("maxResults", strconv.Itoa(c.cfg.MaxResults))
	query.Set("regionCode", string(country))
	query.Set("key", c.cfg.APIKey)

	var resp searchResponse
	if err := c.client.Get(ctx, c.cfg.BaseURL+"/youtube/v3/search?"+query.Encode(), &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(resp.Items))
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		id := item.ID.VideoID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Collector) statistics(ctx context.Context, ids []string) ([]videoItem, error) {
	query := url.Values{}
	query.Set("part", "statistics,snippet")
	query.Set("id", strings.Join(ids, ","))
	query.Set("key", c.cfg.APIKey)

	var resp videosResponse
	if err := c.client.Get(ctx, c.cfg.BaseURL+"/youtube/v3/videos?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func toObservation(item videoItem, country domain.Country, keyword string) domain.Observation {
	views := count(item.Statistics.ViewCount)
	likes := count(item.Statistics.LikeCount)
	comments := count(item.Statistics.CommentCount)

	title := htmltext.Plain(item.Snippet.Title)
	if title == "" {
		title = item.ID
	}

	return domain.Observation{
		Workflow:  title,
		Platform:  domain.PlatformVideo,
		Country:   country,
		SourceURL: watchURL + item.ID,
		Metrics: domain.VideoMetrics{
			Views:              views,
			Likes:              likes,
			Comments:           comments,
			LikeToViewRatio:    scoring.Ratio(likes, views),
			CommentToViewRatio: scoring.Ratio(comments, views),
			Keyword:            keyword,
		},
		Score: scoring.Video(views, likes, comments),
	}
}

// count parses the API's string counters; absent or hidden counts are 0.
func count(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (c *Collector) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videosResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
}
