// Package discourse collects topic popularity from a Discourse forum.
package discourse

import (
	"context"
	"fmt"
	"log/slog"
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
	defaultBaseURL   = "https://community.n8n.io"
	defaultPageCount = 5
	defaultTopicCap  = 80
)

// Config parametrizes the collector.
type Config struct {
	BaseURL   string
	PageCount int
	// TopicCap bounds the number of topics enriched per call.
	TopicCap int
	Pause    time.Duration
}

// Collector walks the "latest topics" listing and scores each topic.
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
	if cfg.PageCount <= 0 {
		cfg.PageCount = defaultPageCount
	}
	if cfg.TopicCap <= 0 {
		cfg.TopicCap = defaultTopicCap
	}
	if client == nil {
		client = httpjson.NewClient()
	}
	return &Collector{cfg: cfg, client: client, logger: logger}
}

// Platform identifies the collector inside the registry.
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformForum
}

// Collect paginates the listing. A failing page ends the walk; topics
// gathered from earlier pages are still returned.
func (c *Collector) Collect(ctx context.Context, req collector.Request) []domain.Result {
	country := req.Country
	seen := map[int64]struct{}{}

	var results []domain.Result
	collected := 0

pages:
	for page := 0; page < c.cfg.PageCount; page++ {
		topics, err := c.listPage(ctx, page)
		if err != nil {
			results = append(results, domain.Failure(domain.PlatformForum, country, "page", strconv.Itoa(page), err))
			break
		}
		if len(topics) == 0 {
			break
		}

		for _, t := range topics {
			if collected >= c.cfg.TopicCap {
				break pages
			}
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}

			if collected > 0 {
				if err := collector.Pause(ctx, c.cfg.Pause); err != nil {
					results = append(results, domain.Failure(domain.PlatformForum, country, "topic", strconv.FormatInt(t.ID, 10), err))
					break pages
				}
			}

			contributors := c.contributors(ctx, t.ID)
			results = append(results, domain.Success(c.toObservation(t, contributors, country)))
			collected++
		}
	}

	c.debug("forum collected", "country", country, "topics", collected)
	return results
}

func (c *Collector) listPage(ctx context.Context, page int) ([]topic, error) {
	var resp latestResponse
	url := fmt.Sprintf("%s/latest.json?page=%d", c.cfg.BaseURL, page)
	if err := c.client.Get(ctx, url, &resp); err != nil {
		return nil, err
	}
	return resp.TopicList.Topics, nil
}

// contributors falls back to 1, the topic author, when details are unavailable.
func (c *Collector) contributors(ctx context.Context, topicID int64) int64 {
	var resp topicResponse
	url := fmt.Sprintf("%s/t/%d.json", c.cfg.BaseURL, topicID)
	if err := c.client.Get(ctx, url, &resp); err != nil {
		c.debug("topic details unavailable", "topic", topicID, "error", err)
		return 1
	}
	return int64(len(resp.Details.Participants))
}

func (c *Collector) toObservation(t topic, contributors int64, country domain.Country) domain.Observation {
	title := htmltext.Plain(t.FancyTitle)
	if title == "" {
		title = strings.TrimSpace(t.Title)
	}

	return domain.Observation{
		Workflow:  title,
		Platform:  domain.PlatformForum,
		Country:   country,
		SourceURL: fmt.Sprintf("%s/t/%d", c.cfg.BaseURL, t.ID),
		Metrics: domain.ForumMetrics{
			TopicID:      t.ID,
			Views:        t.Views,
			Replies:      t.ReplyCount,
			Likes:        t.LikeCount,
			Contributors: contributors,
		},
		Score: scoring.Forum(t.ReplyCount, t.LikeCount, contributors, t.Views),
	}
}

func (c *Collector) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

type latestResponse struct {
	TopicList struct {
		Topics []topic `json:"topics"`
	} `json:"topic_list"`
}

type topic struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	FancyTitle string `json:"fancy_title"`
	ReplyCount int64  `json:"reply_count"`
	LikeCount  int64  `json:"like_count"`
	Views      int64  `json:"views"`
}

type topicResponse struct {
	Details struct {
		Participants []struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"participants"`
	} `json:"details"`
}
