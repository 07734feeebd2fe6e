// Package trends collects search interest from Google Trends.
package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"WorkflowPulse/internal/collector"
	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/infrastructure/httpjson"
	"WorkflowPulse/internal/scoring"
)

const (
	defaultBaseURL   = "https://trends.google.com"
	defaultTimeframe = "today 3-m"
	defaultLanguage  = "en-US"
	defaultRegion    = "IN"
	// defaultLookback is how many samples back the change reference sits.
	defaultLookback = 30
	// responsePrefix guards every Trends API JSON body.
	responsePrefix = ")]}'"
	timeseriesID   = "TIMESERIES"
)

var errNoTimeseries = errors.New("explore response has no TIMESERIES widget")

// DefaultKeywords are queried when a request names none.
var DefaultKeywords = []string{
	"n8n slack integration", "n8n google sheets", "n8n gmail automation",
	"n8n whatsapp", "n8n airtable", "n8n notion",
}

// DefaultRegions maps target countries to Trends geo codes.
var DefaultRegions = map[domain.Country]string{
	domain.CountryUS: "US",
	domain.CountryIN: "IN",
}

// Config parametrizes the collector.
type Config struct {
	BaseURL   string
	Keywords  []string
	Timeframe string
	Language  string
	TZOffset  int
	Lookback  int
	Regions   map[domain.Country]string
	// DefaultRegion is used for countries missing from Regions.
	DefaultRegion string
	Pause         time.Duration
	Transport     http.RoundTripper
}

// Collector reads an interest-over-time series per keyword.
type Collector struct {
	cfg    Config
	logger *slog.Logger
}

var _ collector.Collector = (*Collector)(nil)

// NewCollector applies defaults to cfg.
func NewCollector(cfg Config, logger *slog.Logger) *Collector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = defaultTimeframe
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.Regions == nil {
		cfg.Regions = DefaultRegions
	}
	cfg.Regions = maps.Clone(cfg.Regions)
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = defaultRegion
	}
	return &Collector{cfg: cfg, logger: logger}
}

// Platform identifies the collector inside the registry.
func (c *Collector) Platform() domain.Platform {
	return domain.PlatformTrends
}

// Region resolves the Trends geo code for a country.
func (c *Collector) Region(country domain.Country) string {
	if geo, ok := c.cfg.Regions[country]; ok && geo != "" {
		return geo
	}
	return c.cfg.DefaultRegion
}

// Collect opens a cookie session and queries each keyword. A session failure
// is reported as the only result; keyword failures are reported and skipped.
func (c *Collector) Collect(ctx context.Context, req collector.Request) []domain.Result {
	country := req.Country
	geo := c.Region(country)

	client, err := c.newSession(ctx, geo)
	if err != nil {
		return []domain.Result{domain.Failure(domain.PlatformTrends, country, "session", geo, err)}
	}

	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = c.cfg.Keywords
	}

	var results []domain.Result
	for i, kw := range keywords {
		if i > 0 {
			if err := collector.Pause(ctx, c.cfg.Pause); err != nil {
				results = append(results, domain.Failure(domain.PlatformTrends, country, "keyword", kw, err))
				break
			}
		}

		series, err := c.interestOverTime(ctx, client, kw, geo)
		if err != nil {
			results = append(results, domain.Failure(domain.PlatformTrends, country, "keyword", kw, err))
			continue
		}
		if len(series) == 0 {
			c.debug("empty series", "keyword", kw, "geo", geo)
			continue
		}
		results = append(results, domain.Success(c.toObservation(kw, geo, country, series)))
	}

	return results
}

// newSession primes a cookie jar; the API rejects cookieless clients.
func (c *Collector) newSession(ctx context.Context, geo string) (*httpjson.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: 20 * time.Second, Transport: c.cfg.Transport}
	client := httpjson.NewClient(httpjson.WithDoer(httpClient), httpjson.WithBodyPrefix(responsePrefix))

	if _, err := client.GetRaw(ctx, c.cfg.BaseURL+"/?geo="+url.QueryEscape(geo)); err != nil {
		return nil, fmt.Errorf("bootstrap session: %w", err)
	}
	return client, nil
}

func (c *Collector) interestOverTime(ctx context.Context, client *httpjson.Client, keyword, geo string) ([]float64, error) {
	widget, err := c.explore(ctx, client, keyword, geo)
	if err != nil {
		return nil, fmt.Errorf("explore: %w", err)
	}

	query := c.baseQuery()
	query.Set("req", string(widget.Request))
	query.Set("token", widget.Token)

	var resp multilineResponse
	if err := client.Get(ctx, c.cfg.BaseURL+"/trends/api/widgetdata/multiline?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("multiline: %w", err)
	}

	series := make([]float64, 0, len(resp.Default.TimelineData))
	for _, point := range resp.Default.TimelineData {
		if len(point.Value) == 0 {
			continue
		}
		series = append(series, point.Value[0])
	}
	return series, nil
}

func (c *Collector) explore(ctx context.Context, client *httpjson.Client, keyword, geo string) (widget, error) {
	payload, err := json.Marshal(exploreRequest{
		ComparisonItem: []comparisonItem{{Keyword: keyword, Geo: geo, Time: c.cfg.Timeframe}},
		Category:       0,
		Property:       "",
	})
	if err != nil {
		return widget{}, fmt.Errorf("marshal explore request: %w", err)
	}

	query := c.baseQuery()
	query.Set("req", string(payload))

	var resp exploreResponse
	if err := client.Get(ctx, c.cfg.BaseURL+"/trends/api/explore?"+query.Encode(), &resp); err != nil {
		return widget{}, err
	}
	for _, w := range resp.Widgets {
		if w.ID == timeseriesID {
			return w, nil
		}
	}
	return widget{}, errNoTimeseries
}

func (c *Collector) baseQuery() url.Values {
	query := url.Values{}
	query.Set("hl", c.cfg.Language)
	query.Set("tz", strconv.Itoa(c.cfg.TZOffset))
	return query
}

func (c *Collector) toObservation(keyword, geo string, country domain.Country, series []float64) domain.Observation {
	interest, changePct := Change(series, c.cfg.Lookback)

	link := url.Values{}
	link.Set("q", keyword)
	link.Set("geo", geo)

	return domain.Observation{
		Workflow:  keyword,
		Platform:  domain.PlatformTrends,
		Country:   country,
		SourceURL: c.cfg.BaseURL + "/trends/explore?" + link.Encode(),
		Metrics: domain.TrendsMetrics{
			Keyword:   keyword,
			Geo:       geo,
			Interest:  interest,
			ChangePct: changePct,
		},
		Score: scoring.Trends(interest, changePct),
	}
}

// Change returns the latest value and its percent change against the sample
// lookback positions from the end (clamped to the window start).
func Change(series []float64, lookback int) (interest, changePct float64) {
	if len(series) == 0 {
		return 0, 0
	}
	interest = series[len(series)-1]
	n := min(len(series), lookback)
	if n <= 1 {
		return interest, 0
	}
	return interest, scoring.ChangePct(series[len(series)-n], interest)
}

func (c *Collector) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type exploreResponse struct {
	Widgets []widget `json:"widgets"`
}

type widget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Time  string    `json:"time"`
			Value []float64 `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}
