package domain

// Metrics is the platform specific payload attached to an observation.
// Implementations are limited to the variants declared in this package.
type Metrics interface {
	Platform() Platform
	metrics()
}

// VideoMetrics are the statistics of a single video.
type VideoMetrics struct {
	Views              int64   `json:"views"`
	Likes              int64   `json:"likes"`
	Comments           int64   `json:"comments"`
	LikeToViewRatio    float64 `json:"like_to_view_ratio"`
	CommentToViewRatio float64 `json:"comment_to_view_ratio"`
	Keyword            string  `json:"keyword"`
}

// ForumMetrics are the engagement counters of a forum topic.
type ForumMetrics struct {
	TopicID      int64 `json:"topic_id"`
	Views        int64 `json:"views"`
	Replies      int64 `json:"replies"`
	Likes        int64 `json:"likes"`
	Contributors int64 `json:"contributors"`
}

// TrendsMetrics describe search interest for one keyword.
type TrendsMetrics struct {
	Keyword   string  `json:"keyword"`
	Geo       string  `json:"geo"`
	Interest  float64 `json:"interest"`
	ChangePct float64 `json:"change_pct"`
}

func (VideoMetrics) Platform() Platform  { return PlatformVideo }
func (ForumMetrics) Platform() Platform  { return PlatformForum }
func (TrendsMetrics) Platform() Platform { return PlatformTrends }

func (VideoMetrics) metrics()  {}
func (ForumMetrics) metrics()  {}
func (TrendsMetrics) metrics() {}
