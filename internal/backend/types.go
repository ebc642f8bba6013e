package backend

import "time"

// Status is the answer of GET /status.
type Status struct {
	OK               bool   `json:"ok"`
	Ready            bool   `json:"ready"`
	XConfigured      bool   `json:"x_configured"`
	ClaudeConfigured bool   `json:"claude_configured"`
	LastReport       string `json:"last_report,omitempty"`
	InfluencerCount  int    `json:"influencer_count,omitempty"`
}

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further polling is needed.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// normalizeJobStatus maps wire values onto the four client states. The
// service reports "pending" before the worker picks a job up; anything
// unrecognized is treated as still running.
func normalizeJobStatus(s string) JobStatus {
	switch s {
	case "queued", "pending":
		return JobQueued
	case "completed", "success", "done":
		return JobCompleted
	case "failed", "error":
		return JobFailed
	default:
		return JobRunning
	}
}

// Job is one poll answer of GET /job/{id}.
type Job struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	ReportID string    `json:"report_id,omitempty"`
}

// Stats are the dashboard counters.
type Stats struct {
	Influencers int    `json:"influencers"`
	Posts       int    `json:"posts"`
	Trends      int    `json:"trends"`
	LastUpdated string `json:"last_updated"`
}

// LastUpdatedTime parses LastUpdated, which the service writes as a naive
// ISO-8601 timestamp. The zero time is returned when it cannot be parsed.
func (s Stats) LastUpdatedTime() time.Time {
	return parseTimestamp(s.LastUpdated)
}

// Topic is one trending hashtag with its velocity score.
type Topic struct {
	Tag      string `json:"tag"`
	Change   string `json:"change"`
	IsNew    bool   `json:"is_new"`
	Velocity int    `json:"velocity"`
}

// ReportSummary is one row of the reports table.
type ReportSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ZhTitle    string `json:"zh_title,omitempty"`
	Subtitle   string `json:"subtitle"`
	ZhSubtitle string `json:"zh_subtitle,omitempty"`
	Date       string `json:"date"`
	TotalPosts int    `json:"total_posts"`
	Score      string `json:"score"`
}

// Dashboard is the aggregate payload of GET /dashboard.
type Dashboard struct {
	Stats          Stats           `json:"stats"`
	TrendingTopics []Topic         `json:"trending_topics"`
	RecentReports  []ReportSummary `json:"recent_reports"`
}

// ExecutiveSummary holds the two summary paragraphs in both languages.
type ExecutiveSummary struct {
	Paragraph1   string `json:"paragraph1"`
	Paragraph2   string `json:"paragraph2"`
	ZhParagraph1 string `json:"zh_paragraph1,omitempty"`
	ZhParagraph2 string `json:"zh_paragraph2,omitempty"`
}

// VisualInsight is the report's headline metaphor.
type VisualInsight struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	ZhTitle       string `json:"zh_title,omitempty"`
	ZhDescription string `json:"zh_description,omitempty"`
}

// StrategicTrend is one of the report's major patterns.
type StrategicTrend struct {
	Name          string `json:"name"`
	VelocityLabel string `json:"velocity_label"`
	Change        string `json:"change"`
	Direction     string `json:"direction"`
	Description   string `json:"description"`
	ZhName        string `json:"zh_name,omitempty"`
	ZhDescription string `json:"zh_description,omitempty"`
}

// InfluencerHighlight is a notable post.
type InfluencerHighlight struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Quote       string `json:"quote"`
	ZhRole      string `json:"zh_role,omitempty"`
	ZhQuote     string `json:"zh_quote,omitempty"`
	Likes       int    `json:"likes"`
	Shares      int    `json:"shares"`
}

// Report is a full generated report.
type Report struct {
	ID                   string                `json:"id"`
	GeneratedAt          string                `json:"generated_at"`
	Title                string                `json:"title"`
	ZhTitle              string                `json:"zh_title,omitempty"`
	Subtitle             string                `json:"subtitle"`
	ZhSubtitle           string                `json:"zh_subtitle,omitempty"`
	TotalPosts           int                   `json:"total_posts"`
	TotalInfluencers     int                   `json:"total_influencers"`
	ExecutiveSummary     ExecutiveSummary      `json:"executive_summary"`
	VisualInsight        VisualInsight         `json:"visual_insight"`
	TrendingTopics       []Topic               `json:"trending_topics"`
	StrategicTrends      []StrategicTrend      `json:"strategic_trends"`
	InfluencerHighlights []InfluencerHighlight `json:"influencer_highlights"`
}

// GeneratedTime parses GeneratedAt; zero when unparseable.
func (r Report) GeneratedTime() time.Time {
	return parseTimestamp(r.GeneratedAt)
}

// Influencers is the tracked account list.
type Influencers struct {
	Influencers []string `json:"influencers"`
	Total       int      `json:"total"`
}

// Settings are the tunable fetch parameters plus read-only facts.
type Settings struct {
	FetchHours       int    `json:"fetch_hours"`
	MaxPerUser       int    `json:"max_per_user"`
	XConfigured      bool   `json:"x_configured"`
	ClaudeConfigured bool   `json:"claude_configured"`
	XUsername        string `json:"x_username,omitempty"`
	ReportCount      int    `json:"report_count"`
	InfluencerCount  int    `json:"influencer_count"`
}

// SettingsUpdate carries the writable settings; nil fields are left alone.
type SettingsUpdate struct {
	FetchHours *int `json:"fetch_hours,omitempty"`
	MaxPerUser *int `json:"max_per_user,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
