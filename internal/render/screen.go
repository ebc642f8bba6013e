// Package render projects cached dashboard and report data into a Screen,
// the display model every presentation layer draws.
//
// Project is pure: the same data and locale always yield an identical Screen
// and an identical Text.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/techintel/techintel/internal/backend"
	"github.com/techintel/techintel/internal/locale"
)

// Screen is the projected view.
type Screen struct {
	Locale       locale.Locale
	HasDashboard bool
	Stats        StatsView
	Topics       []TopicView
	Reports      []Row
	Report       *ReportView
}

// StatsView is the counter strip.
type StatsView struct {
	Influencers int
	Posts       int
	Trends      int
	LastUpdated string
}

// TopicView is one trending topic with its velocity indicator.
type TopicView struct {
	Tag      string
	Change   string
	IsNew    bool
	Velocity int
	Bar      string
}

// Row is one line of the reports table, keyed by ID.
type Row struct {
	ID       string
	Date     string
	Title    string
	Subtitle string
	Posts    int
	Score    string
	Fading   bool
}

// ReportView is the projected full report.
type ReportView struct {
	ID         string
	Title      string
	Subtitle   string
	Generated  string
	Totals     string
	Summary    []string
	Insight    InsightView
	Topics     []TopicView
	Trends     []TrendView
	Highlights []HighlightView
}

// InsightView is the visual insight block.
type InsightView struct {
	Title       string
	Description string
}

// TrendView is one strategic trend.
type TrendView struct {
	Name          string
	VelocityLabel string
	Change        string
	Direction     string
	Description   string
}

// HighlightView is one influencer highlight.
type HighlightView struct {
	Handle      string
	DisplayName string
	Role        string
	Quote       string
	Engagement  string
}

// Project builds the screen for the given cache contents. Either argument may
// be nil; a nil dashboard renders the empty reports table.
func Project(d *backend.Dashboard, r *backend.Report, l locale.Locale) Screen {
	s := Screen{Locale: l}
	if d != nil {
		s.HasDashboard = true
		s.Stats = StatsView{
			Influencers: d.Stats.Influencers,
			Posts:       d.Stats.Posts,
			Trends:      d.Stats.Trends,
			LastUpdated: formatTimestamp(d.Stats.LastUpdated, d.Stats.LastUpdatedTime(), l),
		}
		s.Topics = projectTopics(d.TrendingTopics)
		s.Reports = make([]Row, 0, len(d.RecentReports))
		for _, rs := range d.RecentReports {
			s.Reports = append(s.Reports, projectRow(rs, l))
		}
	}
	if r != nil {
		s.Report = projectReport(r, l)
	}
	return s
}

func projectRow(rs backend.ReportSummary, l locale.Locale) Row {
	return Row{
		ID:       rs.ID,
		Date:     Clean(rs.Date),
		Title:    Clean(locale.Pick(l, rs.Title, rs.ZhTitle)),
		Subtitle: Clean(locale.Pick(l, rs.Subtitle, rs.ZhSubtitle)),
		Posts:    rs.TotalPosts,
		Score:    Clean(rs.Score),
	}
}

func projectTopics(topics []backend.Topic) []TopicView {
	out := make([]TopicView, 0, len(topics))
	for _, t := range topics {
		out = append(out, TopicView{
			Tag:      Clean(t.Tag),
			Change:   Clean(t.Change),
			IsNew:    t.IsNew,
			Velocity: clampPercent(t.Velocity),
			Bar:      VelocityBar(t.Velocity, barWidth),
		})
	}
	return out
}

func projectReport(r *backend.Report, l locale.Locale) *ReportView {
	v := &ReportView{
		ID:        r.ID,
		Title:     Clean(locale.Pick(l, r.Title, r.ZhTitle)),
		Subtitle:  Clean(locale.Pick(l, r.Subtitle, r.ZhSubtitle)),
		Generated: formatTimestamp(r.GeneratedAt, r.GeneratedTime(), l),
		Totals:    l.Labelf("report.totals", r.TotalPosts, r.TotalInfluencers),
		Insight: InsightView{
			Title:       Clean(locale.Pick(l, r.VisualInsight.Title, r.VisualInsight.ZhTitle)),
			Description: Clean(locale.Pick(l, r.VisualInsight.Description, r.VisualInsight.ZhDescription)),
		},
		Topics: projectTopics(r.TrendingTopics),
	}

	es := r.ExecutiveSummary
	for _, p := range []string{
		locale.Pick(l, es.Paragraph1, es.ZhParagraph1),
		locale.Pick(l, es.Paragraph2, es.ZhParagraph2),
	} {
		if p = Clean(p); p != "" {
			v.Summary = append(v.Summary, p)
		}
	}

	for _, t := range r.StrategicTrends {
		v.Trends = append(v.Trends, TrendView{
			Name:          Clean(locale.Pick(l, t.Name, t.ZhName)),
			VelocityLabel: Clean(t.VelocityLabel),
			Change:        Clean(t.Change),
			Direction:     directionLabel(t.Direction, l),
			Description:   Clean(locale.Pick(l, t.Description, t.ZhDescription)),
		})
	}

	for _, h := range r.InfluencerHighlights {
		v.Highlights = append(v.Highlights, HighlightView{
			Handle:      "@" + strings.TrimPrefix(Clean(h.Username), "@"),
			DisplayName: Clean(h.DisplayName),
			Role:        Clean(locale.Pick(l, h.Role, h.ZhRole)),
			Quote:       Clean(locale.Pick(l, h.Quote, h.ZhQuote)),
			Engagement:  l.Labelf("report.engagement", h.Likes, h.Shares),
		})
	}
	return v
}

func directionLabel(dir string, l locale.Locale) string {
	switch strings.ToLower(dir) {
	case "up":
		return l.Label("report.direction.up")
	case "down":
		return l.Label("report.direction.down")
	default:
		return Clean(dir)
	}
}

func formatTimestamp(raw string, t time.Time, l locale.Locale) string {
	if raw == "" {
		return l.Label("stats.never")
	}
	if t.IsZero() {
		return Clean(raw)
	}
	return t.Format("2006-01-02 15:04")
}

// RowIndex returns the position of the row with id, or -1.
func (s Screen) RowIndex(id string) int {
	for i, r := range s.Reports {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// RowIDs returns the table's ids in display order.
func (s Screen) RowIDs() []string {
	ids := make([]string, len(s.Reports))
	for i, r := range s.Reports {
		ids[i] = r.ID
	}
	return ids
}

// WithRowFading returns a copy of s with the row for id marked as fading.
func (s Screen) WithRowFading(id string) Screen {
	i := s.RowIndex(id)
	if i < 0 {
		return s
	}
	rows := append([]Row(nil), s.Reports...)
	rows[i].Fading = true
	s.Reports = rows
	return s
}

// Text renders the screen as plain text. It is the canonical serialization
// used for display and for comparing two projections.
func (s Screen) Text() string {
	var b strings.Builder
	l := s.Locale
	fmt.Fprintf(&b, "%s\n", l.Label("app.title"))

	if s.HasDashboard {
		fmt.Fprintf(&b, "%s: %d  %s: %d  %s: %d  %s: %s\n",
			l.Label("stats.influencers"), s.Stats.Influencers,
			l.Label("stats.posts"), s.Stats.Posts,
			l.Label("stats.trends"), s.Stats.Trends,
			l.Label("stats.updated"), s.Stats.LastUpdated)

		fmt.Fprintf(&b, "\n%s\n", l.Label("topics.title"))
		if len(s.Topics) == 0 {
			fmt.Fprintf(&b, "  %s\n", l.Label("topics.empty"))
		}
		writeTopics(&b, s.Topics, l)
	}

	fmt.Fprintf(&b, "\n%s\n", l.Label("reports.title"))
	if len(s.Reports) == 0 {
		fmt.Fprintf(&b, "  %s\n", l.Label("reports.empty"))
	}
	for _, r := range s.Reports {
		fmt.Fprintf(&b, "  %-16s %-13s %s  %d  %s", r.ID, r.Date, r.Title, r.Posts, r.Score)
		if r.Fading {
			fmt.Fprintf(&b, "  (%s)", l.Label("reports.fading"))
		}
		b.WriteByte('\n')
	}

	if s.Report != nil {
		b.WriteByte('\n')
		s.Report.write(&b, l)
	}
	return b.String()
}

func writeTopics(b *strings.Builder, topics []TopicView, l locale.Locale) {
	for _, t := range topics {
		fmt.Fprintf(b, "  %-24s %-6s %s %3d", t.Tag, t.Change, t.Bar, t.Velocity)
		if t.IsNew {
			fmt.Fprintf(b, "  %s", l.Label("topics.new"))
		}
		b.WriteByte('\n')
	}
}

// Text renders only the report.
func (v *ReportView) Text(l locale.Locale) string {
	var b strings.Builder
	v.write(&b, l)
	return b.String()
}

func (v *ReportView) write(b *strings.Builder, l locale.Locale) {
	fmt.Fprintf(b, "%s\n", v.Title)
	if v.Subtitle != "" {
		fmt.Fprintf(b, "%s\n", v.Subtitle)
	}
	fmt.Fprintf(b, "%s: %s · %s\n", l.Label("report.generated"), v.Generated, v.Totals)

	if len(v.Summary) > 0 {
		fmt.Fprintf(b, "\n%s\n", l.Label("report.summary"))
		for _, p := range v.Summary {
			fmt.Fprintf(b, "  %s\n", p)
		}
	}
	if v.Insight.Title != "" || v.Insight.Description != "" {
		fmt.Fprintf(b, "\n%s: %s\n", l.Label("report.insight"), v.Insight.Title)
		if v.Insight.Description != "" {
			fmt.Fprintf(b, "  %s\n", v.Insight.Description)
		}
	}
	if len(v.Topics) > 0 {
		fmt.Fprintf(b, "\n%s\n", l.Label("topics.title"))
		writeTopics(b, v.Topics, l)
	}
	if len(v.Trends) > 0 {
		fmt.Fprintf(b, "\n%s\n", l.Label("report.trends"))
		for i, t := range v.Trends {
			fmt.Fprintf(b, "  %d. %s  [%s %s %s]\n", i+1, t.Name, t.VelocityLabel, t.Change, t.Direction)
			if t.Description != "" {
				fmt.Fprintf(b, "     %s\n", t.Description)
			}
		}
	}
	if len(v.Highlights) > 0 {
		fmt.Fprintf(b, "\n%s\n", l.Label("report.highlights"))
		for _, h := range v.Highlights {
			fmt.Fprintf(b, "  %s (%s) %s\n", h.DisplayName, h.Handle, h.Role)
			if h.Quote != "" {
				fmt.Fprintf(b, "    \"%s\"\n", h.Quote)
			}
			fmt.Fprintf(b, "    %s\n", h.Engagement)
		}
	}
}
