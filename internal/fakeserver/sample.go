package fakeserver

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/techintel/techintel/internal/backend"
)

// NewReportID returns an id in the service's format: YYYYmmdd_HHMMSS_<6 hex>.
func NewReportID(at time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return at.Format("20060102_150405") + "_" + hex[:6]
}

// SampleReport builds a complete bilingual report generated at.
func SampleReport(at time.Time, influencers int) backend.Report {
	return backend.Report{
		ID:               NewReportID(at),
		GeneratedAt:      at.Format("2006-01-02T15:04:05.000000"),
		Title:            "Agents Leave the Lab",
		ZhTitle:          "智能体走出实验室",
		Subtitle:         "Tool use and evals dominate the feed",
		ZhSubtitle:       "工具调用与评测主导讨论",
		TotalPosts:       142,
		TotalInfluencers: influencers,
		ExecutiveSummary: backend.ExecutiveSummary{
			Paragraph1:   "Builders moved from demos to production agents this cycle.",
			Paragraph2:   "Evaluation tooling became the bottleneck everyone discussed.",
			ZhParagraph1: "本周期开发者从演示转向生产级智能体。",
			ZhParagraph2: "评测工具成为大家讨论的瓶颈。",
		},
		VisualInsight: backend.VisualInsight{
			Title:         "The Harness Era",
			Description:   "Models are commodities; the harness around them is the product.",
			ZhTitle:       "编排时代",
			ZhDescription: "模型趋于同质，围绕模型的编排才是产品。",
		},
		TrendingTopics: []backend.Topic{
			{Tag: "#agents", Change: "+45%", Velocity: 92},
			{Tag: "#evals", Change: "+30%", Velocity: 71, IsNew: true},
			{Tag: "#inference", Change: "-5%", Velocity: 40},
		},
		StrategicTrends: []backend.StrategicTrend{
			{
				Name:          "Agentic workflows",
				VelocityLabel: "High velocity",
				Change:        "+45%",
				Direction:     "up",
				Description:   "Multi-step tool use is shipping in mainstream products.",
				ZhName:        "智能体工作流",
				ZhDescription: "多步工具调用正在主流产品中落地。",
			},
			{
				Name:          "Scaling debates",
				VelocityLabel: "Cooling",
				Change:        "-12%",
				Direction:     "down",
				Description:   "Less talk about raw parameter counts.",
			},
		},
		InfluencerHighlights: []backend.InfluencerHighlight{
			{
				Username:    "karpathy",
				DisplayName: "Andrej Karpathy",
				Role:        "Educator",
				Quote:       "The hottest new programming language is English.",
				ZhRole:      "教育者",
				ZhQuote:     "最热门的新编程语言是英语。",
				Likes:       12000,
				Shares:      3400,
			},
		},
	}
}
