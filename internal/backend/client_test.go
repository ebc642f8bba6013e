package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/transport"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(transport.New(srv.URL, transport.WithRateLimit(0, 0)))
}

func TestDashboard_Decodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{
			"stats": {"influencers": 12, "posts": 340, "trends": 5, "last_updated": "2026-03-01T08:30:00.123456"},
			"trending_topics": [{"tag": "#agents", "change": "+40%", "is_new": true, "velocity": 91}],
			"recent_reports": [{"id": "20260301_083000", "title": "Agents everywhere", "zh_title": "智能体无处不在", "date": "Mar 01, 2026", "total_posts": 340, "score": "8.4"}]
		}`)
	})

	d, err := c.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Stats.Posts != 340 {
		t.Errorf("Posts = %d", d.Stats.Posts)
	}
	if d.Stats.LastUpdatedTime().IsZero() {
		t.Error("LastUpdatedTime should parse a naive timestamp")
	}
	if len(d.TrendingTopics) != 1 || !d.TrendingTopics[0].IsNew {
		t.Errorf("TrendingTopics = %+v", d.TrendingTopics)
	}
	if len(d.RecentReports) != 1 || d.RecentReports[0].ZhTitle != "智能体无处不在" {
		t.Errorf("RecentReports = %+v", d.RecentReports)
	}
}

func TestDashboard_NotFoundIsSoft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"No report yet. Click 'Generate Daily Report'."}`)
	})

	_, err := c.Dashboard(context.Background())
	if !fault.IsSoft(err) {
		t.Fatalf("expected soft error, got %v", err)
	}
	if fault.Message(err) != "No report yet. Click 'Generate Daily Report'." {
		t.Errorf("Message = %q", fault.Message(err))
	}
}

func TestReport_LatestSoftButByIDHard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Report not found."}`)
	})

	if _, err := c.Report(context.Background(), ""); !fault.IsSoft(err) {
		t.Errorf("latest: expected soft, got %v", err)
	}
	if _, err := c.Report(context.Background(), LatestReport); !fault.IsSoft(err) {
		t.Errorf("latest alias: expected soft, got %v", err)
	}
	if _, err := c.Report(context.Background(), "20260301_083000"); !fault.IsHard(err) {
		t.Errorf("by id: expected hard, got %v", err)
	}
}

func TestReport_EmptyIDRequestsLatest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/report/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"id":"r1","title":"T","executive_summary":{"paragraph1":"p1","zh_paragraph1":"段落"}}`)
	})

	r, err := c.Report(context.Background(), "  ")
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != "r1" || r.ExecutiveSummary.ZhParagraph1 != "段落" {
		t.Errorf("Report = %+v", r)
	}
}

func TestReportRaw_PreservesBody(t *testing.T) {
	body := `{"id":"r1","extra":{"kept":true}}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	})

	raw, err := c.ReportRaw(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != body {
		t.Errorf("raw = %s", raw)
	}
}

func TestDeleteReport(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodDelete || r.URL.Path != "/api/report/r_1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"ok":true}`)
	})

	if err := c.DeleteReport(context.Background(), "r_1"); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestDeleteReport_InvalidIDNoCall(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	for _, id := range []string{"", "../etc", "a b", LatestReport} {
		if err := c.DeleteReport(context.Background(), id); !fault.IsHard(err) {
			t.Errorf("DeleteReport(%q) = %v, want hard error", id, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestStartJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"job_id":"job-1"}`)
	})

	id, err := c.StartJob(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id != "job-1" {
		t.Errorf("id = %q", id)
	}
}

func TestStartJob_MissingIDIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})
	_, err := c.StartJob(context.Background())
	fe, ok := fault.As(err)
	if !ok || fe.Code != fault.CodeMalformed {
		t.Errorf("err = %v", err)
	}
}

func TestJob_NormalizesStatus(t *testing.T) {
	tests := []struct {
		wire     string
		progress int
		want     JobStatus
		wantProg int
	}{
		{"pending", 0, JobQueued, 0},
		{"running", 45, JobRunning, 45},
		{"completed", 100, JobCompleted, 100},
		{"failed", 30, JobFailed, 30},
		{"warming_up", 150, JobRunning, 100},
		{"running", -5, JobRunning, 0},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"status": tt.wire, "progress": tt.progress, "message": "m"})
			})
			j, err := c.Job(context.Background(), "job-1")
			if err != nil {
				t.Fatal(err)
			}
			if j.Status != tt.want {
				t.Errorf("Status = %q, want %q", j.Status, tt.want)
			}
			if j.Progress != tt.wantProg {
				t.Errorf("Progress = %d, want %d", j.Progress, tt.wantProg)
			}
			if j.ID != "job-1" {
				t.Errorf("ID = %q", j.ID)
			}
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	if JobQueued.Terminal() || JobRunning.Terminal() {
		t.Error("queued/running must not be terminal")
	}
	if !JobCompleted.Terminal() || !JobFailed.Terminal() {
		t.Error("completed/failed must be terminal")
	}
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"@karpathy", "karpathy", false},
		{"  sama ", "sama", false},
		{"bad-name", "", true},
		{"", "", true},
		{"@", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeUsername(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeUsername(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddInfluencer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "karpathy" {
			t.Errorf("username = %q", body["username"])
		}
		io.WriteString(w, `{"ok":true,"influencers":["sama","karpathy"],"total":2}`)
	})

	out, err := c.AddInfluencer(context.Background(), "@karpathy")
	if err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 || len(out.Influencers) != 2 {
		t.Errorf("out = %+v", out)
	}
}

func TestAddInfluencer_Duplicate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"detail":"@sama is already in the list."}`)
	})
	_, err := c.AddInfluencer(context.Background(), "sama")
	if !fault.IsHard(err) {
		t.Fatalf("expected hard error, got %v", err)
	}
	if fault.Message(err) != "@sama is already in the list." {
		t.Errorf("Message = %q", fault.Message(err))
	}
}

func TestRemoveInfluencer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/influencers/sama" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"ok":true,"influencers":[],"total":0}`)
	})
	out, err := c.RemoveInfluencer(context.Background(), "@sama")
	if err != nil {
		t.Fatal(err)
	}
	if out.Total != 0 {
		t.Errorf("Total = %d", out.Total)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	var saved map[string]int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `{"fetch_hours":24,"max_per_user":20,"x_configured":true,"report_count":3}`)
		case http.MethodPost:
			json.NewDecoder(r.Body).Decode(&saved)
			io.WriteString(w, `{"ok":true}`)
		}
	})

	s, err := c.Settings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.FetchHours != 24 || !s.XConfigured || s.ReportCount != 3 {
		t.Errorf("Settings = %+v", s)
	}

	hours := 48
	if err := c.SaveSettings(context.Background(), SettingsUpdate{FetchHours: &hours}); err != nil {
		t.Fatal(err)
	}
	if saved["fetch_hours"] != 48 {
		t.Errorf("saved = %v", saved)
	}
	if _, ok := saved["max_per_user"]; ok {
		t.Error("nil fields must be omitted")
	}
}

func TestReports(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"a"},{"id":"b"}]`)
	})
	list, err := c.Reports(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1].ID != "b" {
		t.Errorf("list = %+v", list)
	}
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"ready":true,"x_configured":false,"claude_configured":true}`)
	})
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.Ready || st.XConfigured || !st.ClaudeConfigured {
		t.Errorf("Status = %+v", st)
	}
}
