// Package backend exposes the report service's HTTP API as typed calls.
//
// Every method goes through a transport.Caller, so failures arrive already
// classified. The endpoints that answer 404 for "nothing generated yet" are
// marked soft here, by status and endpoint, never by message text.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/transport"
)

// LatestReport is the report id alias for the most recent report.
const LatestReport = "latest"

var (
	reportIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)
)

// Caller is the transport contract the client needs.
type Caller interface {
	Call(ctx context.Context, method, path string, body any, opts ...transport.CallOption) (transport.Result, error)
}

// Client is the typed API of the report service.
type Client struct {
	caller Caller
}

// NewClient creates a typed client over caller.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) get(ctx context.Context, path string, out any, opts ...transport.CallOption) error {
	res, err := c.caller.Call(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		return err
	}
	return decode("GET "+path, res, out)
}

func decode(op string, res transport.Result, out any) error {
	if err := res.Decode(out); err != nil {
		return &fault.Error{Op: op, Kind: fault.KindConnectivity, Detail: "malformed response", Code: fault.CodeMalformed, Err: err}
	}
	return nil
}

// Status probes service readiness and credential configuration.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.get(ctx, "/status", &st)
	return st, err
}

// Dashboard fetches the aggregate dashboard payload. A 404 means no report
// has been generated yet and is returned as a soft error.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := c.get(ctx, "/dashboard", &d, transport.SoftOn(http.StatusNotFound, fault.CodeNoReport))
	return d, err
}

// Report fetches one report, or the newest when id is "" or LatestReport.
func (c *Client) Report(ctx context.Context, id string) (Report, error) {
	var r Report
	raw, err := c.ReportRaw(ctx, id)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, &fault.Error{Op: "GET /report/" + reportPath(id), Kind: fault.KindConnectivity, Detail: "malformed response", Code: fault.CodeMalformed, Err: err}
	}
	return r, nil
}

// ReportRaw fetches a report's JSON as stored by the service.
func (c *Client) ReportRaw(ctx context.Context, id string) (json.RawMessage, error) {
	id = reportPath(id)
	var opts []transport.CallOption
	if id == LatestReport {
		opts = append(opts, transport.SoftOn(http.StatusNotFound, fault.CodeNoReport))
	}
	res, err := c.caller.Call(ctx, http.MethodGet, "/report/"+url.PathEscape(id), nil, opts...)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, &fault.Error{Op: "GET /report/" + id, Kind: fault.KindConnectivity, Detail: "malformed response", Code: fault.CodeMalformed}
	}
	return res.Raw(), nil
}

func reportPath(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return LatestReport
	}
	return id
}

// Reports lists up to the twenty newest report summaries.
func (c *Client) Reports(ctx context.Context) ([]ReportSummary, error) {
	var list []ReportSummary
	err := c.get(ctx, "/reports", &list)
	return list, err
}

// DeleteReport removes a persisted report. Ids the service would reject are
// refused before any call is made.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	op := "DELETE /report/" + id
	if !reportIDPattern.MatchString(id) || id == LatestReport {
		return fault.Hard(op, 0, "invalid report id "+fmt.Sprintf("%q", id), fault.CodeInvalid)
	}
	_, err := c.caller.Call(ctx, http.MethodDelete, "/report/"+id, nil)
	return err
}

// StartJob asks the service to generate a new report and returns the job id.
func (c *Client) StartJob(ctx context.Context) (string, error) {
	res, err := c.caller.Call(ctx, http.MethodPost, "/generate", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := decode("POST /generate", res, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", &fault.Error{Op: "POST /generate", Kind: fault.KindConnectivity, Detail: "missing job_id", Code: fault.CodeMalformed}
	}
	return out.JobID, nil
}

// Job polls the state of a generation job.
func (c *Client) Job(ctx context.Context, id string) (Job, error) {
	var wire struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Message  string `json:"message"`
		ReportID string `json:"report_id"`
	}
	if err := c.get(ctx, "/job/"+url.PathEscape(id), &wire); err != nil {
		return Job{ID: id}, err
	}
	return Job{
		ID:       id,
		Status:   normalizeJobStatus(wire.Status),
		Progress: clamp(wire.Progress, 0, 100),
		Message:  wire.Message,
		ReportID: wire.ReportID,
	}, nil
}

// Influencers lists the tracked accounts.
func (c *Client) Influencers(ctx context.Context) (Influencers, error) {
	var out Influencers
	err := c.get(ctx, "/influencers", &out)
	return out, err
}

// NormalizeUsername strips whitespace and a leading "@", and validates the
// handle the way the service does.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if !usernamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid username %q: only letters, numbers and underscores allowed", name)
	}
	return name, nil
}

// AddInfluencer adds an account to the tracked list.
func (c *Client) AddInfluencer(ctx context.Context, name string) (Influencers, error) {
	var out Influencers
	user, err := NormalizeUsername(name)
	if err != nil {
		return out, fault.Hard("POST /influencers", 0, err.Error(), fault.CodeInvalid)
	}
	res, err := c.caller.Call(ctx, http.MethodPost, "/influencers", map[string]string{"username": user})
	if err != nil {
		return out, err
	}
	return out, decode("POST /influencers", res, &out)
}

// RemoveInfluencer removes an account from the tracked list.
func (c *Client) RemoveInfluencer(ctx context.Context, name string) (Influencers, error) {
	var out Influencers
	user := strings.TrimPrefix(strings.TrimSpace(name), "@")
	res, err := c.caller.Call(ctx, http.MethodDelete, "/influencers/"+url.PathEscape(user), nil)
	if err != nil {
		return out, err
	}
	return out, decode("DELETE /influencers", res, &out)
}

// Settings reads the fetch settings.
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := c.get(ctx, "/settings", &s)
	return s, err
}

// SaveSettings writes the non-nil fields of u.
func (c *Client) SaveSettings(ctx context.Context, u SettingsUpdate) error {
	_, err := c.caller.Call(ctx, http.MethodPost, "/settings", u)
	return err
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
