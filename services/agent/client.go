package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// API is the subset of the control plane the agent talks to.
type API interface {
	CheckIn(ctx context.Context, facts map[string]any, isLead bool) (MachineInfo, error)
	Tasks(ctx context.Context, machineID uuid.UUID) (Manifest, error)
	Report(ctx context.Context, report RunReport) error
}

// MachineInfo is the control plane's view of this machine after a check-in.
type MachineInfo struct {
	ID            uuid.UUID `json:"id"`
	Hostname      string    `json:"hostname"`
	OverallStatus string    `json:"overall_status"`
}

// ToolTask is one tool the control plane wants installed.
type ToolTask struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Optional    bool      `json:"optional"`
	DownloadURL string    `json:"download_url"`
}

// ChecklistEntry is one checklist item with the machine's recorded status.
type ChecklistEntry struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Order      int       `json:"order"`
	IsCritical bool      `json:"is_critical"`
	Status     string    `json:"current_status"`
}

// DepartmentInfo identifies the department a machine belongs to.
type DepartmentInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Manifest is the work order served by the tasks endpoint. Department is nil
// while the machine awaits assignment; the agent holds off installing until
// it is set.
type Manifest struct {
	Department    *DepartmentInfo  `json:"department"`
	RequiredTools []ToolTask       `json:"required_tools"`
	AssignedTools []ToolTask       `json:"assigned_tools"`
	Checklist     []ChecklistEntry `json:"checklist"`
}

// ToolResult is the agent's verdict on one tool install.
type ToolResult struct {
	ToolID uuid.UUID `json:"tool_id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// RunReport is the end-of-run summary posted back to the control plane.
type RunReport struct {
	Hostname string         `json:"hostname"`
	Status   string         `json:"status"`
	Tools    []ToolResult   `json:"tools"`
	Facts    map[string]any `json:"facts"`
}

// Client talks to the prepd HTTP API.
type Client struct {
	base     string
	token    string
	hostname string
	http     *http.Client
}

// NewClient constructs a Client from agent configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		base:     strings.TrimRight(cfg.API, "/"),
		token:    strings.TrimSpace(cfg.Token),
		hostname: cfg.Hostname,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// CheckIn registers the machine (or refreshes its facts) by hostname.
func (c *Client) CheckIn(ctx context.Context, facts map[string]any, isLead bool) (MachineInfo, error) {
	payload := map[string]any{
		"hostname":   c.hostname,
		"ip_address": localIP(),
		"facts":      facts,
		"is_lead":    isLead,
	}

	var resp struct {
		Machine MachineInfo `json:"machine"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/agent/checkin", payload, &resp); err != nil {
		return MachineInfo{}, err
	}
	return resp.Machine, nil
}

// Tasks fetches the machine's work order. The hostname travels in the
// X-Hostname header so a stale machine id never resolves the wrong row.
func (c *Client) Tasks(ctx context.Context, machineID uuid.UUID) (Manifest, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/agent/tasks/"+machineID.String(), nil)
	if err != nil {
		return Manifest{}, err
	}
	req.Header.Set("X-Hostname", c.hostname)

	resp, err := c.http.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("fetch tasks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Manifest{}, httpError(resp)
	}

	var manifest Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode tasks: %w", err)
	}
	return manifest, nil
}

// Report posts the run summary.
func (c *Client) Report(ctx context.Context, report RunReport) error {
	if report.Hostname == "" {
		report.Hostname = c.hostname
	}
	return c.do(ctx, http.MethodPost, "/v1/agent/report", report, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError(resp)
	}
	if dest == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func httpError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
