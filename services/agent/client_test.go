package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestClientCheckIn(t *testing.T) {
	machineID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agent/checkin" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("authorization = %q", got)
		}
		var req struct {
			Hostname string `json:"hostname"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Hostname != "ws-client" {
			t.Fatalf("hostname = %q", req.Hostname)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"machine": map[string]any{"id": machineID, "hostname": "ws-client", "overall_status": "IN_PROGRESS"},
		})
	}))
	defer server.Close()

	client := NewClient(Config{API: server.URL, Token: "secret", Hostname: "ws-client"})
	machine, err := client.CheckIn(context.Background(), map[string]any{"os": "windows"}, false)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if machine.ID != machineID || machine.OverallStatus != "IN_PROGRESS" {
		t.Fatalf("machine = %+v", machine)
	}
}

func TestClientTasksSendsHostnameHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Hostname"); got != "ws-client" {
			t.Fatalf("X-Hostname = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"assigned_tools": []map[string]any{
				{"id": uuid.New(), "name": "Office Suite", "download_url": "https://x/office.exe"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{API: server.URL, Hostname: "ws-client"})
	manifest, err := client.Tasks(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(manifest.AssignedTools) != 1 || manifest.AssignedTools[0].Name != "Office Suite" {
		t.Fatalf("manifest = %+v", manifest)
	}
}

func TestClientTasksUnassignedMachine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"department":     nil,
			"required_tools": []any{},
			"assigned_tools": []any{},
			"checklist": []map[string]any{
				{"id": uuid.New(), "name": "Join domain", "current_status": "PENDING"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{API: server.URL, Hostname: "ws-client"})
	manifest, err := client.Tasks(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if manifest.Department != nil {
		t.Fatalf("department = %+v, want nil while unassigned", manifest.Department)
	}
	if len(manifest.Checklist) != 1 || manifest.Checklist[0].Status != "PENDING" {
		t.Fatalf("checklist = %+v", manifest.Checklist)
	}
}

func TestClientReportSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "machine not found"})
	}))
	defer server.Close()

	client := NewClient(Config{API: server.URL, Hostname: "ws-client"})
	err := client.Report(context.Background(), RunReport{Status: "completed"})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}
