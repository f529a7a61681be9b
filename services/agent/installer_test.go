package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

type stubDownloader struct {
	fetched []string
	fail    map[string]error
}

func (d *stubDownloader) Fetch(_ context.Context, rawURL, dest string) error {
	if err := d.fail[rawURL]; err != nil {
		return err
	}
	d.fetched = append(d.fetched, rawURL)
	return os.WriteFile(dest, []byte("installer"), 0o644)
}

type stubRunner struct {
	commands []InstallCommand
	fail     map[string]error // keyed by command path
}

func (r *stubRunner) Run(_ context.Context, cmd InstallCommand) error {
	r.commands = append(r.commands, cmd)
	return r.fail[filepath.Base(cmd.Path)]
}

func newTestInstaller(t *testing.T, download *stubDownloader, run *stubRunner) *Installer {
	t.Helper()
	inst, err := NewInstaller(t.TempDir(), download, run, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewInstaller: %v", err)
	}
	return inst
}

func TestInstallAllIndependentFailures(t *testing.T) {
	download := &stubDownloader{fail: map[string]error{
		"https://x.example.com/bad.exe": errors.New("connection reset"),
	}}
	run := &stubRunner{fail: map[string]error{}}
	inst := newTestInstaller(t, download, run)

	results := inst.InstallAll(context.Background(), []ToolTask{
		{ID: uuid.New(), Name: "Bad Tool", DownloadURL: "https://x.example.com/bad.exe"},
		{ID: uuid.New(), Name: "Good Tool", DownloadURL: "https://x.example.com/good.exe"},
	})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Status != "failed" || results[0].Detail == "" {
		t.Fatalf("first result = %+v, want failed with detail", results[0])
	}
	if results[1].Status != "installed" {
		t.Fatalf("second result = %+v, want installed despite earlier failure", results[1])
	}
	if len(run.commands) != 1 {
		t.Fatalf("installer ran %d commands, want 1", len(run.commands))
	}
}

func TestInstallAllUsesCache(t *testing.T) {
	download := &stubDownloader{}
	run := &stubRunner{}
	inst := newTestInstaller(t, download, run)

	tool := ToolTask{ID: uuid.New(), Name: "Office Suite", Version: "2024", DownloadURL: "https://x.example.com/setup.exe"}

	for i := 0; i < 2; i++ {
		results := inst.InstallAll(context.Background(), []ToolTask{tool})
		if results[0].Status != "installed" {
			t.Fatalf("pass %d: %+v", i, results[0])
		}
	}

	if len(download.fetched) != 1 {
		t.Fatalf("downloaded %d times, want 1 (second run should hit the cache)", len(download.fetched))
	}
	if len(run.commands) != 2 {
		t.Fatalf("ran %d commands, want 2 (install still re-runs)", len(run.commands))
	}
}

func TestInstallAllFailedRunReported(t *testing.T) {
	download := &stubDownloader{}
	run := &stubRunner{fail: map[string]error{
		"broken.exe": errors.New("exit status 1603"),
	}}
	inst := newTestInstaller(t, download, run)

	results := inst.InstallAll(context.Background(), []ToolTask{
		{ID: uuid.New(), Name: "Broken", DownloadURL: "https://x.example.com/broken.exe"},
	})
	if results[0].Status != "failed" {
		t.Fatalf("result = %+v, want failed", results[0])
	}
}

func TestInstallOneRequiresURL(t *testing.T) {
	inst := newTestInstaller(t, &stubDownloader{}, &stubRunner{})
	results := inst.InstallAll(context.Background(), []ToolTask{{ID: uuid.New(), Name: "No URL"}})
	if results[0].Status != "failed" {
		t.Fatalf("result = %+v, want failed for missing url", results[0])
	}
}
