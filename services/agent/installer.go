package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Downloader fetches an installer to a local path. Tests substitute a stub.
type Downloader interface {
	Fetch(ctx context.Context, rawURL, dest string) error
}

// Installer downloads and runs tool installers. Downloads land in a cache
// keyed by tool name and version, so a re-run after a partial failure only
// fetches what is missing.
type Installer struct {
	cacheDir string
	download Downloader
	run      Runner
	logger   *log.Logger
}

// NewInstaller constructs an Installer.
func NewInstaller(cacheDir string, download Downloader, run Runner, logger *log.Logger) (*Installer, error) {
	if cacheDir == "" {
		return nil, errors.New("cache dir is required")
	}
	if download == nil {
		download = NewDownloader()
	}
	if run == nil {
		run = NewRunner()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{cacheDir: cacheDir, download: download, run: run, logger: logger}, nil
}

// InstallAll processes every tool independently: one failed download or
// installer never stops the rest. The returned results carry one entry per
// input tool.
func (i *Installer) InstallAll(ctx context.Context, tools []ToolTask) []ToolResult {
	results := make([]ToolResult, 0, len(tools))
	for _, tool := range tools {
		result := ToolResult{ToolID: tool.ID, Name: tool.Name, Status: "installed"}
		if err := i.installOne(ctx, tool); err != nil {
			result.Status = "failed"
			result.Detail = err.Error()
			i.logger.Printf("ERROR install %s: %v", tool.Name, err)
		} else {
			i.logger.Printf("INFO installed %s", tool.Name)
		}
		results = append(results, result)
	}
	return results
}

func (i *Installer) installOne(ctx context.Context, tool ToolTask) error {
	if strings.TrimSpace(tool.DownloadURL) == "" {
		return fmt.Errorf("no download url for %s", tool.Name)
	}

	dest := filepath.Join(i.cacheDir, cacheFileName(tool))
	if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(i.cacheDir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
		if err := i.download.Fetch(ctx, tool.DownloadURL, dest); err != nil {
			return fmt.Errorf("download: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("stat cache: %w", err)
	} else {
		i.logger.Printf("INFO using cached installer for %s", tool.Name)
	}

	if err := i.run.Run(ctx, CommandFor(tool.Name, dest)); err != nil {
		return fmt.Errorf("run installer: %w", err)
	}
	return nil
}

// cacheFileName derives a deterministic per-tool file name so repeat runs hit
// the cache. The extension follows the download URL; unknown ones default to
// .exe.
func cacheFileName(tool ToolTask) string {
	ext := ".exe"
	if parsed, err := url.Parse(tool.DownloadURL); err == nil {
		if e := path.Ext(parsed.Path); e != "" {
			ext = e
		}
	}

	name := slug(tool.Name)
	if tool.Version != "" {
		name += "-" + slug(tool.Version)
	}
	return name + ext
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteRune('-')
		}
	}
	return b.String()
}

// httpDownloader streams to a temp file and renames into place, so a torn
// download never poisons the cache.
type httpDownloader struct {
	client *http.Client
}

// NewDownloader returns the http backed Downloader.
func NewDownloader() Downloader {
	return &httpDownloader{client: &http.Client{Timeout: 10 * time.Minute}}
}

func (d *httpDownloader) Fetch(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write installer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
