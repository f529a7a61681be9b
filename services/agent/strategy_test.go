package agent

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestCommandFor(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		path     string
		wantPath string
		wantArgs []string
	}{
		{
			name:     "office matches descriptor strategy",
			tool:     "Microsoft Office 365",
			path:     filepath.Join("cache", "office-setup.exe"),
			wantPath: filepath.Join("cache", "office-setup.exe"),
			wantArgs: []string{"/configure", filepath.Join("cache", "configuration.xml")},
		},
		{
			name:     "matching is case-insensitive",
			tool:     "ADOBE ACROBAT DC",
			path:     "acrobat.exe",
			wantPath: "acrobat.exe",
			wantArgs: []string{"/sAll", "/rs", "/rps", "/msi", "EULA_ACCEPT=YES"},
		},
		{
			name:     "first match wins over later keywords",
			tool:     "Office Reader Bundle", // both office and reader match
			path:     filepath.Join("cache", "bundle.exe"),
			wantPath: filepath.Join("cache", "bundle.exe"),
			wantArgs: []string{"/configure", filepath.Join("cache", "configuration.xml")},
		},
		{
			name:     "seven zip silent switch",
			tool:     "7-Zip",
			path:     "7z.exe",
			wantPath: "7z.exe",
			wantArgs: []string{"/S"},
		},
		{
			name:     "unknown exe falls back to quiet norestart",
			tool:     "Custom LOB App",
			path:     "custom.exe",
			wantPath: "custom.exe",
			wantArgs: []string{"/quiet", "/norestart"},
		},
		{
			name:     "unknown msi goes through msiexec",
			tool:     "Custom LOB App",
			path:     "custom.MSI",
			wantPath: "msiexec",
			wantArgs: []string{"/i", "custom.MSI", "/quiet", "/norestart"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := CommandFor(tc.tool, tc.path)
			if cmd.Path != tc.wantPath {
				t.Fatalf("path = %q, want %q", cmd.Path, tc.wantPath)
			}
			if !reflect.DeepEqual(cmd.Args, tc.wantArgs) {
				t.Fatalf("args = %v, want %v", cmd.Args, tc.wantArgs)
			}
		})
	}
}

func TestCacheFileName(t *testing.T) {
	tests := []struct {
		tool ToolTask
		want string
	}{
		{ToolTask{Name: "Office Suite", Version: "2024", DownloadURL: "https://x.example.com/office/setup.exe"}, "office-suite-2024.exe"},
		{ToolTask{Name: "Diagram Editor", DownloadURL: "https://x.example.com/d.msi?sig=abc"}, "diagram-editor.msi"},
		{ToolTask{Name: "NoExt Tool", DownloadURL: "https://x.example.com/download"}, "noext-tool.exe"},
	}
	for _, tc := range tests {
		if got := cacheFileName(tc.tool); got != tc.want {
			t.Fatalf("cacheFileName(%q) = %q, want %q", tc.tool.Name, got, tc.want)
		}
	}
}
